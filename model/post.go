package model

/*

Post is one entry of a feed

Id: server identifier
Author: id of the authoring user, resolved lazily through the users scope
Caption: post text
Media: ordered media references
Tags: tag set, order kept as returned by the server
Visibility: who can see the post
ReactionCounts: number of reactions per type, the total is derived
Reactions: one entry per reacting user
ShareCount / ShareList: users who shared the post, ShareCount == len(ShareList)
SaveList: users who saved the post
CommentCount: number of comments as reported by the server
CreatedAt: creation time
IsShared / SharedFrom:
		set when the post is a re-share of another user's post. SharedFrom
		carries the original author id and the original caption.

*/
type Post struct {
	Id             string         `json:"_id"`
	Author         string         `json:"author"`
	Caption        string         `json:"postCaption"`
	Media          []Media        `json:"media"`
	Tags           []string       `json:"tags"`
	Visibility     Visibility     `json:"availability"`
	ReactionCounts ReactionCounts `json:"impressionsCount"`
	Reactions      []Reaction     `json:"impressionList"`
	ShareCount     int            `json:"shareCount"`
	ShareList      []string       `json:"shareList"`
	SaveList       []string       `json:"saveList"`
	CommentCount   int            `json:"commentsCount"`
	CreatedAt      Timestamp      `json:"createdAt"`
	IsShared       bool           `json:"sharedPost"`
	SharedFrom     *OriginalRef   `json:"originalPost,omitempty"`
}

type Media struct {
	Url  string `json:"url"`
	Type string `json:"type,omitempty"`
}

type OriginalRef struct {
	OriginalAuthor  string `json:"originalAuthor"`
	OriginalCaption string `json:"originalCaption"`
}

type Visibility string

const (
	VisibilityPublic         Visibility = "public"
	VisibilityPrivate        Visibility = "private"
	VisibilityFriends        Visibility = "friends"
	VisibilitySpecificGroups Visibility = "specific_groups"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityFriends, VisibilitySpecificGroups:
		return true
	}
	return false
}

func (p *Post) EntityId() string { return p.Id }

func (p *Post) Clone() Entity {
	var c Post
	deepCopy(&c, p)
	return &c
}

// ReactionOf returns the reaction type userId left on the post, if any.
func (p *Post) ReactionOf(userId string) (ReactionType, bool) {
	return reactionOf(p.Reactions, userId)
}

func (p *Post) SavedBy(userId string) bool {
	return containsId(p.SaveList, userId)
}

func (p *Post) SharedBy(userId string) bool {
	return containsId(p.ShareList, userId)
}

// PostVariant is either OriginalPost or SharedPost.
type PostVariant interface {
	isPostVariant() bool
}

type OriginalPost struct {
	PostVariant
	Post *Post
}

type SharedPost struct {
	PostVariant
	Post     *Post
	Original OriginalRef
}

func (OriginalPost) isPostVariant() bool { return true }
func (SharedPost) isPostVariant() bool   { return true }

// Variant tags the post by whether it re-shares another post. A post that
// claims to be shared without an original reference is treated as original.
func (p *Post) Variant() PostVariant {
	if p.IsShared && p.SharedFrom != nil {
		return SharedPost{Post: p, Original: *p.SharedFrom}
	}
	return OriginalPost{Post: p}
}

func containsId(ids []string, id string) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

func withoutId(ids []string, id string) []string {
	res := []string{}
	for _, i := range ids {
		if i != id {
			res = append(res, i)
		}
	}
	return res
}

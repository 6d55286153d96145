package model

/*

Comment is one comment on a post

Id: server identifier, or a "pending_" prefixed id while an add is in flight
PostId: post the comment belongs to
ParentCommentId: nil (or empty) for a root comment, otherwise the parent id
UserId: author id
Content: comment text
Reactions: one entry per reacting user
Replies: ordered ids of the child comments, the parent side of the
		parent/child relation. A child lists in its parent's Replies exactly once.
CreatedAt: creation time

*/
type Comment struct {
	Id              string     `json:"_id"`
	PostId          string     `json:"postId"`
	ParentCommentId *string    `json:"parentCommentId"`
	UserId          string     `json:"userId"`
	Content         string     `json:"content"`
	Reactions       []Reaction `json:"reactions"`
	Replies         []string   `json:"replies"`
	CreatedAt       Timestamp  `json:"createdAt"`
}

// PendingCommentPrefix marks the temporary id of an optimistically added
// comment.
const PendingCommentPrefix = "pending_"

func (c *Comment) EntityId() string { return c.Id }

func (c *Comment) Clone() Entity {
	var res Comment
	deepCopy(&res, c)
	return &res
}

func (c *Comment) IsRoot() bool {
	return c.ParentCommentId == nil || *c.ParentCommentId == ""
}

// Parent returns the parent comment id, "" for a root comment.
func (c *Comment) Parent() string {
	if c.IsRoot() {
		return ""
	}
	return *c.ParentCommentId
}

func (c *Comment) LikedBy(userId string) bool {
	t, ok := reactionOf(c.Reactions, userId)
	return ok && t == ReactionLike
}

func (c *Comment) IsPending() bool {
	return len(c.Id) > len(PendingCommentPrefix) && c.Id[:len(PendingCommentPrefix)] == PendingCommentPrefix
}

package mutation

import (
	"time"

	"github.com/Luismorlan/feedsync/model"
	"github.com/google/uuid"
)

// ToggleReaction adds userId's reaction of type t, switches it from another
// type, or removes it when t is already there. Counters move with the list.
func ToggleReaction(p *model.Post, userId string, t model.ReactionType) model.PostPatch {
	counts := model.ReactionCounts{}
	for k, v := range p.ReactionCounts {
		counts[k] = v
	}
	reactions := []model.Reaction{}
	previous, had := p.ReactionOf(userId)
	for _, r := range p.Reactions {
		if r.UserId != userId {
			reactions = append(reactions, r)
		}
	}
	if had {
		counts[previous]--
		if counts[previous] <= 0 {
			delete(counts, previous)
		}
	}
	if !had || previous != t {
		reactions = append(reactions, model.Reaction{UserId: userId, Type: t})
		counts[t]++
	}
	return model.PostPatch{ReactionCounts: counts, Reactions: reactions}
}

func ToggleSave(p *model.Post, userId string) model.PostPatch {
	return model.PostPatch{SaveList: toggleId(p.SaveList, userId)}
}

// ToggleShare also moves the share count, which follows the list.
func ToggleShare(p *model.Post, userId string) model.PostPatch {
	return model.PostPatch{ShareList: toggleId(p.ShareList, userId)}
}

// ToggleCommentLike likes the comment or removes userId's reaction.
func ToggleCommentLike(c *model.Comment, userId string) model.CommentPatch {
	reactions := []model.Reaction{}
	had := false
	for _, r := range c.Reactions {
		if r.UserId == userId {
			had = true
			continue
		}
		reactions = append(reactions, r)
	}
	if !had {
		reactions = append(reactions, model.Reaction{UserId: userId, Type: model.ReactionLike})
	}
	return model.CommentPatch{Reactions: reactions}
}

func EditCaption(caption string) model.PostPatch {
	return model.PostPatch{Caption: &caption}
}

func SetVisibility(v model.Visibility) model.PostPatch {
	return model.PostPatch{Visibility: &v}
}

func AddTag(p *model.Post, tag string) model.PostPatch {
	tags := append([]string{}, p.Tags...)
	for _, t := range tags {
		if t == tag {
			return model.PostPatch{Tags: tags}
		}
	}
	return model.PostPatch{Tags: append(tags, tag)}
}

func RemoveTag(p *model.Post, tag string) model.PostPatch {
	tags := []string{}
	for _, t := range p.Tags {
		if t != tag {
			tags = append(tags, t)
		}
	}
	return model.PostPatch{Tags: tags}
}

func RenameTag(p *model.Post, oldTag, newTag string) model.PostPatch {
	tags := []string{}
	for _, t := range p.Tags {
		if t == oldTag {
			t = newTag
		}
		tags = append(tags, t)
	}
	return model.PostPatch{Tags: tags}
}

func AdjustCommentCount(p *model.Post, delta int) model.PostPatch {
	count := p.CommentCount + delta
	if count < 0 {
		count = 0
	}
	return model.PostPatch{CommentCount: &count}
}

// PendingComment is the placeholder shown until the server assigns an id.
func PendingComment(postId, userId, content string, parentId *string, now time.Time) *model.Comment {
	c := &model.Comment{
		Id:        model.PendingCommentPrefix + uuid.New().String(),
		PostId:    postId,
		UserId:    userId,
		Content:   content,
		Reactions: []model.Reaction{},
		Replies:   []string{},
		CreatedAt: model.TimestampOf(now),
	}
	if parentId != nil && *parentId != "" {
		parent := *parentId
		c.ParentCommentId = &parent
	}
	return c
}

func EditComment(content string) model.CommentPatch {
	return model.CommentPatch{Content: &content}
}

// ReconcileReaction takes the server's reaction state. Fields the server
// left out stay as guessed.
func ReconcileReaction(server *model.Post) model.PostPatch {
	patch := model.PostPatch{Reactions: server.Reactions}
	if server.ReactionCounts != nil {
		patch.ReactionCounts = server.ReactionCounts
	}
	return patch
}

// ReconcileShare always takes the server's list, a missing list means
// nobody shares the post.
func ReconcileShare(server *model.Post) model.PostPatch {
	shares := server.ShareList
	if shares == nil {
		shares = []string{}
	}
	return model.PostPatch{ShareList: shares}
}

func ReconcileSave(server *model.Post) model.PostPatch {
	return model.PostPatch{SaveList: server.SaveList}
}

// ReconcilePost takes every field an edit endpoint answers with.
func ReconcilePost(server *model.Post) model.PostPatch {
	patch := model.PostPatch{Tags: server.Tags}
	if server.Caption != "" {
		caption := server.Caption
		patch.Caption = &caption
	}
	if server.Visibility != "" {
		visibility := server.Visibility
		patch.Visibility = &visibility
	}
	return patch
}

func ReconcileComment(server *model.Comment) model.CommentPatch {
	patch := model.CommentPatch{Reactions: server.Reactions, Replies: server.Replies}
	if server.Content != "" {
		content := server.Content
		patch.Content = &content
	}
	return patch
}

func toggleId(ids []string, id string) []string {
	res := []string{}
	found := false
	for _, i := range ids {
		if i == id {
			found = true
			continue
		}
		res = append(res, i)
	}
	if !found {
		res = append(res, id)
	}
	return res
}

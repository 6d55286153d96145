package feed

import (
	"context"

	"github.com/Luismorlan/feedsync/api"
	"github.com/Luismorlan/feedsync/cache"
	"github.com/Luismorlan/feedsync/model"
	"github.com/Luismorlan/feedsync/mutation"
	. "github.com/Luismorlan/feedsync/utils/log"
)

func validationError(message string) error {
	return &api.Error{Kind: api.ValidationFailure, Message: message}
}

func notFound(what, id string) error {
	return &api.Error{Kind: api.NotFound, Message: what + " " + id + " is not loaded"}
}

/*

postEdit is one optimistic edit of a post

guess: optimistic patch computed from the cached post
call: remote call, answers the server's view of the post
reconcile: patch taking the server's view, nil keeps the guess

*/
type postEdit struct {
	kind      mutation.Kind
	guess     func(p *model.Post, userId string) model.PostPatch
	call      func(ctx context.Context) (*model.Post, error)
	reconcile func(server *model.Post) model.PostPatch
}

// runPostEdit applies the edit to the post in every feed holding it.
func (s *Session) runPostEdit(ctx context.Context, postId string, edit postEdit) error {
	userId, err := s.client.userId()
	if err != nil {
		return err
	}
	p, ok := s.client.post(postId)
	if !ok {
		return notFound("post", postId)
	}
	patch := edit.guess(p, userId)

	return s.client.Mutations.Run(ctx, mutation.Action{
		Kind:       edit.kind,
		Target:     mutation.Target{Entity: mutation.EntityPost, Id: postId},
		Optimistic: postChanges(s.client.postScopes(postId), postId, patch),
		Dispatch: func(ctx context.Context) ([]mutation.Change, error) {
			server, err := edit.call(ctx)
			if err != nil {
				return nil, err
			}
			if edit.reconcile == nil {
				return nil, nil
			}
			return postChanges(s.client.postScopes(postId), postId, edit.reconcile(server)), nil
		},
	})
}

func postChanges(scopes []cache.Scope, postId string, patch model.Patch) []mutation.Change {
	res := make([]mutation.Change, 0, len(scopes))
	for _, scope := range scopes {
		res = append(res, mutation.Change{Scope: scope, Key: postId, Patch: patch})
	}
	return res
}

// React toggles the logged in user's reaction of type t on the post.
func (s *Session) React(ctx context.Context, postId string, t model.ReactionType) error {
	if !t.Valid() {
		return validationError("unknown reaction " + string(t))
	}
	return s.runPostEdit(ctx, postId, postEdit{
		kind: mutation.KindReact,
		guess: func(p *model.Post, userId string) model.PostPatch {
			return mutation.ToggleReaction(p, userId, t)
		},
		call:      func(ctx context.Context) (*model.Post, error) { return s.client.Api.React(ctx, postId, t) },
		reconcile: mutation.ReconcileReaction,
	})
}

func (s *Session) ToggleSave(ctx context.Context, postId string) error {
	return s.runPostEdit(ctx, postId, postEdit{
		kind:      mutation.KindSave,
		guess:     mutation.ToggleSave,
		call:      func(ctx context.Context) (*model.Post, error) { return s.client.Api.ToggleSave(ctx, postId) },
		reconcile: mutation.ReconcileSave,
	})
}

// ToggleShare shares the post or withdraws the share, whichever the cached
// post suggests. The server's share list wins either way.
func (s *Session) ToggleShare(ctx context.Context, postId string) error {
	sharing := true
	return s.runPostEdit(ctx, postId, postEdit{
		kind: mutation.KindShare,
		guess: func(p *model.Post, userId string) model.PostPatch {
			sharing = !p.SharedBy(userId)
			return mutation.ToggleShare(p, userId)
		},
		call: func(ctx context.Context) (*model.Post, error) {
			if sharing {
				return s.client.Api.Share(ctx, postId)
			}
			return s.client.Api.Unshare(ctx, postId)
		},
		reconcile: mutation.ReconcileShare,
	})
}

func (s *Session) EditCaption(ctx context.Context, postId, caption string) error {
	return s.runPostEdit(ctx, postId, postEdit{
		kind: mutation.KindCaptionEdit,
		guess: func(p *model.Post, userId string) model.PostPatch {
			return mutation.EditCaption(caption)
		},
		call:      func(ctx context.Context) (*model.Post, error) { return s.client.Api.UpdateCaption(ctx, postId, caption) },
		reconcile: mutation.ReconcilePost,
	})
}

func (s *Session) SetVisibility(ctx context.Context, postId string, v model.Visibility) error {
	if !v.Valid() {
		return validationError("unknown visibility " + string(v))
	}
	return s.runPostEdit(ctx, postId, postEdit{
		kind: mutation.KindVisibilityEdit,
		guess: func(p *model.Post, userId string) model.PostPatch {
			return mutation.SetVisibility(v)
		},
		call:      func(ctx context.Context) (*model.Post, error) { return s.client.Api.UpdateVisibility(ctx, postId, v) },
		reconcile: mutation.ReconcilePost,
	})
}

func (s *Session) AddTag(ctx context.Context, postId, tag string) error {
	if tag == "" {
		return validationError("empty tag")
	}
	return s.runPostEdit(ctx, postId, postEdit{
		kind: mutation.KindTagAdd,
		guess: func(p *model.Post, userId string) model.PostPatch {
			return mutation.AddTag(p, tag)
		},
		call:      func(ctx context.Context) (*model.Post, error) { return s.client.Api.AddTag(ctx, postId, tag) },
		reconcile: mutation.ReconcilePost,
	})
}

// RenameTag shares the tag_add kind with AddTag, both rewrite the tag set.
func (s *Session) RenameTag(ctx context.Context, postId, oldTag, newTag string) error {
	if newTag == "" {
		return validationError("empty tag")
	}
	return s.runPostEdit(ctx, postId, postEdit{
		kind: mutation.KindTagAdd,
		guess: func(p *model.Post, userId string) model.PostPatch {
			return mutation.RenameTag(p, oldTag, newTag)
		},
		call:      func(ctx context.Context) (*model.Post, error) { return s.client.Api.RenameTag(ctx, postId, oldTag, newTag) },
		reconcile: mutation.ReconcilePost,
	})
}

func (s *Session) RemoveTag(ctx context.Context, postId, tag string) error {
	return s.runPostEdit(ctx, postId, postEdit{
		kind: mutation.KindTagRemove,
		guess: func(p *model.Post, userId string) model.PostPatch {
			return mutation.RemoveTag(p, tag)
		},
		call:      func(ctx context.Context) (*model.Post, error) { return s.client.Api.RemoveTag(ctx, postId, tag) },
		reconcile: mutation.ReconcilePost,
	})
}

// Delete removes the post from every feed right away and puts it back if the
// server refuses.
func (s *Session) Delete(ctx context.Context, postId string) error {
	if _, err := s.client.userId(); err != nil {
		return err
	}
	if _, ok := s.client.post(postId); !ok {
		return notFound("post", postId)
	}
	err := s.client.Mutations.Run(ctx, mutation.Action{
		Kind:       mutation.KindPostDelete,
		Target:     mutation.Target{Entity: mutation.EntityPost, Id: postId},
		Optimistic: postChanges(s.client.postScopes(postId), postId, model.Remove{}),
		Dispatch: func(ctx context.Context) ([]mutation.Change, error) {
			return nil, s.client.Api.DeletePost(ctx, postId)
		},
	})
	if err != nil {
		return err
	}
	_, merger, _ := s.state()
	merger.Remove(postId)
	s.client.Cache.Evict(CommentsScope(postId))
	return nil
}

// CreatePost publishes a post, through the admin endpoint for privileged
// users. The post is shown on top of this feed when it belongs there, other
// feeds pick it up on their next read.
func (s *Session) CreatePost(ctx context.Context, p api.NewPost) (*model.Post, error) {
	if _, err := s.client.userId(); err != nil {
		return nil, err
	}
	user, ok := s.client.Session.CurrentUser()
	if !ok {
		return nil, api.NewUnauthorized("not logged in")
	}
	if p.Caption == "" && len(p.Media) == 0 {
		return nil, validationError("a post needs a caption or media")
	}
	post, err := s.client.Api.CreatePost(ctx, p, user.Role.IsPrivileged())
	if err != nil {
		return nil, err
	}
	if post == nil || post.Id == "" {
		return nil, &api.Error{Kind: api.ServerFailure, Message: "created post has no id"}
	}
	if post.Author == "" {
		post.Author = user.Id
	}
	Log.Infof("created post %s", post.Id)

	scope, merger, src := s.state()
	if src.shows(post, user) {
		s.client.Cache.Set(scope, post.Id, post)
		merger.Prepend(post.Id)
	}
	for _, other := range []cache.Scope{
		GlobalScope(api.FeedScopeAll),
		GlobalScope(api.FeedScopeAdmin),
		GlobalScope(api.FeedScopeUser),
		UserScope(user.Id),
	} {
		if other != scope {
			s.client.Cache.Invalidate(other)
		}
	}
	s.client.ResolveAuthors(ctx, []string{post.Author})
	return post, nil
}

// shows tells whether a fresh post by author belongs to the feed.
func (src Source) shows(post *model.Post, author *model.User) bool {
	if src.UserId != "" {
		return src.UserId == post.Author
	}
	switch src.Filter {
	case api.FeedScopeAdmin:
		return author.Role.IsPrivileged()
	case api.FeedScopeUser:
		return !author.Role.IsPrivileged()
	}
	return true
}

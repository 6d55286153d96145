package feed

import (
	"context"
	"sync"

	"github.com/Luismorlan/feedsync/cache"
	"github.com/Luismorlan/feedsync/commenttree"
	"github.com/Luismorlan/feedsync/model"
	"github.com/Luismorlan/feedsync/mutation"
	"github.com/Luismorlan/feedsync/uistate"
	. "github.com/Luismorlan/feedsync/utils/log"
)

// Thread is the open comment section of one post.
type Thread struct {
	client *Client
	postId string
	scope  cache.Scope

	expanded *commenttree.Expanded
	menu     *uistate.Menu

	mu          sync.Mutex
	unsubscribe func()
}

func (c *Client) OpenThread(postId string) *Thread {
	t := &Thread{
		client:   c,
		postId:   postId,
		scope:    CommentsScope(postId),
		expanded: commenttree.NewExpanded(),
		menu:     uistate.NewMenu(),
	}
	c.Cache.Register(t.scope, cache.ScopeConfig{TTL: c.Settings.CommentsTTL(), Refetch: t.refetch})
	return t
}

func (t *Thread) PostId() string      { return t.postId }
func (t *Thread) Scope() cache.Scope  { return t.scope }
func (t *Thread) Menu() *uistate.Menu { return t.menu }

func (t *Thread) refetch(ctx context.Context) ([]model.Entity, error) {
	comments, err := t.client.Api.ListComments(ctx, t.postId)
	if err != nil {
		t.client.publishScopeError(t.scope, err)
		return nil, err
	}
	res := make([]model.Entity, 0, len(comments))
	for _, c := range comments {
		res = append(res, c)
	}
	return res, nil
}

// Load fetches the comments. On failure the comments loaded before stay.
func (t *Thread) Load(ctx context.Context) error {
	if err := t.client.Cache.Refresh(ctx, t.scope); err != nil {
		return err
	}
	if err := commenttree.Verify(t.comments()); err != nil {
		Log.Warnf("comments of post %s are inconsistent: %v", t.postId, err)
	}
	ids := []string{}
	for _, c := range t.comments() {
		ids = append(ids, c.UserId)
	}
	t.client.ResolveAuthors(ctx, ids)
	return nil
}

func (t *Thread) comments() []*model.Comment {
	entities := t.client.Cache.List(t.scope)
	res := make([]*model.Comment, 0, len(entities))
	for _, e := range entities {
		res = append(res, e.(*model.Comment))
	}
	return res
}

// Tree is the current two level view, roots that vanished lose their
// expanded flag.
func (t *Thread) Tree() commenttree.Tree {
	tree := commenttree.Build(t.comments())
	t.expanded.Prune(tree)
	return tree
}

func (t *Thread) Toggle(rootId string) bool {
	return t.expanded.Toggle(rootId)
}

func (t *Thread) IsExpanded(rootId string) bool {
	return t.expanded.IsExpanded(rootId)
}

func (t *Thread) Author(userId string) *model.User {
	return t.client.Author(userId)
}

func (t *Thread) comment(id string) (*model.Comment, error) {
	if len(id) == 0 {
		return nil, validationError("empty comment id")
	}
	e, ok := t.client.Cache.Get(t.scope, id)
	if !ok {
		return nil, notFound("comment", id)
	}
	c := e.(*model.Comment)
	if c.IsPending() {
		return nil, validationError("comment " + id + " is not saved yet")
	}
	return c, nil
}

func (t *Thread) commentCountChanges(delta int) []mutation.Change {
	p, ok := t.client.post(t.postId)
	if !ok {
		return nil
	}
	return postChanges(t.client.postScopes(t.postId), t.postId, mutation.AdjustCommentCount(p, delta))
}

// AddComment adds a root comment.
func (t *Thread) AddComment(ctx context.Context, content string) (*model.Comment, error) {
	return t.add(ctx, content, nil)
}

func (t *Thread) Reply(ctx context.Context, parentId, content string) (*model.Comment, error) {
	if _, err := t.comment(parentId); err != nil {
		return nil, err
	}
	return t.add(ctx, content, &parentId)
}

// add shows a pending comment right away and swaps it for the saved one.
func (t *Thread) add(ctx context.Context, content string, parentId *string) (*model.Comment, error) {
	userId, err := t.client.userId()
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, validationError("empty comment")
	}
	pending := mutation.PendingComment(t.postId, userId, content, parentId, t.client.now())

	optimistic := []mutation.Change{{Scope: t.scope, Key: pending.Id, Patch: model.Put{Value: pending}}}
	if parentId != nil {
		optimistic = append(optimistic, mutation.Change{Scope: t.scope, Key: *parentId, Patch: model.AppendReply{Id: pending.Id}})
	}
	optimistic = append(optimistic, t.commentCountChanges(1)...)

	var saved *model.Comment
	err = t.client.Mutations.Run(ctx, mutation.Action{
		Kind:       mutation.KindCommentAdd,
		Target:     mutation.Target{Entity: mutation.EntityPost, Id: t.postId},
		Optimistic: optimistic,
		Dispatch: func(ctx context.Context) ([]mutation.Change, error) {
			c, err := t.client.Api.AddComment(ctx, t.postId, content, parentId)
			if err != nil {
				return nil, err
			}
			if c.Id == "" {
				return nil, validationError("saved comment has no id")
			}
			if c.PostId == "" {
				c.PostId = t.postId
			}
			if c.UserId == "" {
				c.UserId = userId
			}
			saved = c
			changes := []mutation.Change{
				{Scope: t.scope, Key: pending.Id, Patch: model.Remove{}},
				{Scope: t.scope, Key: c.Id, Patch: model.Put{Value: c}},
			}
			if parentId != nil {
				// A refetch during the add may have dropped the placeholder
				// from the parent, AppendReply lists the reply in that case.
				changes = append(changes,
					mutation.Change{Scope: t.scope, Key: *parentId, Patch: model.ReplaceReply{Old: pending.Id, New: c.Id}},
					mutation.Change{Scope: t.scope, Key: *parentId, Patch: model.AppendReply{Id: c.Id}},
				)
			}
			return changes, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (t *Thread) EditComment(ctx context.Context, id, content string) error {
	if _, err := t.client.userId(); err != nil {
		return err
	}
	if content == "" {
		return validationError("empty comment")
	}
	if _, err := t.comment(id); err != nil {
		return err
	}
	return t.client.Mutations.Run(ctx, mutation.Action{
		Kind:       mutation.KindCommentEdit,
		Target:     mutation.Target{Entity: mutation.EntityComment, Id: id},
		Optimistic: []mutation.Change{{Scope: t.scope, Key: id, Patch: mutation.EditComment(content)}},
		Dispatch: func(ctx context.Context) ([]mutation.Change, error) {
			c, err := t.client.Api.EditComment(ctx, id, content)
			if err != nil {
				return nil, err
			}
			return []mutation.Change{{Scope: t.scope, Key: id, Patch: mutation.ReconcileComment(c)}}, nil
		},
	})
}

// ReactComment toggles the logged in user's like.
func (t *Thread) ReactComment(ctx context.Context, id string) error {
	userId, err := t.client.userId()
	if err != nil {
		return err
	}
	c, err := t.comment(id)
	if err != nil {
		return err
	}
	return t.client.Mutations.Run(ctx, mutation.Action{
		Kind:       mutation.KindCommentReact,
		Target:     mutation.Target{Entity: mutation.EntityComment, Id: id},
		Optimistic: []mutation.Change{{Scope: t.scope, Key: id, Patch: mutation.ToggleCommentLike(c, userId)}},
		Dispatch: func(ctx context.Context) ([]mutation.Change, error) {
			server, err := t.client.Api.ReactComment(ctx, id, model.ReactionLike)
			if err != nil {
				return nil, err
			}
			if server.Reactions == nil {
				return nil, nil
			}
			return []mutation.Change{{Scope: t.scope, Key: id, Patch: model.CommentPatch{Reactions: server.Reactions}}}, nil
		},
	})
}

// DeleteComment deletes the comment and drops it from its parent's replies,
// as one mutation. When the parent update fails after the delete went
// through, the local state is rolled back and the thread refetched.
func (t *Thread) DeleteComment(ctx context.Context, id string) error {
	if _, err := t.client.userId(); err != nil {
		return err
	}
	c, err := t.comment(id)
	if err != nil {
		return err
	}

	optimistic := append([]mutation.Change{{Scope: t.scope, Key: id, Patch: model.Remove{}}}, t.commentCountChanges(-1)...)
	primary := mutation.Action{
		Kind:       mutation.KindCommentDelete,
		Target:     mutation.Target{Entity: mutation.EntityComment, Id: id},
		Optimistic: optimistic,
		Dispatch: func(ctx context.Context) ([]mutation.Change, error) {
			return nil, t.client.Api.DeleteComment(ctx, id)
		},
	}

	parentId := c.Parent()
	if parentId == "" {
		return t.client.Mutations.Run(ctx, primary)
	}
	parent, err := t.comment(parentId)
	if err != nil {
		// The parent is gone already, nothing to cascade.
		return t.client.Mutations.Run(ctx, primary)
	}
	remaining := []string{}
	for _, r := range parent.Replies {
		if r != id {
			remaining = append(remaining, r)
		}
	}
	cascade := mutation.Action{
		Kind:       mutation.KindCommentEdit,
		Target:     mutation.Target{Entity: mutation.EntityComment, Id: parentId},
		Optimistic: []mutation.Change{{Scope: t.scope, Key: parentId, Patch: model.RemoveReply{Id: id}}},
		Dispatch: func(ctx context.Context) ([]mutation.Change, error) {
			server, err := t.client.Api.SetReplies(ctx, parentId, remaining)
			if err != nil {
				return nil, err
			}
			if server.Replies == nil {
				return nil, nil
			}
			return []mutation.Change{{Scope: t.scope, Key: parentId, Patch: model.CommentPatch{Replies: server.Replies}}}, nil
		},
	}

	if err := t.client.Mutations.RunLinked(ctx, primary, cascade); err != nil {
		if err != mutation.ErrAlreadyPending && err != mutation.ErrAbandoned {
			t.client.Cache.Invalidate(t.scope)
		}
		return err
	}
	return nil
}

// Watch calls onChange with the rebuilt tree whenever the comments change.
func (t *Thread) Watch(onChange func(commenttree.Tree)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unsubscribe != nil {
		t.unsubscribe()
	}
	t.unsubscribe = t.client.Cache.Subscribe(t.scope, func(ev cache.Event) {
		onChange(t.Tree())
	})
}

// Close stops watching. The comments stay cached until they expire.
func (t *Thread) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
}

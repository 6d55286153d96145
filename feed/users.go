package feed

import (
	"context"

	"github.com/Luismorlan/feedsync/api"
	"github.com/Luismorlan/feedsync/model"
	"github.com/Luismorlan/feedsync/mutation"
	. "github.com/Luismorlan/feedsync/utils/log"
)

// ChangeRole sets the role of a user, admins only. A user's privilege decides
// which filtered feed their posts land in, so both are marked stale.
func (c *Client) ChangeRole(ctx context.Context, userId string, role model.Role) error {
	if userId == "" {
		return validationError("user id is required")
	}
	switch role {
	case model.RoleUser, model.RoleAdmin, model.RoleSuperAdmin:
	default:
		return validationError("invalid role " + string(role))
	}
	if _, err := c.userId(); err != nil {
		return err
	}

	err := c.Mutations.Run(ctx, mutation.Action{
		Kind:       mutation.KindRoleChange,
		Target:     mutation.Target{Entity: mutation.EntityUser, Id: userId},
		Optimistic: c.cachedUserChanges(userId, model.UserPatch{Role: &role}),
		Dispatch: func(ctx context.Context) ([]mutation.Change, error) {
			return nil, c.Api.ChangeRole(ctx, userId, role)
		},
	})
	if err != nil {
		return err
	}
	if u, ok := c.Session.CurrentUser(); ok && u.Id == userId {
		u.Role = role
		c.Session.UpdateUser(u)
	}
	c.invalidateRoleFeeds()
	Log.Infof("role of user %s changed to %s", userId, role)
	return nil
}

// DeleteUser removes a user, admins only. The user is dropped from the users
// scope right away and comes back if the server refuses.
func (c *Client) DeleteUser(ctx context.Context, userId string) error {
	if userId == "" {
		return validationError("user id is required")
	}
	if _, err := c.userId(); err != nil {
		return err
	}

	err := c.Mutations.Run(ctx, mutation.Action{
		Kind:       mutation.KindUserDelete,
		Target:     mutation.Target{Entity: mutation.EntityUser, Id: userId},
		Optimistic: c.cachedUserChanges(userId, model.Remove{}),
		Dispatch: func(ctx context.Context) ([]mutation.Change, error) {
			return nil, c.Api.DeleteUser(ctx, userId)
		},
	})
	if err != nil {
		return err
	}
	c.Cache.Evict(UserScope(userId))
	c.Cache.Invalidate(GlobalScope(api.FeedScopeAll))
	c.invalidateRoleFeeds()
	Log.Infof("user %s deleted", userId)
	return nil
}

// cachedUserChanges patches the cached user, nothing when it is not loaded.
func (c *Client) cachedUserChanges(userId string, patch model.Patch) []mutation.Change {
	if _, ok := c.Cache.Get(UsersScope, userId); !ok {
		return nil
	}
	return []mutation.Change{{Scope: UsersScope, Key: userId, Patch: patch}}
}

func (c *Client) invalidateRoleFeeds() {
	c.Cache.Invalidate(GlobalScope(api.FeedScopeAdmin))
	c.Cache.Invalidate(GlobalScope(api.FeedScopeUser))
}

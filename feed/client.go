package feed

import (
	"context"
	"strings"
	"time"

	"github.com/Luismorlan/feedsync/api"
	"github.com/Luismorlan/feedsync/app_setting"
	"github.com/Luismorlan/feedsync/cache"
	"github.com/Luismorlan/feedsync/events"
	"github.com/Luismorlan/feedsync/model"
	"github.com/Luismorlan/feedsync/mutation"
	"github.com/Luismorlan/feedsync/session"
	"github.com/Luismorlan/feedsync/utils"
	. "github.com/Luismorlan/feedsync/utils/log"
)

const (
	UsersScope cache.Scope = "users"

	feedScopePrefix     = "feed:"
	commentsScopePrefix = "comments:"
	searchScopePrefix   = "search:"
)

func GlobalScope(filter api.FeedScope) cache.Scope {
	if filter == api.FeedScopeAll {
		return feedScopePrefix + "global"
	}
	return cache.Scope(feedScopePrefix + "global:" + string(filter))
}

func UserScope(userId string) cache.Scope {
	return cache.Scope(feedScopePrefix + "user:" + userId)
}

func CommentsScope(postId string) cache.Scope {
	return cache.Scope(commentsScopePrefix + postId)
}

func SearchScope(query string) cache.Scope {
	return cache.Scope(searchScopePrefix + normalizeQuery(query))
}

func isFeedScope(s cache.Scope) bool {
	return strings.HasPrefix(string(s), feedScopePrefix)
}

/*

Client wires the feed components of one process around a shared cache and
session. It is the only place that issues network requests.

Api: remote service, authenticated by Session
Cache: every fetched record, partitioned by scope
Mutations: the optimistic mutation coordinator
Bus: where views learn about settled mutations and failed loads

*/
type Client struct {
	Api       *api.Client
	Cache     *cache.Cache
	Mutations *mutation.Coordinator
	Session   *session.Context
	Bus       *events.Bus
	Settings  app_setting.ClientAppSetting

	now func() time.Time
}

type Options struct {
	Settings  app_setting.ClientAppSetting
	Session   *session.Context
	Bus       *events.Bus
	Persister cache.Persister
	// Extra api client options, e.g. a custom http client.
	ApiOptions []api.Option
	Now        func() time.Time
}

// NewClient wires the components. Tearing the session down clears the cache
// and abandons pending mutations, a credential rejected by the service tears
// the session down.
func NewClient(opts Options) *Client {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sess := opts.Session
	c := cache.New(cache.Options{Persister: opts.Persister, Now: now})

	apiOpts := append([]api.Option{}, opts.ApiOptions...)
	apiOpts = append(apiOpts, api.WithUnauthorizedHandler(func() {
		sess.Teardown(session.ReasonUnauthorized)
	}))

	client := &Client{
		Api:       api.NewClient(opts.Settings.API_BASE_URL, sess, apiOpts...),
		Cache:     c,
		Mutations: mutation.NewCoordinator(c, opts.Bus),
		Session:   sess,
		Bus:       opts.Bus,
		Settings:  opts.Settings,
		now:       now,
	}
	c.Register(UsersScope, cache.ScopeConfig{TTL: opts.Settings.UsersTTL(), Refetch: client.refetchUsers})

	sess.OnTeardown(func(reason session.Reason) {
		client.Mutations.Abandon()
		client.Cache.Clear()
	})
	return client
}

// Warm loads what a persister kept from an earlier run.
func (c *Client) Warm(load func(scope cache.Scope, decode cache.Decoder) ([]model.Entity, error)) {
	users, err := load(UsersScope, cache.DecodeUser)
	if err != nil {
		Log.Warn("cannot warm users: ", err)
		return
	}
	c.Cache.Warm(UsersScope, users)
}

func (c *Client) Close() {
	c.Cache.Close()
}

// userId returns the logged in user, failing like a rejected credential when
// there is none.
func (c *Client) userId() (string, error) {
	if _, err := c.Session.Credential(); err != nil {
		return "", err
	}
	id := c.Session.UserId()
	if id == "" {
		return "", api.NewUnauthorized("not logged in")
	}
	return id, nil
}

// Author returns the cached user or a placeholder. It never fetches.
func (c *Client) Author(id string) *model.User {
	if e, ok := c.Cache.Get(UsersScope, id); ok {
		return e.(*model.User)
	}
	return model.UnknownUser(id)
}

// ResolveAuthors fetches every user in ids that is not cached yet. A failed
// fetch leaves the placeholder, it is retried on the next resolve.
func (c *Client) ResolveAuthors(ctx context.Context, ids []string) {
	for _, id := range utils.UniqueStrings(ids) {
		if _, ok := c.Cache.Get(UsersScope, id); ok {
			continue
		}
		u, err := c.Api.GetUser(ctx, id)
		if err != nil {
			Log.Infof("cannot fetch author %s: %v", id, err)
			continue
		}
		c.Cache.Set(UsersScope, id, u)
	}
}

func (c *Client) refetchUsers(ctx context.Context) ([]model.Entity, error) {
	res := []model.Entity{}
	for _, id := range c.Cache.Keys(UsersScope) {
		u, err := c.Api.GetUser(ctx, id)
		if err != nil {
			if api.Is(err, api.NotFound) {
				continue
			}
			return nil, err
		}
		res = append(res, u)
	}
	return res, nil
}

// UpdateProfile changes the logged in user's name and bio. Empty values are
// left alone.
func (c *Client) UpdateProfile(ctx context.Context, name, bio string) (*model.User, error) {
	userId, err := c.userId()
	if err != nil {
		return nil, err
	}
	patch := model.UserPatch{}
	if name != "" {
		patch.Name = &name
	}
	if bio != "" {
		patch.Bio = &bio
	}

	var updated *model.User
	err = c.Mutations.Run(ctx, mutation.Action{
		Kind:       mutation.KindProfileEdit,
		Target:     mutation.Target{Entity: mutation.EntityUser, Id: userId},
		Optimistic: []mutation.Change{{Scope: UsersScope, Key: userId, Patch: patch}},
		Dispatch: func(ctx context.Context) ([]mutation.Change, error) {
			var u *model.User
			var err error
			if name != "" {
				if u, err = c.Api.UpdateName(ctx, name); err != nil {
					return nil, err
				}
			}
			if bio != "" {
				if u, err = c.Api.UpdateBio(ctx, bio); err != nil {
					return nil, err
				}
			}
			if u == nil {
				return nil, nil
			}
			u.Id = userId
			updated = u
			return []mutation.Change{{Scope: UsersScope, Key: userId, Patch: model.Put{Value: u}}}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	if updated != nil {
		c.Session.UpdateUser(updated)
	}
	return updated, nil
}

// post finds a cached post in any feed scope.
func (c *Client) post(id string) (*model.Post, bool) {
	for _, scope := range c.postScopes(id) {
		if e, ok := c.Cache.Get(scope, id); ok {
			return e.(*model.Post), true
		}
	}
	return nil, false
}

func (c *Client) postScopes(id string) []cache.Scope {
	res := []cache.Scope{}
	for _, scope := range c.Cache.ScopesHolding(id) {
		if isFeedScope(scope) {
			res = append(res, scope)
		}
	}
	return res
}

func (c *Client) publishScopeError(scope cache.Scope, err error) {
	if pubErr := c.Bus.Publish(events.TOPIC_SCOPE_ERROR, events.ScopeError{
		Scope: string(scope),
		Error: err.Error(),
	}); pubErr != nil {
		Log.Warn("cannot publish scope error: ", pubErr)
	}
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

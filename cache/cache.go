package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Luismorlan/feedsync/model"
	. "github.com/Luismorlan/feedsync/utils/log"
)

// Scope is a named partition of the cache, e.g. one feed or one post's
// comments. Evicting a scope drops every entry it holds.
type Scope string

// RefetchFunc reloads the whole content of a scope.
type RefetchFunc func(ctx context.Context) ([]model.Entity, error)

type ScopeConfig struct {
	// TTL after the last fill. Zero means the scope never expires by time.
	TTL time.Duration
	// Refetch is started in background when a stale scope is read. Scopes
	// without a refetch function are only ever stale, never reloaded.
	Refetch RefetchFunc
	// MergeRefetch makes a refetch result Fill the scope instead of Replace
	// it. Used by paged scopes where a refetch only covers part of the data.
	MergeRefetch bool
}

// Persister mirrors cache writes to a durable store. Errors are logged and
// never fail a cache operation.
type Persister interface {
	Save(scope Scope, key string, e model.Entity) error
	Delete(scope Scope, key string) error
	DropScope(scope Scope) error
}

type Options struct {
	Persister Persister
	// Now is used for TTL checks, time.Now when nil.
	Now func() time.Time
}

type scopeState struct {
	config      ScopeConfig
	entries     map[string]model.Entity
	fetchedAt   time.Time
	invalidated bool
	refreshing  bool
	lastErr     error
	// generation changes whenever the scope is evicted, so a refetch started
	// before the eviction cannot write into the new scope.
	generation int
}

// Cache is the keyed store of normalized entities. Every read returns a deep
// copy, every write goes through Set, Fill, Replace or Merge. Thread-safe.
type Cache struct {
	mu     sync.Mutex
	scopes map[Scope]*scopeState
	subs   *subscriptions

	persister Persister
	now       func() time.Time

	generation int

	// Root context of background refetches, cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
}

func New(opts Options) *Cache {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		scopes:    make(map[Scope]*scopeState),
		subs:      newSubscriptions(),
		persister: opts.Persister,
		now:       now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Register sets freshness policy of a scope. It keeps the scope's content if
// the scope already exists.
func (c *Cache) Register(scope Scope, config ScopeConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state(scope).config = config
}

// must hold c.mu
func (c *Cache) state(scope Scope) *scopeState {
	st, ok := c.scopes[scope]
	if !ok {
		c.generation++
		st = &scopeState{entries: make(map[string]model.Entity), generation: c.generation}
		c.scopes[scope] = st
	}
	return st
}

// must hold c.mu
func (c *Cache) isStale(st *scopeState) bool {
	if st.invalidated {
		return true
	}
	if st.config.TTL <= 0 || st.fetchedAt.IsZero() {
		return false
	}
	return c.now().Sub(st.fetchedAt) > st.config.TTL
}

// Get returns the entity, serving the last known value even when the scope
// is stale. A stale read starts one background refetch.
func (c *Cache) Get(scope Scope, key string) (model.Entity, bool) {
	c.mu.Lock()
	st, ok := c.scopes[scope]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	e, found := st.entries[key]
	if found {
		e = e.Clone()
	}
	c.maybeRevalidate(scope, st)
	c.mu.Unlock()
	return e, found
}

// List returns all entities of a scope ordered by key. Same freshness
// handling as Get.
func (c *Cache) List(scope Scope) []model.Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.scopes[scope]
	if !ok {
		return []model.Entity{}
	}
	res := make([]model.Entity, 0, len(st.entries))
	for _, k := range sortedKeys(st.entries) {
		res = append(res, st.entries[k].Clone())
	}
	c.maybeRevalidate(scope, st)
	return res
}

func (c *Cache) Keys(scope Scope) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.scopes[scope]
	if !ok {
		return []string{}
	}
	return sortedKeys(st.entries)
}

// IsStale reports whether the next read of scope would revalidate. Unknown
// scopes are stale.
func (c *Cache) IsStale(scope Scope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.scopes[scope]
	if !ok {
		return true
	}
	return c.isStale(st)
}

// LastError returns the error of the last failed refetch of scope, nil once a
// later fill succeeds.
func (c *Cache) LastError(scope Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.scopes[scope]; ok {
		return st.lastErr
	}
	return nil
}

// Set stores a single entity. It does not renew the scope's freshness unless
// the scope was never filled.
func (c *Cache) Set(scope Scope, key string, value model.Entity) {
	c.mu.Lock()
	st := c.state(scope)
	st.entries[key] = value.Clone()
	if st.fetchedAt.IsZero() {
		st.fetchedAt = c.now()
	}
	c.mu.Unlock()

	c.persist(scope, key, value)
	c.subs.notify(Event{Scope: scope, Keys: []string{key}})
}

// Fill stores fetched entities and marks the scope fresh.
func (c *Cache) Fill(scope Scope, entities []model.Entity) {
	c.fill(scope, entities, false)
}

// Replace is Fill that also drops entries missing from entities.
func (c *Cache) Replace(scope Scope, entities []model.Entity) {
	c.fill(scope, entities, true)
}

func (c *Cache) fill(scope Scope, entities []model.Entity, replace bool) {
	c.mu.Lock()
	keys := c.fillLocked(c.state(scope), entities, replace)
	c.mu.Unlock()
	c.filled(scope, entities, keys, replace)
}

// must hold c.mu
func (c *Cache) fillLocked(st *scopeState, entities []model.Entity, replace bool) []string {
	if replace {
		st.entries = make(map[string]model.Entity)
	}
	keys := []string{}
	for _, e := range entities {
		st.entries[e.EntityId()] = e.Clone()
		keys = append(keys, e.EntityId())
	}
	st.fetchedAt = c.now()
	st.invalidated = false
	st.lastErr = nil
	return keys
}

// filled mirrors a fill to the persister and subscribers, c.mu not held.
func (c *Cache) filled(scope Scope, entities []model.Entity, keys []string, replace bool) {
	if replace && c.persister != nil {
		if err := c.persister.DropScope(scope); err != nil {
			Log.Warn("cannot drop persisted scope ", scope, ": ", err)
		}
	}
	for _, e := range entities {
		c.persist(scope, e.EntityId(), e)
	}
	c.subs.notify(Event{Scope: scope, Keys: keys})
}

// Warm loads previously persisted entities. The scope is marked invalidated
// so the first read serves them and revalidates.
func (c *Cache) Warm(scope Scope, entities []model.Entity) {
	c.mu.Lock()
	st := c.state(scope)
	for _, e := range entities {
		st.entries[e.EntityId()] = e.Clone()
	}
	st.invalidated = true
	c.mu.Unlock()
}

// Merge applies patch to the entry and returns the patch that undoes it. The
// apply and the inverse are computed under one lock, so no other write can
// interleave.
func (c *Cache) Merge(scope Scope, key string, patch model.Patch) model.Patch {
	c.mu.Lock()
	st := c.state(scope)
	var current model.Entity
	if e, ok := st.entries[key]; ok {
		current = e.Clone()
	}
	inverse := patch.Inverse(current)
	next := patch.Apply(current)
	if next == nil {
		delete(st.entries, key)
	} else {
		st.entries[key] = next
	}
	c.mu.Unlock()

	if next == nil {
		c.unpersist(scope, key)
	} else {
		c.persist(scope, key, next)
	}
	c.subs.notify(Event{Scope: scope, Keys: []string{key}})
	return inverse
}

// Invalidate marks scope stale, forcing the next read to refetch. Data is
// kept until the refetch succeeds.
func (c *Cache) Invalidate(scope Scope) {
	c.mu.Lock()
	st, ok := c.scopes[scope]
	if ok {
		st.invalidated = true
	}
	c.mu.Unlock()
	if ok {
		c.subs.notify(Event{Scope: scope, Invalidated: true})
	}
}

// ScopesHolding returns every scope that holds key, sorted.
func (c *Cache) ScopesHolding(key string) []Scope {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := []Scope{}
	for scope, st := range c.scopes {
		if _, ok := st.entries[key]; ok {
			res = append(res, scope)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Evict drops the scope with its config. Subscribers are kept, they see the
// scope again once it is refilled.
func (c *Cache) Evict(scope Scope) {
	c.mu.Lock()
	_, ok := c.scopes[scope]
	delete(c.scopes, scope)
	c.mu.Unlock()

	if ok && c.persister != nil {
		if err := c.persister.DropScope(scope); err != nil {
			Log.Warn("cannot drop persisted scope ", scope, ": ", err)
		}
	}
}

// Clear drops the content of every scope, used when the session is torn
// down. Configs are kept and every scope is left invalidated, so a new
// session refetches on first read. Refetches in flight are dropped.
func (c *Cache) Clear() {
	c.mu.Lock()
	scopes := []Scope{}
	for scope, st := range c.scopes {
		c.generation++
		c.scopes[scope] = &scopeState{
			config:      st.config,
			entries:     make(map[string]model.Entity),
			invalidated: true,
			generation:  c.generation,
		}
		scopes = append(scopes, scope)
	}
	c.mu.Unlock()

	for _, scope := range scopes {
		if c.persister != nil {
			if err := c.persister.DropScope(scope); err != nil {
				Log.Warn("cannot drop persisted scope ", scope, ": ", err)
			}
		}
		c.subs.notify(Event{Scope: scope, Invalidated: true})
	}
}

// Close stops background refetches. Results still in flight are dropped.
func (c *Cache) Close() {
	c.cancel()
}

// must hold c.mu
func (c *Cache) maybeRevalidate(scope Scope, st *scopeState) {
	if st.refreshing || st.config.Refetch == nil || !c.isStale(st) {
		return
	}
	st.refreshing = true
	go c.refresh(scope, st.generation, st.config.Refetch)
}

// Refresh refetches scope now and blocks until done. The scope must have a
// refetch function.
func (c *Cache) Refresh(ctx context.Context, scope Scope) error {
	c.mu.Lock()
	st := c.state(scope)
	refetch := st.config.Refetch
	generation := st.generation
	c.mu.Unlock()
	if refetch == nil {
		return nil
	}
	entities, err := refetch(ctx)
	return c.applyRefetch(scope, generation, entities, err)
}

func (c *Cache) refresh(scope Scope, generation int, refetch RefetchFunc) {
	entities, err := refetch(c.ctx)
	if c.ctx.Err() != nil {
		return
	}
	c.applyRefetch(scope, generation, entities, err)
}

func (c *Cache) applyRefetch(scope Scope, generation int, entities []model.Entity, err error) error {
	c.mu.Lock()
	st, ok := c.scopes[scope]
	if !ok || st.generation != generation {
		c.mu.Unlock()
		Log.Info("drop refetch result of evicted scope ", scope)
		return err
	}
	st.refreshing = false
	if err != nil {
		// Keep the last good value, only surface the error.
		st.lastErr = err
		c.mu.Unlock()
		Log.Warn("refetch of scope ", scope, " failed: ", err)
		c.subs.notify(Event{Scope: scope, Err: err})
		return err
	}
	replace := !st.config.MergeRefetch
	keys := c.fillLocked(st, entities, replace)
	c.mu.Unlock()
	c.filled(scope, entities, keys, replace)
	return nil
}

func (c *Cache) persist(scope Scope, key string, e model.Entity) {
	if c.persister == nil {
		return
	}
	if err := c.persister.Save(scope, key, e); err != nil {
		Log.Warn("cannot persist ", scope, "/", key, ": ", err)
	}
}

func (c *Cache) unpersist(scope Scope, key string) {
	if c.persister == nil {
		return
	}
	if err := c.persister.Delete(scope, key); err != nil {
		Log.Warn("cannot delete persisted ", scope, "/", key, ": ", err)
	}
}

func sortedKeys(entries map[string]model.Entity) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

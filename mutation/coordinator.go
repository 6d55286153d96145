package mutation

import (
	"context"
	"sync"

	"github.com/Luismorlan/feedsync/cache"
	"github.com/Luismorlan/feedsync/events"
	"github.com/Luismorlan/feedsync/model"
	. "github.com/Luismorlan/feedsync/utils/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Kind string

const (
	KindReact          Kind = "react"
	KindSave           Kind = "save"
	KindShare          Kind = "share"
	KindCommentAdd     Kind = "comment_add"
	KindCommentEdit    Kind = "comment_edit"
	KindCommentDelete  Kind = "comment_delete"
	KindCommentReact   Kind = "comment_react"
	KindCaptionEdit    Kind = "caption_edit"
	KindVisibilityEdit Kind = "visibility_edit"
	KindTagAdd         Kind = "tag_add"
	KindTagRemove      Kind = "tag_remove"
	KindPostDelete     Kind = "post_delete"
	KindProfileEdit    Kind = "profile_edit"
	KindRoleChange     Kind = "role_change"
	KindUserDelete     Kind = "user_delete"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
	StatusAbandoned  Status = "abandoned"
)

var (
	// ErrAlreadyPending rejects a mutation whose (target, kind) is in flight.
	ErrAlreadyPending = errors.New("mutation already pending")
	// ErrAbandoned is returned when the session ended while the mutation was
	// in flight. Its result was dropped.
	ErrAbandoned = errors.New("mutation abandoned")
)

type EntityType string

const (
	EntityPost    EntityType = "post"
	EntityComment EntityType = "comment"
	EntityUser    EntityType = "user"
)

// Target is the entity a mutation is exclusive on.
type Target struct {
	Entity EntityType
	Id     string
}

// Change is one patch of one cache entry.
type Change struct {
	Scope cache.Scope
	Key   string
	Patch model.Patch
}

// DispatchFunc performs the remote call and returns the authoritative changes
// to apply on success.
type DispatchFunc func(ctx context.Context) ([]Change, error)

type Action struct {
	Kind   Kind
	Target Target
	// Applied before dispatch, undone on failure.
	Optimistic []Change
	Dispatch   DispatchFunc
}

type pendingKey struct {
	target Target
	kind   Kind
}

type record struct {
	id         string
	action     Action
	inverses   []Change
	generation int
}

/*

Coordinator runs optimistic mutations against the cache

pending: in flight records keyed by (target, kind), at most one each
generation: bumped by Abandon, results of an older generation are dropped
applyMu: serializes every cache write of the coordinator with Abandon, so
		nothing of an abandoned mutation lands after the session was cleared.
		Cache listeners must not start mutations synchronously.

*/
type Coordinator struct {
	mu         sync.Mutex
	pending    map[pendingKey]*record
	generation int

	applyMu sync.Mutex

	cache *cache.Cache
	bus   *events.Bus
}

func NewCoordinator(c *cache.Cache, bus *events.Bus) *Coordinator {
	return &Coordinator{
		pending: make(map[pendingKey]*record),
		cache:   c,
		bus:     bus,
	}
}

// Run applies the action's optimistic changes, dispatches it and commits or
// rolls back. It blocks until settled. A second action with the same target
// and kind is rejected with ErrAlreadyPending while the first is in flight.
func (c *Coordinator) Run(ctx context.Context, a Action) error {
	return c.RunLinked(ctx, a)
}

// RunLinked runs primary and its dependents as one mutation: all optimistic
// changes apply up front, dispatches run in order and stop at the first
// failure, which rolls every step back.
func (c *Coordinator) RunLinked(ctx context.Context, primary Action, dependents ...Action) error {
	steps := append([]Action{primary}, dependents...)

	c.applyMu.Lock()
	records, err := c.register(steps)
	if err != nil {
		c.applyMu.Unlock()
		return err
	}
	for _, r := range records {
		r.inverses = c.apply(r.action.Optimistic)
	}
	c.applyMu.Unlock()

	reconciles := [][]Change{}
	var dispatchErr error
	for _, r := range records {
		if r.action.Dispatch == nil {
			reconciles = append(reconciles, nil)
			continue
		}
		changes, err := r.action.Dispatch(ctx)
		if err != nil {
			dispatchErr = err
			break
		}
		reconciles = append(reconciles, changes)
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	if !c.unregister(records) {
		c.settled(records, StatusAbandoned, dispatchErr)
		return ErrAbandoned
	}

	if dispatchErr != nil {
		for i := len(records) - 1; i >= 0; i-- {
			inverses := records[i].inverses
			for j := len(inverses) - 1; j >= 0; j-- {
				c.cache.Merge(inverses[j].Scope, inverses[j].Key, inverses[j].Patch)
			}
		}
		Log.Warnf("mutation %s on %s %s rolled back: %v", primary.Kind, primary.Target.Entity, primary.Target.Id, dispatchErr)
		c.settled(records, StatusRolledBack, dispatchErr)
		return dispatchErr
	}

	for _, changes := range reconciles {
		c.apply(changes)
	}
	c.settled(records, StatusCommitted, nil)
	return nil
}

func (c *Coordinator) register(steps []Action) ([]*record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := map[pendingKey]bool{}
	for _, a := range steps {
		key := pendingKey{target: a.Target, kind: a.Kind}
		if _, ok := c.pending[key]; ok || seen[key] {
			return nil, ErrAlreadyPending
		}
		seen[key] = true
	}

	records := make([]*record, 0, len(steps))
	for _, a := range steps {
		r := &record{
			id:         uuid.New().String(),
			action:     a,
			generation: c.generation,
		}
		c.pending[pendingKey{target: a.Target, kind: a.Kind}] = r
		records = append(records, r)
	}
	return records, nil
}

// unregister drops the records and reports whether they were still live.
func (c *Coordinator) unregister(records []*record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(records) == 0 || records[0].generation != c.generation {
		return false
	}
	for _, r := range records {
		delete(c.pending, pendingKey{target: r.action.Target, kind: r.action.Kind})
	}
	return true
}

// must hold c.applyMu
func (c *Coordinator) apply(changes []Change) []Change {
	inverses := make([]Change, 0, len(changes))
	for _, ch := range changes {
		inverse := c.cache.Merge(ch.Scope, ch.Key, ch.Patch)
		inverses = append(inverses, Change{Scope: ch.Scope, Key: ch.Key, Patch: inverse})
	}
	return inverses
}

func (c *Coordinator) settled(records []*record, status Status, err error) {
	for _, r := range records {
		ev := events.MutationSettled{
			Id:     r.id,
			Kind:   string(r.action.Kind),
			Scope:  string(r.action.Target.Entity),
			Key:    r.action.Target.Id,
			Status: string(status),
		}
		if err != nil {
			ev.Error = err.Error()
		}
		if pubErr := c.bus.Publish(events.TOPIC_MUTATION_SETTLED, ev); pubErr != nil {
			Log.Warn("cannot publish settled mutation: ", pubErr)
		}
	}
}

func (c *Coordinator) IsPending(target Target, kind Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[pendingKey{target: target, kind: kind}]
	return ok
}

func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Abandon forgets every pending mutation without rolling back, used when the
// session ends and the cache is about to be cleared. Their results are
// dropped when they come back.
func (c *Coordinator) Abandon() {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) > 0 {
		Log.Infof("abandon %d pending mutations", len(c.pending))
	}
	c.generation++
	c.pending = make(map[pendingKey]*record)
}

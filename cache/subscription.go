package cache

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Event tells subscribers that a scope changed. Keys lists the touched
// entries, Err is set when a refetch failed and the scope kept its last good
// value, Invalidated is set when the scope was marked stale or cleared.
type Event struct {
	Scope       Scope
	Keys        []string
	Err         error
	Invalidated bool
}

type Listener func(Event)

// subscriptions contains all listeners of all scopes. All internal state
// should not be handled directly by hand but managed by its receivers.
type subscriptions struct {
	// listenerMap maps from scope to the scope's listeners. Listeners are
	// keyed by a subscription id (uuid) so removal is O(1). A scope entry is
	// deleted once its last listener unsubscribes.
	listenerMap map[Scope]map[string]Listener

	// Adding/Removing a listener must grab WriteLock, notifying grabs a
	// ReadLock only long enough to copy the listeners out.
	mu sync.RWMutex
}

func newSubscriptions() *subscriptions {
	return &subscriptions{
		listenerMap: make(map[Scope]map[string]Listener),
		mu:          sync.RWMutex{},
	}
}

// Thread-safe
func (s *subscriptions) add(scope Scope, listener Listener) string {
	id := "cache_sub_" + uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listenerMap[scope]; !ok {
		s.listenerMap[scope] = make(map[string]Listener)
	}
	s.listenerMap[scope][id] = listener
	return id
}

// Thread-safe
func (s *subscriptions) remove(scope Scope, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.listenerMap[scope], id)
	if len(s.listenerMap[scope]) == 0 {
		delete(s.listenerMap, scope)
	}
}

// Thread-safe. Listeners run on the caller's goroutine, outside of any lock,
// so a listener may read the cache.
func (s *subscriptions) notify(ev Event) {
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listenerMap[ev.Scope]))
	for _, l := range s.listenerMap[ev.Scope] {
		listeners = append(listeners, l)
	}
	s.mu.RUnlock()

	for _, l := range listeners {
		l(ev)
	}
}

// Thread-safe
func (s *subscriptions) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, mp := range s.listenerMap {
		count += len(mp)
	}
	return count
}

// Subscribe registers listener on scope. The returned function unsubscribes,
// calling it more than once is fine.
func (c *Cache) Subscribe(scope Scope, listener Listener) (unsubscribe func()) {
	id := c.subs.add(scope, listener)
	var once sync.Once
	return func() {
		once.Do(func() { c.subs.remove(scope, id) })
	}
}

// SubscribeWithContext is Subscribe bound to ctx, the listener is removed
// once ctx is done.
func (c *Cache) SubscribeWithContext(ctx context.Context, scope Scope, listener Listener) {
	unsubscribe := c.Subscribe(scope, listener)

	// Spin up a background garbage collector.
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
}

// Thread-safe
func (c *Cache) GetActiveSubscriptionsCount() int {
	return c.subs.count()
}

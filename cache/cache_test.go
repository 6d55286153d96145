package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Luismorlan/feedsync/model"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache() (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	return New(Options{Now: clock.Now}), clock
}

type memPersister struct {
	mu      sync.Mutex
	saved   map[string]model.Entity
	dropped []Scope
}

func (m *memPersister) Save(scope Scope, key string, e model.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[string(scope)+"/"+key] = e.Clone()
	return nil
}

func (m *memPersister) Delete(scope Scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, string(scope)+"/"+key)
	return nil
}

func (m *memPersister) DropScope(scope Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped = append(m.dropped, scope)
	return nil
}

func TestGetReturnsCopy(t *testing.T) {
	c, _ := newTestCache()
	c.Set("feed", "p1", &model.Post{Id: "p1", SaveList: []string{"u1"}})

	e, ok := c.Get("feed", "p1")
	require.True(t, ok)
	e.(*model.Post).SaveList[0] = "mutated"

	again, _ := c.Get("feed", "p1")
	assert.Equal(t, []string{"u1"}, again.(*model.Post).SaveList)

	_, ok = c.Get("feed", "missing")
	assert.False(t, ok)
	_, ok = c.Get("unknown", "p1")
	assert.False(t, ok)
}

func TestMergeReturnsInverse(t *testing.T) {
	c, _ := newTestCache()
	original := &model.Post{Id: "p1", Caption: "a", SaveList: []string{}}
	c.Set("feed", "p1", original)

	caption := "b"
	inverse := c.Merge("feed", "p1", model.PostPatch{Caption: &caption, SaveList: []string{"u1"}})
	e, _ := c.Get("feed", "p1")
	assert.Equal(t, "b", e.(*model.Post).Caption)
	assert.Equal(t, []string{"u1"}, e.(*model.Post).SaveList)

	c.Merge("feed", "p1", inverse)
	e, _ = c.Get("feed", "p1")
	assert.Empty(t, cmp.Diff(original, e, cmpopts.EquateEmpty()))
}

func TestMergeRemoveAndRestore(t *testing.T) {
	c, _ := newTestCache()
	c.Set("comments:p1", "c1", &model.Comment{Id: "c1", Content: "x"})

	inverse := c.Merge("comments:p1", "c1", model.Remove{})
	_, ok := c.Get("comments:p1", "c1")
	assert.False(t, ok)

	c.Merge("comments:p1", "c1", inverse)
	e, ok := c.Get("comments:p1", "c1")
	require.True(t, ok)
	assert.Equal(t, "x", e.(*model.Comment).Content)
}

func TestListSortedByKey(t *testing.T) {
	c, _ := newTestCache()
	c.Fill("users", []model.Entity{&model.User{Id: "u2"}, &model.User{Id: "u1"}})

	list := c.List("users")
	require.Len(t, list, 2)
	assert.Equal(t, "u1", list[0].EntityId())
	assert.Equal(t, []string{"u1", "u2"}, c.Keys("users"))
	assert.Empty(t, c.List("nothing"))
}

func TestStaleWhileRevalidate(t *testing.T) {
	c, clock := newTestCache()
	calls := make(chan struct{}, 10)
	c.Register("comments:p1", ScopeConfig{
		TTL: 5 * time.Minute,
		Refetch: func(ctx context.Context) ([]model.Entity, error) {
			calls <- struct{}{}
			return []model.Entity{&model.Comment{Id: "c1", Content: "fresh"}}, nil
		},
	})
	c.Fill("comments:p1", []model.Entity{&model.Comment{Id: "c1", Content: "old"}})
	assert.False(t, c.IsStale("comments:p1"))

	// Fresh reads do not refetch.
	c.Get("comments:p1", "c1")
	assert.Len(t, calls, 0)

	filled := make(chan Event, 10)
	unsubscribe := c.Subscribe("comments:p1", func(ev Event) { filled <- ev })
	defer unsubscribe()

	clock.Advance(6 * time.Minute)
	assert.True(t, c.IsStale("comments:p1"))

	e, ok := c.Get("comments:p1", "c1")
	require.True(t, ok)
	assert.Equal(t, "old", e.(*model.Comment).Content)

	select {
	case ev := <-filled:
		assert.Equal(t, []string{"c1"}, ev.Keys)
	case <-time.After(time.Second):
		t.Fatal("refetch did not fill the scope")
	}

	e, _ = c.Get("comments:p1", "c1")
	assert.Equal(t, "fresh", e.(*model.Comment).Content)
	assert.Len(t, calls, 1)
	assert.False(t, c.IsStale("comments:p1"))
}

func TestRefetchFailureKeepsData(t *testing.T) {
	c, _ := newTestCache()
	failure := errors.New("offline")
	c.Register("feed", ScopeConfig{
		TTL: 5 * time.Second,
		Refetch: func(ctx context.Context) ([]model.Entity, error) {
			return nil, failure
		},
	})
	c.Fill("feed", []model.Entity{&model.Post{Id: "p1"}})

	var got []Event
	c.Subscribe("feed", func(ev Event) { got = append(got, ev) })

	c.Invalidate("feed")
	err := c.Refresh(context.Background(), "feed")
	assert.Equal(t, failure, err)
	assert.Equal(t, failure, c.LastError("feed"))

	assert.Equal(t, []string{"p1"}, c.Keys("feed"))

	require.Len(t, got, 2)
	assert.True(t, got[0].Invalidated)
	assert.Equal(t, failure, got[1].Err)
}

func TestRefreshReplacesScope(t *testing.T) {
	c, _ := newTestCache()
	c.Register("feed", ScopeConfig{
		Refetch: func(ctx context.Context) ([]model.Entity, error) {
			return []model.Entity{&model.Post{Id: "p2"}}, nil
		},
	})
	c.Fill("feed", []model.Entity{&model.Post{Id: "p1"}})

	require.Nil(t, c.Refresh(context.Background(), "feed"))
	assert.Equal(t, []string{"p2"}, c.Keys("feed"))
	assert.Nil(t, c.LastError("feed"))
}

func TestEvictDropsLateRefetch(t *testing.T) {
	c, _ := newTestCache()
	release := make(chan struct{})
	c.Register("feed", ScopeConfig{
		Refetch: func(ctx context.Context) ([]model.Entity, error) {
			<-release
			return []model.Entity{&model.Post{Id: "late"}}, nil
		},
	})

	done := make(chan error)
	go func() { done <- c.Refresh(context.Background(), "feed") }()

	c.Evict("feed")
	c.Set("feed", "p1", &model.Post{Id: "p1"})
	close(release)
	<-done

	assert.Equal(t, []string{"p1"}, c.Keys("feed"))
}

func TestMergeRefetchKeepsEntries(t *testing.T) {
	c, _ := newTestCache()
	c.Register("feed", ScopeConfig{
		MergeRefetch: true,
		Refetch: func(ctx context.Context) ([]model.Entity, error) {
			return []model.Entity{&model.Post{Id: "p2", Caption: "edited"}, &model.Post{Id: "p3"}}, nil
		},
	})
	c.Fill("feed", []model.Entity{&model.Post{Id: "p1"}, &model.Post{Id: "p2"}})
	c.Invalidate("feed")

	require.Nil(t, c.Refresh(context.Background(), "feed"))
	assert.Equal(t, []string{"p1", "p2", "p3"}, c.Keys("feed"))
	e, _ := c.Get("feed", "p2")
	assert.Equal(t, "edited", e.(*model.Post).Caption)
	assert.False(t, c.IsStale("feed"))
}

func TestLateRefetchDoesNotRecreateEvictedScope(t *testing.T) {
	c, _ := newTestCache()
	started := make(chan struct{})
	release := make(chan struct{})
	c.Register("feed", ScopeConfig{
		Refetch: func(ctx context.Context) ([]model.Entity, error) {
			close(started)
			<-release
			return []model.Entity{&model.Post{Id: "late"}}, nil
		},
	})

	done := make(chan error)
	go func() { done <- c.Refresh(context.Background(), "feed") }()
	<-started
	c.Evict("feed")
	close(release)
	<-done

	assert.Empty(t, c.ScopesHolding("late"))
	assert.Empty(t, c.Keys("feed"))
	assert.True(t, c.IsStale("feed"))
}

func TestClearKeepsConfig(t *testing.T) {
	c, clock := newTestCache()
	calls := make(chan struct{}, 10)
	c.Register("feed", ScopeConfig{
		TTL: 5 * time.Second,
		Refetch: func(ctx context.Context) ([]model.Entity, error) {
			calls <- struct{}{}
			return []model.Entity{&model.Post{Id: "p2"}}, nil
		},
	})
	c.Fill("feed", []model.Entity{&model.Post{Id: "p1"}})

	c.Clear()
	assert.Empty(t, c.Keys("feed"))
	assert.True(t, c.IsStale("feed"))

	// First read of the new session revalidates with the kept refetch.
	c.List("feed")
	assert.Eventually(t, func() bool { return !c.IsStale("feed") }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"p2"}, c.Keys("feed"))
	assert.Len(t, calls, 1)

	clock.Advance(6 * time.Second)
	assert.True(t, c.IsStale("feed"))
}

func TestClearDropsRefetchInFlight(t *testing.T) {
	c, _ := newTestCache()
	started := make(chan struct{})
	release := make(chan struct{})
	c.Register("feed", ScopeConfig{
		Refetch: func(ctx context.Context) ([]model.Entity, error) {
			close(started)
			<-release
			return []model.Entity{&model.Post{Id: "old-session"}}, nil
		},
	})

	done := make(chan error)
	go func() { done <- c.Refresh(context.Background(), "feed") }()
	<-started
	c.Clear()
	close(release)
	<-done

	assert.Empty(t, c.Keys("feed"))
	assert.True(t, c.IsStale("feed"))
}

func TestScopesHoldingAndClear(t *testing.T) {
	c, _ := newTestCache()
	c.Set("feed:global", "p1", &model.Post{Id: "p1"})
	c.Set("feed:user:u1", "p1", &model.Post{Id: "p1"})
	c.Set("feed:user:u2", "p2", &model.Post{Id: "p2"})

	assert.Equal(t, []Scope{"feed:global", "feed:user:u1"}, c.ScopesHolding("p1"))

	invalidated := 0
	c.Subscribe("feed:global", func(ev Event) {
		if ev.Invalidated {
			invalidated++
		}
	})
	c.Clear()
	assert.Empty(t, c.ScopesHolding("p1"))
	assert.Equal(t, 1, invalidated)
}

func TestWarmServesAndMarksStale(t *testing.T) {
	c, _ := newTestCache()
	c.Warm("users", []model.Entity{&model.User{Id: "u1", Name: "amira"}})

	e, ok := c.Get("users", "u1")
	require.True(t, ok)
	assert.Equal(t, "amira", e.(*model.User).Name)
	assert.True(t, c.IsStale("users"))
}

func TestPersisterMirrorsWrites(t *testing.T) {
	p := &memPersister{saved: map[string]model.Entity{}}
	c := New(Options{Persister: p})

	c.Set("users", "u1", &model.User{Id: "u1"})
	c.Merge("users", "u2", model.Put{Value: &model.User{Id: "u2"}})
	assert.Len(t, p.saved, 2)

	c.Merge("users", "u1", model.Remove{})
	assert.Len(t, p.saved, 1)

	c.Replace("users", []model.Entity{&model.User{Id: "u3"}})
	c.Evict("users")
	assert.Equal(t, []Scope{"users", "users"}, p.dropped)
}

func TestSubscriptions(t *testing.T) {
	c, _ := newTestCache()
	count := 0
	unsubscribe := c.Subscribe("feed", func(ev Event) { count++ })
	c.Subscribe("other", func(ev Event) {})
	assert.Equal(t, 2, c.GetActiveSubscriptionsCount())

	c.Set("feed", "p1", &model.Post{Id: "p1"})
	assert.Equal(t, 1, count)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 1, c.GetActiveSubscriptionsCount())

	c.Set("feed", "p1", &model.Post{Id: "p1"})
	assert.Equal(t, 1, count)
}

func TestSubscribeWithContext(t *testing.T) {
	c, _ := newTestCache()
	ctx, cancel := context.WithCancel(context.Background())
	c.SubscribeWithContext(ctx, "feed", func(ev Event) {})
	assert.Equal(t, 1, c.GetActiveSubscriptionsCount())

	cancel()
	assert.Eventually(t, func() bool {
		return c.GetActiveSubscriptionsCount() == 0
	}, time.Second, 10*time.Millisecond)
}

package feed

import (
	"context"
	"sync"
	"time"

	"github.com/Luismorlan/feedsync/cache"
	"github.com/Luismorlan/feedsync/model"
	. "github.com/Luismorlan/feedsync/utils/log"
)

const searchResultKey = "result"

// searchResult keeps the order the service ranked the users in, the users
// themselves go to the users scope.
type searchResult struct {
	Query   string   `json:"query"`
	UserIds []string `json:"userIds"`
}

func (r *searchResult) EntityId() string { return searchResultKey }

func (r *searchResult) Clone() model.Entity {
	return &searchResult{Query: r.Query, UserIds: append([]string{}, r.UserIds...)}
}

type SearchView struct {
	Query   string
	Users   []*model.User
	Loading bool
	Err     error
}

/*

Search is a debounced user search box

seq: bumped on every keystroke, a response carrying an older seq is
		superseded and dropped
timer: fires SearchDebounce after the last keystroke

*/
type Search struct {
	client *Client
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	seq      int
	timer    *time.Timer
	view     SearchView
	onChange func(SearchView)
	closed   bool
}

// OpenSearch starts a search box. onChange, when set, is called with every
// new view from the goroutine that produced it.
func (c *Client) OpenSearch(onChange func(SearchView)) *Search {
	ctx, cancel := context.WithCancel(context.Background())
	return &Search{
		client:   c,
		ctx:      ctx,
		cancel:   cancel,
		view:     SearchView{Users: []*model.User{}},
		onChange: onChange,
	}
}

// Type sets the query. An empty query clears the results at once, a query
// answered within SearchTTL is served from the cache, anything else is sent
// once typing pauses.
func (s *Search) Type(query string) {
	q := normalizeQuery(query)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.seq++
	seq := s.seq
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	if q == "" {
		s.view = SearchView{Users: []*model.User{}}
		view := s.view
		s.mu.Unlock()
		s.notify(view)
		return
	}
	if users, ok := s.cached(q); ok {
		s.view = SearchView{Query: q, Users: users}
		view := s.view
		s.mu.Unlock()
		s.notify(view)
		return
	}

	s.view = SearchView{Query: q, Users: s.view.Users, Loading: true}
	view := s.view
	s.timer = time.AfterFunc(s.client.Settings.SearchDebounce(), func() { s.run(seq, q) })
	s.mu.Unlock()
	s.notify(view)
}

func (s *Search) cached(q string) ([]*model.User, bool) {
	scope := SearchScope(q)
	if s.client.Cache.IsStale(scope) {
		return nil, false
	}
	e, ok := s.client.Cache.Get(scope, searchResultKey)
	if !ok {
		return nil, false
	}
	users := []*model.User{}
	for _, id := range e.(*searchResult).UserIds {
		users = append(users, s.client.Author(id))
	}
	return users, true
}

func (s *Search) run(seq int, q string) {
	users, err := s.client.Api.SearchUsers(s.ctx, q, s.client.Settings.SEARCH_LIMIT)

	s.mu.Lock()
	if s.closed || seq != s.seq {
		s.mu.Unlock()
		Log.Debugf("drop superseded search %q", q)
		return
	}
	if err != nil {
		s.view = SearchView{Query: q, Users: s.view.Users, Err: err}
		view := s.view
		s.mu.Unlock()
		Log.Infof("search %q failed: %v", q, err)
		s.client.publishScopeError(SearchScope(q), err)
		s.notify(view)
		return
	}
	s.view = SearchView{Query: q, Users: users}
	view := s.view
	s.mu.Unlock()

	s.store(q, users)
	s.notify(view)
}

func (s *Search) store(q string, users []*model.User) {
	result := &searchResult{Query: q, UserIds: []string{}}
	for _, u := range users {
		result.UserIds = append(result.UserIds, u.Id)
		s.client.Cache.Set(UsersScope, u.Id, u)
	}
	scope := SearchScope(q)
	s.client.Cache.Register(scope, cache.ScopeConfig{TTL: s.client.Settings.SearchTTL()})
	s.client.Cache.Replace(scope, []model.Entity{result})
}

func (s *Search) notify(view SearchView) {
	if s.onChange != nil {
		s.onChange(view)
	}
}

func (s *Search) View() SearchView {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := s.view
	view.Users = append([]*model.User{}, view.Users...)
	return view
}

// Close drops the pending keystroke and any response still in flight.
func (s *Search) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.cancel()
}

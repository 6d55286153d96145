package feed

import (
	"context"
	"sync"

	"github.com/Luismorlan/feedsync/api"
	"github.com/Luismorlan/feedsync/cache"
	"github.com/Luismorlan/feedsync/model"
	"github.com/Luismorlan/feedsync/mutation"
	"github.com/Luismorlan/feedsync/pagination"
	"github.com/Luismorlan/feedsync/uistate"
	. "github.com/Luismorlan/feedsync/utils/log"
)

// Source selects a feed: the global feed with a filter, or one user's posts
// when UserId is set.
type Source struct {
	Filter api.FeedScope
	UserId string
}

func (s Source) scope() cache.Scope {
	if s.UserId != "" {
		return UserScope(s.UserId)
	}
	return GlobalScope(s.Filter)
}

type Item struct {
	Post    *model.Post
	Author  *model.User
	Variant model.PostVariant
	// Set for a shared post.
	OriginalAuthor *model.User
}

// View is what a feed shows right now. Err is the last failed load, the items
// are still the last known ones and LoadMore may be retried.
type View struct {
	Items   []Item
	HasMore bool
	Loading bool
	Err     error
}

/*

Session is one open feed

merger: ordered post ids of the feed, the posts themselves live in the cache
pages: number of pages loaded since the last reset, refetched together when
		the scope goes stale
menu: which post's menu is open

*/
type Session struct {
	client *Client

	mu          sync.Mutex
	source      Source
	scope       cache.Scope
	merger      *pagination.Merger
	pages       int
	lastErr     error
	closed      bool
	watcher     func(View)
	unsubscribe func()

	menu *uistate.Menu
}

// OpenFeed opens a feed session. Nothing is fetched until LoadMore.
func (c *Client) OpenFeed(src Source) *Session {
	s := &Session{
		client: c,
		menu:   uistate.NewMenu(),
	}
	s.use(src)
	return s
}

func (s *Session) use(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = src
	s.scope = src.scope()
	s.merger = pagination.NewMerger()
	s.pages = 0
	s.lastErr = nil
	scope := s.scope
	if s.watcher != nil {
		s.subscribe()
	}
	s.client.Cache.Register(scope, cache.ScopeConfig{
		TTL:          s.client.Settings.FeedTTL(),
		Refetch:      func(ctx context.Context) ([]model.Entity, error) { return s.refetch(ctx, scope) },
		MergeRefetch: true,
	})
}

func (s *Session) Scope() cache.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

func (s *Session) Menu() *uistate.Menu {
	return s.menu
}

func (s *Session) state() (cache.Scope, *pagination.Merger, Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope, s.merger, s.source
}

func (s *Session) fetchPage(ctx context.Context, src Source, page int) ([]*model.Post, error) {
	size := s.client.Settings.PAGE_SIZE
	if src.UserId != "" {
		return s.client.Api.ListUserPosts(ctx, src.UserId, page, size)
	}
	return s.client.Api.ListPosts(ctx, src.Filter, page, size)
}

// LoadMore fetches the next page. It does nothing while a page is loading or
// once the feed is exhausted.
func (s *Session) LoadMore(ctx context.Context) error {
	scope, merger, src := s.state()
	ticket, ok := merger.BeginFetch()
	if !ok {
		return nil
	}

	posts, err := s.fetchPage(ctx, src, ticket.Cursor.Page)
	if err != nil {
		merger.Fail(ticket)
		s.setErr(merger, err)
		Log.Warnf("cannot load page %d of %s: %v", ticket.Cursor.Page, scope, err)
		s.client.publishScopeError(scope, err)
		return err
	}

	ids := make([]string, 0, len(posts))
	entities := make([]model.Entity, 0, len(posts))
	authors := []string{}
	for _, p := range posts {
		ids = append(ids, p.Id)
		entities = append(entities, p)
		authors = append(authors, p.Author)
		if p.SharedFrom != nil {
			authors = append(authors, p.SharedFrom.OriginalAuthor)
		}
	}
	next := pagination.NextCursor(ticket.Cursor.Page, len(posts), s.client.Settings.PAGE_SIZE)
	if !merger.AppendPage(ticket, ids, next) {
		Log.Infof("drop late page %d of %s", ticket.Cursor.Page, scope)
		return nil
	}
	s.mu.Lock()
	if s.merger == merger {
		s.pages++
		s.lastErr = nil
	}
	s.mu.Unlock()

	s.client.Cache.Fill(scope, entities)
	s.client.ResolveAuthors(ctx, authors)
	return nil
}

func (s *Session) setErr(merger *pagination.Merger, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.merger == merger {
		s.lastErr = err
	}
}

// RefreshScope drops the loaded pages and loads the first one again.
func (s *Session) RefreshScope(ctx context.Context) error {
	s.mu.Lock()
	s.merger.Reset()
	s.pages = 0
	s.mu.Unlock()
	return s.LoadMore(ctx)
}

// SetFilter switches the global feed filter and loads its first page.
func (s *Session) SetFilter(ctx context.Context, filter api.FeedScope) error {
	if !filter.Valid() {
		return &api.Error{Kind: api.ValidationFailure, Message: "unknown feed filter " + string(filter)}
	}
	_, merger, src := s.state()
	if src.UserId != "" || src.Filter == filter {
		return nil
	}
	merger.Reset()
	s.use(Source{Filter: filter})
	return s.LoadMore(ctx)
}

// refetch reloads every page loaded so far when the scope went stale. The
// result is merged into the scope: new inserts on the server shift posts past
// the reloaded pages, and those must stay cached while the session lists them.
// The id order of the session is left alone, new posts show up on
// RefreshScope. Posts with a delete in flight are left out so they do not
// come back before the delete settles.
func (s *Session) refetch(ctx context.Context, scope cache.Scope) ([]model.Entity, error) {
	s.mu.Lock()
	pages, src, current := s.pages, s.source, s.scope
	s.mu.Unlock()
	if current != scope || pages == 0 {
		// Nothing of this scope is tracked anymore, keep what is cached.
		return s.client.Cache.List(scope), nil
	}

	res := []model.Entity{}
	for page := 1; page <= pages; page++ {
		posts, err := s.fetchPage(ctx, src, page)
		if err != nil {
			s.client.publishScopeError(scope, err)
			return nil, err
		}
		for _, p := range posts {
			if s.client.Mutations.IsPending(mutation.Target{Entity: mutation.EntityPost, Id: p.Id}, mutation.KindPostDelete) {
				continue
			}
			res = append(res, p)
		}
		if len(posts) < s.client.Settings.PAGE_SIZE {
			break
		}
	}
	return res, nil
}

// CurrentItems materializes the feed from the cache. Posts removed from the
// cache, e.g. by a pending delete, are skipped. Authors not fetched yet show
// as placeholders.
func (s *Session) CurrentItems() View {
	scope, merger, _ := s.state()
	s.mu.Lock()
	lastErr := s.lastErr
	s.mu.Unlock()

	items := []Item{}
	for _, id := range merger.Ids() {
		e, ok := s.client.Cache.Get(scope, id)
		if !ok {
			continue
		}
		p := e.(*model.Post)
		item := Item{Post: p, Author: s.client.Author(p.Author), Variant: p.Variant()}
		if shared, ok := item.Variant.(model.SharedPost); ok {
			item.OriginalAuthor = s.client.Author(shared.Original.OriginalAuthor)
		}
		items = append(items, item)
	}
	return View{
		Items:   items,
		HasMore: merger.HasMore(),
		Loading: merger.Loading(),
		Err:     lastErr,
	}
}

// Watch calls onChange with the current view whenever the feed's scope
// changes. A later Watch replaces the earlier one.
func (s *Session) Watch(onChange func(View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watcher = onChange
	s.subscribe()
}

// subscribe follows the current scope, s.mu must be held.
func (s *Session) subscribe() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	onChange := s.watcher
	s.unsubscribe = s.client.Cache.Subscribe(s.scope, func(ev cache.Event) {
		onChange(s.CurrentItems())
	})
}

// Close leaves the feed. In-flight loads complete but are dropped, the cached
// posts stay for the next visit.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.merger.Reset()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

package apitest

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"

	"github.com/Luismorlan/feedsync/model"
	"github.com/gin-gonic/gin"
)

type failure struct {
	status  int
	message string
}

/*

Server is an in-memory stand-in for the remote REST service

posts / comments / users: the stored records, keyed by id
tokens: bearer token to user id
failures: injected answers keyed by "METHOD route", route being the gin
		route pattern, e.g. "/api/posts/:id/saves"
holds: requests of a held "METHOD route" block until released
requests: count of handled requests per "METHOD route"

*/
type Server struct {
	mu       sync.Mutex
	posts    map[string]*model.Post
	comments map[string]*model.Comment
	users    map[string]*model.User
	tokens   map[string]string
	failures map[string]failure
	holds    map[string]chan struct{}
	requests map[string]int
	clock    int64

	router     *gin.Engine
	httpServer *httptest.Server
}

// NewServer returns a fake that is not listening yet, see Start and Handler.
func NewServer() *Server {
	s := &Server{
		posts:    make(map[string]*model.Post),
		comments: make(map[string]*model.Comment),
		users:    make(map[string]*model.User),
		tokens:   make(map[string]string),
		failures: make(map[string]failure),
		holds:    make(map[string]chan struct{}),
		requests: make(map[string]int),
		// 2024-01-01T00:00:00Z, every created record is one second newer.
		clock: 1704067200000,
	}
	s.router = s.newRouter()
	return s
}

// Start serves on a local port and returns the api base url.
func (s *Server) Start() string {
	s.httpServer = httptest.NewServer(s.router)
	return s.httpServer.URL + "/api"
}

func (s *Server) Close() {
	if s.httpServer != nil {
		s.httpServer.Close()
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func routeKey(method, route string) string {
	return method + " " + route
}

// Fail makes every request to route answer status with message, until
// Recover.
func (s *Server) Fail(method, route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[routeKey(method, route)] = failure{status: status, message: message}
}

func (s *Server) Recover(method, route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, routeKey(method, route))
}

// Hold blocks requests to route until the returned function is called.
func (s *Server) Hold(method, route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[routeKey(method, route)] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.holds, routeKey(method, route))
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Requests is the number of requests that reached route.
func (s *Server) Requests(method, route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[routeKey(method, route)]
}

// AddUser stores u and accepts token as its credential.
func (s *Server) AddUser(u *model.User, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Id] = u.Clone().(*model.User)
	if token != "" {
		s.tokens[token] = u.Id
	}
}

// RevokeToken makes token answer 401 from now on.
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// AddPost stores p, CreatedAt is assigned when zero.
func (s *Server) AddPost(p *model.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := p.Clone().(*model.Post)
	if stored.CreatedAt == 0 {
		stored.CreatedAt = s.tick()
	}
	stored.ShareCount = len(stored.ShareList)
	s.posts[stored.Id] = stored
}

// AddComment stores c and lists it in its parent's replies.
func (s *Server) AddComment(c *model.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := c.Clone().(*model.Comment)
	if stored.CreatedAt == 0 {
		stored.CreatedAt = s.tick()
	}
	s.comments[stored.Id] = stored
	if parent, ok := s.comments[stored.Parent()]; ok && !stored.IsRoot() {
		parent.Replies = appendUnique(parent.Replies, stored.Id)
	}
	if p, ok := s.posts[stored.PostId]; ok {
		p.CommentCount++
	}
}

func (s *Server) Post(id string) (*model.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, false
	}
	return p.Clone().(*model.Post), true
}

func (s *Server) Comment(id string) (*model.Comment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, false
	}
	return c.Clone().(*model.Comment), true
}

func (s *Server) User(id string) (*model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	return u.Clone().(*model.User), true
}

// must hold s.mu
func (s *Server) tick() model.Timestamp {
	s.clock += 1000
	return model.Timestamp(s.clock)
}

// must hold s.mu
func (s *Server) sortedPosts(keep func(*model.Post) bool) []*model.Post {
	res := []*model.Post{}
	for _, p := range s.posts {
		if keep(p) {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt != res[j].CreatedAt {
			return res[i].CreatedAt > res[j].CreatedAt
		}
		return res[i].Id < res[j].Id
	})
	return res
}

func appendUnique(ids []string, id string) []string {
	for _, i := range ids {
		if i == id {
			return ids
		}
	}
	return append(ids, id)
}

func without(ids []string, id string) []string {
	res := []string{}
	for _, i := range ids {
		if i != id {
			res = append(res, i)
		}
	}
	return res
}

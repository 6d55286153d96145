package session

import (
	"sync"
	"time"

	"github.com/Luismorlan/feedsync/api"
	"github.com/Luismorlan/feedsync/events"
	"github.com/Luismorlan/feedsync/model"
	. "github.com/Luismorlan/feedsync/utils/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

type Reason string

const (
	ReasonLogout       Reason = "logout"
	ReasonExpired      Reason = "expired"
	ReasonUnauthorized Reason = "unauthorized"
)

type Options struct {
	// Lifetime of a credential whose token carries no expiry.
	Lifetime time.Duration
	Now      func() time.Time
	Bus      *events.Bus
}

/*

Context is the process wide session: who is logged in and with which
credential. Components get it injected and never keep their own copy.

token: bearer credential, empty when logged out
user: the logged in user
expiresAt: taken from the token's exp claim, or login time + Lifetime
hooks: run on every teardown, in registration order

*/
type Context struct {
	mu        sync.RWMutex
	token     string
	user      *model.User
	expiresAt time.Time

	hooks []func(Reason)

	lifetime time.Duration
	now      func() time.Time
	bus      *events.Bus
}

func New(opts Options) *Context {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Context{
		lifetime: opts.Lifetime,
		now:      now,
		bus:      opts.Bus,
	}
}

// ExpiryOf reads the exp claim without verifying the signature, the service
// verifies it on every call.
func ExpiryOf(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Init starts a session for user, replacing the current one.
func (s *Context) Init(token string, user *model.User) error {
	if token == "" {
		return errors.New("empty credential")
	}
	if user == nil || user.Id == "" {
		return errors.New("session needs a user")
	}

	expiresAt, ok := ExpiryOf(token)
	if !ok {
		expiresAt = s.now().Add(s.lifetime)
	}
	if !expiresAt.After(s.now()) {
		return api.NewUnauthorized("credential already expired")
	}

	s.mu.Lock()
	s.token = token
	s.user = user.Clone().(*model.User)
	s.expiresAt = expiresAt
	s.mu.Unlock()

	Log.WithField("user", user.Id).Info("session started, expires at ", expiresAt.Format(time.RFC3339))
	return nil
}

// Credential returns the bearer token, or an Unauthorized error when logged
// out or past expiry.
func (s *Context) Credential() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", api.NewUnauthorized("not logged in")
	}
	if !s.now().Before(s.expiresAt) {
		return "", api.NewUnauthorized("credential expired")
	}
	return s.token, nil
}

func (s *Context) Active() bool {
	_, err := s.Credential()
	return err == nil
}

// CurrentUser returns a copy of the logged in user.
func (s *Context) CurrentUser() (*model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, false
	}
	return s.user.Clone().(*model.User), true
}

// UserId is "" when logged out.
func (s *Context) UserId() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.Id
}

// UpdateUser replaces the stored user after a profile change. It is ignored
// when u is not the logged in user.
func (s *Context) UpdateUser(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || u == nil || u.Id != s.user.Id {
		return
	}
	s.user = u.Clone().(*model.User)
}

func (s *Context) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// OnTeardown registers hook, e.g. clearing the cache.
func (s *Context) OnTeardown(hook func(Reason)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// CheckExpiry tears the session down once the credential expired. It
// returns true when it did.
func (s *Context) CheckExpiry() bool {
	s.mu.RLock()
	expired := s.token != "" && !s.now().Before(s.expiresAt)
	s.mu.RUnlock()
	if !expired {
		return false
	}
	return s.Teardown(ReasonExpired)
}

// Teardown ends the session and runs the hooks. Tearing down a session that
// is already gone does nothing and returns false.
func (s *Context) Teardown(reason Reason) bool {
	s.mu.Lock()
	if s.token == "" {
		s.mu.Unlock()
		return false
	}
	userId := ""
	if s.user != nil {
		userId = s.user.Id
	}
	s.token = ""
	s.user = nil
	s.expiresAt = time.Time{}
	hooks := make([]func(Reason), len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	Log.WithField("user", userId).Info("session torn down: ", reason)
	for _, hook := range hooks {
		hook(reason)
	}
	if reason != ReasonLogout {
		if err := s.bus.Publish(events.TOPIC_SESSION_EXPIRED, events.SessionExpired{
			UserId: userId,
			Reason: string(reason),
		}); err != nil {
			Log.Warn("cannot publish session expiry: ", err)
		}
	}
	return true
}

package modules

import (
	"context"
	"time"

	"github.com/Luismorlan/feedsync/session"
)

type SessionWatcherConfig struct {
	Name string
	// How often the credential expiry is checked.
	Interval time.Duration
}

// SessionWatcher tears the session down once its credential expired, so a
// user idling with an open feed is logged out without making a request.
type SessionWatcher struct {
	Config SessionWatcherConfig

	Session *session.Context
}

func NewSessionWatcher(config SessionWatcherConfig, s *session.Context) *SessionWatcher {
	return &SessionWatcher{
		Config:  config,
		Session: s,
	}
}

func (w *SessionWatcher) RunModule(ctx context.Context) error {
	ticker := time.NewTicker(w.Config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Session.CheckExpiry()
		}
	}
}

func (w *SessionWatcher) Name() string {
	return w.Config.Name
}

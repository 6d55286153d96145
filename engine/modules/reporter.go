package modules

import (
	"context"

	"github.com/Luismorlan/feedsync/events"
	. "github.com/Luismorlan/feedsync/utils/log"
	"github.com/Luismorlan/feedsync/utils/metrics"
)

type ReporterConfig struct {
	Name string
}

// Reporter's job is to listen to the event bus and count what views are
// told, sending to Datadog for monitoring purpose.
type Reporter struct {
	Config ReporterConfig

	Statsd metrics.Counter

	EventBus *events.Bus
}

func NewReporter(config ReporterConfig, statsd metrics.Counter, e *events.Bus) *Reporter {
	return &Reporter{
		Config:   config,
		Statsd:   statsd,
		EventBus: e,
	}
}

func ReportMutationSettled(ev events.MutationSettled, statsd metrics.Counter) {
	err := statsd.Incr(metrics.DDOG_MUTATION_SETTLED_COUNTER,
		[]string{
			"kind:" + ev.Kind,
			"status:" + ev.Status,
		}, 1)
	if err != nil {
		Log.Infoln("cannot report mutation state")
	}
}

func ReportScopeError(ev events.ScopeError, statsd metrics.Counter) {
	if err := statsd.Incr(metrics.DDOG_SCOPE_ERROR_COUNTER, []string{"scope:" + ev.Scope}, 1); err != nil {
		Log.Infoln("cannot report scope error")
	}
}

func ReportSessionExpired(ev events.SessionExpired, statsd metrics.Counter) {
	if err := statsd.Incr(metrics.DDOG_SESSION_EXPIRED_COUNTER, []string{"reason:" + ev.Reason}, 1); err != nil {
		Log.Infoln("cannot report session expiry")
	}
}

func (r *Reporter) ProcessEvents(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	settled, err := r.EventBus.Subscribe(ctx, events.TOPIC_MUTATION_SETTLED)
	if err != nil {
		return err
	}
	scopeErrors, err := r.EventBus.Subscribe(ctx, events.TOPIC_SCOPE_ERROR)
	if err != nil {
		return err
	}
	expired, err := r.EventBus.Subscribe(ctx, events.TOPIC_SESSION_EXPIRED)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-settled:
			if !ok {
				return nil
			}
			var ev events.MutationSettled
			if err := events.Decode(msg, &ev); err != nil {
				return err
			}
			ReportMutationSettled(ev, r.Statsd)
		case msg, ok := <-scopeErrors:
			if !ok {
				return nil
			}
			var ev events.ScopeError
			if err := events.Decode(msg, &ev); err != nil {
				return err
			}
			ReportScopeError(ev, r.Statsd)
		case msg, ok := <-expired:
			if !ok {
				return nil
			}
			var ev events.SessionExpired
			if err := events.Decode(msg, &ev); err != nil {
				return err
			}
			ReportSessionExpired(ev, r.Statsd)
		}
	}
}

func (r *Reporter) RunModule(ctx context.Context) error {
	return r.ProcessEvents(ctx)
}

func (r *Reporter) Name() string {
	return r.Config.Name
}

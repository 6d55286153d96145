package metrics

import (
	"github.com/DataDog/datadog-go/statsd"
	"github.com/pkg/errors"
)

const (
	DDOG_MUTATION_SETTLED_COUNTER = "feedsync.mutation.settled"
	DDOG_SCOPE_ERROR_COUNTER      = "feedsync.scope.error"
	DDOG_SESSION_EXPIRED_COUNTER  = "feedsync.session.expired"
)

// Counter is the part of the statsd client we report with.
type Counter interface {
	Incr(name string, tags []string, rate float64) error
}

type noopCounter struct{}

func (noopCounter) Incr(name string, tags []string, rate float64) error { return nil }

// NewDogStatsdClient connects to the agent at addr. An empty addr disables
// reporting.
func NewDogStatsdClient(addr string) (Counter, error) {
	if addr == "" {
		return noopCounter{}, nil
	}
	client, err := statsd.New(addr)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create statsd client")
	}
	return client, nil
}

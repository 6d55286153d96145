package engine

import (
	"context"
	"sync"

	"github.com/Luismorlan/feedsync/events"
	. "github.com/Luismorlan/feedsync/utils/log"
)

// Engine runs the client's background modules (session expiry check, metric
// reporting) next to the interactive feed and stops them together.
type Engine struct {
	// Modules run in this Engine, each in its own goroutine. A Module's
	// lifetime is bound to the Engine's.
	Modules []Module

	// The EventBus modules listen on and publish to.
	EventBus *events.Bus

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewEngine(ms []Module, e *events.Bus) *Engine {
	return &Engine{
		Modules:  ms,
		EventBus: e,
	}
}

// Run executes all modules and blocks until all of them finished, which
// happens once ctx is done or Shutdown is called.
func (e *Engine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	defer cancel()

	var wg sync.WaitGroup
	for idx := range e.Modules {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			Log.Infof("start engine module %s", e.Modules[index].Name())
			RunModuleWithGracefulRestart(ctx, e.Modules[index])
			Log.Infof("module %s finished execution", e.Modules[index].Name())
		}(idx)
	}

	// Block until all goroutine finished execution.
	wg.Wait()
}

func (e *Engine) Shutdown() {
	Log.Infoln("stopping engine modules")
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

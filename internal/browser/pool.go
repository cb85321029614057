package browser

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"derogation-bot/internal/common/logger"
	"derogation-bot/internal/common/metrics"
)

// StartFunc launches a new engine.
type StartFunc func(ctx context.Context) (Engine, error)

// Pool lazily starts one shared Engine and reuses it for the process lifetime.
// Concurrent first callers share a single launch; a failed launch is not
// memoized, so the next caller tries again.
type Pool struct {
	start  StartFunc
	logger logger.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	engine Engine
	closed bool
}

func NewPool(start StartFunc, log logger.Logger) *Pool {
	return &Pool{
		start:  start,
		logger: log.WithFields(map[string]interface{}{"component": "browser-pool"}),
	}
}

// Engine returns the shared engine, starting it on first use.
func (p *Pool) Engine(ctx context.Context) (Engine, error) {
	p.mu.RLock()
	engine, closed := p.engine, p.closed
	p.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("browser pool closed")
	}
	if engine != nil {
		return engine, nil
	}

	ch := p.group.DoChan("engine", func() (interface{}, error) {
		p.mu.RLock()
		existing := p.engine
		p.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		p.logger.Info("starting browser engine", nil)
		// detached from the caller: the engine outlives the request that triggered it
		started, err := p.start(context.WithoutCancel(ctx))
		if err != nil {
			p.logger.Error("browser engine failed to start", map[string]interface{}{"error": err})
			return nil, err
		}
		metrics.BrowserStarts.Inc()

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			_ = started.Close()
			return nil, fmt.Errorf("browser pool closed")
		}
		p.engine = started
		return started, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Engine), nil
	}
}

// Close shuts the shared engine down. Later calls to Engine fail.
func (p *Pool) Close() error {
	p.mu.Lock()
	engine := p.engine
	p.engine = nil
	p.closed = true
	p.mu.Unlock()

	if engine == nil {
		return nil
	}
	p.logger.Info("closing browser engine", nil)
	return engine.Close()
}

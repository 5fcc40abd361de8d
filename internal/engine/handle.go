package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/angelmondragon/chainpay-backend/pkg/logger"
)

// runner is anything with a blocking Run loop, in practice the cron service
// driving the reconcile and expiry jobs.
type runner interface {
	Run(ctx context.Context) error
}

// Handle owns the background reconciliation loop. Callers start it exactly
// once and stop it deterministically; there is no package-level singleton.
type Handle struct {
	runner runner
	logg   *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewHandle wraps the scheduler in a start/stop lifecycle.
func NewHandle(r runner, logg *logger.Logger) (*Handle, error) {
	if r == nil {
		return nil, fmt.Errorf("runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Handle{runner: r, logg: logg}, nil
}

// Start launches the loop in the background. Starting twice is an error.
func (h *Handle) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return fmt.Errorf("reconciliation loop already started")
	}
	h.started = true

	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})

	go func() {
		defer close(h.done)
		if err := h.runner.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			h.logg.Error(runCtx, "reconciliation loop stopped unexpectedly", err)
		}
	}()
	return nil
}

// Stop cancels the loop and waits for the in-flight cycle to drain, bounded
// by the caller's context.
func (h *Handle) Stop(ctx context.Context) error {
	h.mu.Lock()
	cancel, done, started := h.cancel, h.done, h.started
	h.mu.Unlock()

	if !started {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("reconciliation loop did not drain: %w", ctx.Err())
	}
}

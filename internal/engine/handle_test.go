package engine

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/chainpay-backend/pkg/logger"
)

type blockingRunner struct {
	running chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context) error {
	close(r.running)
	<-ctx.Done()
	return ctx.Err()
}

func TestHandleStartStop(t *testing.T) {
	r := &blockingRunner{running: make(chan struct{})}
	h, err := NewHandle(r, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("NewHandle: %v", err)
	}

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-r.running:
	case <-time.After(time.Second):
		t.Fatal("runner never started")
	}

	if err := h.Start(context.Background()); err == nil {
		t.Fatal("second Start must fail")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestHandleStopBeforeStartIsNoop(t *testing.T) {
	h, err := NewHandle(&blockingRunner{running: make(chan struct{})}, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("NewHandle: %v", err)
	}
	if err := h.Stop(context.Background()); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
}

package cron

import (
	"context"
	"errors"
	"testing"
)

type stubEngine struct {
	ticks   int
	sweeps  int
	tickErr error
}

func (s *stubEngine) ReconcileTick(ctx context.Context) error {
	s.ticks++
	return s.tickErr
}

func (s *stubEngine) ExpireSweep(ctx context.Context) error {
	s.sweeps++
	return nil
}

func TestReconcileJobDelegatesToEngine(t *testing.T) {
	engine := &stubEngine{}
	job, err := NewReconcileJob(engine)
	if err != nil {
		t.Fatalf("NewReconcileJob: %v", err)
	}
	if job.Name() != "payment-reconcile" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if engine.ticks != 1 || engine.sweeps != 0 {
		t.Fatalf("expected one tick, got ticks=%d sweeps=%d", engine.ticks, engine.sweeps)
	}
}

func TestReconcileJobPropagatesErrors(t *testing.T) {
	engine := &stubEngine{tickErr: errors.New("providers down")}
	job, err := NewReconcileJob(engine)
	if err != nil {
		t.Fatalf("NewReconcileJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected the engine error to surface")
	}
}

func TestExpiryJobDelegatesToEngine(t *testing.T) {
	engine := &stubEngine{}
	job, err := NewExpiryJob(engine)
	if err != nil {
		t.Fatalf("NewExpiryJob: %v", err)
	}
	if job.Name() != "payment-expiry" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if engine.sweeps != 1 || engine.ticks != 0 {
		t.Fatalf("expected one sweep, got ticks=%d sweeps=%d", engine.ticks, engine.sweeps)
	}
}

func TestJobConstructorsRejectNilEngine(t *testing.T) {
	if _, err := NewReconcileJob(nil); err == nil {
		t.Fatal("expected error for nil engine")
	}
	if _, err := NewExpiryJob(nil); err == nil {
		t.Fatal("expected error for nil engine")
	}
}

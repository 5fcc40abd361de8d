package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/chainpay-backend/pkg/logger"
)

type fakeLock struct {
	held       bool
	denied     bool
	acquireErr error
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.denied {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.held = false; return nil }

type countingJob struct {
	name string
	err  error
	runs int
}

func (c *countingJob) Name() string { return c.name }

func (c *countingJob) Run(context.Context) error {
	c.runs++
	return c.err
}

func newTestScheduler(t *testing.T, registry *Registry, lock Lock) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: registry,
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service
}

func TestRunCycleRunsEveryJobEvenAfterFailure(t *testing.T) {
	reconcile := &countingJob{name: "payment-reconcile", err: errors.New("providers down")}
	expiry := &countingJob{name: "payment-expiry"}
	service := newTestScheduler(t, NewRegistry(reconcile, expiry), &fakeLock{})

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if reconcile.runs != 1 || expiry.runs != 1 {
		t.Fatalf("expected both jobs to run once, got %d/%d", reconcile.runs, expiry.runs)
	}
}

func TestRunCycleSkipsWhenLockDenied(t *testing.T) {
	job := &countingJob{name: "payment-reconcile"}
	service := newTestScheduler(t, NewRegistry(job), &fakeLock{denied: true})

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("a denied lock is a skip, not an error: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("jobs must not run without the lock, ran %d", job.runs)
	}
}

func TestRunCycleSurfacesLockErrors(t *testing.T) {
	service := newTestScheduler(t, NewRegistry(&countingJob{name: "payment-reconcile"}), &fakeLock{acquireErr: errors.New("redis down")})
	if err := service.runCycle(context.Background()); err == nil {
		t.Fatal("expected lock error to surface")
	}
}

func TestRunCycleReleasesLock(t *testing.T) {
	lock := &fakeLock{}
	service := newTestScheduler(t, NewRegistry(&countingJob{name: "payment-reconcile"}), lock)
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if lock.held {
		t.Fatal("lock must be released after the cycle")
	}
}

package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	reconcile := &stubJob{name: "payment-reconcile"}
	expiry := &stubJob{name: "payment-expiry"}
	registry := NewRegistry(reconcile, nil, expiry)

	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs (nil skipped), got %d", len(jobs))
	}
	if jobs[0] != reconcile || jobs[1] != expiry {
		t.Fatal("jobs returned out of order")
	}
}

func TestRegistryJobsReturnsACopy(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "payment-reconcile"})
	jobs := registry.Jobs()
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatal("internal slice leaked")
	}
}

package cron

import (
	"context"
	"fmt"
)

// reconciler is the slice of the engine the jobs drive.
type reconciler interface {
	ReconcileTick(ctx context.Context) error
	ExpireSweep(ctx context.Context) error
}

// NewReconcileJob wraps one engine tick as a cron job: list the live pending
// payments, check each against the chain, persist the outcomes.
func NewReconcileJob(engine reconciler) (Job, error) {
	if engine == nil {
		return nil, fmt.Errorf("reconciliation engine required")
	}
	return &reconcileJob{engine: engine}, nil
}

type reconcileJob struct {
	engine reconciler
}

func (j *reconcileJob) Name() string { return "payment-reconcile" }

func (j *reconcileJob) Run(ctx context.Context) error {
	return j.engine.ReconcileTick(ctx)
}

// NewExpiryJob wraps the expiry sweep. It runs on the same cadence as the
// reconcile job but shares none of its chain lookups: a dead provider never
// delays an expiry.
func NewExpiryJob(engine reconciler) (Job, error) {
	if engine == nil {
		return nil, fmt.Errorf("reconciliation engine required")
	}
	return &expiryJob{engine: engine}, nil
}

type expiryJob struct {
	engine reconciler
}

func (j *expiryJob) Name() string { return "payment-expiry" }

func (j *expiryJob) Run(ctx context.Context) error {
	return j.engine.ExpireSweep(ctx)
}

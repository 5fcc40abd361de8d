package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics records the reconciliation engine's behavior per tick.
type ReconcileMetrics struct {
	transitions      *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	notifications    *prometheus.CounterVec
	checkedPayments  prometheus.Counter
}

// NewReconcileMetrics registers the engine metrics on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_transitions_total",
		Help: "Payment status transitions applied by the engine.",
	}, []string{"to"})
	providerFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_failures_total",
		Help: "Chain data provider call failures.",
	}, []string{"provider"})
	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapshot_cache_hits_total",
		Help: "Reconciliation cache hits.",
	})
	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapshot_cache_misses_total",
		Help: "Reconciliation cache misses.",
	})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_notifications_total",
		Help: "Merchant callback delivery outcomes.",
	}, []string{"outcome"})
	checkedPayments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payments_checked_total",
		Help: "Payments examined across reconciliation ticks.",
	})
	reg.MustRegister(transitions, providerFailures, cacheHits, cacheMisses, notifications, checkedPayments)
	return &ReconcileMetrics{
		transitions:      transitions,
		providerFailures: providerFailures,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		notifications:    notifications,
		checkedPayments:  checkedPayments,
	}
}

// IncTransition increments the transition counter for the target status.
func (m *ReconcileMetrics) IncTransition(to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(to)).Inc()
}

// IncProviderFailure increments the failure counter for the named provider.
func (m *ReconcileMetrics) IncProviderFailure(provider string) {
	if m == nil || m.providerFailures == nil {
		return
	}
	m.providerFailures.WithLabelValues(normalizeLabel(provider)).Inc()
}

// IncCacheHit increments the cache hit counter.
func (m *ReconcileMetrics) IncCacheHit() {
	if m == nil || m.cacheHits == nil {
		return
	}
	m.cacheHits.Inc()
}

// IncCacheMiss increments the cache miss counter.
func (m *ReconcileMetrics) IncCacheMiss() {
	if m == nil || m.cacheMisses == nil {
		return
	}
	m.cacheMisses.Inc()
}

// IncNotification increments the callback outcome counter.
func (m *ReconcileMetrics) IncNotification(outcome string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncChecked increments the examined-payments counter.
func (m *ReconcileMetrics) IncChecked() {
	if m == nil || m.checkedPayments == nil {
		return
	}
	m.checkedPayments.Inc()
}

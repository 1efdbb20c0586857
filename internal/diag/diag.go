// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package diag exposes the runtime's Prometheus metrics. Metrics are
// registered against a private Registry, never the global default, so a
// process can host more than one PowerPlant without collector collisions.
package diag

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every counter and gauge the runtime exposes. The PowerPlant
// updates the three counters during dispatch; the two gauges change only
// through SetTasksQueued and SetSyncGroupWaiters, which the runtime itself
// does not call. Callers that don't need metrics can use the Metrics
// returned by NewDiscard, whose methods are all no-ops.
type Metrics struct {
	registry *prometheus.Registry

	dispatchSkipped   *prometheus.CounterVec
	callbackFailures  *prometheus.CounterVec
	tasksQueued       prometheus.Gauge
	singleDropped     *prometheus.CounterVec
	syncGroupWaiters  prometheus.Gauge

	discard bool
}

// New returns a Metrics backed by a fresh, private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		dispatchSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nuclear",
			Name:      "dispatch_skipped_total",
			Help:      "Dispatch attempts dropped without running the callback: at the enabled/bound gate, or because a required argument was absent.",
		}, []string{"reason"}),
		callbackFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nuclear",
			Name:      "callback_failures_total",
			Help:      "Reaction callbacks that panicked during execution.",
		}, []string{"label"}),
		tasksQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nuclear",
			Name:      "tasks_queued",
			Help:      "Tasks currently sitting in the scheduler's ready heap.",
		}),
		singleDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nuclear",
			Name:      "single_dropped_total",
			Help:      "Emits dropped because a single-flight reaction already had a task in flight.",
		}, []string{"label"}),
		syncGroupWaiters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nuclear",
			Name:      "sync_group_waiters",
			Help:      "Tasks currently parked behind a busy sync group.",
		}),
	}
	reg.MustRegister(
		m.dispatchSkipped,
		m.callbackFailures,
		m.tasksQueued,
		m.singleDropped,
		m.syncGroupWaiters,
	)
	return m
}

// NewDiscard returns a Metrics whose recording methods are no-ops, for
// callers that don't want the bookkeeping overhead.
func NewDiscard() *Metrics { return &Metrics{discard: true} }

// Registry returns the private registry metrics are registered against, for
// mounting behind an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) DispatchSkipped(reason string) {
	if m.discard {
		return
	}
	m.dispatchSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) CallbackFailure(label string) {
	if m.discard {
		return
	}
	m.callbackFailures.WithLabelValues(label).Inc()
}

func (m *Metrics) SetTasksQueued(n int) {
	if m.discard {
		return
	}
	m.tasksQueued.Set(float64(n))
}

func (m *Metrics) SingleDropped(label string) {
	if m.discard {
		return
	}
	m.singleDropped.WithLabelValues(label).Inc()
}

func (m *Metrics) SetSyncGroupWaiters(n int) {
	if m.discard {
		return
	}
	m.syncGroupWaiters.Set(float64(n))
}

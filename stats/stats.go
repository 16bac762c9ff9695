// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package stats collects gateway metrics. All methods are safe on a
// nil *Metrics, so library code can record unconditionally and only
// the server command decides whether metrics are registered.
package stats

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gateway's prometheus collectors.
type Metrics struct {
	sessions    prometheus.Counter
	operations  *prometheus.CounterVec
	diagnostics *prometheus.CounterVec
	backend     *prometheus.HistogramVec
}

// NewMetrics builds the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "z2folio",
			Name:      "sessions_total",
			Help:      "Sessions initialized.",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "z2folio",
			Name:      "operations_total",
			Help:      "Protocol operations dispatched, by operation and status.",
		}, []string{"operation", "status"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "z2folio",
			Name:      "diagnostics_total",
			Help:      "BIB-1 diagnostics returned, by code.",
		}, []string{"code"}),
		backend: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "z2folio",
			Name:      "backend_request_seconds",
			Help:      "Back-end HTTP request latency, by call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"call"}),
	}
	reg.MustRegister(m.sessions, m.operations, m.diagnostics, m.backend)
	return m
}

// SessionStarted counts one successful init.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// Operation counts one dispatched operation with its outcome.
func (m *Metrics) Operation(name string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(name, status).Inc()
}

// Diagnostic counts one BIB-1 diagnostic handed to the frontend.
func (m *Metrics) Diagnostic(code int) {
	if m == nil {
		return
	}
	m.diagnostics.WithLabelValues(strconv.Itoa(code)).Inc()
}

// BackendRequest observes the latency of one back-end call.
func (m *Metrics) BackendRequest(call string, seconds float64) {
	if m == nil {
		return
	}
	m.backend.WithLabelValues(call).Observe(seconds)
}

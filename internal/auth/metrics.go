// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for credential operations.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registrations    *prometheus.CounterVec
	Logins           *prometheus.CounterVec
	TokenValidations *prometheus.CounterVec
	RehashNeeded     prometheus.Counter
	HashDuration     *prometheus.HistogramVec
	QueueWait        prometheus.Histogram
}

// NewMetrics creates and registers credential metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkeep_registrations_total",
				Help: "Total number of registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkeep_logins_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		TokenValidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkeep_token_validations_total",
				Help: "Total number of bearer token validations by outcome",
			},
			[]string{"outcome"},
		),
		RehashNeeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authkeep_password_rehash_needed_total",
			Help: "Successful logins whose stored hash is weaker than the current policy",
		}),
		HashDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authkeep_password_hash_duration_seconds",
				Help:    "Histogram of password hash and verify latency in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
		QueueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "authkeep_hasher_queue_wait_seconds",
			Help:    "Time spent waiting for a free hasher slot",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.Registrations,
		m.Logins,
		m.TokenValidations,
		m.RehashNeeded,
		m.HashDuration,
		m.QueueWait,
	)

	return m
}

func (m *Metrics) registration(outcome string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) login(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) tokenValidation(outcome string) {
	if m == nil {
		return
	}
	m.TokenValidations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) rehashNeeded() {
	if m == nil {
		return
	}
	m.RehashNeeded.Inc()
}

func (m *Metrics) observeHash(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.HashDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) observeQueueWait(d time.Duration) {
	if m == nil {
		return
	}
	m.QueueWait.Observe(d.Seconds())
}

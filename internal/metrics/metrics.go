// Copyright (c) 2020-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "awsprov"

// Metrics holds the Prometheus collectors of the service. All methods
// are safe to call on a nil *Metrics, which disables collection.
type Metrics struct {
	registry *prometheus.Registry

	transactionsStarted   *prometheus.CounterVec
	transactionsCompleted *prometheus.CounterVec
	transactionDuration   *prometheus.HistogramVec
	stepsExecuted         *prometheus.CounterVec
	rollbacks             *prometheus.CounterVec
	poolInFlight          prometheus.Gauge
	poolAdmissionRetries  prometheus.Counter
	poolSaturated         prometheus.Counter
}

// New creates the collectors and registers them on a dedicated
// registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transactionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_started_total",
				Help:      "Total number of transactions that began executing, by kind.",
			},
			[]string{"kind"},
		),
		transactionsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_completed_total",
				Help:      "Total number of transactions that reached a terminal state, by kind and result.",
			},
			[]string{"kind", "result"},
		),
		transactionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transaction_duration_seconds",
				Help:      "Wall clock time from submission to completion of transactions.",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
			},
			[]string{"kind", "result"},
		),
		stepsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_executed_total",
				Help:      "Total number of executed steps, by step type and result.",
			},
			[]string{"type", "result"},
		),
		rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "step_rollbacks_total",
				Help:      "Total number of attempted step rollbacks, by step type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		poolInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_pool_in_flight",
			Help:      "Number of transactions currently running on the worker pool.",
		}),
		poolAdmissionRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_pool_admission_retries_total",
			Help:      "Number of times a submission found the worker pool at capacity and retried.",
		}),
		poolSaturated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_pool_admission_exhausted_total",
			Help:      "Number of submissions abandoned after exhausting the admission policy.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.transactionsStarted,
		m.transactionsCompleted,
		m.transactionDuration,
		m.stepsExecuted,
		m.rollbacks,
		m.poolInFlight,
		m.poolAdmissionRetries,
		m.poolSaturated,
	)

	return m
}

// Handler returns the HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) TransactionStarted(kind string) {
	if m == nil {
		return
	}
	m.transactionsStarted.WithLabelValues(kind).Inc()
}

func (m *Metrics) TransactionCompleted(kind, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transactionsCompleted.WithLabelValues(kind, result).Inc()
	m.transactionDuration.WithLabelValues(kind, result).Observe(elapsed.Seconds())
}

func (m *Metrics) StepExecuted(stepType, result string) {
	if m == nil {
		return
	}
	m.stepsExecuted.WithLabelValues(stepType, result).Inc()
}

func (m *Metrics) StepRolledBack(stepType string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.rollbacks.WithLabelValues(stepType, outcome).Inc()
}

func (m *Metrics) PoolJobStarted() {
	if m == nil {
		return
	}
	m.poolInFlight.Inc()
}

func (m *Metrics) PoolJobFinished() {
	if m == nil {
		return
	}
	m.poolInFlight.Dec()
}

func (m *Metrics) PoolAdmissionRetried() {
	if m == nil {
		return
	}
	m.poolAdmissionRetries.Inc()
}

func (m *Metrics) PoolAdmissionExhausted() {
	if m == nil {
		return
	}
	m.poolSaturated.Inc()
}

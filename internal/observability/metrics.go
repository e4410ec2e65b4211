// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the ledger engine.
type Metrics struct {
	// Operation metrics
	OperationsTotal *prometheus.CounterVec
	OperationErrors *prometheus.CounterVec

	// Escrow metrics
	GiveawaysCreated prometheus.Counter
	ClaimsPaid       prometheus.Counter
	AmountClaimed    prometheus.Counter

	// Treasury metrics
	PaymentsBooked  prometheus.Counter
	AmountPaid      prometheus.Counter
	AmountWithdrawn prometheus.Counter

	// Event journal metrics
	EventsPublished     prometheus.Counter
	EventPublishErrors  prometheus.Counter
	FeedSubscribers     prometheus.Gauge
	FeedMessagesDropped prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "reelpay_ledger"
	}

	return &Metrics{
		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Total number of ledger operations by kind and outcome",
		}, []string{"operation", "outcome"}),
		OperationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_errors_total",
			Help:      "Total number of failed ledger operations by kind and error",
		}, []string{"operation", "error"}),

		GiveawaysCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "giveaway",
			Name:      "created_total",
			Help:      "Total number of giveaway escrows created",
		}),
		ClaimsPaid: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "giveaway",
			Name:      "claims_paid_total",
			Help:      "Total number of successful claims",
		}),
		AmountClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "giveaway",
			Name:      "amount_claimed_total",
			Help:      "Cumulative amount paid out by claims (base units)",
		}),

		PaymentsBooked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "treasury",
			Name:      "payments_booked_total",
			Help:      "Total number of order payments booked",
		}),
		AmountPaid: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "treasury",
			Name:      "amount_paid_total",
			Help:      "Cumulative amount paid into treasury pools (base units)",
		}),
		AmountWithdrawn: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "treasury",
			Name:      "amount_withdrawn_total",
			Help:      "Cumulative amount withdrawn from treasury pools (base units)",
		}),

		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of ledger events published",
		}),
		EventPublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "publish_errors_total",
			Help:      "Total number of event publish failures",
		}),
		FeedSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "feed_subscribers",
			Help:      "Current number of websocket feed subscribers",
		}),
		FeedMessagesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "feed_messages_dropped_total",
			Help:      "Total number of feed messages dropped to slow subscribers",
		}),
	}
}

// RecordOperation counts one ledger operation outcome. Nil-safe so the
// engine can run without metrics wired.
func (m *Metrics) RecordOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.OperationErrors.WithLabelValues(operation, rootError(err)).Inc()
	}
	m.OperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// rootError reports the innermost error message for labeling.
func rootError(err error) string {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err.Error()
		}
		err = unwrapped
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

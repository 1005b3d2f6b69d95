// Package metrics exposes the engine's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ReservationsCreated prometheus.Counter
	ReserveRejected     prometheus.Counter
	ReservationsFreed   *prometheus.CounterVec
	CommitsApplied      prometheus.Counter
	SweepErrors         prometheus.Counter
}

// New registers the engine's counters on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReservationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockledger_reservations_created_total",
			Help: "Reservations successfully created.",
		}),
		ReserveRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockledger_reserve_rejected_total",
			Help: "Reserve calls rejected for insufficient stock.",
		}),
		ReservationsFreed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockledger_reservations_freed_total",
			Help: "Reservations returned to availability, by cause.",
		}, []string{"cause"}),
		CommitsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockledger_commits_applied_total",
			Help: "Reservations converted into permanent stock decrements.",
		}),
		SweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockledger_sweep_row_errors_total",
			Help: "Reservations the expiry sweep failed to process.",
		}),
	}
	reg.MustRegister(
		m.ReservationsCreated,
		m.ReserveRejected,
		m.ReservationsFreed,
		m.CommitsApplied,
		m.SweepErrors,
	)
	return m
}

// NewUnregistered returns counters not attached to any registry, for tests.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

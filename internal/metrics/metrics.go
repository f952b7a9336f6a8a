package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stadiumtix"

// Исходы резервирования
const (
	ReserveResultReserved     = "reserved"
	ReserveResultInsufficient = "insufficient"
	ReserveResultCutoff       = "cutoff"
	ReserveResultInvalid      = "invalid"
	ReserveResultNotFound     = "not_found"
	ReserveResultError        = "error"
)

var (
	ReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservations_total",
		Help:      "Reservation attempts by result.",
	}, []string{"result"})

	ReservedUnitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reserved_units_total",
		Help:      "Ticket units taken from the ledger.",
	})

	OffersResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "offers_resolved_total",
		Help:      "Offer resolutions by source (cache, store, closed).",
	}, []string{"source"})

	ReplenishmentRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replenishment_runs_total",
		Help:      "Monthly generation runs by outcome.",
	}, []string{"outcome"})

	ReplenishmentTicketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replenishment_tickets_created_total",
		Help:      "Special tickets created by replenishment.",
	})

	OverridesPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "overrides_purged_total",
		Help:      "Past-dated ledger rows deleted.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package metrics holds the prometheus collectors exported by the oracle node.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_orders_created_total",
			Help: "Total number of orders created from bridge events",
		}, []string{"origin"})
	DuplicateEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_duplicate_events_total",
			Help: "Total number of events ignored because the order already existed",
		}, []string{"origin"})
	OverridesApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_overrides_applied_total",
			Help: "Total number of override events applied to existing orders",
		})
	OverrideFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_override_failures_total",
			Help: "Total number of override events that could not be applied",
		}, []string{"reason"})
	OrdersFinalized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_orders_finalized_total",
			Help: "Total number of orders finalized by an inbound event",
		})
	SignaturesAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_signatures_added_total",
			Help: "Total number of new peer signatures recorded",
		})
	OrdersReady = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_orders_ready_total",
			Help: "Total number of orders that reached the signature threshold",
		})
	AuthRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_hub_auth_rejections_total",
			Help: "Total number of rejected hub requests by reason",
		}, []string{"reason"})
	PollRounds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_poll_rounds_total",
			Help: "Total number of hub poll rounds by poller, endpoint used and outcome",
		}, []string{"poller", "endpoint", "outcome"})
	WSReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_ws_reconnects_total",
			Help: "Total number of solana websocket reconnect attempts",
		})
	WSState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "oracle_ws_state",
			Help: "Current solana websocket state (0 disconnected, 1 connecting, 2 subscribed, 3 reconnecting)",
		})
	DecodeUnknownSizes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_decode_unknown_sizes_total",
			Help: "Total number of program data payloads with an unrecognised size",
		})
	ValidatorOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_validator_outcomes_total",
			Help: "Total number of solana event validations by outcome",
		}, []string{"outcome"})
	NoncesSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_hub_nonces_swept_total",
			Help: "Total number of expired hub nonces deleted",
		})
	NoncesStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "oracle_hub_nonces_stored",
			Help: "Number of hub nonces currently retained for replay protection",
		})
	HubEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_hub_events_total",
			Help: "Total number of hub reported events by outcome",
		}, []string{"outcome"})
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery outcomes for DeliveriesTotal.
const (
	DeliveryDelivered = "delivered"
	DeliveryOffline   = "offline"
	DeliveryDropped   = "dropped"
)

var (
	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_connections_active",
			Help: "Live WebSocket connections",
		},
	)

	Registrations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_registrations_total",
			Help: "Total register events accepted",
		},
	)

	// Routing metrics
	MessagesRouted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_routed_total",
			Help: "Total chat messages recorded by the router",
		},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Live delivery attempts by outcome",
		},
		[]string{"outcome"},
	)

	RejectedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_rejected_events_total",
			Help: "Inbound events answered with an error event",
		},
		[]string{"code"},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total internal HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spacebook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "spacebook",
			Name:      "bookings_created_total",
			Help:      "Bookings successfully created.",
		},
	)

	bookingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "spacebook",
			Name:      "booking_conflicts_total",
			Help:      "Booking attempts rejected by the overlap check.",
		},
	)

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spacebook",
			Name:      "webhook_events_total",
			Help:      "Payment webhook events by outcome.",
		},
		[]string{"outcome"},
	)

	gatewayErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spacebook",
			Name:      "gateway_errors_total",
			Help:      "Payment gateway call failures by operation.",
		},
		[]string{"op"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingsCreated, bookingConflicts, webhookEvents, gatewayErrors)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncBookingCreated() {
	bookingsCreated.Inc()
}

func IncBookingConflict() {
	bookingConflicts.Inc()
}

// IncWebhookEvent records a webhook outcome: applied, duplicate,
// ignored or rejected.
func IncWebhookEvent(outcome string) {
	webhookEvents.WithLabelValues(outcome).Inc()
}

func IncGatewayError(op string) {
	gatewayErrors.WithLabelValues(op).Inc()
}

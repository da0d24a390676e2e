package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "repairconnect",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "repairconnect",
			Name:      "bookings_created_total",
			Help:      "Bookings created through the store.",
		},
	)

	statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "repairconnect",
			Name:      "booking_status_transitions_total",
			Help:      "Booking status updates by target status.",
		},
		[]string{"status"},
	)

	messagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "repairconnect",
			Name:      "chat_messages_total",
			Help:      "Chat messages appended to the store.",
		},
	)

	ratingsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "repairconnect",
			Name:      "ratings_submitted_total",
			Help:      "Ratings accepted by the store.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			bookingsCreated,
			statusTransitions,
			messagesSent,
			ratingsSubmitted,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncBookingCreated() {
	bookingsCreated.Inc()
}

func IncStatusTransition(status string) {
	statusTransitions.WithLabelValues(status).Inc()
}

func IncMessageSent() {
	messagesSent.Inc()
}

func IncRatingSubmitted() {
	ratingsSubmitted.Inc()
}

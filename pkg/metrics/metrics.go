package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus counters for the booking flow.
type Metrics struct {
	BookingsCreated     prometheus.Counter
	SlotConflicts       prometheus.Counter
	Transitions         *prometheus.CounterVec
	RejectedTransitions prometheus.Counter
}

func New(namespace string) *Metrics {
	return &Metrics{
		BookingsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Bookings admitted by the validator",
		}),
		SlotConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_conflicts_total",
			Help:      "Submissions rejected because the slot was taken",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Successful status transitions by target status",
		}, []string{"target"}),
		RejectedTransitions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_transitions_total",
			Help:      "Transitions rejected by the lifecycle table",
		}),
	}
}

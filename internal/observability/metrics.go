package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// fanoutNotifications counts per-follower inbox writes by result
	// ("delivered" or "failed").
	fanoutNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_notifications_total",
			Help: "Notification records written (or not) by fan-out, per follower.",
		},
		[]string{"result"},
	)

	// fanoutRecipients records the follower count of each publish.
	fanoutRecipients = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fanout_recipients",
			Help:    "Number of followers targeted by one fan-out.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// fanoutDuration records wall time of a whole publish.
	fanoutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fanout_duration_seconds",
			Help:    "Duration of a notification fan-out in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// liveSubscriptions gauges open observe streams by kind
	// (status, inbox, comments).
	liveSubscriptions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "live_subscriptions",
			Help: "Currently open live subscriptions.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(fanoutNotifications, fanoutRecipients, fanoutDuration, liveSubscriptions)
}

// ObserveFanout records one completed publish.
func ObserveFanout(delivered, failed int, took time.Duration) {
	fanoutRecipients.Observe(float64(delivered + failed))
	fanoutNotifications.WithLabelValues("delivered").Add(float64(delivered))
	fanoutNotifications.WithLabelValues("failed").Add(float64(failed))
	fanoutDuration.Observe(took.Seconds())
}

// TrackSubscription increments the live gauge for kind and returns the
// matching decrement.
func TrackSubscription(kind string) (done func()) {
	g := liveSubscriptions.WithLabelValues(kind)
	g.Inc()
	return g.Dec
}

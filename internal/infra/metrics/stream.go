package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(eventsPublishedTotal, streamsActive, streamRejectsTotal) }

var eventsPublishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "grid_events_published_total",
		Help: "Workflow events published into job channels, by type.",
	},
	[]string{"type"},
)

var streamsActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "grid_streams_active",
		Help: "Currently attached stream subscribers.",
	},
)

var streamRejectsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "grid_stream_rejects_total",
		Help: "Stream attach rejections, by reason.",
	},
	[]string{"reason"}, // 'not_found', 'already_subscribed'
)

func IncEventPublished(eventType string) {
	eventsPublishedTotal.WithLabelValues(eventType).Inc()
}

func StreamAttached() { streamsActive.Inc() }
func StreamDetached() { streamsActive.Dec() }

func IncStreamReject(reason string) {
	streamRejectsTotal.WithLabelValues(norm(reason)).Inc()
}

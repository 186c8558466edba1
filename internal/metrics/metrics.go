// Package metrics provides Prometheus metrics for the event fan-out path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsPublishedTotal counts events accepted onto subscriber queues, by kind.
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interviewd_events_published_total",
		Help: "Total number of events delivered to subscriber queues, by event kind.",
	}, []string{"kind"})

	// EventsDroppedTotal counts events dropped because a subscriber queue was full.
	// A drop is policy, not an error: publishers never block on slow subscribers.
	EventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interviewd_events_dropped_total",
		Help: "Total number of events dropped on full subscriber queues, by event kind.",
	}, []string{"kind"})

	// StreamSubscribers tracks currently registered stream subscribers.
	StreamSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interviewd_stream_subscribers",
		Help: "Current number of registered event stream subscribers.",
	})

	// JobsFinishedTotal counts generation jobs reaching a terminal status.
	JobsFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interviewd_jobs_finished_total",
		Help: "Total number of generation jobs reaching a terminal status, by status.",
	}, []string{"status"})
)

// RecordPublish increments the delivered-events counter.
func RecordPublish(kind string) {
	EventsPublishedTotal.WithLabelValues(kind).Inc()
}

// RecordDrop increments the dropped-events counter.
func RecordDrop(kind string) {
	EventsDroppedTotal.WithLabelValues(kind).Inc()
}

// RecordJobFinished increments the finished-jobs counter.
func RecordJobFinished(status string) {
	JobsFinishedTotal.WithLabelValues(status).Inc()
}

// Package monitoring exposes the pipeline's Prometheus metrics.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FramesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glossa_frames_ingested_total",
		Help: "Landmark frames accepted by the ingress gateway.",
	})

	FramesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glossa_frames_rejected_total",
		Help: "Landmark frames rejected at ingress, by reason.",
	}, []string{"reason"})

	SkipEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glossa_skip_events_total",
		Help: "Frames skipped by the hand extractor, by reason.",
	}, []string{"reason"})

	Predictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glossa_predictions_total",
		Help: "Letter predictions emitted by the classifier.",
	})

	LettersCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glossa_letters_committed_total",
		Help: "Letters committed to word buffers.",
	})

	WordsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glossa_words_finalized_total",
		Help: "Words finalized, by trigger.",
	}, []string{"trigger"})

	ShardState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "glossa_shard_subscription_state",
		Help: "Per-shard consumer state (0 idle, 1 subscribing, 2 active, 3 backoff).",
	}, []string{"stream", "shard"})

	ClassifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "glossa_classify_duration_seconds",
		Help:    "Hand extraction plus classification latency per frame.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	ResolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "glossa_resolve_duration_seconds",
		Help:    "Word resolution latency, lexicon query included.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
)

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

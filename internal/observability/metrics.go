package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PhotosProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reclaim",
		Name:      "photos_processed_total",
		Help:      "Total number of photo-ready tasks processed",
	}, []string{"result"})

	CandidatesScored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reclaim",
		Name:      "candidates_scored_total",
		Help:      "Total number of candidate pairs scored",
	})

	MatchesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reclaim",
		Name:      "matches_created_total",
		Help:      "Total number of photo matches created or re-scored",
	}, []string{"outcome"})

	MatchesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reclaim",
		Name:      "matches_resolved_total",
		Help:      "Total number of matches reaching a terminal status",
	}, []string{"status"})

	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reclaim",
		Name:      "pipeline_stage_duration_seconds",
		Help:      "Duration of matching pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "reclaim",
		Name:      "queue_depth",
		Help:      "Number of pending photo tasks in queue",
	})

	MatchesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reclaim",
		Name:      "matches_expired_total",
		Help:      "Total number of matches expired by the retention sweep",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reclaim",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "reclaim",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SupabaseCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laundrydesk_supabase_calls_total",
			Help: "Total Supabase table API calls",
		},
		[]string{"table", "status"},
	)

	SupabaseLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "laundrydesk_supabase_latency_seconds",
			Help:    "Supabase table API latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	FeedFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laundrydesk_feed_fetches_total",
			Help: "Revenue feed fetches by source and outcome",
		},
		[]string{"source", "status"},
	)

	ModelTrainingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laundrydesk_model_trainings_total",
			Help: "Forecast model trainings by strategy and outcome",
		},
		[]string{"strategy", "status"},
	)

	ModelTrainingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "laundrydesk_model_training_seconds",
			Help:    "Forecast model training duration in seconds, including the feed fetch",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	ModelTrainingRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "laundrydesk_model_training_rows",
			Help: "Observations used by the most recent successful training",
		},
	)

	ChatRepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laundrydesk_chat_replies_total",
			Help: "Chatbot replies by responder and outcome",
		},
		[]string{"responder", "status"},
	)
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_pages_fetched_total",
			Help: "The total number of page fetches by outcome",
		},
		[]string{"source", "status"},
	)

	ArticlesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_articles_fetched_total",
			Help: "The total number of articles received from page fetches",
		},
		[]string{"source"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_fetch_duration_seconds",
			Help:    "Duration of page fetches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	ArticlesArchived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_articles_archived_total",
			Help: "Articles written to the archive, by whether their content changed",
		},
		[]string{"source", "change"},
	)

	ArchiveErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_archive_errors_total",
			Help: "Total number of failed archive writes",
		},
		[]string{"source"},
	)

	OpenSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_open_sessions",
			Help: "Number of reading sessions with a live feed",
		},
	)

	FeedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_events_total",
			Help: "Feed notifications delivered to sessions, by kind",
		},
		[]string{"kind"},
	)

	PreferenceEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preference_events_total",
			Help: "Preference change events by transport and outcome",
		},
		[]string{"transport", "status"},
	)
)

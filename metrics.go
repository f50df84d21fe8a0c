package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gitea.kood.tech/petrkubec/genre-match/internal/similarity"
)

// Metric names.
const (
	MetricRankRequests    = "genre_match_rank_requests_total"
	MetricRankDuration    = "genre_match_rank_duration_seconds"
	MetricRankCandidates  = "genre_match_rank_candidates"
	MetricPollSubmissions = "genre_match_poll_submissions_total"
	MetricFeedClients     = "genre_match_feed_clients"
)

// Metrics holds the service collectors. Register them once per registry.
type Metrics struct {
	rankRequests    *prometheus.CounterVec
	rankDuration    prometheus.Histogram
	rankCandidates  prometheus.Histogram
	pollSubmissions *prometheus.CounterVec
	feedClients     prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		rankRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRankRequests,
				Help: "Ranking requests by outcome (ok, not_found, invalid_vector, error)",
			},
			[]string{"outcome"},
		),
		rankDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRankDuration,
			Help:    "Time spent loading and ranking candidates",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		rankCandidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRankCandidates,
			Help:    "Number of users returned per successful ranking",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		pollSubmissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPollSubmissions,
				Help: "Poll submissions by result (accepted, invalid, error)",
			},
			[]string{"result"},
		),
		feedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricFeedClients,
			Help: "Connected live feed websocket clients",
		}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(m.rankRequests, m.rankDuration, m.rankCandidates, m.pollSubmissions, m.feedClients)
}

func (m *Metrics) ObserveRank(err error, matches int, took time.Duration) {
	outcome := "ok"
	switch {
	case err == nil:
		m.rankCandidates.Observe(float64(matches))
	case similarity.IsNotFound(err):
		outcome = "not_found"
	case similarity.IsInvalidVector(err):
		outcome = "invalid_vector"
	default:
		outcome = "error"
	}
	m.rankRequests.WithLabelValues(outcome).Inc()
	m.rankDuration.Observe(took.Seconds())
}

func (m *Metrics) ObservePoll(result string) {
	m.pollSubmissions.WithLabelValues(result).Inc()
}

func (m *Metrics) FeedClientConnected()    { m.feedClients.Inc() }
func (m *Metrics) FeedClientDisconnected() { m.feedClients.Dec() }

package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the server's prometheus metrics.
type Metrics struct {
	AnalysesTotal prometheus.Counter
	FailuresTotal *prometheus.CounterVec
	WarningsTotal prometheus.Counter
	PairingsTotal prometheus.Counter
	AnalysisTime  prometheus.Histogram
}

// NewMetrics registers the server metrics on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AnalysesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "The total number of documents analysed",
		}),
		FailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_failures_total",
			Help:      "The total number of failed analyses",
		}, []string{"stage"}),
		WarningsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_warnings_total",
			Help:      "The total number of parse warnings",
		}),
		PairingsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairings_parsed_total",
			Help:      "The total number of pairings parsed",
		}),
		AnalysisTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time taken to analyse a document",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

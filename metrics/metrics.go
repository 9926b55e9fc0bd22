package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "riskvet",
		Name:      "scans_total",
		Help:      "Completed scans by artifact kind and verdict level.",
	}, []string{"kind", "level"})

	RedirectHops = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "riskvet",
		Name:      "redirect_hops",
		Help:      "Redirects followed per URL scan.",
		Buckets:   []float64{0, 1, 2, 3, 4, 6, 8},
	})

	SourceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "riskvet",
		Name:      "source_errors_total",
		Help:      "Collaborator lookups that failed or timed out and were treated as no evidence.",
	}, []string{"source"})

	SafeListEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "riskvet",
		Name:      "safelist_entries",
		Help:      "Hosts in the current safe-list map.",
	})

	SafeListReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "riskvet",
		Name:      "safelist_reloads_total",
		Help:      "Safe-list reload attempts by result.",
	}, []string{"result"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "riskvet",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP API latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})
)

package scrape

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scrapeRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basketball_scrape_runs_total",
		Help: "Completed scrape attempts, successful or not.",
	})
	scrapeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basketball_scrape_failures_total",
		Help: "Scrape attempts that ended in an error.",
	})
	tokenRenewals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basketball_scrape_token_renewals_total",
		Help: "Mid-scrape token renewals triggered by upstream 401s.",
	})
	scrapeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "basketball_scrape_duration_seconds",
		Help:    "Wall-clock duration of full scrapes.",
		Buckets: prometheus.ExponentialBuckets(15, 2, 8), // 15s .. 32m
	})
)

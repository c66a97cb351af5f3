package api

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/collatzlab/collatz-tester-go/internal/store"
)

// storeCollector reads gauge values straight from SQLite at scrape time
// instead of keeping counters in memory, so the numbers stay honest when
// a separate tester process is the one doing the writes.
type storeCollector struct {
	store  *store.Store
	logger zerolog.Logger

	tested     *prometheus.Desc
	longest    *prometheus.Desc
	totalSteps *prometheus.Desc
	sizeBytes  *prometheus.Desc
}

func newStoreCollector(st *store.Store, logger zerolog.Logger) *storeCollector {
	return &storeCollector{
		store:  st,
		logger: logger,
		tested: prometheus.NewDesc(
			"collatz_tested_total",
			"Unique numbers recorded in the dedup store.",
			nil, nil,
		),
		longest: prometheus.NewDesc(
			"collatz_longest_sequence_steps",
			"Longest sequence observed across all sessions.",
			nil, nil,
		),
		totalSteps: prometheus.NewDesc(
			"collatz_total_steps",
			"Total steps computed across all sessions.",
			nil, nil,
		),
		sizeBytes: prometheus.NewDesc(
			"collatz_store_size_bytes",
			"Size of the store file on disk.",
			nil, nil,
		),
	}
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tested
	ch <- c.longest
	ch <- c.totalSteps
	ch <- c.sizeBytes
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if count, err := c.store.Count(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("metrics: count failed")
	} else {
		ch <- prometheus.MustNewConstMetric(c.tested, prometheus.CounterValue, float64(count))
	}

	if at, err := c.store.LoadAllTime(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("metrics: all-time read failed")
	} else {
		ch <- prometheus.MustNewConstMetric(c.longest, prometheus.GaugeValue, float64(at.LongestSequence))
		ch <- prometheus.MustNewConstMetric(c.totalSteps, prometheus.CounterValue, float64(at.TotalSteps))
	}

	ch <- prometheus.MustNewConstMetric(c.sizeBytes, prometheus.GaugeValue, float64(c.store.SizeBytes()))
}

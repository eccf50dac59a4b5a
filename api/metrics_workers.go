package api

import (
	"extgov/core/scheduler"
	"github.com/prometheus/client_golang/prometheus"
)

type workersMetricsCollector struct {
	scheduler *scheduler.Scheduler

	ticksTotalDesc      *prometheus.Desc
	tickErrorsTotalDesc *prometheus.Desc
	lastTickDesc        *prometheus.Desc
}

func newWorkersMetricsCollector(sweepScheduler *scheduler.Scheduler) prometheus.Collector {
	return &workersMetricsCollector{
		scheduler: sweepScheduler,
		ticksTotalDesc: prometheus.NewDesc(
			"extgov_worker_ticks_total",
			"Total number of scheduler ticks.",
			[]string{"worker"},
			nil,
		),
		tickErrorsTotalDesc: prometheus.NewDesc(
			"extgov_worker_tick_errors_total",
			"Total number of scheduler tick errors.",
			[]string{"worker"},
			nil,
		),
		lastTickDesc: prometheus.NewDesc(
			"extgov_worker_last_tick_timestamp",
			"Unix timestamp of the last scheduler tick.",
			[]string{"worker"},
			nil,
		),
	}
}

func (c *workersMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ticksTotalDesc
	ch <- c.tickErrorsTotalDesc
	ch <- c.lastTickDesc
}

func (c *workersMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.scheduler == nil {
		return
	}
	s := c.scheduler.StatsSnapshot()
	ch <- prometheus.MustNewConstMetric(c.ticksTotalDesc, prometheus.CounterValue, float64(s.TicksTotal), "governance_sweep")
	ch <- prometheus.MustNewConstMetric(c.tickErrorsTotalDesc, prometheus.CounterValue, float64(s.TickErrorsTotal), "governance_sweep")
	if s.LastTickAtUTC != nil {
		ch <- prometheus.MustNewConstMetric(c.lastTickDesc, prometheus.GaugeValue, float64(s.LastTickAtUTC.UTC().Unix()), "governance_sweep")
	}
}

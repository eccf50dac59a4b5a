package api

import (
	"context"
	"database/sql"
	"time"

	"extgov/core/store"
	"github.com/prometheus/client_golang/prometheus"
)

type governanceMetricsCollector struct {
	db          *sql.DB
	extensions  store.ExtensionsStore
	stress      store.StressStore
	assessments store.AssessmentsStore
	guard       store.GuardStore
	threshold   int

	extensionsDesc *prometheus.Desc
	conflictsDesc  *prometheus.Desc
	scenariosDesc  *prometheus.Desc
	riskScoreDesc  *prometheus.Desc
	riskLevelDesc  *prometheus.Desc
	blockedDesc    *prometheus.Desc
	thresholdDesc  *prometheus.Desc
	queryErrorDesc *prometheus.Desc
}

func newGovernanceMetricsCollector(db *sql.DB, threshold int) prometheus.Collector {
	c := &governanceMetricsCollector{
		db:        db,
		threshold: threshold,
		extensionsDesc: prometheus.NewDesc(
			"extgov_extensions_count",
			"Number of registered extensions by status.",
			[]string{"status"},
			nil,
		),
		conflictsDesc: prometheus.NewDesc(
			"extgov_conflicts_count",
			"Conflicts in the latest conflict run by kind.",
			[]string{"kind"},
			nil,
		),
		scenariosDesc: prometheus.NewDesc(
			"extgov_stress_scenarios_count",
			"Number of recorded stress scenarios by outcome.",
			[]string{"outcome"},
			nil,
		),
		riskScoreDesc: prometheus.NewDesc(
			"extgov_extension_risk_score",
			"Overall risk of the latest assessment per extension.",
			[]string{"extension_id"},
			nil,
		),
		riskLevelDesc: prometheus.NewDesc(
			"extgov_risk_level_count",
			"Number of extensions whose latest assessment has the given level.",
			[]string{"level"},
			nil,
		),
		blockedDesc: prometheus.NewDesc(
			"extgov_guard_blocked_count",
			"Number of extensions currently blocked by the installation guard.",
			nil,
			nil,
		),
		thresholdDesc: prometheus.NewDesc(
			"extgov_guard_risk_threshold",
			"Configured installation guard threshold.",
			nil,
			nil,
		),
		queryErrorDesc: prometheus.NewDesc(
			"extgov_metrics_query_error",
			"Whether a governance metrics query failed (1) or succeeded (0).",
			nil,
			nil,
		),
	}
	if db != nil {
		c.extensions = store.NewExtensionsStore(db)
		c.stress = store.NewStressStore(db)
		c.assessments = store.NewAssessmentsStore(db)
		c.guard = store.NewGuardStore(db)
	}
	return c
}

func (c *governanceMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.extensionsDesc
	ch <- c.conflictsDesc
	ch <- c.scenariosDesc
	ch <- c.riskScoreDesc
	ch <- c.riskLevelDesc
	ch <- c.blockedDesc
	ch <- c.thresholdDesc
	ch <- c.queryErrorDesc
}

func (c *governanceMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 900*time.Millisecond)
	defer cancel()

	ch <- prometheus.MustNewConstMetric(c.thresholdDesc, prometheus.GaugeValue, float64(c.threshold))
	failed := false

	if byStatus, err := c.extensions.CountByStatus(ctx); err == nil {
		for _, st := range []store.ExtensionStatus{store.StatusActive, store.StatusDisabled, store.StatusPendingReview} {
			ch <- prometheus.MustNewConstMetric(c.extensionsDesc, prometheus.GaugeValue, float64(byStatus[st]), string(st))
		}
	} else {
		failed = true
	}
	if byOutcome, err := c.stress.CountScenariosByOutcome(ctx); err == nil {
		for _, o := range []store.Outcome{store.OutcomePassed, store.OutcomeWarning, store.OutcomeFailed} {
			ch <- prometheus.MustNewConstMetric(c.scenariosDesc, prometheus.GaugeValue, float64(byOutcome[o]), string(o))
		}
	} else {
		failed = true
	}
	collectCountByLabel(ctx, c.db, ch, c.conflictsDesc,
		`SELECT kind, COUNT(*) FROM conflicts WHERE run_id=(SELECT MAX(id) FROM conflict_runs) GROUP BY kind`)

	if latest, err := c.assessments.LatestPerExtension(ctx); err == nil {
		levels := map[store.RiskLevel]int{}
		for _, a := range latest {
			ch <- prometheus.MustNewConstMetric(c.riskScoreDesc, prometheus.GaugeValue, float64(a.Overall), a.ExtensionID)
			levels[a.Level]++
		}
		for _, l := range []store.RiskLevel{store.RiskLow, store.RiskMedium, store.RiskHigh} {
			ch <- prometheus.MustNewConstMetric(c.riskLevelDesc, prometheus.GaugeValue, float64(levels[l]), string(l))
		}
	} else {
		failed = true
	}
	if n, err := c.guard.CountBlocked(ctx); err == nil {
		ch <- prometheus.MustNewConstMetric(c.blockedDesc, prometheus.GaugeValue, float64(n))
	} else {
		failed = true
	}

	if failed {
		ch <- prometheus.MustNewConstMetric(c.queryErrorDesc, prometheus.GaugeValue, 1)
	} else {
		ch <- prometheus.MustNewConstMetric(c.queryErrorDesc, prometheus.GaugeValue, 0)
	}
}

func collectCountByLabel(ctx context.Context, db *sql.DB, ch chan<- prometheus.Metric, desc *prometheus.Desc, query string) {
	if db == nil {
		return
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var n float64
		if scanErr := rows.Scan(&label, &n); scanErr == nil {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, n, label)
		}
	}
}

// Package metrics holds the Prometheus collectors of the referral service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "referral"

var (
	Clicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "clicks_total",
		Help:      "Referral link clicks by result (recorded, rate_limited, error).",
	}, []string{"result"})

	Completions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "completions_total",
		Help:      "Referral completions by terminal status and rejection reason.",
	}, []string{"status", "reason"})

	RewardsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rewards_issued_total",
		Help:      "Rewards created by source.",
	}, []string{"source"})

	Claims = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "claims_total",
		Help:      "Reward claim attempts by result (created, replayed, rejected, error).",
	}, []string{"result"})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_runs_total",
		Help:      "Batch job runs by job and result.",
	}, []string{"job", "result"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Batch job wall time.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"job"})
)

// ObserveJob records a finished batch job run.
func ObserveJob(job string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	JobRuns.WithLabelValues(job, result).Inc()
	JobDuration.WithLabelValues(job).Observe(time.Since(started).Seconds())
}

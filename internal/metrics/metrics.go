// Package metrics exposes Prometheus metrics for the legend tracker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "legend_tracker"

// Metrics owns its registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	fetches        *prometheus.CounterVec
	fetchDuration  prometheus.Histogram
	trophyEvents   *prometheus.CounterVec
	trackedPlayers prometheus.Gauge
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	notifyErrors   *prometheus.CounterVec
	seasonResets   prometheus.Counter
	rollovers      prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Upstream player fetches by result.",
		}, []string{"result"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching one player, retries included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		trophyEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trophy_events_total",
			Help:      "Detected trophy changes by kind.",
		}, []string{"kind"}),
		trackedPlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_players",
			Help:      "Players in the registry at the last poll.",
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and result.",
		}, []string{"job", "result"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Scheduled job run time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		notifyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_errors_total",
			Help:      "Failed notification deliveries by sink.",
		}, []string{"sink"}),
		seasonResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "season_resets_total",
			Help:      "Seasonal resets performed.",
		}),
		rollovers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "daily_rollovers_total",
			Help:      "Daily rollovers performed.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.fetches,
		m.fetchDuration,
		m.trophyEvents,
		m.trackedPlayers,
		m.jobRuns,
		m.jobDuration,
		m.notifyErrors,
		m.seasonResets,
		m.rollovers,
	)
	return m
}

func (m *Metrics) RecordFetch(result string, took time.Duration) {
	m.fetches.WithLabelValues(result).Inc()
	m.fetchDuration.Observe(took.Seconds())
}

func (m *Metrics) RecordTrophyEvent(kind string) {
	m.trophyEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetTrackedPlayers(n int) {
	m.trackedPlayers.Set(float64(n))
}

func (m *Metrics) RecordJob(job string, err error, took time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
	m.jobDuration.WithLabelValues(job).Observe(took.Seconds())
}

func (m *Metrics) RecordNotifyError(sink string) {
	m.notifyErrors.WithLabelValues(sink).Inc()
}

func (m *Metrics) RecordSeasonReset() { m.seasonResets.Inc() }

func (m *Metrics) RecordRollover() { m.rollovers.Inc() }

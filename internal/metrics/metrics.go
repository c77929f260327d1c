package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the cycle instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg            *prometheus.Registry
	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	zoneStatus     *prometheus.GaugeVec
	zoneWater      *prometheus.GaugeVec
	scheduledRuns  prometheus.Gauge
	collaboratorEr *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sprinkler_cycles_total",
			Help: "Decision cycles by outcome.",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sprinkler_cycle_duration_seconds",
			Help:    "Wall time of a decision cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		zoneStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sprinkler_zone_status",
			Help: "Last status code decided for a zone.",
		}, []string{"zone"}),
		zoneWater: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sprinkler_zone_water_total",
			Help: "Water counted toward the zone this period.",
		}, []string{"zone"}),
		scheduledRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sprinkler_scheduled_runs",
			Help: "Runs dispatched in the last cycle.",
		}),
		collaboratorEr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sprinkler_collaborator_errors_total",
			Help: "Errors returned by external collaborators.",
		}, []string{"collaborator"}),
	}
	m.reg.MustRegister(
		m.cycles,
		m.cycleDuration,
		m.zoneStatus,
		m.zoneWater,
		m.scheduledRuns,
		m.collaboratorEr,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) CycleDone(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) Zone(id, status int, water float64) {
	if m == nil {
		return
	}
	z := strconv.Itoa(id)
	m.zoneStatus.WithLabelValues(z).Set(float64(status))
	m.zoneWater.WithLabelValues(z).Set(water)
}

func (m *Metrics) Scheduled(n int) {
	if m == nil {
		return
	}
	m.scheduledRuns.Set(float64(n))
}

func (m *Metrics) CollaboratorError(name string) {
	if m == nil {
		return
	}
	m.collaboratorEr.WithLabelValues(name).Inc()
}

package status

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the probe collectors. A nil *Metrics records nothing.
type Metrics struct {
	Probes      *prometheus.CounterVec
	Duration    prometheus.Histogram
	LastChecked prometheus.Gauge
	Up          prometheus.Gauge
	Stale       prometheus.Counter
}

// NewMetrics creates the probe collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "npidir_probes_total",
				Help: "Directory API probes by settled state",
			},
			[]string{"state"},
		),
		Duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "npidir_probe_duration_seconds",
				Help:    "Time from probe start to settlement",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
			},
		),
		LastChecked: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "npidir_probe_last_checked_timestamp_seconds",
				Help: "Unix time of the last settled probe",
			},
		),
		Up: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "npidir_api_up",
				Help: "1 if the last settled probe reached the connected state",
			},
		),
		Stale: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "npidir_probe_stale_results_total",
				Help: "Probe results discarded because a newer probe had started",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Probes, m.Duration, m.LastChecked, m.Up, m.Stale)
	}
	return m
}

func (m *Metrics) observe(state State, elapsed time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.Probes.WithLabelValues(string(state)).Inc()
	m.Duration.Observe(elapsed.Seconds())
	m.LastChecked.Set(float64(at.UnixNano()) / 1e9)
	if state == StateConnected {
		m.Up.Set(1)
	} else {
		m.Up.Set(0)
	}
}

func (m *Metrics) observeStale() {
	if m == nil {
		return
	}
	m.Stale.Inc()
}

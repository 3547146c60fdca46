// Package metrics exposes tracker activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sadopc/paytrackr/internal/version"
)

const namespace = "paytrackr"

// Recorder implements earnings.Observer on its own registry. A nil Recorder
// is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	ticks         prometheus.Counter
	checkpoints   prometheus.Counter
	finalizations prometheus.Counter
	persistErrors *prometheus.CounterVec
	earned        prometheus.Gauge
	running       prometheus.Gauge
	buildInfo     *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with tracker, Go runtime and process metrics
// registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Driver ticks processed while running",
		}),
		checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Periodic state checkpoints written while running",
		}),
		finalizations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalizations_total",
			Help:      "Sessions frozen at the work-end boundary",
		}),
		persistErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Failed store writes by operation",
		}, []string{"op"}),
		earned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "earned_amount",
			Help:      "Amount earned in the current session",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while a session is accumulating",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build version information",
		}, []string{"version", "git_commit", "build_date", "go_version"}),
	}

	info := version.Info()
	r.buildInfo.With(prometheus.Labels{
		"version":    info["version"],
		"git_commit": info["git_commit"],
		"build_date": info["build_date"],
		"go_version": info["go_version"],
	}).Set(1)

	r.registry.MustRegister(
		r.ticks,
		r.checkpoints,
		r.finalizations,
		r.persistErrors,
		r.earned,
		r.running,
		r.buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry is what the HTTP server gathers from.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) Ticked() {
	if r == nil {
		return
	}
	r.ticks.Inc()
}

func (r *Recorder) Checkpointed() {
	if r == nil {
		return
	}
	r.checkpoints.Inc()
}

func (r *Recorder) Finalized() {
	if r == nil {
		return
	}
	r.finalizations.Inc()
}

func (r *Recorder) Earned(amount float64, running bool) {
	if r == nil {
		return
	}
	r.earned.Set(amount)
	if running {
		r.running.Set(1)
	} else {
		r.running.Set(0)
	}
}

func (r *Recorder) PersistFailed(op string) {
	if r == nil {
		return
	}
	r.persistErrors.WithLabelValues(op).Inc()
}

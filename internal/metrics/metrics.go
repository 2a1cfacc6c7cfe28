package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "jobmatch"

// Recorder collects per-run counters on its own registry. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	runs              *prometheus.CounterVec
	postings          *prometheus.CounterVec
	embeddingFailures prometheus.Counter
	runDuration       prometheus.Histogram
	lastRun           prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by final state.",
		}, []string{"state", "reason"}),
		postings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "postings_total",
			Help:      "Postings left after each pipeline stage.",
		}, []string{"stage"}),
		embeddingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_failures_total",
			Help:      "Postings scored as zero because the embedding provider failed.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of pipeline runs.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished run.",
		}),
	}

	r.registry.MustRegister(r.runs, r.postings, r.embeddingFailures, r.runDuration, r.lastRun)
	return r
}

// Stage records how many postings were left after a stage.
func (r *Recorder) Stage(name string, left int) {
	if r == nil {
		return
	}
	r.postings.WithLabelValues(name).Add(float64(left))
}

func (r *Recorder) EmbeddingFailures(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.embeddingFailures.Add(float64(n))
}

// RunFinished records the outcome of one run.
func (r *Recorder) RunFinished(state, reason string, took time.Duration) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(state, reason).Inc()
	r.runDuration.Observe(took.Seconds())
	r.lastRun.SetToCurrentTime()
}

func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// WriteTextfile writes all metrics in the text exposition format, suitable for
// the node exporter textfile collector. The write is atomic.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

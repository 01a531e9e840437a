// Package metrics exposes Prometheus instrumentation for the daemon.
package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/RobDeGeorge/fathertime/internal/events"
)

// Recorder registers and records the daemon's Prometheus metrics. It
// implements the registry's Metrics interface and subscribes to the
// event notifier for lifecycle counters.
type Recorder struct {
	once sync.Once

	ticks               prom.Counter
	runningTimers       prom.Gauge
	sessionsClosed      prom.Counter
	countdownsCompleted prom.Counter
	persistDuration     prom.Histogram
	persistFailures     prom.Counter
	eventsPublished     *prom.CounterVec
}

// NewRecorder constructs and registers the metrics (idempotent).
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{}
	r.once.Do(func() {
		r.ticks = prom.NewCounter(prom.CounterOpts{
			Namespace: "fathertime",
			Name:      "ticks_total",
			Help:      "Total clock ticks processed",
		})
		r.runningTimers = prom.NewGauge(prom.GaugeOpts{
			Namespace: "fathertime",
			Name:      "running_timers",
			Help:      "Timers currently running",
		})
		r.sessionsClosed = prom.NewCounter(prom.CounterOpts{
			Namespace: "fathertime",
			Name:      "sessions_closed_total",
			Help:      "Work sessions closed",
		})
		r.countdownsCompleted = prom.NewCounter(prom.CounterOpts{
			Namespace: "fathertime",
			Name:      "countdown_completions_total",
			Help:      "Countdowns that reached zero",
		})
		r.persistDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "fathertime",
			Name:      "persist_duration_seconds",
			Help:      "Duration of collection persistence flushes",
			Buckets:   prom.DefBuckets,
		})
		r.persistFailures = prom.NewCounter(prom.CounterOpts{
			Namespace: "fathertime",
			Name:      "persist_failures_total",
			Help:      "Persistence flushes that failed",
		})
		r.eventsPublished = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "fathertime",
			Name:      "events_published_total",
			Help:      "Lifecycle events published by type",
		}, []string{"type"})
		reg.MustRegister(r.ticks, r.runningTimers, r.sessionsClosed,
			r.countdownsCompleted, r.persistDuration, r.persistFailures,
			r.eventsPublished)
	})
	return r
}

// ObserveTick implements timer.Metrics.
func (r *Recorder) ObserveTick(running int) {
	r.ticks.Inc()
	r.runningTimers.Set(float64(running))
}

// ObservePersist implements timer.Metrics.
func (r *Recorder) ObservePersist(d time.Duration, err error) {
	r.persistDuration.Observe(d.Seconds())
	if err != nil {
		r.persistFailures.Inc()
	}
}

// OnEvent implements events.Subscriber for lifecycle counters.
func (r *Recorder) OnEvent(e events.Event) {
	r.eventsPublished.WithLabelValues(string(e.Type)).Inc()
	switch e.Type {
	case events.TimerStopped, events.TimerReset, events.TimerDeleted:
		r.sessionsClosed.Inc()
	case events.CountdownCompleted:
		r.sessionsClosed.Inc()
		r.countdownsCompleted.Inc()
	}
}

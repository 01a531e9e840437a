// Package daemon composes the tracker services into the long-running
// process: tick driver, HTTP command surface, event journal, metrics and
// config reload.
package daemon

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/RobDeGeorge/fathertime/internal/config"
	"github.com/RobDeGeorge/fathertime/internal/events"
	"github.com/RobDeGeorge/fathertime/internal/logfields"
	"github.com/RobDeGeorge/fathertime/internal/metrics"
	"github.com/RobDeGeorge/fathertime/internal/report"
	"github.com/RobDeGeorge/fathertime/internal/session"
	"github.com/RobDeGeorge/fathertime/internal/store"
	"github.com/RobDeGeorge/fathertime/internal/tick"
	"github.com/RobDeGeorge/fathertime/internal/timer"
)

// Daemon owns the composed services for daemon mode.
type Daemon struct {
	configPath string
	logLevel   *slog.LevelVar

	store      *store.Store
	log        *session.Log
	registry   *timer.Registry
	aggregator *report.Aggregator
	driver     *tick.Driver
	notifier   *events.Notifier
	journal    *events.Journal
	natsPub    *events.NATSPublisher
	recorder   *metrics.Recorder
	promReg    *prom.Registry
	httpServer *http.Server
	watcher    *ConfigWatcher

	mu        sync.RWMutex
	reportCfg config.ReportConfig
	startTime time.Time
}

// New composes a daemon from configuration. logLevel may be nil when the
// caller does not support runtime level changes.
func New(cfg *config.Config, configPath string, logLevel *slog.LevelVar) (*Daemon, error) {
	st, err := store.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	sessionLog, err := session.Open(st, cfg.Report.WindowDays, now)
	if err != nil {
		return nil, err
	}
	notifier := events.NewNotifier()
	registry, err := timer.NewRegistry(st, sessionLog, notifier, cfg.Tick.FlushEveryTicks)
	if err != nil {
		return nil, err
	}
	driver, err := tick.NewDriver(registry, cfg.Tick.Interval)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		configPath: configPath,
		logLevel:   logLevel,
		store:      st,
		log:        sessionLog,
		registry:   registry,
		aggregator: report.NewAggregator(sessionLog, st, cfg.Report.WindowDays),
		driver:     driver,
		notifier:   notifier,
		reportCfg:  cfg.Report,
		startTime:  now,
	}

	if cfg.Daemon.MetricsEnabled {
		d.promReg = prom.NewRegistry()
		d.recorder = metrics.NewRecorder(d.promReg)
		registry.SetMetrics(d.recorder)
		notifier.Subscribe(d.recorder.OnEvent)
	}
	if cfg.Daemon.JournalPath != "" {
		journal, err := events.NewJournal(cfg.Daemon.JournalPath)
		if err != nil {
			return nil, err
		}
		d.journal = journal
		notifier.Subscribe(func(e events.Event) {
			if err := journal.Append(context.Background(), e); err != nil {
				slog.Error("journal append failed", logfields.EventType(string(e.Type)), logfields.Error(err))
			}
		})
	}
	if cfg.Daemon.NATS.Enabled {
		pub, err := events.NewNATSPublisher(cfg.Daemon.NATS.URL, cfg.Daemon.NATS.Subject)
		if err != nil {
			return nil, err
		}
		d.natsPub = pub
		notifier.Subscribe(pub.Publish)
	}

	// Session-affecting events invalidate the derived daily cache; the
	// next read recomputes and re-fills it.
	notifier.Subscribe(func(e events.Event) {
		switch e.Type {
		case events.TimerStarted, events.TimerStopped, events.TimerReset,
			events.TimerDeleted, events.CountdownCompleted, events.DataReset:
			d.aggregator.Invalidate()
		}
	})

	d.httpServer = &http.Server{
		Addr:              cfg.Daemon.ListenAddr,
		Handler:           d.routes(cfg.Daemon.MetricsEnabled),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return d, nil
}

// Run starts every surface and blocks until ctx is cancelled, then shuts
// down gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	d.driver.Start(ctx)

	if d.configPath != "" {
		watcher, err := NewConfigWatcher(d.configPath, d)
		if err != nil {
			slog.Warn("config watcher unavailable", logfields.Error(err))
		} else {
			d.watcher = watcher
			if err := watcher.Start(ctx); err != nil {
				slog.Warn("config watcher failed to start", logfields.Error(err))
			}
		}
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP API listening", logfields.Path(d.httpServer.Addr))
		if err := d.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	return d.shutdown()
}

func (d *Daemon) shutdown() error {
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if d.watcher != nil {
		_ = d.watcher.Stop(shutdownCtx)
	}
	if err := d.httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", logfields.Error(err))
	}
	if err := d.driver.Stop(shutdownCtx); err != nil {
		slog.Error("tick driver shutdown failed", logfields.Error(err))
	}
	// Final flush so reconciliation has nothing to repair after a clean exit.
	for _, t := range d.registry.Timers() {
		if t.IsRunning {
			if err := d.registry.Stop(t.ID); err != nil {
				slog.Error("failed to stop timer during shutdown",
					logfields.TimerID(t.ID), logfields.Error(err))
			}
		}
	}
	if d.natsPub != nil {
		d.natsPub.Close()
	}
	if d.journal != nil {
		if err := d.journal.Close(); err != nil {
			slog.Error("journal close failed", logfields.Error(err))
		}
	}
	return nil
}

// Reload applies the reloadable subset of a fresh configuration: log
// level and report settings. Everything else requires a restart.
func (d *Daemon) Reload(cfg *config.Config) {
	if d.logLevel != nil {
		d.logLevel.Set(parseLevel(cfg.Logging.Level))
	}
	d.mu.Lock()
	d.reportCfg = cfg.Report
	d.mu.Unlock()
	slog.Info("configuration reloaded")
}

func (d *Daemon) reportConfig() config.ReportConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.reportCfg
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

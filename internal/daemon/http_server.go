package daemon

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RobDeGeorge/fathertime/internal/errors"
	"github.com/RobDeGeorge/fathertime/internal/report"
	"github.com/RobDeGeorge/fathertime/internal/timer"
)

// routes builds the HTTP command surface the UI layer drives. Every
// registry operation is exposed, plus the read accessors for the timer
// list and the daily breakdown window.
func (d *Daemon) routes(metricsEnabled bool) http.Handler {
	adapter := errors.NewHTTPErrorAdapter(slog.Default())
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"uptime":  time.Since(d.startTime).String(),
			"running": d.registry.RunningCount(),
		})
	})
	if metricsEnabled {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.promReg, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("GET /api/timers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.timerViews())
	})

	mux.HandleFunc("POST /api/timers", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
		}
		if !decodeBody(w, r, adapter, &req) {
			return
		}
		t, err := d.registry.Add(req.Name, timer.Kind(req.Kind))
		if err != nil {
			adapter.WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, d.viewOf(t))
	})

	mux.HandleFunc("GET /api/timers/{id}", func(w http.ResponseWriter, r *http.Request) {
		t, err := d.registry.Get(r.PathValue("id"))
		if err != nil {
			adapter.WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d.viewOf(t))
	})

	mux.HandleFunc("DELETE /api/timers/{id}", func(w http.ResponseWriter, r *http.Request) {
		d.respond(w, adapter, d.registry.Delete(r.PathValue("id")))
	})

	mux.HandleFunc("POST /api/timers/{id}/start", func(w http.ResponseWriter, r *http.Request) {
		d.respond(w, adapter, d.registry.Start(r.PathValue("id")))
	})
	mux.HandleFunc("POST /api/timers/{id}/stop", func(w http.ResponseWriter, r *http.Request) {
		d.respond(w, adapter, d.registry.Stop(r.PathValue("id")))
	})
	mux.HandleFunc("POST /api/timers/{id}/reset", func(w http.ResponseWriter, r *http.Request) {
		d.respond(w, adapter, d.registry.Reset(r.PathValue("id")))
	})
	mux.HandleFunc("POST /api/timers/{id}/favorite", func(w http.ResponseWriter, r *http.Request) {
		d.respond(w, adapter, d.registry.ToggleFavorite(r.PathValue("id")))
	})

	mux.HandleFunc("POST /api/timers/{id}/adjust", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DeltaSeconds int64 `json:"delta_seconds"`
		}
		if !decodeBody(w, r, adapter, &req) {
			return
		}
		d.respond(w, adapter, d.registry.AdjustTime(r.PathValue("id"), req.DeltaSeconds))
	})

	mux.HandleFunc("POST /api/timers/{id}/countdown", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TotalSeconds int64 `json:"total_seconds"`
		}
		if !decodeBody(w, r, adapter, &req) {
			return
		}
		d.respond(w, adapter, d.registry.SetCountdownTime(r.PathValue("id"), req.TotalSeconds))
	})

	mux.HandleFunc("POST /api/timers/{id}/rename", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if !decodeBody(w, r, adapter, &req) {
			return
		}
		d.respond(w, adapter, d.registry.Rename(r.PathValue("id"), req.Name))
	})

	mux.HandleFunc("GET /api/report/daily", func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		days := d.aggregator.Cached(now)
		if days == nil {
			days = d.aggregator.Refresh(now)
		}
		writeJSON(w, http.StatusOK, days)
	})

	mux.HandleFunc("GET /api/report/totals", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.aggregator.Totals(time.Now()))
	})

	mux.HandleFunc("GET /api/report/timesheet", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(d.aggregator.Timesheet(time.Now())))
	})

	mux.HandleFunc("GET /api/events", func(w http.ResponseWriter, r *http.Request) {
		if d.journal == nil {
			adapter.WriteError(w, errors.New(errors.CategoryDaemon, errors.SeverityWarning, "event journal disabled"))
			return
		}
		timerID := r.URL.Query().Get("timer_id")
		if timerID == "" {
			adapter.WriteError(w, errors.ValidationError("timer_id query parameter required"))
			return
		}
		evts, err := d.journal.ByTimer(r.Context(), timerID)
		if err != nil {
			adapter.WriteError(w, errors.Wrap(err, errors.CategoryInternal, errors.SeverityError, "journal query failed"))
			return
		}
		writeJSON(w, http.StatusOK, evts)
	})

	// Destructive; the UI layer gates this behind its own confirmation.
	mux.HandleFunc("POST /api/reset-all", func(w http.ResponseWriter, r *http.Request) {
		d.respond(w, adapter, d.registry.ResetAllData())
	})

	return logRequests(mux)
}

// TimerView is a Timer plus its formatted display string, computed the
// way the UI shows it: HH:MM:SS while running or for countdowns, decimal
// timesheet hours for stopped stopwatches.
type TimerView struct {
	timer.Timer
	DisplayTime string `json:"display_time"`
}

func (d *Daemon) viewOf(t timer.Timer) TimerView {
	cfg := d.reportConfig()
	var display string
	switch {
	case t.Kind == timer.KindCountdown:
		display = report.FormatClock(t.RemainingSeconds)
	case t.IsRunning:
		display = report.FormatClock(t.ElapsedSeconds)
	default:
		display = report.DecimalHours(t.ElapsedSeconds, cfg.RoundingEnabled, cfg.RoundingMinutes)
	}
	return TimerView{Timer: t, DisplayTime: display}
}

func (d *Daemon) timerViews() []TimerView {
	timers := d.registry.Timers()
	views := make([]TimerView, len(timers))
	for i, t := range timers {
		views[i] = d.viewOf(t)
	}
	return views
}

// respond writes a 204 on success or the mapped error.
func (d *Daemon) respond(w http.ResponseWriter, adapter *errors.HTTPErrorAdapter, err error) {
	if err != nil {
		adapter.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(w http.ResponseWriter, r *http.Request, adapter *errors.HTTPErrorAdapter, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		adapter.WriteError(w, errors.ValidationError("invalid request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// logRequests logs each request at debug level.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("elapsed", time.Since(start)))
	})
}

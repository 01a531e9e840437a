package timer

import (
	"log/slog"
	"time"

	"github.com/RobDeGeorge/fathertime/internal/events"
	"github.com/RobDeGeorge/fathertime/internal/logfields"
)

// Tick advances every running timer by one second: stopwatches accumulate
// elapsed time, countdowns consume remaining time (floored at zero). A
// countdown reaching exactly zero is stopped, its session closed at this
// tick, and a completion event raised for the UI layer.
//
// Persistence is throttled to every flushEveryTicks ticks to bound I/O;
// explicit command operations always flush immediately, so only tick
// accounting can trail disk, and never by more than the flush interval.
func (r *Registry) Tick(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	running := 0
	var completed []*Timer
	for _, t := range r.timers {
		if !t.IsRunning {
			continue
		}
		running++
		// Exactly one field advances per tick: elapsed grows for a
		// stopwatch, remaining shrinks for a countdown.
		if t.Kind == KindCountdown {
			if t.RemainingSeconds > 0 {
				t.RemainingSeconds--
			}
			if t.RemainingSeconds == 0 {
				completed = append(completed, t)
			}
		} else {
			t.ElapsedSeconds++
		}
	}

	if r.metrics != nil {
		r.metrics.ObserveTick(running)
	}

	if running == 0 {
		// A completion's flush may have failed on the very tick that
		// stopped the last running timer; keep retrying until disk
		// agrees with memory.
		if r.flushPending {
			if err := r.persistAll(); err != nil {
				slog.Error("tick flush retry failed", logfields.Error(err))
			}
		}
		return
	}
	r.log.RecordTick(now)

	for _, t := range completed {
		t.IsRunning = false
		closed := r.log.CloseSession(t.ID, now)
		slog.Info("countdown completed", logfields.TimerID(t.ID), logfields.TimerName(t.Name))
		payload := map[string]any{"name": t.Name}
		if closed != nil {
			payload["session_id"] = closed.ID
			payload["duration_seconds"] = closed.DurationSeconds
		}
		r.publish(events.CountdownCompleted, t.ID, now, payload)
	}

	// Completions flush immediately so the closed session is never lost;
	// plain accounting flushes on the throttle cadence.
	r.ticksSinceFlush++
	if r.flushPending || len(completed) > 0 || r.ticksSinceFlush >= r.flushEveryTicks {
		if err := r.persistAll(); err != nil {
			// Keep the in-memory accounting; every following tick
			// retries the flush until one succeeds.
			r.flushPending = true
			slog.Error("tick flush failed", logfields.Error(err))
		}
	}
}

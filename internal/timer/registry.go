package timer

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/RobDeGeorge/fathertime/internal/errors"
	"github.com/RobDeGeorge/fathertime/internal/events"
	"github.com/RobDeGeorge/fathertime/internal/logfields"
	"github.com/RobDeGeorge/fathertime/internal/session"
	"github.com/RobDeGeorge/fathertime/internal/store"
)

// Metrics receives registry observations. The daemon wires a prometheus
// recorder here; the CLI runs without one.
type Metrics interface {
	ObserveTick(running int)
	ObservePersist(d time.Duration, err error)
}

// Registry owns the set of timers and all mutation operations on them.
// A single mutex serializes commands and ticks, so notifications always
// reflect a consistent post-mutation state and the tick never interleaves
// with an in-flight command.
type Registry struct {
	mu       sync.Mutex
	store    *store.Store
	log      *session.Log
	notifier *events.Notifier
	metrics  Metrics

	timers []*Timer
	byID   map[string]*Timer

	folder cases.Caser
	now    func() time.Time

	flushEveryTicks int
	ticksSinceFlush int
	// flushPending marks tick accounting that failed to reach disk and
	// must be retried on the next tick, running timers or not.
	flushPending bool
}

// NewRegistry loads the timers collection and reconciles running state:
// any timer persisted as running was interrupted by an abnormal shutdown
// (its session has already been reconciled by the log) and comes back
// stopped.
func NewRegistry(st *store.Store, log *session.Log, notifier *events.Notifier, flushEveryTicks int) (*Registry, error) {
	r := &Registry{
		store:           st,
		log:             log,
		notifier:        notifier,
		byID:            make(map[string]*Timer),
		folder:          cases.Fold(),
		now:             time.Now,
		flushEveryTicks: flushEveryTicks,
	}
	if r.flushEveryTicks <= 0 {
		r.flushEveryTicks = 1
	}

	var doc Document
	if err := st.Load(store.CollectionTimers, &doc); err != nil {
		return nil, err
	}
	r.timers = doc.Timers

	dirty := false
	for _, t := range r.timers {
		r.byID[t.ID] = t
		if t.IsRunning {
			t.IsRunning = false
			dirty = true
			slog.Warn("timer was running at shutdown, marking stopped",
				logfields.TimerID(t.ID), logfields.TimerName(t.Name))
		}
	}
	if dirty {
		if err := st.Save(store.CollectionTimers, &Document{Timers: r.timers}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// SetMetrics attaches a metrics recorder. Intended for composition at startup.
func (r *Registry) SetMetrics(m Metrics) { r.metrics = m }

// foldName produces the case-insensitive comparison key for a timer name.
func (r *Registry) foldName(name string) string {
	return r.folder.String(strings.TrimSpace(name))
}

// nameTaken reports whether any timer other than exceptID uses the name.
func (r *Registry) nameTaken(folded, exceptID string) bool {
	for _, t := range r.timers {
		if t.ID != exceptID && r.foldName(t.Name) == folded {
			return true
		}
	}
	return false
}

// Add creates a new stopped timer.
func (r *Registry) Add(name string, kind Kind) (Timer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return Timer{}, errors.ValidationError("timer name cannot be empty")
	}
	if !kind.valid() {
		return Timer{}, errors.ValidationError("timer kind must be stopwatch or countdown").
			WithContext("kind", string(kind))
	}
	if r.nameTaken(r.foldName(name), "") {
		return Timer{}, errors.DuplicateNameError(name)
	}

	now := r.now()
	t := &Timer{
		ID:        newTimerID(),
		Name:      name,
		Kind:      kind,
		CreatedAt: now,
	}

	snap := r.snapshot()
	r.timers = append(r.timers, t)
	r.byID[t.ID] = t
	if err := r.persistTimers(); err != nil {
		r.restore(snap)
		return Timer{}, err
	}

	slog.Info("timer created", logfields.TimerID(t.ID), logfields.TimerName(t.Name), logfields.Kind(string(t.Kind)))
	r.publish(events.TimerCreated, t.ID, now, map[string]any{"name": t.Name, "kind": t.Kind})
	return *t, nil
}

// SetCountdownTime configures a countdown's total. Negative input clamps
// to zero. Valid only for countdown timers.
func (r *Registry) SetCountdownTime(id string, totalSeconds int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.get(id)
	if err != nil {
		return err
	}
	if t.Kind != KindCountdown {
		return errors.ValidationError("countdown time is only valid for countdown timers").
			WithContext("timer_id", id)
	}
	if totalSeconds < 0 {
		totalSeconds = 0
	}

	snap := r.snapshot()
	t.RemainingSeconds = totalSeconds
	t.InitialSeconds = totalSeconds
	if err := r.persistTimers(); err != nil {
		r.restore(snap)
		return err
	}
	r.publish(events.CountdownConfigured, t.ID, r.now(), map[string]any{"total_seconds": totalSeconds})
	return nil
}

// Start sets a timer running and opens its session. A timer that is
// already running is a no-op. A countdown with nothing remaining cannot
// start.
func (r *Registry) Start(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.get(id)
	if err != nil {
		return err
	}
	if t.IsRunning {
		return nil
	}
	if t.Kind == KindCountdown && t.RemainingSeconds == 0 {
		return errors.ValidationError("countdown has no time remaining").
			WithContext("timer_id", id)
	}

	now := r.now()
	snap := r.snapshot()
	logSnap := r.log.Snapshot()
	t.IsRunning = true
	if _, err := r.log.OpenSession(t.ID, t.Name, now); err != nil {
		t.IsRunning = false
		return err
	}
	if err := r.persistAll(); err != nil {
		r.rollback(snap, logSnap)
		return err
	}

	slog.Info("timer started", logfields.TimerID(t.ID), logfields.TimerName(t.Name))
	r.publish(events.TimerStarted, t.ID, now, map[string]any{"name": t.Name})
	return nil
}

// Stop halts a running timer and closes its session. A stopped timer is
// a no-op.
func (r *Registry) Stop(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.get(id)
	if err != nil {
		return err
	}
	if !t.IsRunning {
		return nil
	}
	return r.stopLocked(t, r.now(), events.TimerStopped)
}

// stopLocked performs the stop transition under the registry lock.
// eventType distinguishes a user stop from a countdown completion.
func (r *Registry) stopLocked(t *Timer, now time.Time, eventType events.Type) error {
	snap := r.snapshot()
	logSnap := r.log.Snapshot()
	t.IsRunning = false
	closed := r.log.CloseSession(t.ID, now)
	if err := r.persistAll(); err != nil {
		r.rollback(snap, logSnap)
		return err
	}

	payload := map[string]any{"name": t.Name}
	if closed != nil {
		payload["session_id"] = closed.ID
		payload["duration_seconds"] = closed.DurationSeconds
	}
	slog.Info("timer stopped", logfields.TimerID(t.ID), logfields.TimerName(t.Name))
	r.publish(eventType, t.ID, now, payload)
	return nil
}

// Reset stops a timer if it is running (closing any open session) and
// restores its accounting: zero elapsed for a stopwatch, the last
// configured total for a countdown. Resetting an already-reset timer is
// an idempotent no-op.
func (r *Registry) Reset(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.get(id)
	if err != nil {
		return err
	}

	now := r.now()
	snap := r.snapshot()
	logSnap := r.log.Snapshot()
	t.IsRunning = false
	r.log.CloseSession(t.ID, now)
	if t.Kind == KindCountdown {
		t.RemainingSeconds = t.InitialSeconds
	} else {
		t.ElapsedSeconds = 0
	}
	if err := r.persistAll(); err != nil {
		r.rollback(snap, logSnap)
		return err
	}
	r.publish(events.TimerReset, t.ID, now, map[string]any{"name": t.Name})
	return nil
}

// AdjustTime applies a manual correction to a timer's accounting, clamped
// at zero. Corrections are not activity: they never open or close
// sessions, regardless of running state.
func (r *Registry) AdjustTime(id string, deltaSeconds int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.get(id)
	if err != nil {
		return err
	}

	snap := r.snapshot()
	if t.Kind == KindCountdown {
		t.RemainingSeconds = max(0, t.RemainingSeconds+deltaSeconds)
	} else {
		t.ElapsedSeconds = max(0, t.ElapsedSeconds+deltaSeconds)
	}
	if err := r.persistTimers(); err != nil {
		r.restore(snap)
		return err
	}
	r.publish(events.TimerAdjusted, t.ID, r.now(), map[string]any{"delta_seconds": deltaSeconds})
	return nil
}

// Rename changes a timer's name under the same validation and uniqueness
// rules as creation. Renaming a timer to its own current name is a no-op.
func (r *Registry) Rename(id, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.get(id)
	if err != nil {
		return err
	}
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return errors.ValidationError("timer name cannot be empty")
	}
	if newName == t.Name {
		return nil
	}
	if r.nameTaken(r.foldName(newName), t.ID) {
		return errors.DuplicateNameError(newName)
	}

	oldName := t.Name
	snap := r.snapshot()
	t.Name = newName
	if err := r.persistTimers(); err != nil {
		r.restore(snap)
		return err
	}
	slog.Info("timer renamed", logfields.TimerID(t.ID), logfields.TimerName(newName))
	r.publish(events.TimerRenamed, t.ID, r.now(), map[string]any{"old_name": oldName, "new_name": newName})
	return nil
}

// ToggleFavorite flips the favorite flag. No effect on accounting.
func (r *Registry) ToggleFavorite(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.get(id)
	if err != nil {
		return err
	}

	snap := r.snapshot()
	t.IsFavorite = !t.IsFavorite
	if err := r.persistTimers(); err != nil {
		r.restore(snap)
		return err
	}
	r.publish(events.TimerFavoriteToggled, t.ID, r.now(), map[string]any{"is_favorite": t.IsFavorite})
	return nil
}

// Delete closes any open session and removes the timer from the active
// set. Historical sessions remain in the log.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.get(id)
	if err != nil {
		return err
	}

	now := r.now()
	snap := r.snapshot()
	logSnap := r.log.Snapshot()
	r.log.CloseSession(t.ID, now)
	for i, existing := range r.timers {
		if existing.ID == id {
			r.timers = append(r.timers[:i], r.timers[i+1:]...)
			break
		}
	}
	delete(r.byID, id)
	if err := r.persistAll(); err != nil {
		r.rollback(snap, logSnap)
		return err
	}
	slog.Info("timer deleted", logfields.TimerID(id), logfields.TimerName(t.Name))
	r.publish(events.TimerDeleted, id, now, map[string]any{"name": t.Name})
	return nil
}

// ResetAllData destroys every timer and all session history. Irreversible
// and unconditional: confirmation belongs to the caller.
func (r *Registry) ResetAllData() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.snapshot()
	r.timers = nil
	r.byID = make(map[string]*Timer)
	if err := r.persistTimers(); err != nil {
		r.restore(snap)
		return err
	}
	if err := r.log.ResetAll(); err != nil {
		// Timers are already gone from disk; report the partial failure.
		return err
	}
	_ = r.store.Delete(store.CollectionDailyCache)
	slog.Warn("all timer data reset")
	r.publish(events.DataReset, "", r.now(), nil)
	return nil
}

// Timers returns copies of all timers in creation order.
func (r *Registry) Timers() []Timer {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Timer, len(r.timers))
	for i, t := range r.timers {
		out[i] = *t
	}
	return out
}

// Get returns a copy of one timer.
func (r *Registry) Get(id string) (Timer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.get(id)
	if err != nil {
		return Timer{}, err
	}
	return *t, nil
}

// RunningCount returns the number of running timers.
func (r *Registry) RunningCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, t := range r.timers {
		if t.IsRunning {
			n++
		}
	}
	return n
}

func (r *Registry) get(id string) (*Timer, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, errors.NotFoundError(id)
	}
	return t, nil
}

func (r *Registry) publish(t events.Type, timerID string, at time.Time, payload any) {
	if r.notifier != nil {
		r.notifier.Publish(events.New(t, timerID, at, payload))
	}
}

// persistTimers writes the timers collection.
func (r *Registry) persistTimers() error {
	start := time.Now()
	err := r.store.Save(store.CollectionTimers, &Document{Timers: r.timers})
	r.observePersist(start, err)
	return err
}

// persistAll writes the timers collection plus the session log and
// last-tick marker.
func (r *Registry) persistAll() error {
	start := time.Now()
	err := r.store.Save(store.CollectionTimers, &Document{Timers: r.timers})
	if err == nil {
		err = r.log.Persist()
	}
	r.observePersist(start, err)
	if err == nil {
		r.ticksSinceFlush = 0
		r.flushPending = false
	}
	return err
}

// rollback restores the in-memory state after a failed persistAll and
// re-saves the restored timers document: the timers write may have
// succeeded before the session write failed, and disk must not carry a
// mutation that memory no longer has.
func (r *Registry) rollback(snap registryState, logSnap any) {
	r.restore(snap)
	r.log.Restore(logSnap)
	if err := r.store.Save(store.CollectionTimers, &Document{Timers: r.timers}); err != nil {
		slog.Error("failed to re-save timers during rollback", logfields.Error(err))
	}
}

func (r *Registry) observePersist(start time.Time, err error) {
	if r.metrics != nil {
		r.metrics.ObservePersist(time.Since(start), err)
	}
}

// registryState captures the timer set for rollback when a persist fails.
type registryState struct {
	timers []*Timer
	byID   map[string]*Timer
}

func (r *Registry) snapshot() registryState {
	timers := make([]*Timer, len(r.timers))
	byID := make(map[string]*Timer, len(r.timers))
	for i, t := range r.timers {
		dup := *t
		timers[i] = &dup
		byID[dup.ID] = timers[i]
	}
	return registryState{timers: timers, byID: byID}
}

func (r *Registry) restore(s registryState) {
	r.timers = s.timers
	r.byID = s.byID
}

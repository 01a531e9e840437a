package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/RobDeGeorge/fathertime/internal/errors"
	"github.com/RobDeGeorge/fathertime/internal/logfields"
	"github.com/RobDeGeorge/fathertime/internal/store"
)

// Log is the session ledger. It holds the sessions collection and the
// last-tick marker in memory and persists both through the store.
type Log struct {
	store      *store.Store
	sessions   []*Session
	open       map[string]*Session // timer id -> open session
	lastTick   time.Time
	windowDays int
}

// Open loads the session log, reconciles sessions left open by an
// abnormal shutdown, and archives closed sessions older than the rolling
// window.
func Open(st *store.Store, windowDays int, now time.Time) (*Log, error) {
	l := &Log{
		store:      st,
		open:       make(map[string]*Session),
		windowDays: windowDays,
	}

	var doc Document
	if err := st.Load(store.CollectionSessions, &doc); err != nil {
		return nil, err
	}
	var marker LastTick
	if err := st.Load(store.CollectionLastTick, &marker); err != nil {
		return nil, err
	}
	l.sessions = doc.Sessions
	l.lastTick = marker.At

	dirty := l.reconcile()
	if l.archiveExpired(now) {
		dirty = true
	}
	if dirty {
		if err := l.Persist(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// reconcile closes any session left open by a crash. The end time is the
// last persisted tick so reopening the app never silently inflates
// elapsed time for the gap while the app was closed. With no tick marker
// the session closes at its own start time (zero duration) as the safe
// fallback.
func (l *Log) reconcile() bool {
	repaired := 0
	for _, s := range l.sessions {
		if !s.IsOpen() {
			continue
		}
		at := l.lastTick
		if at.IsZero() || at.Before(s.StartTime) {
			at = s.StartTime
		}
		s.close(at)
		repaired++
		slog.Warn("reconciled session left open by abnormal shutdown",
			logfields.SessionID(s.ID),
			logfields.TimerID(s.TimerID),
			logfields.DurationS(s.DurationSeconds))
	}
	return repaired > 0
}

// archiveExpired moves closed sessions older than the window into a dated
// archive file and drops them from the live log.
func (l *Log) archiveExpired(now time.Time) bool {
	cutoff := now.AddDate(0, 0, -l.windowDays)

	var expired, recent []*Session
	for _, s := range l.sessions {
		if !s.IsOpen() && s.EndTime.Before(cutoff) {
			expired = append(expired, s)
		} else {
			recent = append(recent, s)
		}
	}
	if len(expired) == 0 {
		return false
	}

	oldest, newest := expired[0].StartTime, expired[0].StartTime
	for _, s := range expired {
		if s.StartTime.Before(oldest) {
			oldest = s.StartTime
		}
		if s.StartTime.After(newest) {
			newest = s.StartTime
		}
	}
	name := fmt.Sprintf("sessions_%s_to_%s.json",
		oldest.Format("2006-01-02"), newest.Format("2006-01-02"))
	archive := struct {
		ArchivedSessions []*Session `json:"archived_sessions"`
		ArchivedOn       string     `json:"archived_on"`
	}{expired, now.Format("2006-01-02")}

	if err := l.store.SaveArchive(name, archive); err != nil {
		// Keep the sessions live rather than lose them.
		slog.Error("session archive failed, keeping sessions in live log",
			logfields.Count(len(expired)), logfields.Error(err))
		return false
	}
	l.sessions = recent
	return true
}

// OpenSession opens a session for a timer. An existing open session for
// the same timer is an invariant violation: callers must close-before-open.
func (l *Log) OpenSession(timerID, timerName string, at time.Time) (*Session, error) {
	if _, exists := l.open[timerID]; exists {
		return nil, errors.InternalError("session already open for timer").
			WithContext("timer_id", timerID)
	}
	s := newSession(timerID, timerName, at)
	l.sessions = append(l.sessions, s)
	l.open[timerID] = s
	return s, nil
}

// CloseSession closes the open session for a timer, returning the closed
// record. It returns nil when the timer has no open session.
func (l *Log) CloseSession(timerID string, at time.Time) *Session {
	s, exists := l.open[timerID]
	if !exists {
		return nil
	}
	s.close(at)
	delete(l.open, timerID)
	return s
}

// OpenFor returns the open session for a timer, or nil.
func (l *Log) OpenFor(timerID string) *Session { return l.open[timerID] }

// Sessions returns the live session records. Callers must not mutate them.
func (l *Log) Sessions() []*Session { return l.sessions }

// RecordTick advances the in-memory last-tick marker. The marker reaches
// disk with the next Persist.
func (l *Log) RecordTick(at time.Time) { l.lastTick = at }

// LastTickAt returns the last observed tick time.
func (l *Log) LastTickAt() time.Time { return l.lastTick }

// Persist writes the sessions collection and the last-tick marker.
func (l *Log) Persist() error {
	if err := l.store.Save(store.CollectionSessions, &Document{Sessions: l.sessions}); err != nil {
		return err
	}
	return l.store.Save(store.CollectionLastTick, &LastTick{At: l.lastTick})
}

// ResetAll destroys all session history. Irreversible.
func (l *Log) ResetAll() error {
	prev := l.snapshot()
	l.sessions = nil
	l.open = make(map[string]*Session)
	if err := l.Persist(); err != nil {
		l.restore(prev)
		return err
	}
	return nil
}

// logState captures the log for rollback when a persist fails mid-operation.
type logState struct {
	sessions []*Session
	open     map[string]*Session
	lastTick time.Time
}

func (l *Log) snapshot() logState {
	sessions := make([]*Session, len(l.sessions))
	open := make(map[string]*Session, len(l.open))
	for i, s := range l.sessions {
		dup := *s
		if s.EndTime != nil {
			end := *s.EndTime
			dup.EndTime = &end
		}
		sessions[i] = &dup
		if dup.IsOpen() {
			open[dup.TimerID] = sessions[i]
		}
	}
	return logState{sessions: sessions, open: open, lastTick: l.lastTick}
}

func (l *Log) restore(s logState) {
	l.sessions = s.sessions
	l.open = s.open
	l.lastTick = s.lastTick
}

// Snapshot captures the current log state for rollback.
func (l *Log) Snapshot() any { return l.snapshot() }

// Restore reinstates a state captured by Snapshot.
func (l *Log) Restore(v any) {
	if s, ok := v.(logState); ok {
		l.restore(s)
	}
}

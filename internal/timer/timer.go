// Package timer owns the timer entities and every mutation operation on
// them: the command surface the UI layer calls into, and the tick-driven
// time accounting.
package timer

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// newTimerID assigns a stable identifier, never reused.
func newTimerID() string { return uuid.NewString() }

// Kind discriminates the two timer state machines.
type Kind string

const (
	// KindStopwatch counts up from zero while running.
	KindStopwatch Kind = "stopwatch"
	// KindCountdown counts down from a configured duration to zero.
	KindCountdown Kind = "countdown"
)

// valid reports whether k is a known kind.
func (k Kind) valid() bool { return k == KindStopwatch || k == KindCountdown }

// Timer is a named tracking unit.
type Timer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	IsRunning      bool  `json:"is_running"`
	ElapsedSeconds int64 `json:"elapsed_seconds"`
	// RemainingSeconds counts down to zero; unused for stopwatches.
	RemainingSeconds int64 `json:"remaining_seconds"`
	// InitialSeconds is the last configured countdown total, restored by Reset.
	InitialSeconds int64 `json:"initial_seconds"`

	IsFavorite bool      `json:"is_favorite"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConsumedSeconds reports accounted time: accumulated active time for a
// stopwatch, configured total minus remaining for a countdown.
func (t *Timer) ConsumedSeconds() int64 {
	if t.Kind == KindCountdown {
		return t.InitialSeconds - t.RemainingSeconds
	}
	return t.ElapsedSeconds
}

// Document is the persisted shape of the timers collection.
type Document struct {
	Timers []*Timer `json:"timers"`
}

// Validate checks the top-level shape after unmarshalling.
func (d *Document) Validate() error {
	for i, t := range d.Timers {
		if t == nil {
			return fmt.Errorf("timers[%d] is null", i)
		}
		if t.ID == "" {
			return fmt.Errorf("timers[%d] missing id", i)
		}
		if t.Name == "" {
			return fmt.Errorf("timers[%d] missing name", i)
		}
		if !t.Kind.valid() {
			return fmt.Errorf("timers[%d] has unknown kind %q", i, t.Kind)
		}
		if t.ElapsedSeconds < 0 || t.RemainingSeconds < 0 || t.InitialSeconds < 0 {
			return fmt.Errorf("timers[%d] has negative seconds", i)
		}
	}
	return nil
}

// Package session keeps the append-mostly ledger of work intervals and
// repairs records left open by abnormal shutdown.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is one contiguous interval during which a timer was running.
// Once closed it is immutable. It survives deletion of its timer as
// history, keyed by timer id.
type Session struct {
	ID              string     `json:"id"`
	TimerID         string     `json:"timer_id"`
	TimerName       string     `json:"timer_name"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"` // nil while open
	DurationSeconds int64      `json:"duration_seconds"`
}

// IsOpen reports whether the session has not been closed yet.
func (s *Session) IsOpen() bool { return s.EndTime == nil }

// close stamps the end time and derives the duration. End times before
// the start clamp to a zero-duration session.
func (s *Session) close(at time.Time) {
	if at.Before(s.StartTime) {
		at = s.StartTime
	}
	end := at
	s.EndTime = &end
	s.DurationSeconds = int64(end.Sub(s.StartTime) / time.Second)
}

func newSession(timerID, timerName string, at time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		TimerID:   timerID,
		TimerName: timerName,
		StartTime: at,
	}
}

// Document is the persisted shape of the sessions collection.
type Document struct {
	Sessions []*Session `json:"sessions"`
}

// Validate checks the top-level shape after unmarshalling.
func (d *Document) Validate() error {
	for i, s := range d.Sessions {
		if s == nil {
			return fmt.Errorf("sessions[%d] is null", i)
		}
		if s.ID == "" || s.TimerID == "" {
			return fmt.Errorf("sessions[%d] missing id or timer_id", i)
		}
		if s.StartTime.IsZero() {
			return fmt.Errorf("sessions[%d] missing start_time", i)
		}
	}
	return nil
}

// LastTick is the persisted marker of the last observed tick, stored
// alongside the log and used to reconcile sessions after a crash.
type LastTick struct {
	At time.Time `json:"at"`
}

// Package logfields defines canonical slog field name constants so log
// keys stay stable across packages.
package logfields

import "log/slog"

const (
	KeyTimerID    = "timer_id"
	KeyTimerName  = "timer_name"
	KeyKind       = "timer_kind"
	KeySessionID  = "session_id"
	KeyCollection = "collection"
	KeyPath       = "path"
	KeyCount      = "count"
	KeyDurationS  = "duration_s"
	KeyEventType  = "event_type"
	KeySubject    = "subject"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func TimerID(id string) slog.Attr     { return slog.String(KeyTimerID, id) }
func TimerName(n string) slog.Attr    { return slog.String(KeyTimerName, n) }
func Kind(k string) slog.Attr         { return slog.String(KeyKind, k) }
func SessionID(id string) slog.Attr   { return slog.String(KeySessionID, id) }
func Collection(c string) slog.Attr   { return slog.String(KeyCollection, c) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func DurationS(s int64) slog.Attr     { return slog.Int64(KeyDurationS, s) }
func EventType(t string) slog.Attr    { return slog.String(KeyEventType, t) }
func Subject(s string) slog.Attr      { return slog.String(KeySubject, s) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

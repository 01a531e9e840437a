package events

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Journal is a durable append-only record of timer events, backed by
// SQLite. It is history for audit and debugging; the JSON collections
// remain the source of truth for live state.
type Journal struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewJournal opens (or creates) the journal database. Use ":memory:" for
// an in-memory journal, or a file path for persistent storage.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	j := &Journal{db: db}
	if err := j.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return j, nil
}

func (j *Journal) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id TEXT NOT NULL,
		timer_id TEXT,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_timer_id ON events(timer_id);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_event_type ON events(event_type);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Append records an event.
func (j *Journal) Append(ctx context.Context, e Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx,
		"INSERT INTO events (event_id, timer_id, event_type, timestamp, payload) VALUES (?, ?, ?, ?, ?)",
		e.ID, e.TimerID, string(e.Type), e.Timestamp.Unix(), []byte(e.Payload),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ByTimer retrieves all events for a timer, oldest first.
func (j *Journal) ByTimer(ctx context.Context, timerID string) ([]Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.QueryContext(ctx,
		"SELECT event_id, timer_id, event_type, timestamp, payload FROM events WHERE timer_id = ? ORDER BY id",
		timerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Range retrieves events within a time range, oldest first.
func (j *Journal) Range(ctx context.Context, start, end time.Time) ([]Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.QueryContext(ctx,
		"SELECT event_id, timer_id, event_type, timestamp, payload FROM events WHERE timestamp >= ? AND timestamp <= ? ORDER BY id",
		start.Unix(), end.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e Event
		var eventType string
		var timestampUnix int64
		var payload []byte

		if err := rows.Scan(&e.ID, &e.TimerID, &eventType, &timestampUnix, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = Type(eventType)
		e.Timestamp = time.Unix(timestampUnix, 0)
		e.Payload = payload
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return events, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.db.Close()
}

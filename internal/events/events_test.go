package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewEvent(t *testing.T) {
	at := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	e := New(TimerStarted, "t1", at, map[string]any{"name": "Work"})

	if e.ID == "" {
		t.Error("event missing id")
	}
	if e.Type != TimerStarted || e.TimerID != "t1" || !e.Timestamp.Equal(at) {
		t.Errorf("event fields: %+v", e)
	}

	var payload map[string]string
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["name"] != "Work" {
		t.Errorf("payload = %+v", payload)
	}

	empty := New(DataReset, "", at, nil)
	if empty.Payload != nil {
		t.Errorf("nil payload should stay empty, got %s", empty.Payload)
	}
}

func TestNotifierFanOut(t *testing.T) {
	n := NewNotifier()

	var order []string
	n.Subscribe(func(e Event) { order = append(order, "first:"+string(e.Type)) })
	n.Subscribe(func(e Event) { order = append(order, "second:"+string(e.Type)) })

	n.Publish(New(TimerCreated, "t1", time.Now(), nil))
	n.Publish(New(TimerDeleted, "t1", time.Now(), nil))

	want := []string{
		"first:timer.created", "second:timer.created",
		"first:timer.deleted", "second:timer.deleted",
	}
	if len(order) != len(want) {
		t.Fatalf("deliveries = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("delivery[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestNotifierWithoutSubscribers(t *testing.T) {
	n := NewNotifier()
	// Publishing into the void must not panic.
	n.Publish(New(TimerCreated, "t1", time.Now(), nil))
}

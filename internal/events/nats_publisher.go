package events

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/RobDeGeorge/fathertime/internal/logfields"
)

// NATSPublisher forwards events to a NATS subject so external UI
// processes can react to state changes without polling the HTTP API.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to the NATS server.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("fathertime"))
	if err != nil {
		return nil, err
	}
	slog.Info("NATS publisher connected", logfields.Subject(subject))
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// Publish implements Subscriber. Delivery is best-effort: a publish
// failure is logged, never surfaced to the mutation that raised the event.
func (p *NATSPublisher) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("failed to marshal event for NATS", logfields.EventType(string(e.Type)), logfields.Error(err))
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		slog.Error("failed to publish event to NATS", logfields.EventType(string(e.Type)), logfields.Error(err))
	}
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		slog.Warn("NATS drain failed", logfields.Error(err))
	}
}

package domain

import (
	"encoding/json"
	"strings"
	"time"
)

const CurrentEventSchemaVersion = 1

const (
	EventSystemEventCreated  = "system_event.created"
	EventSystemEventResolved = "system_event.resolved"
)

// EventEnvelope is the notification published for System Event state changes.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	SchemaVersion int             `json:"schema_version"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Severity      Severity        `json:"severity"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Actor         string          `json:"actor"`
	Payload       json.RawMessage `json:"payload"`
}

// Topic routes notifications by severity, e.g. "system-events.critical.created".
func (e EventEnvelope) Topic() string {
	kind := e.EventType
	if i := strings.LastIndexByte(kind, '.'); i >= 0 {
		kind = kind[i+1:]
	}
	return "system-events." + strings.ToLower(string(e.Severity)) + "." + kind
}

type OutboxEvent struct {
	ID            int64
	EventID       string
	Topic         string
	PayloadJSON   json.RawMessage
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DispatchedAt  *time.Time
}

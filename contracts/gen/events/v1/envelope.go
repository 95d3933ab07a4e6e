package v1

import (
	"encoding/json"
	"time"
)

// Envelope is the versioned event envelope published on the lifecycle change
// feed. Fields are append-only; consumers ignore what they do not know.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Sequence         int64           `json:"sequence"`
	Data             json.RawMessage `json:"data"`
}

// LifecycleEventData is the Data payload of request lifecycle envelopes.
type LifecycleEventData struct {
	RequestID   string `json:"request_id"`
	Radicado    string `json:"radicado"`
	State       string `json:"state"`
	FromActorID string `json:"from_actor_id"`
	FromRole    string `json:"from_role,omitempty"`
	ToActorID   string `json:"to_actor_id,omitempty"`
	ToRole      string `json:"to_role,omitempty"`
	Message     string `json:"message,omitempty"`
	DueAt       string `json:"due_at,omitempty"`
}

package ports

import (
	"context"
	"time"

	"cloud.google.com/go/civil"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
	contractsv1 "pqrsd/contracts/gen/events/v1"
)

// Transition is one committed lifecycle step. ExpectedVersion is the version
// read under the in-flight guard; the commit fails with ErrStaleVersion when
// the stored version differs.
type Transition struct {
	Request         entities.Request
	ExpectedVersion int64
	Event           entities.TraceEvent
	Outbox          *EventEnvelope
}

type Repository interface {
	CreateRequest(ctx context.Context, request entities.Request, created entities.TraceEvent, outbox *EventEnvelope) error
	GetRequest(ctx context.Context, requestID string) (entities.Request, error)
	GetRequestByRadicado(ctx context.Context, radicado string) (entities.Request, error)
	// CommitTransition persists state, audit entry and outbox row atomically.
	CommitTransition(ctx context.Context, transition Transition) error
	CountByState(ctx context.Context) (map[entities.State]int, error)
	ListOverdue(ctx context.Context, today civil.Date, limit int) ([]entities.Request, error)
}

// AuditTrail is append-only. History returns a consistent ordered prefix and
// LastSequence its head, or 0 for an unknown request.
type AuditTrail interface {
	Append(ctx context.Context, event entities.TraceEvent) error
	History(ctx context.Context, requestID string) ([]entities.TraceEvent, error)
	LastSequence(ctx context.Context, requestID string) (int64, error)
}

// AttachmentStore turns uploaded content into an opaque reference.
type AttachmentStore interface {
	Put(ctx context.Context, fileName string, content []byte) (string, error)
}

// IdentityResolver maps transport credentials to an authenticated actor.
type IdentityResolver interface {
	Resolve(ctx context.Context, actorID string, role string) (entities.Actor, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type RadicadoGenerator interface {
	NextRadicado(ctx context.Context, issuedAt time.Time) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

// TransitionObserver receives lifecycle telemetry. Implementations must not block.
type TransitionObserver interface {
	ObserveTransition(event entities.EventType, result string)
	ObserveDrop()
	ObserveOverdue(count int)
}

type NopObserver struct{}

func (NopObserver) ObserveTransition(entities.EventType, string) {}
func (NopObserver) ObserveDrop()                                 {}
func (NopObserver) ObserveOverdue(int)                           {}

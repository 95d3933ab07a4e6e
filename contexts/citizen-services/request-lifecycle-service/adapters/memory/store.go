package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
	domainerrors "pqrsd/contexts/citizen-services/request-lifecycle-service/domain/errors"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/ports"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	position  int64
	published bool
}

// Store is the in-memory repository. It commits request state, audit entry
// and outbox row under one lock so a transition is all-or-nothing.
type Store struct {
	mu sync.RWMutex

	requests   map[string]entities.Request
	byRadicado map[string]string
	outbox     map[string]outboxRecord
	outboxSeq  int64
	radicados  map[int]int64

	audit *AuditLog
}

func NewStore(audit *AuditLog) *Store {
	if audit == nil {
		audit = NewAuditLog()
	}
	return &Store{
		requests:   make(map[string]entities.Request),
		byRadicado: make(map[string]string),
		outbox:     make(map[string]outboxRecord),
		radicados:  make(map[int]int64),
		audit:      audit,
	}
}

func (s *Store) Audit() *AuditLog {
	return s.audit
}

func (s *Store) CreateRequest(
	ctx context.Context,
	request entities.Request,
	created entities.TraceEvent,
	outbox *ports.EventEnvelope,
) error {
	if !request.ValidateCreate() || created.EventType != entities.EventCreated || created.RequestID != request.ID {
		return domainerrors.ErrInvalidRequestInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[request.ID]; exists {
		return domainerrors.ErrConflict
	}
	if _, exists := s.byRadicado[request.Radicado]; exists {
		return domainerrors.ErrDuplicateRadicado
	}
	var payload []byte
	if outbox != nil {
		encoded, err := json.Marshal(outbox)
		if err != nil {
			return err
		}
		payload = encoded
	}
	if err := s.audit.Append(ctx, created); err != nil {
		return err
	}
	s.requests[request.ID] = request.Clone()
	s.byRadicado[request.Radicado] = request.ID
	if outbox != nil {
		s.appendOutboxLocked(*outbox, payload)
	}
	return nil
}

func (s *Store) GetRequest(_ context.Context, requestID string) (entities.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[strings.TrimSpace(requestID)]
	if !ok {
		return entities.Request{}, domainerrors.ErrNotFound
	}
	return request.Clone(), nil
}

func (s *Store) GetRequestByRadicado(_ context.Context, radicado string) (entities.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	requestID, ok := s.byRadicado[strings.TrimSpace(radicado)]
	if !ok {
		return entities.Request{}, domainerrors.ErrNotFound
	}
	return s.requests[requestID].Clone(), nil
}

func (s *Store) CommitTransition(ctx context.Context, transition ports.Transition) error {
	next := transition.Request
	if transition.Event.RequestID != next.ID || transition.Event.Sequence != next.Version {
		return domainerrors.ErrMalformedTraceEvent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.requests[next.ID]
	if !ok {
		return domainerrors.ErrNotFound
	}
	if current.Version != transition.ExpectedVersion || next.Version != current.Version+1 {
		return domainerrors.ErrStaleVersion
	}
	var payload []byte
	if transition.Outbox != nil {
		encoded, err := json.Marshal(transition.Outbox)
		if err != nil {
			return err
		}
		payload = encoded
	}
	if err := s.audit.Append(ctx, transition.Event); err != nil {
		return err
	}
	s.requests[next.ID] = next.Clone()
	if transition.Outbox != nil {
		s.appendOutboxLocked(*transition.Outbox, payload)
	}
	return nil
}

func (s *Store) CountByState(_ context.Context) (map[entities.State]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[entities.State]int, len(entities.AllStates))
	for _, request := range s.requests {
		counts[request.State]++
	}
	return counts, nil
}

// ListOverdue returns open requests due strictly before today, oldest first.
func (s *Store) ListOverdue(_ context.Context, today civil.Date, limit int) ([]entities.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Request, 0)
	for _, request := range s.requests {
		if request.DueAt == nil || request.State.Terminal() {
			continue
		}
		if request.DueAt.Before(today) {
			items = append(items, request.Clone())
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if *items[i].DueAt == *items[j].DueAt {
			return items[i].Radicado < items[j].Radicado
		}
		return items[i].DueAt.Before(*items[j].DueAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) NextRadicado(_ context.Context, issuedAt time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	year := issuedAt.Year()
	s.radicados[year]++
	return FormatRadicado(year, s.radicados[year]), nil
}

// FormatRadicado renders the public tracking code PQRSD-YYYY-NNNNNN.
func FormatRadicado(year int, serial int64) string {
	return fmt.Sprintf("PQRSD-%04d-%06d", year, serial)
}

func (s *Store) appendOutboxLocked(envelope ports.EventEnvelope, payload []byte) {
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok && bytes.Equal(existing.message.Payload, payload) {
		return
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outboxSeq++
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
		position: s.outboxSeq,
	}
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].position < rows[j].position
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.message)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrNotFound
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

package memory

import (
	"context"
	"strings"
	"sync"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
	domainerrors "pqrsd/contexts/citizen-services/request-lifecycle-service/domain/errors"
)

type auditStream struct {
	mu     sync.RWMutex
	events []entities.TraceEvent
}

// AuditLog is an append-only trace store with one lock per request stream, so
// appends to different requests never contend.
type AuditLog struct {
	mu      sync.Mutex
	streams map[string]*auditStream
}

func NewAuditLog() *AuditLog {
	return &AuditLog{streams: make(map[string]*auditStream)}
}

func (l *AuditLog) stream(requestID string, create bool) *auditStream {
	l.mu.Lock()
	defer l.mu.Unlock()
	stream, ok := l.streams[requestID]
	if !ok && create {
		stream = &auditStream{}
		l.streams[requestID] = stream
	}
	return stream
}

// Append accepts only the next sequence of the stream.
func (l *AuditLog) Append(_ context.Context, event entities.TraceEvent) error {
	if !event.Validate() {
		return domainerrors.ErrMalformedTraceEvent
	}
	stream := l.stream(strings.TrimSpace(event.RequestID), true)

	stream.mu.Lock()
	defer stream.mu.Unlock()
	if event.Sequence != int64(len(stream.events))+1 {
		return domainerrors.ErrOutOfOrderTraceEvent
	}
	stream.events = append(stream.events, event.Clone())
	return nil
}

// History returns a copy of the stream; later appends never alias it.
func (l *AuditLog) History(_ context.Context, requestID string) ([]entities.TraceEvent, error) {
	stream := l.stream(strings.TrimSpace(requestID), false)
	if stream == nil {
		return []entities.TraceEvent{}, nil
	}

	stream.mu.RLock()
	defer stream.mu.RUnlock()
	out := make([]entities.TraceEvent, 0, len(stream.events))
	for _, event := range stream.events {
		out = append(out, event.Clone())
	}
	return out, nil
}

func (l *AuditLog) LastSequence(_ context.Context, requestID string) (int64, error) {
	return int64(l.Len(requestID)), nil
}

func (l *AuditLog) Len(requestID string) int {
	stream := l.stream(strings.TrimSpace(requestID), false)
	if stream == nil {
		return 0
	}
	stream.mu.RLock()
	defer stream.mu.RUnlock()
	return len(stream.events)
}

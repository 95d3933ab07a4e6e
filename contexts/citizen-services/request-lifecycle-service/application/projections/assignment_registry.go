package projections

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	application "pqrsd/contexts/citizen-services/request-lifecycle-service/application"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
	domainerrors "pqrsd/contexts/citizen-services/request-lifecycle-service/domain/errors"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/services"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/ports"
)

// AssignmentRegistry answers who holds a request and who was its last
// Responsible. Entries are a cache over the audit trail: a miss, a sequence
// gap or a cached entry behind the trail head triggers a rebuild from history.
type AssignmentRegistry struct {
	audit  ports.AuditTrail
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]services.Assignment
}

func NewAssignmentRegistry(audit ports.AuditTrail, logger *slog.Logger) *AssignmentRegistry {
	return &AssignmentRegistry{
		audit:  audit,
		logger: application.ResolveLogger(logger),
		cache:  make(map[string]services.Assignment),
	}
}

// Apply folds a committed event into the cache. Events that do not extend the
// cached sequence by exactly one evict the entry, and so does finalization:
// a finalized request never changes hands again.
func (r *AssignmentRegistry) Apply(event entities.TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.EventType == entities.EventFinalized {
		delete(r.cache, event.RequestID)
		return
	}

	current, ok := r.cache[event.RequestID]
	if !ok {
		if event.EventType == entities.EventCreated && event.Sequence == 1 {
			current = services.Assignment{}
		} else {
			return
		}
	}
	if event.Sequence <= current.LastSequence {
		return
	}
	next, err := services.ApplyAssignment(current, event)
	if err != nil {
		delete(r.cache, event.RequestID)
		r.logger.Debug("assignment cache evicted",
			"event", "assignment_cache_evicted",
			"module", "citizen-services/request-lifecycle-service",
			"layer", "application",
			"request_id", event.RequestID,
			"sequence", event.Sequence,
			"cached_sequence", current.LastSequence,
		)
		return
	}
	r.cache[event.RequestID] = next
}

func (r *AssignmentRegistry) CurrentHolder(ctx context.Context, requestID string) (*entities.Holder, error) {
	assignment, err := r.lookupAtHead(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return assignment.Current, nil
}

func (r *AssignmentRegistry) PreviousResponsible(ctx context.Context, requestID string) (*entities.Actor, error) {
	assignment, err := r.lookupAtHead(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return assignment.PreviousResponsible, nil
}

// lookupAtHead pins the lookup to the trail head so commits that never reached
// Apply, such as those of another replica, are still observed.
func (r *AssignmentRegistry) lookupAtHead(ctx context.Context, requestID string) (services.Assignment, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return services.Assignment{}, domainerrors.ErrNotFound
	}
	head, err := r.audit.LastSequence(ctx, requestID)
	if err != nil {
		return services.Assignment{}, err
	}
	if head == 0 {
		return services.Assignment{}, domainerrors.ErrNotFound
	}
	return r.Lookup(ctx, requestID, head)
}

// Lookup returns the projection. A positive atSequence forces a rebuild when
// the cached entry is at a different sequence.
func (r *AssignmentRegistry) Lookup(ctx context.Context, requestID string, atSequence int64) (services.Assignment, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return services.Assignment{}, domainerrors.ErrNotFound
	}

	r.mu.Lock()
	cached, ok := r.cache[requestID]
	r.mu.Unlock()
	if ok && (atSequence <= 0 || cached.LastSequence == atSequence) {
		return cached, nil
	}

	history, err := r.audit.History(ctx, requestID)
	if err != nil {
		return services.Assignment{}, err
	}
	if len(history) == 0 {
		return services.Assignment{}, domainerrors.ErrNotFound
	}
	rebuilt, err := services.ProjectAssignment(history)
	if err != nil {
		return services.Assignment{}, err
	}

	r.mu.Lock()
	if existing, ok := r.cache[requestID]; !ok || existing.LastSequence <= rebuilt.LastSequence {
		r.cache[requestID] = rebuilt
	}
	r.mu.Unlock()
	return rebuilt, nil
}

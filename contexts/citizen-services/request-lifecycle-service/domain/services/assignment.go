package services

import (
	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
	domainerrors "pqrsd/contexts/citizen-services/request-lifecycle-service/domain/errors"
)

// Assignment is the holder projection of one request's audit trail.
type Assignment struct {
	Current             *entities.Holder
	PreviousResponsible *entities.Actor
	LastSequence        int64
}

func (a Assignment) clone() Assignment {
	out := a
	if a.Current != nil {
		holder := *a.Current
		out.Current = &holder
	}
	if a.PreviousResponsible != nil {
		actor := *a.PreviousResponsible
		out.PreviousResponsible = &actor
	}
	return out
}

// ApplyAssignment folds one event onto a projection. Events must arrive in
// sequence order without gaps.
func ApplyAssignment(current Assignment, event entities.TraceEvent) (Assignment, error) {
	if !event.Validate() {
		return current, domainerrors.ErrMalformedTraceEvent
	}
	if event.Sequence != current.LastSequence+1 {
		return current, domainerrors.ErrOutOfOrderTraceEvent
	}

	next := current.clone()
	next.LastSequence = event.Sequence
	switch event.EventType {
	case entities.EventAssigned, entities.EventReassigned:
		if event.ToActor == nil {
			return current, domainerrors.ErrMalformedTraceEvent
		}
		responsible := entities.Actor{ID: event.ToActor.ID, Role: entities.RoleResponsible}
		next.PreviousResponsible = &responsible
		next.Current = &entities.Holder{ActorID: responsible.ID, Role: entities.RoleResponsible}
	case entities.EventReturned:
		target := next.PreviousResponsible
		if event.ToActor != nil {
			target = &entities.Actor{ID: event.ToActor.ID, Role: entities.RoleResponsible}
		}
		if target == nil {
			next.Current = nil
			break
		}
		next.Current = &entities.Holder{ActorID: target.ID, Role: entities.RoleResponsible}
	default:
		next.Current = nil
	}
	return next, nil
}

// ProjectAssignment rebuilds the projection from a complete ordered history.
func ProjectAssignment(history []entities.TraceEvent) (Assignment, error) {
	var out Assignment
	for _, event := range history {
		next, err := ApplyAssignment(out, event)
		if err != nil {
			return Assignment{}, err
		}
		out = next
	}
	return out, nil
}

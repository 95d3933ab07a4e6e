package services

import (
	"fmt"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
	domainerrors "pqrsd/contexts/citizen-services/request-lifecycle-service/domain/errors"
)

// TransitionRule is one row of the lifecycle table.
type TransitionRule struct {
	Event entities.EventType
	From  []entities.State
	Roles []entities.Role
	// HolderScoped rules additionally require the actor to be the current holder.
	HolderScoped bool
	To           entities.State
}

var transitionRules = map[entities.EventType]TransitionRule{
	entities.EventAssigned: {
		Event: entities.EventAssigned,
		From:  []entities.State{entities.StatePending},
		Roles: []entities.Role{entities.RoleAssigner},
		To:    entities.StateAssigned,
	},
	entities.EventReassigned: {
		Event: entities.EventReassigned,
		From:  []entities.State{entities.StateAssigned},
		Roles: []entities.Role{entities.RoleAssigner, entities.RoleAdmin},
		To:    entities.StateAssigned,
	},
	entities.EventSubmitted: {
		Event:        entities.EventSubmitted,
		From:         []entities.State{entities.StateAssigned, entities.StateReturned},
		Roles:        []entities.Role{entities.RoleResponsible},
		HolderScoped: true,
		To:           entities.StateInReview,
	},
	entities.EventApproved: {
		Event: entities.EventApproved,
		From:  []entities.State{entities.StateInReview},
		Roles: []entities.Role{entities.RoleReviewer},
		To:    entities.StateApproved,
	},
	entities.EventReturned: {
		Event: entities.EventReturned,
		From:  []entities.State{entities.StateInReview},
		Roles: []entities.Role{entities.RoleReviewer},
		To:    entities.StateReturned,
	},
	entities.EventSigned: {
		Event: entities.EventSigned,
		From:  []entities.State{entities.StateApproved},
		Roles: []entities.Role{entities.RoleSigner},
		To:    entities.StateSigned,
	},
	entities.EventFinalized: {
		Event: entities.EventFinalized,
		From:  []entities.State{entities.StateSigned},
		Roles: []entities.Role{entities.RoleFinalizer},
		To:    entities.StateFinalized,
	},
}

// RuleFor returns the table row for a transition event. Created has no row;
// intake is not a transition between states.
func RuleFor(event entities.EventType) (TransitionRule, bool) {
	rule, ok := transitionRules[event]
	return rule, ok
}

// AuthorizeTransition checks state before identity so a request in the wrong
// state reports InvalidState regardless of who asks.
func AuthorizeTransition(req entities.Request, event entities.EventType, actor entities.Actor) (TransitionRule, error) {
	rule, ok := RuleFor(event)
	if !ok {
		return TransitionRule{}, fmt.Errorf("%w: unknown transition %q", domainerrors.ErrInvalidRequestInput, event)
	}
	if !containsState(rule.From, req.State) {
		return TransitionRule{}, fmt.Errorf("%w: cannot apply %s to a %s request", domainerrors.ErrInvalidState, event, req.State)
	}
	if actor.Anonymous() {
		return TransitionRule{}, domainerrors.ErrMissingActor
	}
	if !containsRole(rule.Roles, actor.Role) {
		return TransitionRule{}, fmt.Errorf("%w: %s cannot apply %s", domainerrors.ErrRoleNotAllowed, actor.Role, event)
	}
	if rule.HolderScoped && !req.HeldBy(actor) {
		return TransitionRule{}, domainerrors.ErrNotCurrentHolder
	}
	return rule, nil
}

func containsState(states []entities.State, target entities.State) bool {
	for _, state := range states {
		if state == target {
			return true
		}
	}
	return false
}

func containsRole(roles []entities.Role, target entities.Role) bool {
	for _, role := range roles {
		if role == target {
			return true
		}
	}
	return false
}

package httpadapter

import (
	"context"
	"strings"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
)

// HeaderIdentity trusts actor headers set by the upstream gateway after it has
// verified the caller. Unknown roles resolve to an empty role so the engine
// rejects them after its state check.
type HeaderIdentity struct{}

func (HeaderIdentity) Resolve(_ context.Context, actorID string, role string) (entities.Actor, error) {
	actor := entities.Actor{ID: strings.TrimSpace(actorID)}
	if parsed, ok := entities.ParseRole(role); ok {
		actor.Role = parsed
	}
	return actor, nil
}

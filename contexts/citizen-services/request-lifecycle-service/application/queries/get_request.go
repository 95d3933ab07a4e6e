package queries

import (
	"context"
	"log/slog"
	"strings"

	application "pqrsd/contexts/citizen-services/request-lifecycle-service/application"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/application/projections"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
	domainerrors "pqrsd/contexts/citizen-services/request-lifecycle-service/domain/errors"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/ports"
)

type GetRequestUseCase struct {
	Requests ports.Repository
	Logger   *slog.Logger
}

func (uc GetRequestUseCase) Execute(ctx context.Context, requestID string) (entities.Request, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return entities.Request{}, domainerrors.ErrNotFound
	}
	return uc.Requests.GetRequest(ctx, requestID)
}

// GetByRadicadoUseCase backs the citizen tracking lookup.
type GetByRadicadoUseCase struct {
	Requests ports.Repository
	Logger   *slog.Logger
}

func (uc GetByRadicadoUseCase) Execute(ctx context.Context, radicado string) (entities.Request, error) {
	logger := application.ResolveLogger(uc.Logger)
	radicado = strings.ToUpper(strings.TrimSpace(radicado))
	if radicado == "" {
		return entities.Request{}, domainerrors.ErrNotFound
	}
	request, err := uc.Requests.GetRequestByRadicado(ctx, radicado)
	if err != nil {
		return entities.Request{}, err
	}
	logger.Debug("request looked up by radicado",
		"event", "request_radicado_lookup",
		"module", "citizen-services/request-lifecycle-service",
		"layer", "application",
		"request_id", request.ID,
		"radicado", radicado,
	)
	return request, nil
}

type CurrentHolderUseCase struct {
	Requests ports.Repository
	Registry *projections.AssignmentRegistry
}

// Execute returns nil when nobody holds the request.
func (uc CurrentHolderUseCase) Execute(ctx context.Context, requestID string) (*entities.Holder, error) {
	requestID = strings.TrimSpace(requestID)
	request, err := uc.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	assignment, err := uc.Registry.Lookup(ctx, requestID, request.Version)
	if err != nil {
		return nil, err
	}
	return assignment.Current, nil
}

package queries

import (
	"context"
	"log/slog"
	"strings"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/ports"
)

type HistoryUseCase struct {
	Requests ports.Repository
	Audit    ports.AuditTrail
	Logger   *slog.Logger
}

// Execute returns the audit trail in sequence order. Unknown ids are NotFound
// rather than an empty history.
func (uc HistoryUseCase) Execute(ctx context.Context, requestID string) ([]entities.TraceEvent, error) {
	requestID = strings.TrimSpace(requestID)
	if _, err := uc.Requests.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return uc.Audit.History(ctx, requestID)
}

package queries

import (
	"context"
	"log/slog"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/ports"
)

type StateCount struct {
	State entities.State
	Count int
}

type SummaryResult struct {
	Total  int
	States []StateCount
}

// SummaryUseCase counts requests per state. Every state is reported, in
// workflow order, including zero counts.
type SummaryUseCase struct {
	Requests ports.Repository
	Logger   *slog.Logger
}

func (uc SummaryUseCase) Execute(ctx context.Context) (SummaryResult, error) {
	counts, err := uc.Requests.CountByState(ctx)
	if err != nil {
		return SummaryResult{}, err
	}
	result := SummaryResult{States: make([]StateCount, 0, len(entities.AllStates))}
	for _, state := range entities.AllStates {
		count := counts[state]
		result.Total += count
		result.States = append(result.States, StateCount{State: state, Count: count})
	}
	return result, nil
}

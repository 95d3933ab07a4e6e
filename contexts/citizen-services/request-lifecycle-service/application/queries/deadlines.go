package queries

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
	domainerrors "pqrsd/contexts/citizen-services/request-lifecycle-service/domain/errors"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/services"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/ports"
)

// DeadlineStatusResult reports a request's deadline. HasDeadline is false
// until the first assignment; Enforced is false once the request is final.
type DeadlineStatusResult struct {
	RequestID   string
	State       entities.State
	HasDeadline bool
	Enforced    bool
	Status      services.DeadlineStatus
}

type DeadlineStatusUseCase struct {
	Requests ports.Repository
	Clock    ports.Clock
	Holidays services.HolidayCalendar
	Location *time.Location
	Logger   *slog.Logger
}

func (uc DeadlineStatusUseCase) Execute(ctx context.Context, requestID string) (DeadlineStatusResult, error) {
	request, err := uc.Requests.GetRequest(ctx, strings.TrimSpace(requestID))
	if err != nil {
		return DeadlineStatusResult{}, err
	}
	result := DeadlineStatusResult{
		RequestID: request.ID,
		State:     request.State,
	}
	if request.DueAt == nil {
		return result, nil
	}
	result.HasDeadline = true
	result.Enforced = !request.State.Terminal()
	today := civil.DateOf(uc.Clock.Now().In(resolveLocation(uc.Location)))
	result.Status = services.EvaluateDeadline(today, *request.DueAt, uc.Holidays)
	return result, nil
}

// PreviewDueDateUseCase is the dry-run form of the assignment deadline.
type PreviewDueDateUseCase struct {
	Clock    ports.Clock
	Holidays services.HolidayCalendar
	Location *time.Location
}

type PreviewDueDateResult struct {
	Start        civil.Date
	BusinessDays int
	DueAt        civil.Date
}

// Execute starts from today when start is nil.
func (uc PreviewDueDateUseCase) Execute(_ context.Context, start *civil.Date, businessDays int) (PreviewDueDateResult, error) {
	from := civil.DateOf(uc.Clock.Now().In(resolveLocation(uc.Location)))
	if start != nil {
		if !start.IsValid() {
			return PreviewDueDateResult{}, domainerrors.ErrInvalidDate
		}
		from = *start
	}
	due, err := services.ComputeDueDate(from, businessDays, uc.Holidays)
	if err != nil {
		return PreviewDueDateResult{}, err
	}
	return PreviewDueDateResult{Start: from, BusinessDays: businessDays, DueAt: due}, nil
}

func resolveLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

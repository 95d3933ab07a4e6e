package workers

import (
	"context"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"

	application "pqrsd/contexts/citizen-services/request-lifecycle-service/application"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/ports"
)

// DeadlineMonitor sweeps open requests whose due date has passed. It only
// reports; overdue requests keep their state.
type DeadlineMonitor struct {
	Requests  ports.Repository
	Clock     ports.Clock
	Location  *time.Location
	Observer  ports.TransitionObserver
	BatchSize int
	Logger    *slog.Logger
}

func (j DeadlineMonitor) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(j.Logger)
	now := time.Now()
	if j.Clock != nil {
		now = j.Clock.Now()
	}
	loc := j.Location
	if loc == nil {
		loc = time.UTC
	}
	limit := j.BatchSize
	if limit <= 0 {
		limit = 500
	}

	today := civil.DateOf(now.In(loc))
	overdue, err := j.Requests.ListOverdue(ctx, today, limit)
	if err != nil {
		logger.Error("deadline monitor sweep failed",
			"event", "request_deadline_sweep_failed",
			"module", "citizen-services/request-lifecycle-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}
	if j.Observer != nil {
		j.Observer.ObserveOverdue(len(overdue))
	}
	for _, request := range overdue {
		logger.Warn("request past due date",
			"event", "request_deadline_overdue",
			"module", "citizen-services/request-lifecycle-service",
			"layer", "worker",
			"request_id", request.ID,
			"radicado", request.Radicado,
			"state", string(request.State),
			"due_at", request.DueAt.String(),
			"overdue_calendar_days", today.DaysSince(*request.DueAt),
		)
	}
	return len(overdue), nil
}

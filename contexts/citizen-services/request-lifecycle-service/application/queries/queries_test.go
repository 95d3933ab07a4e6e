package queries

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/adapters/memory"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/application/projections"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
	domainerrors "pqrsd/contexts/citizen-services/request-lifecycle-service/domain/errors"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/services"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/ports"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

var (
	bogota   = time.FixedZone("COT", -5*60*60)
	seededAt = time.Date(2025, time.April, 10, 15, 0, 0, 0, time.UTC)
)

func holyWeek() services.HolidayCalendar {
	var dates []civil.Date
	for day := 14; day <= 18; day++ {
		dates = append(dates, civil.Date{Year: 2025, Month: time.April, Day: day})
	}
	return services.NewHolidayCalendar(dates...)
}

func seed(t *testing.T, store *memory.Store, id string, radicado string) entities.Request {
	t.Helper()
	request := entities.Request{
		ID:        id,
		Radicado:  radicado,
		Citizen:   entities.Citizen{FirstName: "Ana", LastName: "Gómez"},
		Message:   "petición",
		State:     entities.StatePending,
		CreatedAt: seededAt,
		UpdatedAt: seededAt,
		Version:   1,
	}
	require.NoError(t, store.CreateRequest(context.Background(), request, entities.TraceEvent{
		EventID:    id + "-created",
		RequestID:  id,
		Sequence:   1,
		OccurredAt: seededAt,
		EventType:  entities.EventCreated,
		FromActor:  entities.Actor{ID: "citizen", Role: entities.RoleCitizen},
	}, nil))
	return request
}

func advance(t *testing.T, store *memory.Store, current entities.Request, state entities.State, eventType entities.EventType, due *civil.Date) entities.Request {
	t.Helper()
	next := current.Clone()
	next.State = state
	next.Version = current.Version + 1
	if due != nil {
		next.DueAt = due
	}
	event := entities.TraceEvent{
		EventID:    current.ID + "-" + string(eventType),
		RequestID:  current.ID,
		Sequence:   next.Version,
		OccurredAt: seededAt,
		EventType:  eventType,
		FromActor:  entities.Actor{ID: "coord-1", Role: entities.RoleAssigner},
	}
	if eventType == entities.EventAssigned {
		event.ToActor = &entities.Actor{ID: "resp-7", Role: entities.RoleResponsible}
		next.Holder = &entities.Holder{ActorID: "resp-7", Role: entities.RoleResponsible}
	}
	require.NoError(t, store.CommitTransition(context.Background(), ports.Transition{
		Request:         next,
		ExpectedVersion: current.Version,
		Event:           event,
	}))
	return next
}

func TestDeadlineStatusBeforeAssignment(t *testing.T) {
	store := memory.NewStore(nil)
	seed(t, store, "req-1", "PQRSD-2025-000001")

	uc := DeadlineStatusUseCase{Requests: store, Clock: fixedClock{now: seededAt}, Holidays: holyWeek(), Location: bogota}
	result, err := uc.Execute(context.Background(), "req-1")
	require.NoError(t, err)
	assert.False(t, result.HasDeadline)
	assert.False(t, result.Enforced)
	assert.Equal(t, entities.StatePending, result.State)
}

func TestDeadlineStatusCountsRemainingBusinessDays(t *testing.T) {
	store := memory.NewStore(nil)
	request := seed(t, store, "req-1", "PQRSD-2025-000001")
	due := civil.Date{Year: 2025, Month: time.April, Day: 22}
	advance(t, store, request, entities.StateAssigned, entities.EventAssigned, &due)

	// 03:00 UTC on the 11th is still the 10th in Bogotá.
	clock := fixedClock{now: time.Date(2025, time.April, 11, 3, 0, 0, 0, time.UTC)}
	uc := DeadlineStatusUseCase{Requests: store, Clock: clock, Holidays: holyWeek(), Location: bogota}
	result, err := uc.Execute(context.Background(), "req-1")
	require.NoError(t, err)
	assert.True(t, result.HasDeadline)
	assert.True(t, result.Enforced)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.April, Day: 10}, result.Status.Today)
	assert.Equal(t, 3, result.Status.RemainingBusinessDays)
	assert.False(t, result.Status.Overdue)
}

func TestDeadlineStatusNotEnforcedWhenFinalized(t *testing.T) {
	store := memory.NewStore(nil)
	request := seed(t, store, "req-1", "PQRSD-2025-000001")
	due := civil.Date{Year: 2025, Month: time.April, Day: 22}
	assigned := advance(t, store, request, entities.StateAssigned, entities.EventAssigned, &due)
	advance(t, store, assigned, entities.StateFinalized, entities.EventFinalized, nil)

	clock := fixedClock{now: time.Date(2025, time.May, 2, 15, 0, 0, 0, time.UTC)}
	uc := DeadlineStatusUseCase{Requests: store, Clock: clock, Holidays: holyWeek(), Location: bogota}
	result, err := uc.Execute(context.Background(), "req-1")
	require.NoError(t, err)
	assert.True(t, result.HasDeadline)
	assert.False(t, result.Enforced)
	assert.True(t, result.Status.Overdue)
}

func TestDeadlineStatusUnknownRequest(t *testing.T) {
	uc := DeadlineStatusUseCase{Requests: memory.NewStore(nil), Clock: fixedClock{now: seededAt}}
	_, err := uc.Execute(context.Background(), "missing")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestPreviewDueDate(t *testing.T) {
	uc := PreviewDueDateUseCase{Clock: fixedClock{now: seededAt}, Holidays: holyWeek(), Location: bogota}

	result, err := uc.Execute(context.Background(), nil, 3)
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.April, Day: 10}, result.Start)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.April, Day: 22}, result.DueAt)

	start := civil.Date{Year: 2025, Month: time.March, Day: 3}
	result, err = uc.Execute(context.Background(), &start, 1)
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.March, Day: 4}, result.DueAt)

	invalid := civil.Date{Year: 2025, Month: time.February, Day: 30}
	_, err = uc.Execute(context.Background(), &invalid, 1)
	require.ErrorIs(t, err, domainerrors.ErrInvalidDate)

	_, err = uc.Execute(context.Background(), nil, 0)
	require.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestSummaryReportsEveryStateInOrder(t *testing.T) {
	store := memory.NewStore(nil)
	first := seed(t, store, "req-1", "PQRSD-2025-000001")
	seed(t, store, "req-2", "PQRSD-2025-000002")
	due := civil.Date{Year: 2025, Month: time.April, Day: 22}
	advance(t, store, first, entities.StateAssigned, entities.EventAssigned, &due)

	result, err := SummaryUseCase{Requests: store}.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	require.Len(t, result.States, len(entities.AllStates))
	for i, state := range entities.AllStates {
		assert.Equal(t, state, result.States[i].State)
	}
	assert.Equal(t, 1, result.States[0].Count)
	assert.Equal(t, 1, result.States[1].Count)
	assert.Equal(t, 0, result.States[6].Count)
}

func TestTrackingNormalizesRadicado(t *testing.T) {
	store := memory.NewStore(nil)
	seed(t, store, "req-1", "PQRSD-2025-000001")
	uc := GetByRadicadoUseCase{Requests: store}

	got, err := uc.Execute(context.Background(), "  pqrsd-2025-000001 ")
	require.NoError(t, err)
	assert.Equal(t, "req-1", got.ID)

	_, err = uc.Execute(context.Background(), "")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
	_, err = uc.Execute(context.Background(), "PQRSD-2025-999999")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestHistoryAndHolder(t *testing.T) {
	store := memory.NewStore(nil)
	request := seed(t, store, "req-1", "PQRSD-2025-000001")
	due := civil.Date{Year: 2025, Month: time.April, Day: 22}
	advance(t, store, request, entities.StateAssigned, entities.EventAssigned, &due)

	history, err := HistoryUseCase{Requests: store, Audit: store.Audit()}.Execute(context.Background(), "req-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, entities.EventCreated, history[0].EventType)
	assert.Equal(t, entities.EventAssigned, history[1].EventType)

	_, err = HistoryUseCase{Requests: store, Audit: store.Audit()}.Execute(context.Background(), "missing")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)

	registry := projections.NewAssignmentRegistry(store.Audit(), nil)
	holder, err := CurrentHolderUseCase{Requests: store, Registry: registry}.Execute(context.Background(), "req-1")
	require.NoError(t, err)
	require.NotNil(t, holder)
	assert.Equal(t, "resp-7", holder.ActorID)

	_, err = GetRequestUseCase{Requests: store}.Execute(context.Background(), " ")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

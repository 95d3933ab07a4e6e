package commands

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/adapters/memory"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/application/notifications"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/application/projections"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
	domainerrors "pqrsd/contexts/citizen-services/request-lifecycle-service/domain/errors"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/services"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/ports"
)

var bogota = time.FixedZone("COT", -5*60*60)

var (
	assigner    = entities.Actor{ID: "coord-1", Role: entities.RoleAssigner}
	admin       = entities.Actor{ID: "admin-1", Role: entities.RoleAdmin}
	responsible = entities.Actor{ID: "resp-7", Role: entities.RoleResponsible}
	reviewer    = entities.Actor{ID: "rev-1", Role: entities.RoleReviewer}
	signer      = entities.Actor{ID: "sig-1", Role: entities.RoleSigner}
	finalizer   = entities.Actor{ID: "fin-1", Role: entities.RoleFinalizer}
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type recordingObserver struct {
	mu      sync.Mutex
	results map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{results: make(map[string]int)}
}

func (o *recordingObserver) ObserveTransition(event entities.EventType, result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results[string(event)+"/"+result]++
}

func (o *recordingObserver) ObserveDrop()       {}
func (o *recordingObserver) ObserveOverdue(int) {}

func (o *recordingObserver) count(key string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.results[key]
}

type testEngine struct {
	engine     *LifecycleEngine
	store      *memory.Store
	registry   *projections.AssignmentRegistry
	dispatcher *notifications.Dispatcher
	observer   *recordingObserver
}

func holyWeek() services.HolidayCalendar {
	var dates []civil.Date
	for day := 14; day <= 18; day++ {
		dates = append(dates, civil.Date{Year: 2025, Month: time.April, Day: day})
	}
	return services.NewHolidayCalendar(dates...)
}

// 2025-04-11 03:00 UTC is still 2025-04-10 in Bogotá.
var testNow = time.Date(2025, time.April, 11, 3, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, wrap func(*memory.Store) ports.Repository) testEngine {
	t.Helper()
	store := memory.NewStore(nil)
	var requests ports.Repository = store
	if wrap != nil {
		requests = wrap(store)
	}
	observer := newRecordingObserver()
	registry := projections.NewAssignmentRegistry(store.Audit(), nil)
	dispatcher := notifications.NewDispatcher(8, observer, nil)
	engine := NewLifecycleEngine(EngineDependencies{
		Requests:    requests,
		Registry:    registry,
		Dispatcher:  dispatcher,
		Attachments: memory.NewAttachmentStore(),
		Clock:       fixedClock{now: testNow},
		IDGenerator: store,
		Radicados:   store,
		Holidays:    holyWeek(),
		Location:    bogota,
		Observer:    observer,
	})
	return testEngine{
		engine:     engine,
		store:      store,
		registry:   registry,
		dispatcher: dispatcher,
		observer:   observer,
	}
}

func pdf(name string) *AttachmentInput {
	return &AttachmentInput{FileName: name, Content: []byte("%PDF-1.7 " + name)}
}

func (te testEngine) create(t *testing.T) entities.Request {
	t.Helper()
	result, err := te.engine.Create(context.Background(), CreateCommand{
		Citizen: entities.Citizen{FirstName: "Ana", LastName: "Gómez", Email: "ana@example.co"},
		Message: "Solicito la poda del árbol frente a mi casa.",
	})
	require.NoError(t, err)
	return result.Request
}

func (te testEngine) assign(t *testing.T, requestID string) entities.Request {
	t.Helper()
	result, err := te.engine.Assign(context.Background(), AssignCommand{
		RequestID:     requestID,
		Actor:         assigner,
		ResponsibleID: responsible.ID,
		BusinessDays:  3,
	})
	require.NoError(t, err)
	return result.Request
}

func (te testEngine) submit(t *testing.T, requestID string) entities.Request {
	t.Helper()
	result, err := te.engine.SubmitResponse(context.Background(), SubmitResponseCommand{
		RequestID: requestID,
		Actor:     responsible,
		Draft:     pdf("respuesta.pdf"),
	})
	require.NoError(t, err)
	return result.Request
}

func (te testEngine) historyTypes(t *testing.T, requestID string) []entities.EventType {
	t.Helper()
	history, err := te.store.Audit().History(context.Background(), requestID)
	require.NoError(t, err)
	out := make([]entities.EventType, 0, len(history))
	for i, event := range history {
		assert.Equal(t, int64(i+1), event.Sequence)
		out = append(out, event.EventType)
	}
	return out
}

func TestCreateRegistersPendingRequest(t *testing.T) {
	te := newTestEngine(t, nil)
	result, err := te.engine.Create(context.Background(), CreateCommand{
		Citizen:    entities.Citizen{FirstName: "  Ana ", LastName: "Gómez"},
		Message:    "  Derecho de petición  ",
		Attachment: pdf("cedula.pdf"),
	})
	require.NoError(t, err)

	req := result.Request
	assert.Equal(t, entities.StatePending, req.State)
	assert.Equal(t, "PQRSD-2025-000001", req.Radicado)
	assert.Equal(t, int64(1), req.Version)
	assert.Nil(t, req.Holder)
	assert.Nil(t, req.DueAt)
	assert.Equal(t, "Ana", req.Citizen.FirstName)
	assert.Equal(t, "Derecho de petición", req.Message)
	assert.NotEmpty(t, req.Attachments.Citizen)

	assert.Equal(t, entities.EventCreated, result.Event.EventType)
	assert.Equal(t, int64(1), result.Event.Sequence)
	assert.Equal(t, DefaultIntakeActor, result.Event.FromActor)
	assert.Equal(t, []entities.EventType{entities.EventCreated}, te.historyTypes(t, req.ID))
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	te := newTestEngine(t, nil)
	_, err := te.engine.Create(context.Background(), CreateCommand{
		Citizen: entities.Citizen{FirstName: "Ana"},
		Message: "sin apellido",
	})
	require.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = te.engine.Create(context.Background(), CreateCommand{
		Citizen: entities.Citizen{FirstName: "Ana", LastName: "Gómez", Email: "no-es-correo"},
		Message: "correo inválido",
	})
	require.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = te.engine.Create(context.Background(), CreateCommand{
		Citizen: entities.Citizen{FirstName: "Ana", LastName: "Gómez"},
		Message: "   ",
	})
	require.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestFullLifecycleWithReturnCycle(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	req := te.create(t)

	assigned := te.assign(t, req.ID)
	require.NotNil(t, assigned.DueAt)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.April, Day: 22}, *assigned.DueAt)
	assert.True(t, assigned.HeldBy(responsible))

	inReview := te.submit(t, req.ID)
	assert.Equal(t, entities.StateInReview, inReview.State)
	assert.Nil(t, inReview.Holder)

	returned, err := te.engine.Return(ctx, ReturnCommand{RequestID: req.ID, Actor: reviewer, Reason: "Falta el soporte jurídico"})
	require.NoError(t, err)
	assert.Equal(t, entities.StateReturned, returned.Request.State)
	assert.True(t, returned.Request.HeldBy(responsible))
	require.NotNil(t, returned.Event.ToActor)
	assert.Equal(t, responsible.ID, returned.Event.ToActor.ID)

	// The existing draft carries over when no new one is attached.
	resubmitted, err := te.engine.SubmitResponse(ctx, SubmitResponseCommand{RequestID: req.ID, Actor: responsible})
	require.NoError(t, err)
	assert.Nil(t, resubmitted.Request.ReturnReason)
	assert.Len(t, resubmitted.Request.Attachments.Drafts, 1)

	_, err = te.engine.Approve(ctx, ApproveCommand{RequestID: req.ID, Actor: reviewer, Note: "Conforme"})
	require.NoError(t, err)
	signed, err := te.engine.Sign(ctx, SignCommand{RequestID: req.ID, Actor: signer, Signed: pdf("firmado.pdf")})
	require.NoError(t, err)
	assert.NotEmpty(t, signed.Request.Attachments.Signed)

	final, err := te.engine.Finalize(ctx, FinalizeCommand{RequestID: req.ID, Actor: finalizer, Evidence: pdf("acuse.pdf")})
	require.NoError(t, err)
	assert.Equal(t, entities.StateFinalized, final.Request.State)
	assert.Nil(t, final.Request.Holder)
	require.NotNil(t, final.Request.DueAt)
	assert.Equal(t, int64(8), final.Request.Version)
	assert.Equal(t, int64(8), final.Event.Sequence)

	assert.Equal(t, []entities.EventType{
		entities.EventCreated,
		entities.EventAssigned,
		entities.EventSubmitted,
		entities.EventReturned,
		entities.EventSubmitted,
		entities.EventApproved,
		entities.EventSigned,
		entities.EventFinalized,
	}, te.historyTypes(t, req.ID))
	assert.Equal(t, 1, te.observer.count("finalized/committed"))
}

func TestReturnRequiresReasonAndStoresItVerbatim(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	req := te.create(t)
	te.assign(t, req.ID)
	te.submit(t, req.ID)

	_, err := te.engine.Return(ctx, ReturnCommand{RequestID: req.ID, Actor: reviewer, Reason: " \t "})
	require.ErrorIs(t, err, domainerrors.ErrBlankReturnReason)
	current, err := te.store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StateInReview, current.State)
	assert.Equal(t, 3, te.store.Audit().Len(req.ID))

	reason := "  Revisar el numeral 2.\nCitar la norma.  "
	result, err := te.engine.Return(ctx, ReturnCommand{RequestID: req.ID, Actor: reviewer, Reason: reason})
	require.NoError(t, err)
	require.NotNil(t, result.Request.ReturnReason)
	assert.Equal(t, reason, *result.Request.ReturnReason)
	assert.Equal(t, reason, result.Event.MessageText())
}

func TestValidationPrecedesLookup(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	_, err := te.engine.Assign(ctx, AssignCommand{RequestID: "missing", Actor: assigner, BusinessDays: 3})
	require.ErrorIs(t, err, domainerrors.ErrResponsibleRequired)

	_, err = te.engine.Assign(ctx, AssignCommand{RequestID: "missing", Actor: assigner, ResponsibleID: "resp-7"})
	require.ErrorIs(t, err, domainerrors.ErrNonPositiveDays)

	_, err = te.engine.Return(ctx, ReturnCommand{RequestID: "missing", Actor: reviewer})
	require.ErrorIs(t, err, domainerrors.ErrBlankReturnReason)

	_, err = te.engine.Sign(ctx, SignCommand{RequestID: "missing", Actor: signer})
	require.ErrorIs(t, err, domainerrors.ErrAttachmentRequired)

	_, err = te.engine.Assign(ctx, AssignCommand{RequestID: "missing", Actor: assigner, ResponsibleID: "resp-7", BusinessDays: 3})
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestStateIsCheckedBeforeActor(t *testing.T) {
	te := newTestEngine(t, nil)
	req := te.create(t)

	_, err := te.engine.Approve(context.Background(), ApproveCommand{RequestID: req.ID})
	require.ErrorIs(t, err, domainerrors.ErrInvalidState)
	assert.Equal(t, 1, te.observer.count("approved/invalid_state"))
}

func TestUnauthorizedActorsLeaveStateUnchanged(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	req := te.create(t)

	_, err := te.engine.Assign(ctx, AssignCommand{RequestID: req.ID, Actor: admin, ResponsibleID: "resp-7", BusinessDays: 3})
	require.ErrorIs(t, err, domainerrors.ErrRoleNotAllowed)

	te.assign(t, req.ID)
	_, err = te.engine.SubmitResponse(ctx, SubmitResponseCommand{
		RequestID: req.ID,
		Actor:     entities.Actor{ID: "resp-8", Role: entities.RoleResponsible},
		Draft:     pdf("ajeno.pdf"),
	})
	require.ErrorIs(t, err, domainerrors.ErrNotCurrentHolder)

	current, err := te.store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StateAssigned, current.State)
	assert.Equal(t, int64(2), current.Version)
	assert.Empty(t, current.Attachments.Drafts)
}

func TestReassignKeepsDueDate(t *testing.T) {
	te := newTestEngine(t, nil)
	req := te.create(t)
	assigned := te.assign(t, req.ID)

	result, err := te.engine.Reassign(context.Background(), ReassignCommand{
		RequestID:     req.ID,
		Actor:         admin,
		ResponsibleID: "resp-9",
	})
	require.NoError(t, err)
	assert.Equal(t, *assigned.DueAt, *result.Request.DueAt)
	assert.Equal(t, "resp-9", result.Request.Holder.ActorID)

	holder, err := te.registry.CurrentHolder(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, "resp-9", holder.ActorID)

	// The previous responsible can no longer submit.
	_, err = te.engine.SubmitResponse(context.Background(), SubmitResponseCommand{RequestID: req.ID, Actor: responsible, Draft: pdf("x.pdf")})
	require.ErrorIs(t, err, domainerrors.ErrNotCurrentHolder)
}

func TestFirstSubmitNeedsDraft(t *testing.T) {
	te := newTestEngine(t, nil)
	req := te.create(t)
	te.assign(t, req.ID)

	_, err := te.engine.SubmitResponse(context.Background(), SubmitResponseCommand{RequestID: req.ID, Actor: responsible})
	require.ErrorIs(t, err, domainerrors.ErrAttachmentRequired)
}

func TestSignedRequestCannotBeSignedAgain(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	req := te.create(t)
	te.assign(t, req.ID)
	te.submit(t, req.ID)
	_, err := te.engine.Approve(ctx, ApproveCommand{RequestID: req.ID, Actor: reviewer})
	require.NoError(t, err)
	_, err = te.engine.Sign(ctx, SignCommand{RequestID: req.ID, Actor: signer, Signed: pdf("firmado.pdf")})
	require.NoError(t, err)

	_, err = te.engine.Sign(ctx, SignCommand{RequestID: req.ID, Actor: signer, Signed: pdf("otra.pdf")})
	require.ErrorIs(t, err, domainerrors.ErrInvalidState)
}

func TestCancelledContextCommitsNothing(t *testing.T) {
	te := newTestEngine(t, nil)
	req := te.create(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := te.engine.Assign(ctx, AssignCommand{RequestID: req.ID, Actor: assigner, ResponsibleID: "resp-7", BusinessDays: 3})
	require.ErrorIs(t, err, context.Canceled)

	current, err := te.store.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatePending, current.State)
	assert.Equal(t, 1, te.store.Audit().Len(req.ID))
}

// barrierRepository holds the first two snapshot reads until both callers
// have arrived, so both transitions start from the same version.
type barrierRepository struct {
	*memory.Store
	mu      sync.Mutex
	reads   int
	arrived sync.WaitGroup
}

func newBarrierRepository(store *memory.Store) *barrierRepository {
	repo := &barrierRepository{Store: store}
	repo.arrived.Add(2)
	return repo
}

func (r *barrierRepository) GetRequest(ctx context.Context, requestID string) (entities.Request, error) {
	r.mu.Lock()
	r.reads++
	n := r.reads
	r.mu.Unlock()
	if n <= 2 {
		r.arrived.Done()
		r.arrived.Wait()
	}
	return r.Store.GetRequest(ctx, requestID)
}

func TestConcurrentAssignCommitsOnce(t *testing.T) {
	var barrier *barrierRepository
	te := newTestEngine(t, func(store *memory.Store) ports.Repository {
		barrier = newBarrierRepository(store)
		return barrier
	})
	req := te.create(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"resp-7", "resp-9"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = te.engine.Assign(context.Background(), AssignCommand{
				RequestID:     req.ID,
				Actor:         assigner,
				ResponsibleID: id,
				BusinessDays:  3,
			})
		}()
	}
	wg.Wait()

	var committed, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, domainerrors.ErrConflict):
			conflicts++
			assert.True(t, domainerrors.IsRetryable(err))
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, committed)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 2, te.store.Audit().Len(req.ID))
	assert.Equal(t, 1, te.observer.count("assigned/conflict"))
}

func TestSequentialStaleAssignReportsInvalidState(t *testing.T) {
	te := newTestEngine(t, nil)
	req := te.create(t)
	te.assign(t, req.ID)

	_, err := te.engine.Assign(context.Background(), AssignCommand{RequestID: req.ID, Actor: assigner, ResponsibleID: "resp-9", BusinessDays: 3})
	require.ErrorIs(t, err, domainerrors.ErrInvalidState)
}

func TestCommittedTransitionsAreBroadcastInOrder(t *testing.T) {
	te := newTestEngine(t, nil)
	events, cancel := te.dispatcher.Subscribe(context.Background())
	defer cancel()

	req := te.create(t)
	te.assign(t, req.ID)
	_, err := te.engine.Approve(context.Background(), ApproveCommand{RequestID: req.ID, Actor: reviewer})
	require.Error(t, err)

	first := <-events
	second := <-events
	assert.Equal(t, entities.EventCreated, first.EventType)
	assert.Equal(t, entities.EventAssigned, second.EventType)
	assert.Equal(t, entities.StateAssigned, second.State)
	assert.Equal(t, int64(2), second.Sequence)
	select {
	case extra := <-events:
		t.Fatalf("rejected transition was broadcast: %+v", extra)
	default:
	}
}

func TestTransitionsWriteOutboxEnvelopes(t *testing.T) {
	te := newTestEngine(t, nil)
	req := te.create(t)
	te.assign(t, req.ID)

	pending, err := te.store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, TopicFor(entities.EventCreated), pending[0].EventType)
	assert.Equal(t, TopicFor(entities.EventAssigned), pending[1].EventType)
	assert.Equal(t, req.ID, pending[1].PartitionKey)
}

package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	application "pqrsd/contexts/citizen-services/request-lifecycle-service/application"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/application/notifications"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/application/projections"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
	domainerrors "pqrsd/contexts/citizen-services/request-lifecycle-service/domain/errors"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/services"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/ports"
)

const moduleName = "citizen-services/request-lifecycle-service"

// DefaultIntakeActor records public-form submissions in the audit trail.
var DefaultIntakeActor = entities.Actor{ID: "citizen", Role: entities.RoleCitizen}

type EngineDependencies struct {
	Requests    ports.Repository
	Registry    *projections.AssignmentRegistry
	Dispatcher  *notifications.Dispatcher
	Attachments ports.AttachmentStore
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Radicados   ports.RadicadoGenerator
	Holidays    services.HolidayCalendar
	Location    *time.Location
	Observer    ports.TransitionObserver
	Logger      *slog.Logger
}

// LifecycleEngine applies lifecycle transitions. Every operation checks input
// shape first, then existence, then state, then the actor.
type LifecycleEngine struct {
	deps     EngineDependencies
	inflight *inFlightGuard
	logger   *slog.Logger
}

func NewLifecycleEngine(deps EngineDependencies) *LifecycleEngine {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Observer == nil {
		deps.Observer = ports.NopObserver{}
	}
	return &LifecycleEngine{
		deps:     deps,
		inflight: newInFlightGuard(),
		logger:   application.ResolveLogger(deps.Logger),
	}
}

func (e *LifecycleEngine) Create(ctx context.Context, cmd CreateCommand) (TransitionResult, error) {
	cmd.Message = strings.TrimSpace(cmd.Message)
	cmd.Citizen = normalizeCitizen(cmd.Citizen)
	if err := validateInput(cmd); err != nil {
		e.deps.Observer.ObserveTransition(entities.EventCreated, resultLabel(err))
		return TransitionResult{}, err
	}
	intake := cmd.Intake
	if intake.Anonymous() {
		intake = DefaultIntakeActor
	}

	uploads := &uploadTracker{engine: e}
	var citizenRef string
	if !cmd.Attachment.empty() {
		ref, err := uploads.store(ctx, cmd.Attachment)
		if err != nil {
			return TransitionResult{}, err
		}
		citizenRef = ref
	}

	now := e.deps.Clock.Now().UTC()
	requestID, err := e.deps.IDGenerator.NewID(ctx)
	if err != nil {
		return TransitionResult{}, err
	}
	eventID, err := e.deps.IDGenerator.NewID(ctx)
	if err != nil {
		return TransitionResult{}, err
	}
	radicado, err := e.deps.Radicados.NextRadicado(ctx, now.In(e.deps.Location))
	if err != nil {
		return TransitionResult{}, err
	}

	request := entities.Request{
		ID:          requestID,
		Radicado:    radicado,
		Citizen:     cmd.Citizen,
		Message:     cmd.Message,
		Attachments: entities.Attachments{Citizen: citizenRef},
		State:       entities.StatePending,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	if !request.ValidateCreate() {
		return TransitionResult{}, domainerrors.ErrInvalidRequestInput
	}
	event := entities.TraceEvent{
		EventID:    eventID,
		RequestID:  requestID,
		Sequence:   1,
		OccurredAt: now,
		EventType:  entities.EventCreated,
		FromActor:  intake,
	}
	envelope, err := newLifecycleEnvelope(request, event)
	if err != nil {
		return TransitionResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return TransitionResult{}, err
	}
	if err := e.deps.Requests.CreateRequest(ctx, request, event, &envelope); err != nil {
		e.deps.Observer.ObserveTransition(entities.EventCreated, resultLabel(err))
		uploads.reportOrphans(requestID, entities.EventCreated, err)
		return TransitionResult{}, err
	}

	e.afterCommit(request, event)
	return TransitionResult{Request: request.Clone(), Event: event.Clone()}, nil
}

func (e *LifecycleEngine) Assign(ctx context.Context, cmd AssignCommand) (TransitionResult, error) {
	responsibleID := strings.TrimSpace(cmd.ResponsibleID)
	if responsibleID == "" {
		return e.reject(entities.EventAssigned, domainerrors.ErrResponsibleRequired)
	}
	if cmd.BusinessDays <= 0 {
		return e.reject(entities.EventAssigned, domainerrors.ErrNonPositiveDays)
	}

	return e.transition(ctx, transitionStep{
		requestID: cmd.RequestID,
		event:     entities.EventAssigned,
		actor:     cmd.Actor,
		prepare: func(context.Context, entities.Request, *uploadTracker) (mutation, error) {
			return func(req *entities.Request, now time.Time) (*entities.Actor, *string, error) {
				responsible := entities.Actor{ID: responsibleID, Role: entities.RoleResponsible}
				req.Holder = &entities.Holder{ActorID: responsibleID, Role: entities.RoleResponsible}
				if req.DueAt == nil {
					today := civil.DateOf(now.In(e.deps.Location))
					due, err := services.ComputeDueDate(today, cmd.BusinessDays, e.deps.Holidays)
					if err != nil {
						return nil, nil, err
					}
					req.DueAt = &due
				}
				return &responsible, nil, nil
			}, nil
		},
	})
}

// Reassign moves the request to another Responsible and keeps the due date.
func (e *LifecycleEngine) Reassign(ctx context.Context, cmd ReassignCommand) (TransitionResult, error) {
	responsibleID := strings.TrimSpace(cmd.ResponsibleID)
	if responsibleID == "" {
		return e.reject(entities.EventReassigned, domainerrors.ErrResponsibleRequired)
	}

	return e.transition(ctx, transitionStep{
		requestID: cmd.RequestID,
		event:     entities.EventReassigned,
		actor:     cmd.Actor,
		prepare: func(context.Context, entities.Request, *uploadTracker) (mutation, error) {
			return func(req *entities.Request, _ time.Time) (*entities.Actor, *string, error) {
				responsible := entities.Actor{ID: responsibleID, Role: entities.RoleResponsible}
				req.Holder = &entities.Holder{ActorID: responsibleID, Role: entities.RoleResponsible}
				return &responsible, nil, nil
			}, nil
		},
	})
}

func (e *LifecycleEngine) SubmitResponse(ctx context.Context, cmd SubmitResponseCommand) (TransitionResult, error) {
	note := optionalText(cmd.NoteToReviewer)

	return e.transition(ctx, transitionStep{
		requestID: cmd.RequestID,
		event:     entities.EventSubmitted,
		actor:     cmd.Actor,
		prepare: func(ctx context.Context, snapshot entities.Request, uploads *uploadTracker) (mutation, error) {
			var draftRef string
			if !cmd.Draft.empty() {
				ref, err := uploads.store(ctx, cmd.Draft)
				if err != nil {
					return nil, err
				}
				draftRef = ref
			} else if len(snapshot.Attachments.Drafts) == 0 {
				return nil, domainerrors.ErrAttachmentRequired
			}
			return func(req *entities.Request, _ time.Time) (*entities.Actor, *string, error) {
				if draftRef != "" {
					req.Attachments.Drafts = append(req.Attachments.Drafts, draftRef)
				} else if len(req.Attachments.Drafts) == 0 {
					return nil, nil, domainerrors.ErrAttachmentRequired
				}
				req.ReturnReason = nil
				req.Holder = nil
				return nil, note, nil
			}, nil
		},
	})
}

func (e *LifecycleEngine) Approve(ctx context.Context, cmd ApproveCommand) (TransitionResult, error) {
	note := optionalText(cmd.Note)

	return e.transition(ctx, transitionStep{
		requestID: cmd.RequestID,
		event:     entities.EventApproved,
		actor:     cmd.Actor,
		prepare: func(context.Context, entities.Request, *uploadTracker) (mutation, error) {
			return func(req *entities.Request, _ time.Time) (*entities.Actor, *string, error) {
				req.Holder = nil
				return nil, note, nil
			}, nil
		},
	})
}

// Return sends the request back to its last Responsible. The reason is stored
// verbatim in both the request and the audit entry.
func (e *LifecycleEngine) Return(ctx context.Context, cmd ReturnCommand) (TransitionResult, error) {
	if strings.TrimSpace(cmd.Reason) == "" {
		return e.reject(entities.EventReturned, domainerrors.ErrBlankReturnReason)
	}
	reason := cmd.Reason

	return e.transition(ctx, transitionStep{
		requestID: cmd.RequestID,
		event:     entities.EventReturned,
		actor:     cmd.Actor,
		prepare: func(ctx context.Context, snapshot entities.Request, _ *uploadTracker) (mutation, error) {
			assignment, err := e.deps.Registry.Lookup(ctx, snapshot.ID, snapshot.Version)
			if err != nil {
				return nil, err
			}
			if assignment.PreviousResponsible == nil {
				return nil, domainerrors.ErrNoPreviousResponsible
			}
			previous := *assignment.PreviousResponsible
			return func(req *entities.Request, _ time.Time) (*entities.Actor, *string, error) {
				req.Holder = &entities.Holder{ActorID: previous.ID, Role: entities.RoleResponsible}
				stored := reason
				req.ReturnReason = &stored
				message := reason
				to := previous
				return &to, &message, nil
			}, nil
		},
	})
}

func (e *LifecycleEngine) Sign(ctx context.Context, cmd SignCommand) (TransitionResult, error) {
	if cmd.Signed.empty() {
		return e.reject(entities.EventSigned, domainerrors.ErrAttachmentRequired)
	}

	return e.transition(ctx, transitionStep{
		requestID: cmd.RequestID,
		event:     entities.EventSigned,
		actor:     cmd.Actor,
		prepare: func(ctx context.Context, snapshot entities.Request, uploads *uploadTracker) (mutation, error) {
			if snapshot.Attachments.Signed != "" {
				return nil, domainerrors.ErrAttachmentAlreadySet
			}
			ref, err := uploads.store(ctx, cmd.Signed)
			if err != nil {
				return nil, err
			}
			return func(req *entities.Request, _ time.Time) (*entities.Actor, *string, error) {
				if req.Attachments.Signed != "" {
					return nil, nil, domainerrors.ErrAttachmentAlreadySet
				}
				req.Attachments.Signed = ref
				req.Holder = nil
				return nil, nil, nil
			}, nil
		},
	})
}

// Finalize records the notification evidence. The due date is kept for the
// record but no longer enforced.
func (e *LifecycleEngine) Finalize(ctx context.Context, cmd FinalizeCommand) (TransitionResult, error) {
	if cmd.Evidence.empty() {
		return e.reject(entities.EventFinalized, domainerrors.ErrAttachmentRequired)
	}

	return e.transition(ctx, transitionStep{
		requestID: cmd.RequestID,
		event:     entities.EventFinalized,
		actor:     cmd.Actor,
		prepare: func(ctx context.Context, snapshot entities.Request, uploads *uploadTracker) (mutation, error) {
			if snapshot.Attachments.Evidence != "" {
				return nil, domainerrors.ErrAttachmentAlreadySet
			}
			ref, err := uploads.store(ctx, cmd.Evidence)
			if err != nil {
				return nil, err
			}
			return func(req *entities.Request, _ time.Time) (*entities.Actor, *string, error) {
				if req.Attachments.Evidence != "" {
					return nil, nil, domainerrors.ErrAttachmentAlreadySet
				}
				req.Attachments.Evidence = ref
				req.Holder = nil
				return nil, nil, nil
			}, nil
		},
	})
}

// mutation edits a cloned request under the in-flight guard and returns the
// audit entry's target actor and message.
type mutation func(req *entities.Request, now time.Time) (*entities.Actor, *string, error)

type transitionStep struct {
	requestID string
	event     entities.EventType
	actor     entities.Actor
	// prepare runs outside the guard; slow I/O such as uploads belongs here.
	prepare func(ctx context.Context, snapshot entities.Request, uploads *uploadTracker) (mutation, error)
}

func (e *LifecycleEngine) transition(ctx context.Context, step transitionStep) (TransitionResult, error) {
	uploads := &uploadTracker{engine: e}
	result, err := e.runTransition(ctx, step, uploads)
	if err != nil {
		e.deps.Observer.ObserveTransition(step.event, resultLabel(err))
		uploads.reportOrphans(strings.TrimSpace(step.requestID), step.event, err)
		if errors.Is(err, domainerrors.ErrConflict) {
			e.logger.Warn("lifecycle transition conflict",
				"event", "request_transition_conflict",
				"module", moduleName,
				"layer", "application",
				"request_id", step.requestID,
				"transition", string(step.event),
				"actor_id", step.actor.ID,
				"error", err.Error(),
			)
		}
		return TransitionResult{}, err
	}
	e.afterCommit(result.Request, result.Event)
	return result, nil
}

func (e *LifecycleEngine) runTransition(ctx context.Context, step transitionStep, uploads *uploadTracker) (TransitionResult, error) {
	requestID := strings.TrimSpace(step.requestID)
	actor := entities.Actor{ID: strings.TrimSpace(step.actor.ID), Role: step.actor.Role}

	snapshot, err := e.deps.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return TransitionResult{}, err
	}
	if _, err := services.AuthorizeTransition(snapshot, step.event, actor); err != nil {
		return TransitionResult{}, err
	}
	mutate, err := step.prepare(ctx, snapshot, uploads)
	if err != nil {
		return TransitionResult{}, err
	}

	release, ok := e.inflight.tryAcquire(requestID)
	if !ok {
		return TransitionResult{}, domainerrors.ErrTransitionInFlight
	}
	defer release()

	current, err := e.deps.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return TransitionResult{}, err
	}
	if current.Version != snapshot.Version {
		return TransitionResult{}, domainerrors.ErrStaleVersion
	}
	rule, err := services.AuthorizeTransition(current, step.event, actor)
	if err != nil {
		return TransitionResult{}, err
	}

	now := e.deps.Clock.Now().UTC()
	next := current.Clone()
	toActor, message, err := mutate(&next, now)
	if err != nil {
		return TransitionResult{}, err
	}
	next.State = rule.To
	next.UpdatedAt = now
	next.Version = current.Version + 1

	eventID, err := e.deps.IDGenerator.NewID(ctx)
	if err != nil {
		return TransitionResult{}, err
	}
	event := entities.TraceEvent{
		EventID:    eventID,
		RequestID:  next.ID,
		Sequence:   next.Version,
		OccurredAt: now,
		EventType:  step.event,
		FromActor:  actor,
		ToActor:    toActor,
		Message:    message,
	}
	envelope, err := newLifecycleEnvelope(next, event)
	if err != nil {
		return TransitionResult{}, err
	}

	if err := ctx.Err(); err != nil {
		return TransitionResult{}, err
	}
	if err := e.deps.Requests.CommitTransition(ctx, ports.Transition{
		Request:         next,
		ExpectedVersion: current.Version,
		Event:           event,
		Outbox:          &envelope,
	}); err != nil {
		return TransitionResult{}, err
	}
	return TransitionResult{Request: next.Clone(), Event: event.Clone()}, nil
}

func (e *LifecycleEngine) afterCommit(request entities.Request, event entities.TraceEvent) {
	if e.deps.Registry != nil {
		e.deps.Registry.Apply(event)
	}
	delivered := 0
	if e.deps.Dispatcher != nil {
		delivered = e.deps.Dispatcher.Publish(notifications.FromTraceEvent(request, event))
	}
	e.deps.Observer.ObserveTransition(event.EventType, "committed")

	e.logger.Info("request transition committed",
		"event", "request_transition_committed",
		"module", moduleName,
		"layer", "application",
		"request_id", request.ID,
		"radicado", request.Radicado,
		"transition", string(event.EventType),
		"state", string(request.State),
		"actor_id", event.FromActor.ID,
		"sequence", event.Sequence,
		"subscribers_notified", delivered,
	)
}

func (e *LifecycleEngine) reject(event entities.EventType, err error) (TransitionResult, error) {
	e.deps.Observer.ObserveTransition(event, resultLabel(err))
	return TransitionResult{}, err
}

func (e *LifecycleEngine) storeAttachment(ctx context.Context, input *AttachmentInput) (string, error) {
	if len(input.Content) == 0 {
		return strings.TrimSpace(input.Ref), nil
	}
	ref, err := e.deps.Attachments.Put(ctx, strings.TrimSpace(input.FileName), input.Content)
	if err != nil {
		e.logger.Error("attachment upload failed",
			"event", "request_attachment_upload_failed",
			"module", moduleName,
			"layer", "application",
			"file_name", input.FileName,
			"error", err.Error(),
		)
		return "", err
	}
	return ref, nil
}

// uploadTracker remembers the references stored while preparing one
// transition. Uploads happen outside the in-flight guard, so a commit that
// then fails leaves them unreferenced in the attachment store.
type uploadTracker struct {
	engine *LifecycleEngine
	refs   []string
}

func (u *uploadTracker) store(ctx context.Context, input *AttachmentInput) (string, error) {
	ref, err := u.engine.storeAttachment(ctx, input)
	if err != nil {
		return "", err
	}
	if len(input.Content) > 0 {
		u.refs = append(u.refs, ref)
	}
	return ref, nil
}

func (u *uploadTracker) reportOrphans(requestID string, event entities.EventType, cause error) {
	for _, ref := range u.refs {
		u.engine.logger.Warn("attachment left unreferenced",
			"event", "request_attachment_orphaned",
			"module", moduleName,
			"layer", "application",
			"request_id", requestID,
			"transition", string(event),
			"attachment_ref", ref,
			"error", cause.Error(),
		)
	}
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, domainerrors.ErrValidation):
		return "validation_error"
	case errors.Is(err, domainerrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, domainerrors.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domainerrors.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domainerrors.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

func optionalText(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizeCitizen(c entities.Citizen) entities.Citizen {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Department = strings.TrimSpace(c.Department)
	c.Municipality = strings.TrimSpace(c.Municipality)
	c.Address = strings.TrimSpace(c.Address)
	return c
}

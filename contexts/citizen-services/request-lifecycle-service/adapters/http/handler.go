package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/application/commands"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/application/queries"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
	domainerrors "pqrsd/contexts/citizen-services/request-lifecycle-service/domain/errors"
	httptransport "pqrsd/contexts/citizen-services/request-lifecycle-service/transport/http"
)

type Handler struct {
	Engine         *commands.LifecycleEngine
	GetRequest     queries.GetRequestUseCase
	GetByRadicado  queries.GetByRadicadoUseCase
	CurrentHolder  queries.CurrentHolderUseCase
	History        queries.HistoryUseCase
	DeadlineStatus queries.DeadlineStatusUseCase
	PreviewDueDate queries.PreviewDueDateUseCase
	Summary        queries.SummaryUseCase
	Logger         *slog.Logger
}

func (h Handler) CreateRequestHandler(
	ctx context.Context,
	intake entities.Actor,
	req httptransport.CreateRequestRequest,
) (httptransport.TransitionResponse, error) {
	result, err := h.Engine.Create(ctx, commands.CreateCommand{
		Intake: intake,
		Citizen: entities.Citizen{
			FirstName:    req.Citizen.FirstName,
			LastName:     req.Citizen.LastName,
			Email:        req.Citizen.Email,
			Phone:        req.Citizen.Phone,
			Department:   req.Citizen.Department,
			Municipality: req.Citizen.Municipality,
			Address:      req.Citizen.Address,
		},
		Message:    req.Message,
		Attachment: mapAttachmentInput(req.Attachment),
	})
	if err != nil {
		return httptransport.TransitionResponse{}, err
	}
	return mapTransition(result), nil
}

func (h Handler) AssignHandler(
	ctx context.Context,
	actor entities.Actor,
	requestID string,
	req httptransport.AssignRequest,
) (httptransport.TransitionResponse, error) {
	return transitionResponse(h.Engine.Assign(ctx, commands.AssignCommand{
		RequestID:     requestID,
		Actor:         actor,
		ResponsibleID: req.ResponsibleID,
		BusinessDays:  req.BusinessDays,
	}))
}

func (h Handler) ReassignHandler(
	ctx context.Context,
	actor entities.Actor,
	requestID string,
	req httptransport.ReassignRequest,
) (httptransport.TransitionResponse, error) {
	return transitionResponse(h.Engine.Reassign(ctx, commands.ReassignCommand{
		RequestID:     requestID,
		Actor:         actor,
		ResponsibleID: req.ResponsibleID,
	}))
}

func (h Handler) SubmitResponseHandler(
	ctx context.Context,
	actor entities.Actor,
	requestID string,
	req httptransport.SubmitResponseRequest,
) (httptransport.TransitionResponse, error) {
	return transitionResponse(h.Engine.SubmitResponse(ctx, commands.SubmitResponseCommand{
		RequestID:      requestID,
		Actor:          actor,
		Draft:          mapAttachmentInput(req.Draft),
		NoteToReviewer: req.NoteToReviewer,
	}))
}

func (h Handler) ApproveHandler(
	ctx context.Context,
	actor entities.Actor,
	requestID string,
	req httptransport.ApproveRequest,
) (httptransport.TransitionResponse, error) {
	return transitionResponse(h.Engine.Approve(ctx, commands.ApproveCommand{
		RequestID: requestID,
		Actor:     actor,
		Note:      req.Note,
	}))
}

func (h Handler) ReturnHandler(
	ctx context.Context,
	actor entities.Actor,
	requestID string,
	req httptransport.ReturnRequest,
) (httptransport.TransitionResponse, error) {
	return transitionResponse(h.Engine.Return(ctx, commands.ReturnCommand{
		RequestID: requestID,
		Actor:     actor,
		Reason:    req.Reason,
	}))
}

func (h Handler) SignHandler(
	ctx context.Context,
	actor entities.Actor,
	requestID string,
	req httptransport.SignRequest,
) (httptransport.TransitionResponse, error) {
	return transitionResponse(h.Engine.Sign(ctx, commands.SignCommand{
		RequestID: requestID,
		Actor:     actor,
		Signed:    mapAttachmentInput(req.Signed),
	}))
}

func (h Handler) FinalizeHandler(
	ctx context.Context,
	actor entities.Actor,
	requestID string,
	req httptransport.FinalizeRequest,
) (httptransport.TransitionResponse, error) {
	return transitionResponse(h.Engine.Finalize(ctx, commands.FinalizeCommand{
		RequestID: requestID,
		Actor:     actor,
		Evidence:  mapAttachmentInput(req.Evidence),
	}))
}

func (h Handler) GetRequestHandler(ctx context.Context, requestID string) (httptransport.GetRequestResponse, error) {
	item, err := h.GetRequest.Execute(ctx, requestID)
	if err != nil {
		return httptransport.GetRequestResponse{}, err
	}
	return httptransport.GetRequestResponse{Request: mapRequest(item)}, nil
}

func (h Handler) TrackByRadicadoHandler(ctx context.Context, radicado string) (httptransport.TrackingResponse, error) {
	item, err := h.GetByRadicado.Execute(ctx, radicado)
	if err != nil {
		return httptransport.TrackingResponse{}, err
	}
	out := httptransport.TrackingResponse{
		Radicado:  item.Radicado,
		State:     string(item.State),
		CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: item.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if item.DueAt != nil {
		out.DueAt = item.DueAt.String()
	}
	return out, nil
}

func (h Handler) HistoryHandler(ctx context.Context, requestID string) (httptransport.HistoryResponse, error) {
	items, err := h.History.Execute(ctx, requestID)
	if err != nil {
		return httptransport.HistoryResponse{}, err
	}
	out := httptransport.HistoryResponse{
		RequestID: requestID,
		Items:     make([]httptransport.TraceEventDTO, 0, len(items)),
	}
	for _, item := range items {
		out.Items = append(out.Items, mapTraceEvent(item))
	}
	return out, nil
}

func (h Handler) CurrentHolderHandler(ctx context.Context, requestID string) (httptransport.HolderResponse, error) {
	holder, err := h.CurrentHolder.Execute(ctx, requestID)
	if err != nil {
		return httptransport.HolderResponse{}, err
	}
	return httptransport.HolderResponse{RequestID: requestID, Holder: mapHolder(holder)}, nil
}

func (h Handler) DeadlineStatusHandler(ctx context.Context, requestID string) (httptransport.DeadlineStatusResponse, error) {
	result, err := h.DeadlineStatus.Execute(ctx, requestID)
	if err != nil {
		return httptransport.DeadlineStatusResponse{}, err
	}
	out := httptransport.DeadlineStatusResponse{
		RequestID:   result.RequestID,
		State:       string(result.State),
		HasDeadline: result.HasDeadline,
		Enforced:    result.Enforced,
	}
	if result.HasDeadline {
		out.DueAt = result.Status.DueAt.String()
		out.Today = result.Status.Today.String()
		out.RemainingBusinessDays = result.Status.RemainingBusinessDays
		out.OverdueCalendarDays = result.Status.OverdueCalendarDays
		out.Overdue = result.Status.Overdue
	}
	return out, nil
}

// PreviewDueDateHandler accepts an optional YYYY-MM-DD start date.
func (h Handler) PreviewDueDateHandler(ctx context.Context, start string, businessDays int) (httptransport.DueDatePreviewResponse, error) {
	var from *civil.Date
	if start != "" {
		parsed, err := civil.ParseDate(start)
		if err != nil {
			return httptransport.DueDatePreviewResponse{}, domainerrors.ErrInvalidDate
		}
		from = &parsed
	}
	result, err := h.PreviewDueDate.Execute(ctx, from, businessDays)
	if err != nil {
		return httptransport.DueDatePreviewResponse{}, err
	}
	return httptransport.DueDatePreviewResponse{
		Start:        result.Start.String(),
		BusinessDays: result.BusinessDays,
		DueAt:        result.DueAt.String(),
	}, nil
}

func (h Handler) SummaryHandler(ctx context.Context) (httptransport.SummaryResponse, error) {
	result, err := h.Summary.Execute(ctx)
	if err != nil {
		return httptransport.SummaryResponse{}, err
	}
	out := httptransport.SummaryResponse{
		Total:  result.Total,
		States: make([]httptransport.StateCountDTO, 0, len(result.States)),
	}
	for _, item := range result.States {
		out.States = append(out.States, httptransport.StateCountDTO{State: string(item.State), Count: item.Count})
	}
	return out, nil
}

func transitionResponse(result commands.TransitionResult, err error) (httptransport.TransitionResponse, error) {
	if err != nil {
		return httptransport.TransitionResponse{}, err
	}
	return mapTransition(result), nil
}

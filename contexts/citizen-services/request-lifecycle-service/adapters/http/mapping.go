package httpadapter

import (
	"time"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/application/commands"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
	httptransport "pqrsd/contexts/citizen-services/request-lifecycle-service/transport/http"
)

func mapAttachmentInput(dto *httptransport.AttachmentDTO) *commands.AttachmentInput {
	if dto == nil {
		return nil
	}
	return &commands.AttachmentInput{
		FileName: dto.FileName,
		Content:  dto.Content,
		Ref:      dto.Ref,
	}
}

func mapTransition(result commands.TransitionResult) httptransport.TransitionResponse {
	return httptransport.TransitionResponse{
		Request: mapRequest(result.Request),
		Event:   mapTraceEvent(result.Event),
	}
}

func mapRequest(item entities.Request) httptransport.RequestDTO {
	out := httptransport.RequestDTO{
		RequestID: item.ID,
		Radicado:  item.Radicado,
		Citizen: httptransport.CitizenDTO{
			FirstName:    item.Citizen.FirstName,
			LastName:     item.Citizen.LastName,
			Email:        item.Citizen.Email,
			Phone:        item.Citizen.Phone,
			Department:   item.Citizen.Department,
			Municipality: item.Citizen.Municipality,
			Address:      item.Citizen.Address,
		},
		Message: item.Message,
		Attachments: httptransport.AttachmentsDTO{
			Citizen:  item.Attachments.Citizen,
			Drafts:   append([]string{}, item.Attachments.Drafts...),
			Draft:    item.Attachments.CurrentDraft(),
			Signed:   item.Attachments.Signed,
			Evidence: item.Attachments.Evidence,
		},
		State:     string(item.State),
		Holder:    mapHolder(item.Holder),
		Version:   item.Version,
		CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: item.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if item.DueAt != nil {
		out.DueAt = item.DueAt.String()
	}
	if item.ReturnReason != nil {
		out.ReturnReason = *item.ReturnReason
	}
	return out
}

func mapHolder(holder *entities.Holder) *httptransport.HolderDTO {
	if holder == nil {
		return nil
	}
	return &httptransport.HolderDTO{ActorID: holder.ActorID, Role: string(holder.Role)}
}

func mapTraceEvent(item entities.TraceEvent) httptransport.TraceEventDTO {
	out := httptransport.TraceEventDTO{
		EventID:    item.EventID,
		Sequence:   item.Sequence,
		OccurredAt: item.OccurredAt.UTC().Format(time.RFC3339Nano),
		EventType:  string(item.EventType),
		FromActor:  httptransport.ActorDTO{ActorID: item.FromActor.ID, Role: string(item.FromActor.Role)},
		Message:    item.MessageText(),
	}
	if item.ToActor != nil {
		out.ToActor = &httptransport.ActorDTO{ActorID: item.ToActor.ID, Role: string(item.ToActor.Role)}
	}
	return out
}

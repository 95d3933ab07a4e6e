package commands

import (
	"encoding/json"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/ports"
	contractsv1 "pqrsd/contracts/gen/events/v1"
)

const (
	sourceService        = "request-lifecycle-service"
	lifecycleTopicPrefix = "pqrsd.request."
)

// TopicFor names the change-feed topic of a lifecycle event type.
func TopicFor(eventType entities.EventType) string {
	return lifecycleTopicPrefix + string(eventType)
}

func newLifecycleEnvelope(request entities.Request, event entities.TraceEvent) (ports.EventEnvelope, error) {
	data := contractsv1.LifecycleEventData{
		RequestID:   request.ID,
		Radicado:    request.Radicado,
		State:       string(request.State),
		FromActorID: event.FromActor.ID,
		FromRole:    string(event.FromActor.Role),
		Message:     event.MessageText(),
	}
	if event.ToActor != nil {
		data.ToActorID = event.ToActor.ID
		data.ToRole = string(event.ToActor.Role)
	}
	if request.DueAt != nil {
		data.DueAt = request.DueAt.String()
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          event.EventID,
		EventType:        TopicFor(event.EventType),
		OccurredAt:       event.OccurredAt.UTC(),
		SourceService:    sourceService,
		TraceID:          event.EventID,
		SchemaVersion:    1,
		PartitionKeyPath: "request_id",
		PartitionKey:     request.ID,
		Sequence:         event.Sequence,
		Data:             payload,
	}, nil
}

package postgresadapter

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
)

// draftRefs is stored as a JSON array. It implements Scanner and Valuer so the
// column round-trips through map updates as well as struct scans.
type draftRefs []string

func (d draftRefs) Value() (driver.Value, error) {
	if d == nil {
		d = draftRefs{}
	}
	raw, err := json.Marshal([]string(d))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (d *draftRefs) Scan(src any) error {
	var raw []byte
	switch value := src.(type) {
	case nil:
		*d = nil
		return nil
	case []byte:
		raw = value
	case string:
		raw = []byte(value)
	default:
		return fmt.Errorf("scan draft_attachments: unsupported type %T", src)
	}
	var refs []string
	if err := json.Unmarshal(raw, &refs); err != nil {
		return fmt.Errorf("scan draft_attachments: %w", err)
	}
	*d = refs
	return nil
}

type requestModel struct {
	RequestID          string     `gorm:"column:request_id;primaryKey"`
	Radicado           string     `gorm:"column:radicado;uniqueIndex:idx_pqrsd_requests_radicado"`
	FirstName          string     `gorm:"column:citizen_first_name"`
	LastName           string     `gorm:"column:citizen_last_name"`
	Email              string     `gorm:"column:citizen_email"`
	Phone              string     `gorm:"column:citizen_phone"`
	Department         string     `gorm:"column:citizen_department"`
	Municipality       string     `gorm:"column:citizen_municipality"`
	Address            string     `gorm:"column:citizen_address"`
	Message            string     `gorm:"column:message"`
	CitizenAttachment  string     `gorm:"column:citizen_attachment"`
	DraftAttachments   draftRefs  `gorm:"column:draft_attachments;type:jsonb"`
	SignedAttachment   string     `gorm:"column:signed_attachment"`
	EvidenceAttachment string     `gorm:"column:evidence_attachment"`
	State              string     `gorm:"column:state;index:idx_pqrsd_requests_state"`
	HolderActorID      *string    `gorm:"column:holder_actor_id"`
	HolderRole         *string    `gorm:"column:holder_role"`
	DueAt              *time.Time `gorm:"column:due_at;type:date;index:idx_pqrsd_requests_due_at"`
	ReturnReason       *string    `gorm:"column:return_reason"`
	Version            int64      `gorm:"column:version"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
}

func (requestModel) TableName() string {
	return "pqrsd_requests"
}

type traceEventModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	RequestID   string    `gorm:"column:request_id;uniqueIndex:idx_pqrsd_trace_request_sequence,priority:1"`
	Sequence    int64     `gorm:"column:sequence;uniqueIndex:idx_pqrsd_trace_request_sequence,priority:2"`
	OccurredAt  time.Time `gorm:"column:occurred_at"`
	EventType   string    `gorm:"column:event_type"`
	FromActorID string    `gorm:"column:from_actor_id"`
	FromRole    string    `gorm:"column:from_role"`
	ToActorID   *string   `gorm:"column:to_actor_id"`
	ToRole      *string   `gorm:"column:to_role"`
	Message     *string   `gorm:"column:message"`
}

func (traceEventModel) TableName() string {
	return "pqrsd_trace_events"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload;type:jsonb"`
	Status       string     `gorm:"column:status;index:idx_pqrsd_outbox_status_created,priority:1"`
	CreatedAt    time.Time  `gorm:"column:created_at;index:idx_pqrsd_outbox_status_created,priority:2"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "pqrsd_outbox"
}

type attachmentModel struct {
	Ref       string    `gorm:"column:ref;primaryKey"`
	FileName  string    `gorm:"column:file_name"`
	Checksum  string    `gorm:"column:checksum"`
	Content   []byte    `gorm:"column:content;type:bytea"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (attachmentModel) TableName() string {
	return "pqrsd_attachments"
}

type radicadoCounterModel struct {
	Year   int   `gorm:"column:year;primaryKey;autoIncrement:false"`
	Serial int64 `gorm:"column:serial"`
}

func (radicadoCounterModel) TableName() string {
	return "pqrsd_radicado_counters"
}

func requestModelFromEntity(request entities.Request) requestModel {
	row := requestModel{
		RequestID:          request.ID,
		Radicado:           request.Radicado,
		FirstName:          request.Citizen.FirstName,
		LastName:           request.Citizen.LastName,
		Email:              request.Citizen.Email,
		Phone:              request.Citizen.Phone,
		Department:         request.Citizen.Department,
		Municipality:       request.Citizen.Municipality,
		Address:            request.Citizen.Address,
		Message:            request.Message,
		CitizenAttachment:  request.Attachments.Citizen,
		DraftAttachments:   append(draftRefs{}, request.Attachments.Drafts...),
		SignedAttachment:   request.Attachments.Signed,
		EvidenceAttachment: request.Attachments.Evidence,
		State:              string(request.State),
		ReturnReason:       copyString(request.ReturnReason),
		Version:            request.Version,
		CreatedAt:          request.CreatedAt.UTC(),
		UpdatedAt:          request.UpdatedAt.UTC(),
	}
	if request.Holder != nil {
		actorID := request.Holder.ActorID
		role := string(request.Holder.Role)
		row.HolderActorID = &actorID
		row.HolderRole = &role
	}
	if request.DueAt != nil {
		due := request.DueAt.In(time.UTC)
		row.DueAt = &due
	}
	return row
}

// requestUpdates lists every mutable column so cleared values are written as NULL.
func requestUpdates(request entities.Request) map[string]any {
	row := requestModelFromEntity(request)
	return map[string]any{
		"draft_attachments":   row.DraftAttachments,
		"signed_attachment":   row.SignedAttachment,
		"evidence_attachment": row.EvidenceAttachment,
		"state":               row.State,
		"holder_actor_id":     row.HolderActorID,
		"holder_role":         row.HolderRole,
		"due_at":              row.DueAt,
		"return_reason":       row.ReturnReason,
		"version":             row.Version,
		"updated_at":          row.UpdatedAt,
	}
}

func (m requestModel) toEntity() entities.Request {
	request := entities.Request{
		ID:       m.RequestID,
		Radicado: m.Radicado,
		Citizen: entities.Citizen{
			FirstName:    m.FirstName,
			LastName:     m.LastName,
			Email:        m.Email,
			Phone:        m.Phone,
			Department:   m.Department,
			Municipality: m.Municipality,
			Address:      m.Address,
		},
		Message: m.Message,
		Attachments: entities.Attachments{
			Citizen:  m.CitizenAttachment,
			Drafts:   append([]string(nil), m.DraftAttachments...),
			Signed:   m.SignedAttachment,
			Evidence: m.EvidenceAttachment,
		},
		State:        entities.State(m.State),
		ReturnReason: copyString(m.ReturnReason),
		Version:      m.Version,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
	if m.HolderActorID != nil {
		role := entities.Role("")
		if m.HolderRole != nil {
			role = entities.Role(*m.HolderRole)
		}
		request.Holder = &entities.Holder{ActorID: *m.HolderActorID, Role: role}
	}
	if m.DueAt != nil {
		due := civil.DateOf(m.DueAt.UTC())
		request.DueAt = &due
	}
	return request
}

func traceEventModelFromEntity(event entities.TraceEvent) traceEventModel {
	row := traceEventModel{
		EventID:     event.EventID,
		RequestID:   event.RequestID,
		Sequence:    event.Sequence,
		OccurredAt:  event.OccurredAt.UTC(),
		EventType:   string(event.EventType),
		FromActorID: event.FromActor.ID,
		FromRole:    string(event.FromActor.Role),
		Message:     copyString(event.Message),
	}
	if event.ToActor != nil {
		toID := event.ToActor.ID
		toRole := string(event.ToActor.Role)
		row.ToActorID = &toID
		row.ToRole = &toRole
	}
	return row
}

func (m traceEventModel) toEntity() entities.TraceEvent {
	event := entities.TraceEvent{
		EventID:    m.EventID,
		RequestID:  m.RequestID,
		Sequence:   m.Sequence,
		OccurredAt: m.OccurredAt.UTC(),
		EventType:  entities.EventType(m.EventType),
		FromActor:  entities.Actor{ID: m.FromActorID, Role: entities.Role(m.FromRole)},
		Message:    copyString(m.Message),
	}
	if m.ToActorID != nil {
		to := entities.Actor{ID: *m.ToActorID}
		if m.ToRole != nil {
			to.Role = entities.Role(*m.ToRole)
		}
		event.ToActor = &to
	}
	return event
}

func copyString(value *string) *string {
	if value == nil {
		return nil
	}
	out := *value
	return &out
}

package http

type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// AttachmentDTO carries base64 content or a previously issued reference.
type AttachmentDTO struct {
	FileName string `json:"file_name"`
	Content  []byte `json:"content,omitempty"`
	Ref      string `json:"ref,omitempty"`
}

type CitizenDTO struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Department   string `json:"department,omitempty"`
	Municipality string `json:"municipality,omitempty"`
	Address      string `json:"address,omitempty"`
}

type CreateRequestRequest struct {
	Citizen    CitizenDTO     `json:"citizen"`
	Message    string         `json:"message"`
	Attachment *AttachmentDTO `json:"attachment,omitempty"`
}

type AssignRequest struct {
	ResponsibleID string `json:"responsible_id"`
	BusinessDays  int    `json:"business_days"`
}

type ReassignRequest struct {
	ResponsibleID string `json:"responsible_id"`
}

type SubmitResponseRequest struct {
	Draft          *AttachmentDTO `json:"draft,omitempty"`
	NoteToReviewer string         `json:"note_to_reviewer,omitempty"`
}

type ApproveRequest struct {
	Note string `json:"note,omitempty"`
}

type ReturnRequest struct {
	Reason string `json:"reason"`
}

type SignRequest struct {
	Signed *AttachmentDTO `json:"signed"`
}

type FinalizeRequest struct {
	Evidence *AttachmentDTO `json:"evidence"`
}

type HolderDTO struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
}

type AttachmentsDTO struct {
	Citizen  string   `json:"citizen,omitempty"`
	Drafts   []string `json:"drafts"`
	Draft    string   `json:"draft,omitempty"`
	Signed   string   `json:"signed,omitempty"`
	Evidence string   `json:"evidence,omitempty"`
}

type RequestDTO struct {
	RequestID    string         `json:"request_id"`
	Radicado     string         `json:"radicado"`
	Citizen      CitizenDTO     `json:"citizen"`
	Message      string         `json:"message"`
	Attachments  AttachmentsDTO `json:"attachments"`
	State        string         `json:"state"`
	Holder       *HolderDTO     `json:"holder,omitempty"`
	DueAt        string         `json:"due_at,omitempty"`
	ReturnReason string         `json:"return_reason,omitempty"`
	Version      int64          `json:"version"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

type ActorDTO struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role,omitempty"`
}

type TraceEventDTO struct {
	EventID    string    `json:"event_id"`
	Sequence   int64     `json:"sequence"`
	OccurredAt string    `json:"occurred_at"`
	EventType  string    `json:"event_type"`
	FromActor  ActorDTO  `json:"from_actor"`
	ToActor    *ActorDTO `json:"to_actor,omitempty"`
	Message    string    `json:"message,omitempty"`
}

type TransitionResponse struct {
	Request RequestDTO    `json:"request"`
	Event   TraceEventDTO `json:"event"`
}

type GetRequestResponse struct {
	Request RequestDTO `json:"request"`
}

// TrackingResponse is the citizen-facing view of a request.
type TrackingResponse struct {
	Radicado  string `json:"radicado"`
	State     string `json:"state"`
	CreatedAt string `json:"created_at"`
	DueAt     string `json:"due_at,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

type HistoryResponse struct {
	RequestID string          `json:"request_id"`
	Items     []TraceEventDTO `json:"items"`
}

type HolderResponse struct {
	RequestID string     `json:"request_id"`
	Holder    *HolderDTO `json:"holder"`
}

type DeadlineStatusResponse struct {
	RequestID             string `json:"request_id"`
	State                 string `json:"state"`
	HasDeadline           bool   `json:"has_deadline"`
	Enforced              bool   `json:"enforced"`
	DueAt                 string `json:"due_at,omitempty"`
	Today                 string `json:"today,omitempty"`
	RemainingBusinessDays int    `json:"remaining_business_days"`
	OverdueCalendarDays   int    `json:"overdue_calendar_days"`
	Overdue               bool   `json:"overdue"`
}

type DueDatePreviewResponse struct {
	Start        string `json:"start"`
	BusinessDays int    `json:"business_days"`
	DueAt        string `json:"due_at"`
}

type StateCountDTO struct {
	State string `json:"state"`
	Count int    `json:"count"`
}

type SummaryResponse struct {
	Total  int             `json:"total"`
	States []StateCountDTO `json:"states"`
}

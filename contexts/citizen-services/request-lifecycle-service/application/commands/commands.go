package commands

import (
	"strings"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
)

// AttachmentInput carries either raw content to upload or an already issued
// reference. Content wins when both are present.
type AttachmentInput struct {
	FileName string
	Content  []byte
	Ref      string
}

func (a *AttachmentInput) empty() bool {
	return a == nil || (len(a.Content) == 0 && strings.TrimSpace(a.Ref) == "")
}

type CreateCommand struct {
	// Intake identifies who registered the petition; blank means the public form.
	Intake     entities.Actor
	Citizen    entities.Citizen
	Message    string `validate:"required,max=10000"`
	Attachment *AttachmentInput
}

type AssignCommand struct {
	RequestID     string
	Actor         entities.Actor
	ResponsibleID string
	BusinessDays  int
}

type ReassignCommand struct {
	RequestID     string
	Actor         entities.Actor
	ResponsibleID string
}

type SubmitResponseCommand struct {
	RequestID      string
	Actor          entities.Actor
	Draft          *AttachmentInput
	NoteToReviewer string
}

type ApproveCommand struct {
	RequestID string
	Actor     entities.Actor
	Note      string
}

type ReturnCommand struct {
	RequestID string
	Actor     entities.Actor
	Reason    string
}

type SignCommand struct {
	RequestID string
	Actor     entities.Actor
	Signed    *AttachmentInput
}

type FinalizeCommand struct {
	RequestID string
	Actor     entities.Actor
	Evidence  *AttachmentInput
}

// TransitionResult is the committed state and the audit entry it produced.
type TransitionResult struct {
	Request entities.Request
	Event   entities.TraceEvent
}

package entities

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

type State string

const (
	StatePending   State = "pending"
	StateAssigned  State = "assigned"
	StateInReview  State = "in_review"
	StateReturned  State = "returned"
	StateApproved  State = "approved"
	StateSigned    State = "signed"
	StateFinalized State = "finalized"
)

// AllStates lists states in workflow order.
var AllStates = []State{
	StatePending,
	StateAssigned,
	StateInReview,
	StateReturned,
	StateApproved,
	StateSigned,
	StateFinalized,
}

func (s State) Valid() bool {
	for _, candidate := range AllStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// Terminal states no longer enforce the deadline.
func (s State) Terminal() bool {
	return s == StateFinalized
}

type Role string

const (
	RoleAssigner    Role = "assigner"
	RoleResponsible Role = "responsible"
	RoleReviewer    Role = "reviewer"
	RoleSigner      Role = "signer"
	RoleFinalizer   Role = "finalizer"
	RoleAdmin       Role = "admin"
	// RoleCitizen marks public intake; it authorizes no transition.
	RoleCitizen Role = "citizen"
)

var AllRoles = []Role{
	RoleAssigner,
	RoleResponsible,
	RoleReviewer,
	RoleSigner,
	RoleFinalizer,
	RoleAdmin,
	RoleCitizen,
}

func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	for _, candidate := range AllRoles {
		if candidate == role {
			return role, true
		}
	}
	return "", false
}

// Actor is an already-authenticated caller supplied by the identity collaborator.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) Anonymous() bool {
	return strings.TrimSpace(a.ID) == ""
}

// Holder is the actor currently expected to act on a request.
type Holder struct {
	ActorID string
	Role    Role
}

func (h Holder) Actor() Actor {
	return Actor{ID: h.ActorID, Role: h.Role}
}

type Citizen struct {
	FirstName    string `validate:"required,max=120"`
	LastName     string `validate:"required,max=120"`
	Email        string `validate:"omitempty,email,max=254"`
	Phone        string `validate:"omitempty,max=40"`
	Department   string `validate:"omitempty,max=120"`
	Municipality string `validate:"omitempty,max=120"`
	Address      string `validate:"omitempty,max=255"`
}

func (c Citizen) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// Attachments holds opaque references. Citizen, Signed and Evidence are
// write-once; Drafts is an append-only list with one entry per submission.
type Attachments struct {
	Citizen  string
	Drafts   []string
	Signed   string
	Evidence string
}

func (a Attachments) CurrentDraft() string {
	if len(a.Drafts) == 0 {
		return ""
	}
	return a.Drafts[len(a.Drafts)-1]
}

func (a Attachments) clone() Attachments {
	out := a
	out.Drafts = append([]string(nil), a.Drafts...)
	return out
}

type Request struct {
	ID           string
	Radicado     string
	Citizen      Citizen
	Message      string
	Attachments  Attachments
	State        State
	Holder       *Holder
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DueAt        *civil.Date
	ReturnReason *string
	Version      int64
}

// Clone returns a deep copy so callers can mutate without aliasing the
// stored record.
func (r Request) Clone() Request {
	out := r
	out.Attachments = r.Attachments.clone()
	if r.Holder != nil {
		holder := *r.Holder
		out.Holder = &holder
	}
	if r.DueAt != nil {
		due := *r.DueAt
		out.DueAt = &due
	}
	if r.ReturnReason != nil {
		reason := *r.ReturnReason
		out.ReturnReason = &reason
	}
	return out
}

func (r Request) HeldBy(actor Actor) bool {
	return r.Holder != nil && r.Holder.ActorID == strings.TrimSpace(actor.ID)
}

func (r Request) ValidateCreate() bool {
	return strings.TrimSpace(r.ID) != "" &&
		strings.TrimSpace(r.Radicado) != "" &&
		strings.TrimSpace(r.Message) != "" &&
		r.State == StatePending &&
		r.Holder == nil &&
		r.DueAt == nil &&
		!r.CreatedAt.IsZero()
}

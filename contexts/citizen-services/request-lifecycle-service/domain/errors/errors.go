package errors

import "errors"

// Caller-visible failure categories. Every error returned by the engine wraps
// exactly one of these, so callers branch with errors.Is on the category.
var (
	ErrValidation   = errors.New("validation error")
	ErrInvalidState = errors.New("invalid state for transition")
	ErrUnauthorized = errors.New("actor is not authorized")
	ErrConflict     = errors.New("concurrent transition conflict")
	ErrNotFound     = errors.New("request not found")
)

var (
	ErrInvalidRequestInput   = wrap(ErrValidation, "invalid request input")
	ErrNonPositiveDays       = wrap(ErrValidation, "business days must be positive")
	ErrBlankReturnReason     = wrap(ErrValidation, "return reason is required")
	ErrResponsibleRequired   = wrap(ErrValidation, "responsible person is required")
	ErrAttachmentRequired    = wrap(ErrValidation, "attachment is required")
	ErrAttachmentAlreadySet  = wrap(ErrValidation, "attachment slot already set")
	ErrMalformedTraceEvent   = wrap(ErrValidation, "malformed trace event")
	ErrOutOfOrderTraceEvent  = wrap(ErrValidation, "trace event sequence out of order")
	ErrInvalidDate           = wrap(ErrValidation, "invalid calendar date")
	ErrMissingActor          = wrap(ErrUnauthorized, "actor identity is required")
	ErrRoleNotAllowed        = wrap(ErrUnauthorized, "role is not allowed for this transition")
	ErrNotCurrentHolder      = wrap(ErrUnauthorized, "actor is not the current holder")
	ErrTransitionInFlight    = wrap(ErrConflict, "another transition is in flight")
	ErrStaleVersion          = wrap(ErrConflict, "request version changed")
	ErrDuplicateRadicado     = wrap(ErrConflict, "radicado already issued")
	ErrNoPreviousResponsible = wrap(ErrInvalidState, "no responsible holder to return to")
)

// IsRetryable reports whether the caller may re-read state and re-issue the
// command. Only Conflict qualifies.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

type categorized struct {
	category error
	message  string
}

func wrap(category error, message string) error {
	return &categorized{category: category, message: message}
}

func (e *categorized) Error() string {
	return e.message
}

func (e *categorized) Unwrap() error {
	return e.category
}

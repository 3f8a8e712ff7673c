package recruit

import (
	"errors"
	"fmt"
)

// ─── Sentinel errors ─────────────────────────────────────────────────────────

// ErrNotFound is returned when a referenced entity is missing or an
// owner-scoped filter excluded it. The two cases are deliberately identical.
var ErrNotFound = errors.New("resource not found")

// ErrDuplicate is returned by stores when a uniqueness constraint rejects an
// insert (second active application, second team for a board).
var ErrDuplicate = errors.New("duplicate record")

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// Conflict codes.
const (
	CodeSelfApplication   = "ERR_SELF_APPLICATION"
	CodeAlreadyApplied    = "ERR_ALREADY_APPLIED"
	CodeBoardCompleted    = "ERR_BOARD_COMPLETED"
	CodeAlreadyCompleted  = "ERR_ALREADY_COMPLETED"
	CodeExceedLimit       = "ERR_EXCEED_LIMIT"
	CodeWithdrawalBlocked = "ERR_WITHDRAWAL_BLOCKED"
)

// ConflictError is a business-rule violation.
type ConflictError struct {
	Code string
	Msg  string
}

func (e *ConflictError) Error() string { return e.Msg }

func conflict(code, format string, args ...any) *ConflictError {
	return &ConflictError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// InternalError wraps a store or collaborator failure. Its text is for logs
// only; Description never exposes it.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *InternalError) Unwrap() error { return e.Err }

// ─── Classification ──────────────────────────────────────────────────────────

// Outcome discriminates the result of a Service operation.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeValidation
	OutcomeNotFound
	OutcomeConflict
	OutcomeInternal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeValidation:
		return "validation_error"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeConflict:
		return "conflict"
	}
	return "internal_error"
}

// Classify maps an error returned by Service to its Outcome.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	var ve *ValidationError
	if errors.As(err, &ve) || errors.Is(err, ErrUnsortableField) {
		return OutcomeValidation
	}
	if errors.Is(err, ErrNotFound) {
		return OutcomeNotFound
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		return OutcomeConflict
	}
	return OutcomeInternal
}

// Code returns the stable error code for err.
func Code(err error) string {
	var ce *ConflictError
	switch {
	case errors.Is(err, ErrUnsortableField):
		return "ERR_UNSORTABLE_FIELD"
	case errors.As(err, &ce):
		return ce.Code
	}
	switch Classify(err) {
	case OutcomeSuccess:
		return ""
	case OutcomeValidation:
		return "ERR_INVALID_PARAM"
	case OutcomeNotFound:
		return "ERR_NOT_FOUND"
	}
	return "ERR_INTERNAL_ERROR"
}

// Description returns the human-readable message for err. Internal failures
// always read the same.
func Description(err error) string {
	switch Classify(err) {
	case OutcomeSuccess:
		return ""
	case OutcomeInternal:
		return "internal server error"
	case OutcomeNotFound:
		return ErrNotFound.Error()
	}
	return err.Error()
}

// isDomain reports whether err already carries a non-internal classification.
func isDomain(err error) bool {
	switch Classify(err) {
	case OutcomeValidation, OutcomeNotFound, OutcomeConflict:
		return true
	}
	return false
}

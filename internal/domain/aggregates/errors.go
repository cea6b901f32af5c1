package aggregates

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
)

// ErrorCode standardizes aggregate failure semantics across entity types.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "validation"
	CodeNotFound           ErrorCode = "not_found"
	CodeConflict           ErrorCode = "conflict"
	CodeInvariantViolation ErrorCode = "invariant_violation"
	CodePreconditionFailed ErrorCode = "precondition_failed"
	CodeRetryable          ErrorCode = "retryable"
	CodeInternal           ErrorCode = "internal"
	// CodeVersioning marks a lifecycle precondition failure (*versioning.Error).
	CodeVersioning ErrorCode = "versioning"
)

// Error is the canonical aggregate error wrapper.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an aggregate error with explicit code + operation.
func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates an existing error with aggregate error semantics.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

// IsCode checks whether err (or wrapped err) carries the given aggregate code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// CodeOf extracts the aggregate error code when available. Versioning errors
// are reported as CodeVersioning, or CodeInvariantViolation for corrupt state.
func CodeOf(err error) ErrorCode {
	var aggErr *Error
	if errors.As(err, &aggErr) {
		return aggErr.Code
	}
	if verr, ok := versioning.AsError(err); ok {
		if verr.Reason == versioning.ReasonInvalidState {
			return CodeInvariantViolation
		}
		return CodeVersioning
	}
	return ""
}

// Retryable reports whether a caller may re-run the operation from a fresh load.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeConflict, CodeRetryable:
		return true
	default:
		return false
	}
}

package apierr

import (
	"errors"
	"fmt"
	"net/http"

	domainagg "github.com/yungbote/mdr-library-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From classifies a service error. Lifecycle rejections keep their reason as
// the code and their fixed message as the error text.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if verr, ok := versioning.AsError(err); ok && verr.Reason != versioning.ReasonInvalidState {
		return New(http.StatusBadRequest, string(verr.Reason), verr)
	}
	switch domainagg.CodeOf(err) {
	case domainagg.CodeValidation:
		return New(http.StatusBadRequest, string(domainagg.CodeValidation), err)
	case domainagg.CodeNotFound:
		return New(http.StatusNotFound, string(domainagg.CodeNotFound), err)
	case domainagg.CodeConflict:
		return New(http.StatusConflict, string(domainagg.CodeConflict), err)
	case domainagg.CodePreconditionFailed:
		return New(http.StatusPreconditionFailed, string(domainagg.CodePreconditionFailed), err)
	case domainagg.CodeRetryable:
		return New(http.StatusServiceUnavailable, string(domainagg.CodeRetryable), err)
	case domainagg.CodeInvariantViolation:
		return New(http.StatusInternalServerError, string(domainagg.CodeInvariantViolation), err)
	default:
		return New(http.StatusInternalServerError, string(domainagg.CodeInternal), err)
	}
}

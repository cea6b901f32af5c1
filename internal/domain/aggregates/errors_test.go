package aggregates

import (
	"errors"
	"fmt"
	"testing"

	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
)

func TestCodeOf(t *testing.T) {
	conflict := NewError(CodeConflict, "Library.Term.Approve", "stale", nil)
	if got := CodeOf(fmt.Errorf("wrapped: %w", conflict)); got != CodeConflict {
		t.Fatalf("wrapped conflict: got=%s", got)
	}
	if !Retryable(conflict) {
		t.Fatalf("conflict should be retryable")
	}

	verr := &versioning.Error{Reason: versioning.ReasonNotDraft, Message: versioning.ReasonNotDraft.Message()}
	if got := CodeOf(verr); got != CodeVersioning {
		t.Fatalf("versioning: got=%s", got)
	}
	if Retryable(verr) {
		t.Fatalf("versioning errors must not be retryable")
	}
	broken := &versioning.Error{Reason: versioning.ReasonInvalidState, Message: "broken"}
	if got := CodeOf(broken); got != CodeInvariantViolation {
		t.Fatalf("invalid state: got=%s", got)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Fatalf("plain: got=%q", got)
	}
}

func TestErrorString(t *testing.T) {
	err := NewError(CodeNotFound, "Library.Term.Get", "item not found: T-1", nil)
	if err.Error() != "Library.Term.Get: item not found: T-1 (not_found)" {
		t.Fatalf("unexpected: %s", err.Error())
	}
	if Wrap(CodeInternal, "op", nil) != nil {
		t.Fatalf("wrap nil should be nil")
	}
}

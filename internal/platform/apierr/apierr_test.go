package apierr

import (
	"fmt"
	"net/http"
	"testing"

	domainagg "github.com/yungbote/mdr-library-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
)

func TestFrom(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"lifecycle", &versioning.Error{Reason: versioning.ReasonNotDraft, Message: "The object is not in draft status."}, http.StatusBadRequest, "not_draft"},
		{"wrapped lifecycle", fmt.Errorf("approve: %w", &versioning.Error{Reason: versioning.ReasonNotEditable, Message: "Library is not editable."}), http.StatusBadRequest, "library_not_editable"},
		{"corrupt state", &versioning.Error{Reason: versioning.ReasonInvalidState, Message: "broken"}, http.StatusInternalServerError, "invariant_violation"},
		{"validation", domainagg.NewError(domainagg.CodeValidation, "op", "missing author", nil), http.StatusBadRequest, "validation"},
		{"not found", domainagg.NewError(domainagg.CodeNotFound, "op", "gone", nil), http.StatusNotFound, "not_found"},
		{"conflict", domainagg.NewError(domainagg.CodeConflict, "op", "stale", nil), http.StatusConflict, "conflict"},
		{"retryable", domainagg.NewError(domainagg.CodeRetryable, "op", "busy", nil), http.StatusServiceUnavailable, "retryable"},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError, "internal"},
		{"explicit", New(http.StatusUnauthorized, "missing_author", nil), http.StatusUnauthorized, "missing_author"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := From(tc.err)
			if got.Status != tc.status || got.Code != tc.code {
				t.Fatalf("got %d %q, want %d %q", got.Status, got.Code, tc.status, tc.code)
			}
		})
	}
	if From(nil) != nil {
		t.Fatalf("From(nil) must be nil")
	}
}

func TestFromKeepsLifecycleMessage(t *testing.T) {
	got := From(&versioning.Error{Reason: versioning.ReasonNotDraft, Message: "The object is not in draft status."})
	if got.Error() != "The object is not in draft status." {
		t.Fatalf("message: got %q", got.Error())
	}
}

package testutil

import (
	"testing"
	"time"
)

func TestHooksRecorder_CapturesSignals(t *testing.T) {
	h := &HooksRecorder{}
	h.ObserveOperation("Library.term.Approve", "success", 10*time.Millisecond)
	h.ObserveOperation("Library.term.Approve", "versioning", time.Millisecond)
	h.IncConflict("Library.term.Approve")
	h.IncRetry("Library.term.Approve")

	if len(h.Operations) != 2 {
		t.Fatalf("expected 2 op events, got %d", len(h.Operations))
	}
	counts := h.StatusCounts("Library.term.Approve")
	if counts["success"] != 1 || counts["versioning"] != 1 {
		t.Fatalf("unexpected status counts: %+v", counts)
	}
	if len(h.Conflicts) != 1 || h.Conflicts[0] != "Library.term.Approve" {
		t.Fatalf("unexpected conflicts: %+v", h.Conflicts)
	}
	if len(h.Retries) != 1 || h.Retries[0] != "Library.term.Approve" {
		t.Fatalf("unexpected retries: %+v", h.Retries)
	}
}

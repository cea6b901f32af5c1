package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestMetricsWritePrometheus(t *testing.T) {
	m := NewMetrics("test")
	m.ObserveAggregateOperation("Library.Term.Approve", "success", 20*time.Millisecond)
	m.IncAggregateConflict("Library.Term.Approve")
	m.IncLifecycleTransition("term", "Approve")

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`test_aggregate_operations_total{op="Library.Term.Approve",status="success"} 1.000000`,
		`test_aggregate_conflicts_total{op="Library.Term.Approve"} 1.000000`,
		`test_lifecycle_transitions_total{entity_type="term",kind="Approve"} 1.000000`,
		`test_aggregate_operation_duration_seconds_bucket{op="Library.Term.Approve",status="success",le="0.025"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.IncAggregateRetry("op")
	m.IncReadCache("term", true)
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil write: %v", err)
	}
}

func TestParseHeaders(t *testing.T) {
	h := ParseHeaders(" a=1, b = 2 ,broken, =x")
	if len(h) != 2 || h["a"] != "1" || h["b"] != "2" {
		t.Fatalf("unexpected headers: %v", h)
	}
	if ParseHeaders("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}

package versioning

import (
	"slices"
	"testing"
	"time"

	"pgregory.net/rapid"
)

type lifecycleOp int

const (
	opEdit lifecycleOp = iota
	opApprove
	opNewVersion
	opRetire
	opReactivate
	opDelete
)

var opActions = map[lifecycleOp]Action{
	opEdit:       ActionEdit,
	opApprove:    ActionApprove,
	opNewVersion: ActionNewVersion,
	opRetire:     ActionRetire,
	opReactivate: ActionReactivate,
	opDelete:     ActionDelete,
}

func applyOp(e *Engine[term], a Aggregate[term], op lifecycleOp, value term) (Aggregate[term], error) {
	switch op {
	case opEdit:
		return e.EditDraft(a, value, "edit", "prop")
	case opApprove:
		return e.Approve(a, "prop")
	case opNewVersion:
		return e.CreateNewVersion(a, "prop")
	case opRetire:
		return e.Retire(a, "prop")
	case opReactivate:
		return e.Reactivate(a, "prop")
	default:
		return e.SoftDelete(a, "prop")
	}
}

func TestEngine_RandomSequencesKeepInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := NewEngine(func(a, b term) bool { return a == b },
			WithClock(stepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Millisecond)))
		a := e.Create("P-1", editable, term{Name: "v0"}, "prop")

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			op := lifecycleOp(rapid.IntRange(int(opEdit), int(opDelete)).Draw(t, "op"))
			lib := Library{Name: "L", IsEditable: rapid.Bool().Draw(t, "editable")}
			value := term{Name: rapid.SampledFrom([]string{"v0", "v1", "v2"}).Draw(t, "value")}

			prev := a.WithLibrary(lib)
			next, err := applyOp(e, prev, op, value)

			allowed := slices.Contains(prev.PossibleActions(), opActions[op])
			if (op == opEdit || op == opApprove) && !lib.IsEditable {
				allowed = false
			}
			if op == opEdit && value == prev.Payload() {
				allowed = false
			}

			if allowed != (err == nil) {
				t.Fatalf("op %d on %s %s: allowed=%v err=%v", op, prev.Status(), prev.Version(), allowed, err)
			}
			if err != nil {
				if _, ok := AsError(err); !ok {
					t.Fatalf("expected versioning error, got %T", err)
				}
				if next.Audit().Len() != prev.Audit().Len() {
					t.Fatalf("failed op changed audit length")
				}
				continue
			}
			if next.Audit().Len() != prev.Audit().Len()+1 {
				t.Fatalf("audit length: want=%d got=%d", prev.Audit().Len()+1, next.Audit().Len())
			}
			if err := next.Version().Validate(); err != nil {
				t.Fatalf("invalid label after op %d: %v", op, err)
			}
			if err := next.Validate(); err != nil {
				t.Fatalf("invalid aggregate after op %d: %v", op, err)
			}
			if prev.Status() == StatusRetired && op == opReactivate && next.Version().Compare(prev.Version()) != 0 {
				t.Fatalf("reactivate changed numbers %s -> %s", prev.Version(), next.Version())
			}
			a = next
		}

		labels, err := Replay(a.Audit().History())
		if err != nil {
			t.Fatalf("replay: %v", err)
		}
		for i, s := range a.Versions() {
			if labels[i] != s.Metadata.Version {
				t.Fatalf("replay mismatch at %d: %v vs %v", i, labels[i], s.Metadata.Version)
			}
		}
	})
}

func TestEngine_ApprovedItemsNeverReturnToMajorZero(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := NewEngine(func(a, b term) bool { return a == b },
			WithClock(stepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Millisecond)))
		a := e.Create("P-2", editable, term{Name: "v0"}, "prop")
		a, err := e.Approve(a, "prop")
		if err != nil {
			t.Fatalf("approve: %v", err)
		}
		ops := rapid.SliceOfN(rapid.IntRange(int(opEdit), int(opDelete)), 1, 30).Draw(t, "ops")
		for i, raw := range ops {
			next, err := applyOp(e, a, lifecycleOp(raw), term{Name: "v" + string(rune('a'+i%26))})
			if err != nil {
				continue
			}
			if next.Version().Major == 0 || next.Deleted() {
				t.Fatalf("approved item reached %s %s", next.Status(), next.Version())
			}
			a = next
		}
	})
}

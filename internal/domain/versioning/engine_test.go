package versioning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type term struct {
	Name       string
	Definition string
}

func stepClock(start time.Time, step time.Duration) Clock {
	cur := start
	return func() time.Time {
		cur = cur.Add(step)
		return cur
	}
}

func newTestEngine() *Engine[term] {
	return NewEngine(func(a, b term) bool { return a == b },
		WithClock(stepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)))
}

var editable = Library{Name: "Sponsor", IsEditable: true}

func TestEngine_FullLifecycle(t *testing.T) {
	e := newTestEngine()

	a := e.Create("T-1", editable, term{Name: "x"}, "alice")
	require.Equal(t, VersionLabel{Status: StatusDraft, Major: 0, Minor: 1}, a.Version())
	require.Equal(t, []Action{ActionApprove, ActionEdit, ActionDelete}, a.PossibleActions())

	a, err := e.Approve(a, "alice")
	require.NoError(t, err)
	require.Equal(t, "1.0", a.Version().String())
	require.Equal(t, StatusFinal, a.Status())
	require.Equal(t, []Action{ActionRetire, ActionNewVersion}, a.PossibleActions())

	a, err = e.CreateNewVersion(a, "bob")
	require.NoError(t, err)
	require.Equal(t, VersionLabel{Status: StatusDraft, Major: 1, Minor: 1}, a.Version())
	require.Equal(t, []Action{ActionApprove, ActionEdit}, a.PossibleActions())

	a, err = e.EditDraft(a, term{Name: "y"}, "rename", "bob")
	require.NoError(t, err)
	require.Equal(t, VersionLabel{Status: StatusDraft, Major: 1, Minor: 2}, a.Version())
	require.Equal(t, term{Name: "y"}, a.Payload())
	require.Equal(t, "rename", a.Metadata().ChangeDescription)

	a, err = e.Approve(a, "bob")
	require.NoError(t, err)
	require.Equal(t, VersionLabel{Status: StatusFinal, Major: 2, Minor: 0}, a.Version())

	a, err = e.Retire(a, "carol")
	require.NoError(t, err)
	require.Equal(t, VersionLabel{Status: StatusRetired, Major: 2, Minor: 0}, a.Version())
	require.Equal(t, []Action{ActionReactivate}, a.PossibleActions())

	a, err = e.Reactivate(a, "carol")
	require.NoError(t, err)
	require.Equal(t, VersionLabel{Status: StatusFinal, Major: 2, Minor: 0}, a.Version())

	history := a.Audit().History()
	kinds := make([]AuditKind, 0, len(history))
	for i, entry := range history {
		require.Equal(t, i+1, entry.Seq)
		kinds = append(kinds, entry.Kind)
	}
	require.Equal(t, []AuditKind{
		AuditCreate, AuditApprove, AuditNewVersion, AuditEdit, AuditApprove, AuditRetire, AuditReactivate,
	}, kinds)
	require.Equal(t, StatusRetired, history[5].ResultingStatus())
	require.NoError(t, a.Validate())

	labels, err := Replay(history)
	require.NoError(t, err)
	require.Len(t, labels, len(a.Versions()))
	for i, s := range a.Versions() {
		require.Equal(t, s.Metadata.Version, labels[i])
	}
}

func TestEngine_MetadataChainIsContinuous(t *testing.T) {
	e := newTestEngine()
	a := e.Create("T-1", editable, term{Name: "x"}, "alice")
	a, err := e.EditDraft(a, term{Name: "y"}, "", "alice")
	require.NoError(t, err)
	a, err = e.Approve(a, "alice")
	require.NoError(t, err)

	versions := a.Versions()
	require.Len(t, versions, 3)
	for i := 0; i < len(versions)-1; i++ {
		require.NotNil(t, versions[i].Metadata.EndDate)
		require.True(t, versions[i].Metadata.EndDate.Equal(versions[i+1].Metadata.StartDate))
	}
	require.True(t, versions[2].Metadata.Open())
	require.Equal(t, DescriptionInitial, versions[0].Metadata.ChangeDescription)
	require.Equal(t, DescriptionApproved, versions[2].Metadata.ChangeDescription)

	latestDraft, ok := a.Latest(StatusDraft)
	require.True(t, ok)
	require.Equal(t, "0.2", latestDraft.Metadata.Version.String())
	_, ok = a.Latest(StatusRetired)
	require.False(t, ok)
}

func TestEngine_TransitionsDoNotMutateInput(t *testing.T) {
	e := newTestEngine()
	a := e.Create("T-1", editable, term{Name: "x"}, "alice")
	before := a.Versions()

	b, err := e.EditDraft(a, term{Name: "y"}, "change", "alice")
	require.NoError(t, err)

	require.Equal(t, before, a.Versions())
	require.Equal(t, 1, a.Audit().Len())
	require.True(t, a.Metadata().Open())
	require.Equal(t, 2, b.Audit().Len())
}

func TestEngine_EditDraftRejections(t *testing.T) {
	e := newTestEngine()

	t.Run("not draft", func(t *testing.T) {
		a := e.Create("T-1", editable, term{Name: "x"}, "alice")
		a, err := e.Approve(a, "alice")
		require.NoError(t, err)
		_, err = e.EditDraft(a, term{Name: "y"}, "", "alice")
		require.True(t, IsReason(err, ReasonNotDraft))
		require.EqualError(t, err, "The object is not in draft status.")
	})

	t.Run("library not editable", func(t *testing.T) {
		a := e.Create("T-2", Library{Name: "CDISC"}, term{Name: "x"}, "alice")
		_, err := e.EditDraft(a, term{Name: "y"}, "", "alice")
		require.True(t, IsReason(err, ReasonNotEditable))
		require.EqualError(t, err, "Library is not editable.")
	})

	t.Run("no changes", func(t *testing.T) {
		a := e.Create("T-3", editable, term{Name: "x"}, "alice")
		out, err := e.EditDraft(a, term{Name: "x"}, "", "alice")
		require.True(t, IsReason(err, ReasonNoChanges))
		require.Equal(t, 1, out.Audit().Len())
	})
}

func TestEngine_ApproveRequiresEditableLibrary(t *testing.T) {
	e := newTestEngine()
	a := e.Create("T-1", editable, term{Name: "x"}, "alice")
	a = a.WithLibrary(Library{Name: "Sponsor", IsEditable: false})

	_, err := e.Approve(a, "alice")
	require.True(t, IsReason(err, ReasonNotEditable))
}

func TestEngine_EditabilityOnlyGuardsEditAndApprove(t *testing.T) {
	e := newTestEngine()
	locked := Library{Name: "CDISC", IsEditable: false}

	draft := e.Create("T-1", locked, term{Name: "x"}, "alice")
	requireLabel(t, draft.Version(), StatusDraft, "0.1")

	// Status is checked before editability.
	final, err := e.Approve(draft.WithLibrary(editable), "alice")
	require.NoError(t, err)
	final = final.WithLibrary(locked)
	_, err = e.Approve(final, "alice")
	require.True(t, IsReason(err, ReasonNotDraft), "got %v", err)

	retired, err := e.Retire(final, "alice")
	require.NoError(t, err)
	reactivated, err := e.Reactivate(retired, "alice")
	require.NoError(t, err)
	next, err := e.CreateNewVersion(reactivated, "alice")
	require.NoError(t, err)
	requireLabel(t, next.Version(), StatusDraft, "1.1")

	_, err = e.EditDraft(next, term{Name: "y"}, "", "alice")
	require.True(t, IsReason(err, ReasonNotEditable), "got %v", err)
}

func TestEngine_StatusPreconditions(t *testing.T) {
	e := newTestEngine()
	draft := e.Create("T-1", editable, term{Name: "x"}, "alice")

	_, err := e.Retire(draft, "alice")
	require.EqualError(t, err, "Cannot retire draft version.")

	_, err = e.CreateNewVersion(draft, "alice")
	require.EqualError(t, err, "Cannot create new Draft version")

	_, err = e.Reactivate(draft, "alice")
	require.EqualError(t, err, "Only RETIRED version can be reactivated.")

	final, err := e.Approve(draft, "alice")
	require.NoError(t, err)
	_, err = e.Approve(final, "alice")
	require.True(t, IsReason(err, ReasonNotDraft))

	verr, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, StatusFinal, verr.Status)
	require.Equal(t, "1.0", verr.Version)
}

func TestEngine_SoftDelete(t *testing.T) {
	e := newTestEngine()

	t.Run("never approved draft", func(t *testing.T) {
		a := e.Create("T-1", editable, term{Name: "x"}, "alice")
		a, err := e.EditDraft(a, term{Name: "y"}, "", "alice")
		require.NoError(t, err)

		deleted, err := e.SoftDelete(a, "alice")
		require.NoError(t, err)
		require.True(t, deleted.Deleted())
		require.Equal(t, VersionLabel{Status: StatusDeleted, Major: 0, Minor: 2}, deleted.Version())
		require.Empty(t, deleted.PossibleActions())
		last, _ := deleted.Audit().Last()
		require.Equal(t, AuditDelete, last.Kind)
		require.NoError(t, deleted.Validate())

		_, err = e.Approve(deleted, "bob")
		require.True(t, IsReason(err, ReasonLabelsChanged))
		_, err = e.SoftDelete(deleted, "bob")
		require.True(t, IsReason(err, ReasonLabelsChanged))
	})

	t.Run("draft on top of approved version", func(t *testing.T) {
		a := e.Create("T-2", editable, term{Name: "x"}, "alice")
		a, err := e.Approve(a, "alice")
		require.NoError(t, err)
		a, err = e.CreateNewVersion(a, "alice")
		require.NoError(t, err)

		_, err = e.SoftDelete(a, "alice")
		require.EqualError(t, err, "Object has been accepted")
	})

	t.Run("final", func(t *testing.T) {
		a := e.Create("T-3", editable, term{Name: "x"}, "alice")
		a, err := e.Approve(a, "alice")
		require.NoError(t, err)
		_, err = e.SoftDelete(a, "alice")
		require.True(t, IsReason(err, ReasonAccepted))
	})
}

func TestEngine_TimestampsStrictlyIncreaseWithFrozenClock(t *testing.T) {
	frozen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e := NewEngine[term](nil, WithClock(func() time.Time { return frozen }))

	a := e.Create("T-1", editable, term{Name: "x"}, "alice")
	a, err := e.Approve(a, "alice")
	require.NoError(t, err)
	a, err = e.Retire(a, "alice")
	require.NoError(t, err)

	history := a.Audit().History()
	for i := 1; i < len(history); i++ {
		require.True(t, history[i].Timestamp.After(history[i-1].Timestamp))
	}
	require.NoError(t, a.Validate())
}

func TestRehydrate_RejectsBrokenChains(t *testing.T) {
	e := newTestEngine()
	a := e.Create("T-1", editable, term{Name: "x"}, "alice")
	a, err := e.Approve(a, "alice")
	require.NoError(t, err)

	restored, err := Rehydrate("T-1", editable, a.Versions(), a.Audit().History())
	require.NoError(t, err)
	require.Equal(t, a.Version(), restored.Version())

	_, err = Rehydrate("T-1", editable, a.Versions(), a.Audit().History()[:1])
	require.True(t, IsReason(err, ReasonInvalidState))

	versions := a.Versions()
	versions[0].Metadata.EndDate = nil
	_, err = Rehydrate("T-1", editable, versions, a.Audit().History())
	require.True(t, IsReason(err, ReasonInvalidState))
}

func requireLabel(t *testing.T, got VersionLabel, status Status, number string) {
	t.Helper()
	require.Equal(t, status, got.Status)
	require.Equal(t, number, got.String())
}

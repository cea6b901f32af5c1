package versioning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuditTrail_AppendAssignsSeqAndKeepsOriginal(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var trail AuditTrail

	one, err := trail.Append(AuditEntry{Kind: AuditCreate, Timestamp: t0, Author: "a"})
	require.NoError(t, err)
	two, err := one.Append(AuditEntry{Seq: 99, Kind: AuditApprove, Timestamp: t0.Add(time.Second), Author: "a"})
	require.NoError(t, err)

	require.Equal(t, 0, trail.Len())
	require.Equal(t, 1, one.Len())
	require.Equal(t, 2, two.Len())
	last, ok := two.Last()
	require.True(t, ok)
	require.Equal(t, 2, last.Seq)
}

func TestAuditTrail_RejectsOutOfOrderEntries(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trail, err := AuditTrail{}.Append(AuditEntry{Kind: AuditCreate, Timestamp: t0})
	require.NoError(t, err)

	_, err = trail.Append(AuditEntry{Kind: AuditEdit, Timestamp: t0})
	require.Error(t, err)
	_, err = trail.Append(AuditEntry{Kind: AuditEdit, Timestamp: t0.Add(-time.Second)})
	require.Error(t, err)
	_, err = trail.Append(AuditEntry{Kind: "Rename", Timestamp: t0.Add(time.Second)})
	require.Error(t, err)
}

func TestNewAuditTrail_RequiresGapFreeSeq(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := NewAuditTrail(
		AuditEntry{Seq: 1, Kind: AuditCreate, Timestamp: t0},
		AuditEntry{Seq: 3, Kind: AuditApprove, Timestamp: t0.Add(time.Second)},
	)
	require.True(t, IsReason(err, ReasonInvalidState))
}

func TestAuditTrail_AllIsRestartable(t *testing.T) {
	e := newTestEngine()
	a := e.Create("T-1", editable, term{Name: "x"}, "alice")
	a, err := e.Approve(a, "alice")
	require.NoError(t, err)

	count := func() int {
		n := 0
		for range a.Audit().All() {
			n++
		}
		return n
	}
	require.Equal(t, 2, count())
	require.Equal(t, 2, count())

	entry, ok := a.Audit().At(2)
	require.True(t, ok)
	require.Equal(t, StatusFinal, entry.ResultingStatus())
	_, ok = a.Audit().At(3)
	require.False(t, ok)
}

func TestReplay_RejectsIllegalHistory(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := Replay([]AuditEntry{
		{Seq: 1, Kind: AuditCreate, Timestamp: t0, Version: VersionLabel{Status: StatusDraft, Minor: 1}},
		{Seq: 2, Kind: AuditRetire, Timestamp: t0.Add(time.Second), Version: VersionLabel{Status: StatusRetired, Minor: 1}},
	})
	require.True(t, IsReason(err, ReasonInvalidState))

	_, err = Replay([]AuditEntry{
		{Seq: 1, Kind: AuditApprove, Timestamp: t0, Version: VersionLabel{Status: StatusFinal, Major: 1}},
	})
	require.Error(t, err)
}

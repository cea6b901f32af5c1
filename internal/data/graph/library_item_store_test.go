package graph

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/mdr-library-backend/internal/data/aggregates"
	"github.com/yungbote/mdr-library-backend/internal/domain/library"
	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
	"github.com/yungbote/mdr-library-backend/internal/platform/neo4jdb"
)

func record(params map[string]any) *neo4j.Record {
	rec := &neo4j.Record{}
	for k, v := range params {
		rec.Keys = append(rec.Keys, k)
		rec.Values = append(rec.Values, v)
	}
	return rec
}

func TestSnapshotParamsRoundTrip(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.UTC)
	end := start.Add(time.Hour)
	snap := versioning.Snapshot[library.Term]{
		Metadata: versioning.ItemMetadata{
			Version:           versioning.VersionLabel{Status: versioning.StatusDraft, Major: 1, Minor: 2},
			Author:            "alice",
			ChangeDescription: "units",
			StartDate:         start,
			EndDate:           &end,
		},
		Payload: library.Term{Name: "Body weight", Synonyms: []string{"BW"}},
	}
	codec := aggregates.JSONCodec[library.Term]{}
	p, err := versionParams(3, snap, codec)
	require.NoError(t, err)
	require.Equal(t, int64(3), p["seq"])

	got, err := snapshotFromRecord(record(p), codec)
	require.NoError(t, err)
	require.Equal(t, snap.Metadata.Version, got.Metadata.Version)
	require.True(t, got.Metadata.StartDate.Equal(start))
	require.NotNil(t, got.Metadata.EndDate)
	require.True(t, got.Metadata.EndDate.Equal(end))
	require.True(t, snap.Payload.Equal(got.Payload))

	snap.Metadata.EndDate = nil
	p, err = versionParams(3, snap, codec)
	require.NoError(t, err)
	require.Nil(t, p["end_date"])
	got, err = snapshotFromRecord(record(p), codec)
	require.NoError(t, err)
	require.Nil(t, got.Metadata.EndDate)
}

func TestAuditParamsRoundTrip(t *testing.T) {
	e := versioning.AuditEntry{
		Seq:       4,
		Kind:      versioning.AuditRetire,
		Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 1000, time.UTC),
		Author:    "bob",
		Version:   versioning.VersionLabel{Status: versioning.StatusRetired, Major: 2},
	}
	got, err := entryFromRecord(record(auditParams(e)))
	require.NoError(t, err)
	require.Equal(t, e.Seq, got.Seq)
	require.Equal(t, e.Kind, got.Kind)
	require.Equal(t, e.Version, got.Version)
	require.True(t, e.Timestamp.Equal(got.Timestamp))

	_, err = entryFromRecord(record(map[string]any{"status": "Bogus", "occurred_at": "x"}))
	require.Error(t, err)
}

func TestLatestRel(t *testing.T) {
	for status, want := range map[versioning.Status]string{
		"":                       "LATEST",
		versioning.StatusDraft:   "LATEST_DRAFT",
		versioning.StatusFinal:   "LATEST_FINAL",
		versioning.StatusRetired: "LATEST_RETIRED",
	} {
		got, ok := latestRel(status)
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	_, ok := latestRel(versioning.StatusDeleted)
	require.False(t, ok)
}

func TestLibraryItemStore_Neo4jIntegration(t *testing.T) {
	uri := os.Getenv("TEST_NEO4J_URI")
	if uri == "" {
		t.Skip("set TEST_NEO4J_URI to run neo4j integration tests")
	}
	ctx := context.Background()
	log := logger.NewNop()
	client, err := neo4jdb.New(ctx, log, neo4jdb.Config{
		URI:      uri,
		User:     os.Getenv("TEST_NEO4J_USER"),
		Password: os.Getenv("TEST_NEO4J_PASSWORD"),
	})
	require.NoError(t, err)
	defer client.Close(ctx)

	store := NewLibraryItemStore[library.Term](client, log, library.EntityTerm, nil)
	store.EnsureSchema(ctx)
	engine := versioning.NewEngine[library.Term](library.Term.Equal)
	lib := versioning.Library{Name: "Sponsor", IsEditable: true}
	uid := uuid.NewString()

	item := engine.Create(uid, lib, library.Term{Name: "Height"}, "alice")
	require.NoError(t, store.InTx(ctx, func(uow aggregates.UnitOfWork[library.Term]) error {
		return uow.Insert(item)
	}))
	require.Error(t, store.InTx(ctx, func(uow aggregates.UnitOfWork[library.Term]) error {
		return uow.Insert(item)
	}))

	step := func(apply func(versioning.Aggregate[library.Term]) (versioning.Aggregate[library.Term], error)) {
		t.Helper()
		require.NoError(t, store.InTx(ctx, func(uow aggregates.UnitOfWork[library.Term]) error {
			h, err := uow.LoadForUpdate(uid)
			if err != nil {
				return err
			}
			next, err := apply(h.Snapshot().WithLibrary(lib))
			if err != nil {
				return err
			}
			return uow.Commit(h, next)
		}))
	}
	step(func(a versioning.Aggregate[library.Term]) (versioning.Aggregate[library.Term], error) {
		return engine.EditDraft(a, library.Term{Name: "Height", Definition: "Standing height"}, "definition", "bob")
	})
	step(func(a versioning.Aggregate[library.Term]) (versioning.Aggregate[library.Term], error) {
		return engine.SoftDelete(a, "bob")
	})

	got, err := store.Load(ctx, uid)
	require.NoError(t, err)
	require.True(t, got.Deleted())
	require.Equal(t, "Standing height", got.Payload().Definition)

	hist, err := store.History(ctx, uid)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	require.Equal(t, versioning.AuditDelete, hist[2].Kind)
}

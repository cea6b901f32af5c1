package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/mdr-library-backend/internal/data/aggregates"
	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
	"github.com/yungbote/mdr-library-backend/internal/platform/neo4jdb"
)

// cypherRunner is implemented by both managed and explicit transactions.
type cypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (neo4j.ResultWithContext, error)
}

// LibraryItemStore keeps items of one entity type as a graph:
//
//	(:Library)-[:CONTAINS]->(:LibraryItemRoot)-[:HAS_VERSION]->(:LibraryItemValue)
//	(:LibraryItemRoot)-[:HAS_AUDIT]->(:LibraryItemAudit)
//	(:LibraryItemRoot)-[:LATEST|LATEST_DRAFT|LATEST_FINAL|LATEST_RETIRED]->(:LibraryItemValue)
//
// Snapshot metadata lives on HAS_VERSION. A soft-deleted root is relabelled
// DeletedLibraryItemRoot and keeps its history.
type LibraryItemStore[V any] struct {
	client     *neo4jdb.Client
	log        *logger.Logger
	entityType string
	codec      aggregates.PayloadCodec[V]
}

var _ aggregates.Store[int] = (*LibraryItemStore[int])(nil)

func NewLibraryItemStore[V any](client *neo4jdb.Client, baseLog *logger.Logger, entityType string, codec aggregates.PayloadCodec[V]) *LibraryItemStore[V] {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	if codec == nil {
		codec = aggregates.JSONCodec[V]{}
	}
	return &LibraryItemStore[V]{
		client:     client,
		log:        baseLog.With("store", "Neo4jLibraryItemStore", "entity_type", entityType),
		entityType: strings.TrimSpace(entityType),
		codec:      codec,
	}
}

// EnsureSchema creates the uniqueness constraints. Failures are logged and
// ignored, as for the other graph writers.
func (s *LibraryItemStore[V]) EnsureSchema(ctx context.Context) {
	if s.client == nil || s.client.Driver == nil {
		return
	}
	session := s.client.WriteSession(ctx)
	defer session.Close(ctx)
	stmts := []string{
		`CREATE CONSTRAINT library_item_root_uid_unique IF NOT EXISTS FOR (r:LibraryItemRoot) REQUIRE r.uid IS UNIQUE`,
		`CREATE CONSTRAINT library_name_unique IF NOT EXISTS FOR (l:Library) REQUIRE l.name IS UNIQUE`,
		`CREATE INDEX library_item_value_uid IF NOT EXISTS FOR (v:LibraryItemValue) ON (v.uid, v.seq)`,
	}
	for _, q := range stmts {
		if res, err := session.Run(ctx, q, nil); err != nil {
			s.log.Warn("neo4j schema init failed (continuing)", "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	}
}

func (s *LibraryItemStore[V]) configured() error {
	if s.client == nil || s.client.Driver == nil {
		return aggregates.InvariantError("neo4j client not configured")
	}
	return nil
}

func (s *LibraryItemStore[V]) Load(ctx context.Context, uid string) (versioning.Aggregate[V], error) {
	if err := s.configured(); err != nil {
		return versioning.Aggregate[V]{}, err
	}
	session := s.client.ReadSession(ctx)
	defer session.Close(ctx)
	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		root, err := s.readRoot(ctx, tx, uid, false)
		if err != nil {
			return nil, err
		}
		return s.rehydrate(ctx, tx, root)
	})
	if err != nil {
		return versioning.Aggregate[V]{}, err
	}
	return out.(versioning.Aggregate[V]), nil
}

func (s *LibraryItemStore[V]) History(ctx context.Context, uid string) ([]versioning.AuditEntry, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	session := s.client.ReadSession(ctx)
	defer session.Close(ctx)
	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		root, err := s.readRoot(ctx, tx, uid, false)
		if err != nil {
			return nil, err
		}
		entries, err := readAudit(ctx, tx, root.uid)
		if err != nil {
			return nil, err
		}
		trail, err := versioning.NewAuditTrail(entries...)
		if err != nil {
			return nil, err
		}
		return trail.History(), nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]versioning.AuditEntry), nil
}

// InTx runs fn in one explicit transaction. It is never retried here;
// transient failures surface as retryable errors.
func (s *LibraryItemStore[V]) InTx(ctx context.Context, fn func(uow aggregates.UnitOfWork[V]) error) error {
	if err := s.configured(); err != nil {
		return err
	}
	session := s.client.WriteSession(ctx)
	defer session.Close(ctx)
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	defer tx.Close(ctx)

	u := &graphUnit[V]{store: s, ctx: ctx, tx: tx}
	if err := fn(u); err != nil {
		u.done = true
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.log.Warn("neo4j rollback failed", "error", rbErr)
		}
		return err
	}
	u.done = true
	return tx.Commit(ctx)
}

type rootRecord struct {
	uid        string
	library    string
	auditCount int
}

const matchRoot = `
MATCH (r {uid: $uid})
WHERE (r:LibraryItemRoot OR r:DeletedLibraryItemRoot) AND r.entity_type = $entity_type
`

func (s *LibraryItemStore[V]) readRoot(ctx context.Context, tx cypherRunner, uid string, lock bool) (rootRecord, error) {
	q := matchRoot
	if lock {
		// Writing a property takes the node's write lock until the transaction ends.
		q += "SET r.__WRITE_LOCK__ = true REMOVE r.__WRITE_LOCK__\n"
	}
	q += "RETURN r.uid AS uid, r.library_name AS library_name, r.audit_count AS audit_count"
	res, err := tx.Run(ctx, q, map[string]any{"uid": strings.TrimSpace(uid), "entity_type": s.entityType})
	if err != nil {
		return rootRecord{}, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return rootRecord{}, err
	}
	if len(records) == 0 {
		return rootRecord{}, aggregates.NotFoundError(uid)
	}
	rec := records[0]
	return rootRecord{
		uid:        recString(rec, "uid"),
		library:    recString(rec, "library_name"),
		auditCount: recInt(rec, "audit_count"),
	}, nil
}

func (s *LibraryItemStore[V]) rehydrate(ctx context.Context, tx cypherRunner, root rootRecord) (versioning.Aggregate[V], error) {
	res, err := tx.Run(ctx, `
MATCH (r {uid: $uid})-[hv:HAS_VERSION]->(v:LibraryItemValue)
WHERE r:LibraryItemRoot OR r:DeletedLibraryItemRoot
RETURN hv.seq AS seq, hv.status AS status, hv.major AS major, hv.minor AS minor,
       hv.author AS author, hv.change_description AS change_description,
       hv.start_date AS start_date, hv.end_date AS end_date, v.payload_json AS payload_json
ORDER BY seq ASC
`, map[string]any{"uid": root.uid})
	if err != nil {
		return versioning.Aggregate[V]{}, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return versioning.Aggregate[V]{}, err
	}
	snaps := make([]versioning.Snapshot[V], 0, len(records))
	for i, rec := range records {
		if seq := recInt(rec, "seq"); seq != i+1 {
			return versioning.Aggregate[V]{}, aggregates.InvariantError(fmt.Sprintf("item %s: version seq %d out of order", root.uid, seq))
		}
		snap, err := snapshotFromRecord(rec, s.codec)
		if err != nil {
			return versioning.Aggregate[V]{}, err
		}
		snaps = append(snaps, snap)
	}
	entries, err := readAudit(ctx, tx, root.uid)
	if err != nil {
		return versioning.Aggregate[V]{}, err
	}
	if len(entries) != root.auditCount {
		return versioning.Aggregate[V]{}, aggregates.InvariantError(fmt.Sprintf(
			"item %s: audit_count %d does not match %d audit nodes", root.uid, root.auditCount, len(entries)))
	}
	return versioning.Rehydrate(root.uid, versioning.Library{Name: root.library}, snaps, entries)
}

func readAudit(ctx context.Context, tx cypherRunner, uid string) ([]versioning.AuditEntry, error) {
	res, err := tx.Run(ctx, `
MATCH (r {uid: $uid})-[:HAS_AUDIT]->(a:LibraryItemAudit)
WHERE r:LibraryItemRoot OR r:DeletedLibraryItemRoot
RETURN a.seq AS seq, a.kind AS kind, a.author AS author, a.status AS status,
       a.major AS major, a.minor AS minor, a.occurred_at AS occurred_at
ORDER BY seq ASC
`, map[string]any{"uid": uid})
	if err != nil {
		return nil, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]versioning.AuditEntry, 0, len(records))
	for _, rec := range records {
		e, err := entryFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

type graphUnit[V any] struct {
	store *LibraryItemStore[V]
	ctx   context.Context
	tx    neo4j.ExplicitTransaction
	done  bool
}

type graphToken struct {
	unit any
	uid  string
}

func (u *graphUnit[V]) Insert(item versioning.Aggregate[V]) error {
	if u.done {
		return aggregates.InvariantError("unit of work already finished")
	}
	ctx, s := u.ctx, u.store
	uid := item.UID()

	res, err := u.tx.Run(ctx, `
OPTIONAL MATCH (x {uid: $uid})
WHERE x:LibraryItemRoot OR x:DeletedLibraryItemRoot
RETURN count(x) AS n
`, map[string]any{"uid": uid})
	if err != nil {
		return err
	}
	rec, err := res.Single(ctx)
	if err != nil {
		return err
	}
	if recInt(rec, "n") > 0 {
		return aggregates.ConflictError("library item already exists: " + uid)
	}

	cur := item.Version()
	snaps := item.Versions()
	last, _ := item.Audit().Last()
	if err := run(ctx, u.tx, `
MERGE (l:Library {name: $library})
CREATE (r:LibraryItemRoot {
  uid: $uid, entity_type: $entity_type, library_name: $library,
  status: $status, major: $major, minor: $minor, audit_count: $audit_count,
  created_at: $created_at, updated_at: $updated_at
})
CREATE (l)-[:CONTAINS]->(r)
`, map[string]any{
		"uid":         uid,
		"entity_type": s.entityType,
		"library":     strings.TrimSpace(item.Library().Name),
		"status":      string(cur.Status),
		"major":       int64(cur.Major),
		"minor":       int64(cur.Minor),
		"audit_count": int64(item.Audit().Len()),
		"created_at":  formatTime(snaps[0].Metadata.StartDate),
		"updated_at":  formatTime(last.Timestamp),
	}); err != nil {
		return err
	}

	versions := make([]map[string]any, 0, len(snaps))
	for i, snap := range snaps {
		p, err := versionParams(i+1, snap, s.codec)
		if err != nil {
			return err
		}
		versions = append(versions, p)
	}
	if err := appendSnapshots(ctx, u.tx, uid, versions); err != nil {
		return err
	}
	entries := make([]map[string]any, 0, item.Audit().Len())
	for e := range item.Audit().All() {
		entries = append(entries, auditParams(e))
	}
	if err := appendAudit(ctx, u.tx, uid, entries); err != nil {
		return err
	}
	for _, status := range []versioning.Status{versioning.StatusDraft, versioning.StatusFinal, versioning.StatusRetired} {
		for i := len(snaps) - 1; i >= 0; i-- {
			if snaps[i].Metadata.Version.Status == status {
				if err := pointLatest(ctx, u.tx, uid, i+1, status); err != nil {
					return err
				}
				break
			}
		}
	}
	return pointLatest(ctx, u.tx, uid, len(snaps), "")
}

func (u *graphUnit[V]) Context() context.Context { return u.ctx }

func (u *graphUnit[V]) LoadForUpdate(uid string) (aggregates.Handle[V], error) {
	if u.done {
		return aggregates.Handle[V]{}, aggregates.InvariantError("unit of work already finished")
	}
	root, err := u.store.readRoot(u.ctx, u.tx, uid, true)
	if err != nil {
		return aggregates.Handle[V]{}, err
	}
	item, err := u.store.rehydrate(u.ctx, u.tx, root)
	if err != nil {
		return aggregates.Handle[V]{}, err
	}
	return aggregates.NewHandle(item, graphToken{unit: u, uid: root.uid}), nil
}

func (u *graphUnit[V]) Commit(h aggregates.Handle[V], next versioning.Aggregate[V]) error {
	tok, ok := h.Token().(graphToken)
	if !ok || tok.unit != any(u) || tok.uid != next.UID() {
		return aggregates.InvariantError("handle does not belong to this unit of work")
	}
	if u.done {
		return aggregates.InvariantError("unit of work already finished")
	}
	cs, err := aggregates.Diff(h.Snapshot(), next)
	if err != nil {
		return err
	}
	ctx := u.ctx
	opened := cs.Opened.Metadata.Version

	res, err := u.tx.Run(ctx, `
MATCH (r:LibraryItemRoot {uid: $uid})
WHERE r.audit_count = $expected
MATCH (r)-[hv:HAS_VERSION {seq: $closed_seq}]->(:LibraryItemValue)
WHERE hv.end_date IS NULL
SET hv.end_date = $end_date,
    r.audit_count = $expected + 1,
    r.status = $status,
    r.major = $major,
    r.minor = $minor,
    r.updated_at = $updated_at
RETURN count(hv) AS n
`, map[string]any{
		"uid":        cs.UID,
		"expected":   int64(cs.ExpectedAuditLen),
		"closed_seq": int64(cs.ClosedSeq),
		"end_date":   formatTimePtr(cs.Closed.Metadata.EndDate),
		"status":     string(cs.Status),
		"major":      int64(opened.Major),
		"minor":      int64(opened.Minor),
		"updated_at": formatTime(cs.Entry.Timestamp),
	})
	if err != nil {
		return err
	}
	rec, err := res.Single(ctx)
	if err != nil {
		return err
	}
	if err := aggregates.RequireCASSuccess(recInt(rec, "n") == 1, "library item "+cs.UID+" was modified concurrently"); err != nil {
		return err
	}

	seq := cs.ClosedSeq + 1
	p, err := versionParams(seq, cs.Opened, u.store.codec)
	if err != nil {
		return err
	}
	if err := appendSnapshots(ctx, u.tx, cs.UID, []map[string]any{p}); err != nil {
		return err
	}
	if err := appendAudit(ctx, u.tx, cs.UID, []map[string]any{auditParams(cs.Entry)}); err != nil {
		return err
	}
	if err := pointLatest(ctx, u.tx, cs.UID, seq, ""); err != nil {
		return err
	}
	if cs.Status == versioning.StatusDeleted {
		return run(ctx, u.tx, `
MATCH (r:LibraryItemRoot {uid: $uid})
REMOVE r:LibraryItemRoot
SET r:DeletedLibraryItemRoot, r.deleted = true
`, map[string]any{"uid": cs.UID})
	}
	return pointLatest(ctx, u.tx, cs.UID, seq, cs.Status)
}

func appendSnapshots(ctx context.Context, tx cypherRunner, uid string, versions []map[string]any) error {
	if len(versions) == 0 {
		return nil
	}
	return run(ctx, tx, `
MATCH (r:LibraryItemRoot {uid: $uid})
UNWIND $versions AS ver
CREATE (v:LibraryItemValue {uid: $uid, seq: ver.seq, payload_json: ver.payload_json})
CREATE (r)-[hv:HAS_VERSION]->(v)
SET hv.seq = ver.seq,
    hv.status = ver.status,
    hv.major = ver.major,
    hv.minor = ver.minor,
    hv.author = ver.author,
    hv.change_description = ver.change_description,
    hv.start_date = ver.start_date,
    hv.end_date = ver.end_date
`, map[string]any{"uid": uid, "versions": versions})
}

func appendAudit(ctx context.Context, tx cypherRunner, uid string, entries []map[string]any) error {
	if len(entries) == 0 {
		return nil
	}
	return run(ctx, tx, `
MATCH (r:LibraryItemRoot {uid: $uid})
UNWIND $entries AS e
CREATE (r)-[:HAS_AUDIT]->(a:LibraryItemAudit)
SET a = e, a.uid = $uid
`, map[string]any{"uid": uid, "entries": entries})
}

// pointLatest moves the LATEST pointer (status "") or the per-status pointer
// to snapshot seq.
func pointLatest(ctx context.Context, tx cypherRunner, uid string, seq int, status versioning.Status) error {
	rel, ok := latestRel(status)
	if !ok {
		return nil
	}
	return run(ctx, tx, fmt.Sprintf(`
MATCH (r:LibraryItemRoot {uid: $uid})
MATCH (v:LibraryItemValue {uid: $uid, seq: $seq})
OPTIONAL MATCH (r)-[old:%[1]s]->()
DELETE old
WITH DISTINCT r, v
CREATE (r)-[:%[1]s]->(v)
`, rel), map[string]any{"uid": uid, "seq": int64(seq)})
}

func latestRel(status versioning.Status) (string, bool) {
	switch status {
	case "":
		return "LATEST", true
	case versioning.StatusDraft:
		return "LATEST_DRAFT", true
	case versioning.StatusFinal:
		return "LATEST_FINAL", true
	case versioning.StatusRetired:
		return "LATEST_RETIRED", true
	default:
		return "", false
	}
}

func run(ctx context.Context, tx cypherRunner, cypher string, params map[string]any) error {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

func versionParams[V any](seq int, snap versioning.Snapshot[V], codec aggregates.PayloadCodec[V]) (map[string]any, error) {
	raw, err := codec.Encode(snap.Payload)
	if err != nil {
		return nil, aggregates.ValidationError(fmt.Sprintf("encode payload: %v", err))
	}
	md := snap.Metadata
	return map[string]any{
		"seq":                int64(seq),
		"status":             string(md.Version.Status),
		"major":              int64(md.Version.Major),
		"minor":              int64(md.Version.Minor),
		"author":             md.Author,
		"change_description": md.ChangeDescription,
		"start_date":         formatTime(md.StartDate),
		"end_date":           formatTimePtr(md.EndDate),
		"payload_json":       string(raw),
	}, nil
}

func auditParams(e versioning.AuditEntry) map[string]any {
	return map[string]any{
		"seq":         int64(e.Seq),
		"kind":        string(e.Kind),
		"author":      e.Author,
		"status":      string(e.Version.Status),
		"major":       int64(e.Version.Major),
		"minor":       int64(e.Version.Minor),
		"occurred_at": formatTime(e.Timestamp),
	}
}

func snapshotFromRecord[V any](rec *neo4j.Record, codec aggregates.PayloadCodec[V]) (versioning.Snapshot[V], error) {
	var snap versioning.Snapshot[V]
	status, err := versioning.ParseStatus(recString(rec, "status"))
	if err != nil {
		return snap, aggregates.InvariantError(err.Error())
	}
	start, err := parseTime(recString(rec, "start_date"))
	if err != nil {
		return snap, err
	}
	payload, err := codec.Decode([]byte(recString(rec, "payload_json")))
	if err != nil {
		return snap, aggregates.InvariantError(fmt.Sprintf("decode payload: %v", err))
	}
	snap.Payload = payload
	snap.Metadata = versioning.ItemMetadata{
		Version:           versioning.VersionLabel{Status: status, Major: recInt(rec, "major"), Minor: recInt(rec, "minor")},
		Author:            recString(rec, "author"),
		ChangeDescription: recString(rec, "change_description"),
		StartDate:         start,
	}
	if raw := recString(rec, "end_date"); raw != "" {
		end, err := parseTime(raw)
		if err != nil {
			return snap, err
		}
		snap.Metadata.EndDate = &end
	}
	return snap, nil
}

func entryFromRecord(rec *neo4j.Record) (versioning.AuditEntry, error) {
	status, err := versioning.ParseStatus(recString(rec, "status"))
	if err != nil {
		return versioning.AuditEntry{}, aggregates.InvariantError(err.Error())
	}
	at, err := parseTime(recString(rec, "occurred_at"))
	if err != nil {
		return versioning.AuditEntry{}, err
	}
	return versioning.AuditEntry{
		Seq:       recInt(rec, "seq"),
		Kind:      versioning.AuditKind(recString(rec, "kind")),
		Timestamp: at,
		Author:    recString(rec, "author"),
		Version:   versioning.VersionLabel{Status: status, Major: recInt(rec, "major"), Minor: recInt(rec, "minor")},
	}, nil
}

func recString(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func recInt(rec *neo4j.Record, key string) int {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, aggregates.InvariantError(fmt.Sprintf("bad timestamp %q: %v", raw, err))
	}
	return t.UTC(), nil
}

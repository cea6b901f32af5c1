package aggregates

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	repolib "github.com/yungbote/mdr-library-backend/internal/data/repos/library"
	types "github.com/yungbote/mdr-library-backend/internal/domain/library"
	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
	"github.com/yungbote/mdr-library-backend/internal/platform/dbctx"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
)

const libraryItemRootTable = "library_item_root"

// PayloadCodec converts payloads to and from the JSON column of a snapshot row.
type PayloadCodec[V any] interface {
	Encode(v V) ([]byte, error)
	Decode(raw []byte) (V, error)
}

type JSONCodec[V any] struct{}

func (JSONCodec[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec[V]) Decode(raw []byte) (V, error) {
	var v V
	if len(raw) == 0 {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}

type GormStoreDeps struct {
	DB         *gorm.DB
	Runner     TxRunner
	Log        *logger.Logger
	EntityType string

	Roots    repolib.LibraryItemRootRepo
	Versions repolib.LibraryItemVersionRepo
	Audits   repolib.LibraryItemAuditRepo
}

// GormStore keeps items of one entity type in relational tables. Writers take
// a row lock on the item root and bump its audit counter with a
// compare-and-set, so a stale handle can never commit.
type GormStore[V any] struct {
	deps  GormStoreDeps
	codec PayloadCodec[V]
	cas   CASGuard
}

var _ Store[int] = (*GormStore[int])(nil)

func NewGormStore[V any](deps GormStoreDeps, codec PayloadCodec[V]) *GormStore[V] {
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if deps.Runner == nil {
		deps.Runner = NewGormTxRunner(deps.DB)
	}
	if deps.Roots == nil {
		deps.Roots = repolib.NewLibraryItemRootRepo(deps.DB, deps.Log)
	}
	if deps.Versions == nil {
		deps.Versions = repolib.NewLibraryItemVersionRepo(deps.DB, deps.Log)
	}
	if deps.Audits == nil {
		deps.Audits = repolib.NewLibraryItemAuditRepo(deps.DB, deps.Log)
	}
	if codec == nil {
		codec = JSONCodec[V]{}
	}
	deps.Log = deps.Log.With("store", "GormLibraryItemStore", "entity_type", deps.EntityType)
	return &GormStore[V]{deps: deps, codec: codec, cas: NewCASGuard(deps.DB)}
}

func (s *GormStore[V]) Load(ctx context.Context, uid string) (versioning.Aggregate[V], error) {
	dbc := dbctx.New(ctx)
	root, err := s.root(s.deps.Roots.GetByUID(dbc, uid))
	if err != nil {
		return versioning.Aggregate[V]{}, err
	}
	if root == nil {
		return versioning.Aggregate[V]{}, NotFoundError(uid)
	}
	return s.rehydrate(dbc, root)
}

func (s *GormStore[V]) History(ctx context.Context, uid string) ([]versioning.AuditEntry, error) {
	dbc := dbctx.New(ctx)
	root, err := s.root(s.deps.Roots.GetByUID(dbc, uid))
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, NotFoundError(uid)
	}
	rows, err := s.deps.Audits.ListByItem(dbc, root.UID)
	if err != nil {
		return nil, err
	}
	entries, err := entriesFromRows(rows)
	if err != nil {
		return nil, err
	}
	trail, err := versioning.NewAuditTrail(entries...)
	if err != nil {
		return nil, err
	}
	return trail.History(), nil
}

func (s *GormStore[V]) InTx(ctx context.Context, fn func(uow UnitOfWork[V]) error) error {
	return s.deps.Runner.InTx(ctx, func(dbc dbctx.Context) error {
		u := &gormUnit[V]{store: s, dbc: dbc}
		defer func() { u.done = true }()
		return fn(u)
	})
}

// root drops rows that belong to another entity type.
func (s *GormStore[V]) root(root *types.LibraryItemRoot, err error) (*types.LibraryItemRoot, error) {
	if err != nil || root == nil {
		return nil, err
	}
	if s.deps.EntityType != "" && root.EntityType != s.deps.EntityType {
		return nil, nil
	}
	return root, nil
}

func (s *GormStore[V]) rehydrate(dbc dbctx.Context, root *types.LibraryItemRoot) (versioning.Aggregate[V], error) {
	versionRows, err := s.deps.Versions.ListByItem(dbc, root.UID)
	if err != nil {
		return versioning.Aggregate[V]{}, err
	}
	auditRows, err := s.deps.Audits.ListByItem(dbc, root.UID)
	if err != nil {
		return versioning.Aggregate[V]{}, err
	}
	if len(auditRows) != root.AuditCount {
		return versioning.Aggregate[V]{}, InvariantError(fmt.Sprintf(
			"item %s: audit_count %d does not match %d audit rows", root.UID, root.AuditCount, len(auditRows)))
	}
	snaps := make([]versioning.Snapshot[V], 0, len(versionRows))
	for i, row := range versionRows {
		if row.Seq != i+1 {
			return versioning.Aggregate[V]{}, InvariantError(fmt.Sprintf("item %s: version seq %d out of order", root.UID, row.Seq))
		}
		snap, err := s.snapshotFromRow(row)
		if err != nil {
			return versioning.Aggregate[V]{}, err
		}
		snaps = append(snaps, snap)
	}
	entries, err := entriesFromRows(auditRows)
	if err != nil {
		return versioning.Aggregate[V]{}, err
	}
	return versioning.Rehydrate(root.UID, versioning.Library{Name: root.LibraryName}, snaps, entries)
}

func (s *GormStore[V]) snapshotFromRow(row *types.LibraryItemVersion) (versioning.Snapshot[V], error) {
	var snap versioning.Snapshot[V]
	status, err := versioning.ParseStatus(row.Status)
	if err != nil {
		return snap, InvariantError(err.Error())
	}
	payload, err := s.codec.Decode(row.Payload)
	if err != nil {
		return snap, InvariantError(fmt.Sprintf("decode payload of %s#%d: %v", row.ItemUID, row.Seq, err))
	}
	snap.Payload = payload
	snap.Metadata = versioning.ItemMetadata{
		Version:           versioning.VersionLabel{Status: status, Major: row.Major, Minor: row.Minor},
		Author:            row.Author,
		ChangeDescription: row.ChangeDescription,
		StartDate:         row.StartDate.UTC(),
	}
	if row.EndDate != nil {
		end := row.EndDate.UTC()
		snap.Metadata.EndDate = &end
	}
	return snap, nil
}

func (s *GormStore[V]) versionRow(uid string, seq int, snap versioning.Snapshot[V]) (*types.LibraryItemVersion, error) {
	raw, err := s.codec.Encode(snap.Payload)
	if err != nil {
		return nil, ValidationError(fmt.Sprintf("encode payload: %v", err))
	}
	md := snap.Metadata
	row := &types.LibraryItemVersion{
		ID:                uuid.New(),
		ItemUID:           uid,
		Seq:               seq,
		Status:            string(md.Version.Status),
		Major:             md.Version.Major,
		Minor:             md.Version.Minor,
		Author:            md.Author,
		ChangeDescription: md.ChangeDescription,
		StartDate:         md.StartDate.UTC(),
		Payload:           datatypes.JSON(raw),
	}
	if md.EndDate != nil {
		end := md.EndDate.UTC()
		row.EndDate = &end
	}
	return row, nil
}

func auditRow(uid string, e versioning.AuditEntry) *types.LibraryItemAudit {
	return &types.LibraryItemAudit{
		ID:         uuid.New(),
		ItemUID:    uid,
		Seq:        e.Seq,
		Kind:       string(e.Kind),
		Author:     e.Author,
		Status:     string(e.Version.Status),
		Major:      e.Version.Major,
		Minor:      e.Version.Minor,
		OccurredAt: e.Timestamp.UTC(),
	}
}

func entriesFromRows(rows []*types.LibraryItemAudit) ([]versioning.AuditEntry, error) {
	out := make([]versioning.AuditEntry, 0, len(rows))
	for _, row := range rows {
		status, err := versioning.ParseStatus(row.Status)
		if err != nil {
			return nil, InvariantError(err.Error())
		}
		out = append(out, versioning.AuditEntry{
			Seq:       row.Seq,
			Kind:      versioning.AuditKind(row.Kind),
			Timestamp: row.OccurredAt.UTC(),
			Author:    row.Author,
			Version:   versioning.VersionLabel{Status: status, Major: row.Major, Minor: row.Minor},
		})
	}
	return out, nil
}

type gormUnit[V any] struct {
	store *GormStore[V]
	dbc   dbctx.Context
	done  bool
}

type gormToken struct {
	unit any
	uid  string
}

func (u *gormUnit[V]) Insert(item versioning.Aggregate[V]) error {
	if u.done {
		return InvariantError("unit of work already finished")
	}
	s := u.store
	cur := item.Version()
	last, _ := item.Audit().Last()
	root := &types.LibraryItemRoot{
		UID:         item.UID(),
		EntityType:  s.deps.EntityType,
		LibraryName: strings.TrimSpace(item.Library().Name),
		Status:      string(cur.Status),
		Major:       cur.Major,
		Minor:       cur.Minor,
		Deleted:     item.Deleted(),
		AuditCount:  item.Audit().Len(),
		CreatedAt:   item.Versions()[0].Metadata.StartDate,
		UpdatedAt:   last.Timestamp,
	}
	if err := s.deps.Roots.Create(u.dbc, root); err != nil {
		return err
	}
	snaps := item.Versions()
	versionRows := make([]*types.LibraryItemVersion, 0, len(snaps))
	for i, snap := range snaps {
		row, err := s.versionRow(item.UID(), i+1, snap)
		if err != nil {
			return err
		}
		versionRows = append(versionRows, row)
	}
	if err := s.deps.Versions.Create(u.dbc, versionRows); err != nil {
		return err
	}
	auditRows := make([]*types.LibraryItemAudit, 0, item.Audit().Len())
	for e := range item.Audit().All() {
		auditRows = append(auditRows, auditRow(item.UID(), e))
	}
	return s.deps.Audits.Create(u.dbc, auditRows)
}

func (u *gormUnit[V]) Context() context.Context {
	return dbctx.WithTx(u.dbc.Ctx, u.dbc.Tx)
}

func (u *gormUnit[V]) LoadForUpdate(uid string) (Handle[V], error) {
	if u.done {
		return Handle[V]{}, InvariantError("unit of work already finished")
	}
	root, err := u.store.root(u.store.deps.Roots.LockByUID(u.dbc, uid))
	if err != nil {
		return Handle[V]{}, err
	}
	if root == nil {
		return Handle[V]{}, NotFoundError(uid)
	}
	item, err := u.store.rehydrate(u.dbc, root)
	if err != nil {
		return Handle[V]{}, err
	}
	return NewHandle(item, gormToken{unit: u, uid: root.UID}), nil
}

func (u *gormUnit[V]) Commit(h Handle[V], next versioning.Aggregate[V]) error {
	tok, ok := h.Token().(gormToken)
	if !ok || tok.unit != any(u) || tok.uid != next.UID() {
		return InvariantError("handle does not belong to this unit of work")
	}
	if u.done {
		return InvariantError("unit of work already finished")
	}
	cs, err := Diff(h.Snapshot(), next)
	if err != nil {
		return err
	}
	s := u.store
	swapped, err := s.cas.UpdateByCounter(u.dbc, libraryItemRootTable, "audit_count", cs.UID, cs.ExpectedAuditLen, map[string]any{
		"audit_count": cs.ExpectedAuditLen + 1,
		"status":      string(cs.Status),
		"major":       cs.Opened.Metadata.Version.Major,
		"minor":       cs.Opened.Metadata.Version.Minor,
		"deleted":     cs.Status == versioning.StatusDeleted,
		"updated_at":  cs.Entry.Timestamp.UTC(),
	})
	if err != nil {
		return err
	}
	if err := RequireCASSuccess(swapped, "library item "+cs.UID+" was modified concurrently"); err != nil {
		return err
	}

	end := time.Time{}
	if cs.Closed.Metadata.EndDate != nil {
		end = *cs.Closed.Metadata.EndDate
	}
	closed, err := s.deps.Versions.CloseOpen(u.dbc, cs.UID, cs.ClosedSeq, end)
	if err != nil {
		return err
	}
	if err := RequireCASSuccess(closed, fmt.Sprintf("snapshot %d of %s is no longer open", cs.ClosedSeq, cs.UID)); err != nil {
		return err
	}
	row, err := s.versionRow(cs.UID, cs.ClosedSeq+1, cs.Opened)
	if err != nil {
		return err
	}
	if err := s.deps.Versions.Create(u.dbc, []*types.LibraryItemVersion{row}); err != nil {
		return err
	}
	return s.deps.Audits.Create(u.dbc, []*types.LibraryItemAudit{auditRow(cs.UID, cs.Entry)})
}

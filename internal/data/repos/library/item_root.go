package library

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/mdr-library-backend/internal/domain/library"
	"github.com/yungbote/mdr-library-backend/internal/platform/dbctx"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
)

type LibraryItemRootRepo interface {
	Create(dbc dbctx.Context, root *types.LibraryItemRoot) error
	// GetByUID returns nil, nil when the uid is unknown.
	GetByUID(dbc dbctx.Context, uid string) (*types.LibraryItemRoot, error)
	// LockByUID reads the row with SELECT ... FOR UPDATE. Dialects without row
	// locks (SQLite) ignore the locking clause.
	LockByUID(dbc dbctx.Context, uid string) (*types.LibraryItemRoot, error)
}

type libraryItemRootRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLibraryItemRootRepo(db *gorm.DB, baseLog *logger.Logger) LibraryItemRootRepo {
	return &libraryItemRootRepo{
		db:  db,
		log: baseLog.With("repo", "LibraryItemRootRepo"),
	}
}

func (r *libraryItemRootRepo) Create(dbc dbctx.Context, root *types.LibraryItemRoot) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if root == nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(root).Error
}

func (r *libraryItemRootRepo) GetByUID(dbc dbctx.Context, uid string) (*types.LibraryItemRoot, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return r.take(transaction.WithContext(dbc.Ctx), uid)
}

func (r *libraryItemRootRepo) LockByUID(dbc dbctx.Context, uid string) (*types.LibraryItemRoot, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return r.take(transaction.WithContext(dbc.Ctx).Clauses(clause.Locking{Strength: "UPDATE"}), uid)
}

func (r *libraryItemRootRepo) take(q *gorm.DB, uid string) (*types.LibraryItemRoot, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, nil
	}
	var out types.LibraryItemRoot
	err := q.Where("uid = ?", uid).Limit(1).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

package library

import (
	"strings"

	"gorm.io/gorm"

	types "github.com/yungbote/mdr-library-backend/internal/domain/library"
	"github.com/yungbote/mdr-library-backend/internal/platform/dbctx"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
)

type LibraryItemAuditRepo interface {
	Create(dbc dbctx.Context, rows []*types.LibraryItemAudit) error
	ListByItem(dbc dbctx.Context, uid string) ([]*types.LibraryItemAudit, error)
}

type libraryItemAuditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLibraryItemAuditRepo(db *gorm.DB, baseLog *logger.Logger) LibraryItemAuditRepo {
	return &libraryItemAuditRepo{
		db:  db,
		log: baseLog.With("repo", "LibraryItemAuditRepo"),
	}
}

func (r *libraryItemAuditRepo) Create(dbc dbctx.Context, rows []*types.LibraryItemAudit) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(&rows).Error
}

func (r *libraryItemAuditRepo) ListByItem(dbc dbctx.Context, uid string) ([]*types.LibraryItemAudit, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.LibraryItemAudit
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("item_uid = ?", uid).
		Order("seq ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

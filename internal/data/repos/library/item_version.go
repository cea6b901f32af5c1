package library

import (
	"strings"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/mdr-library-backend/internal/domain/library"
	"github.com/yungbote/mdr-library-backend/internal/platform/dbctx"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
)

type LibraryItemVersionRepo interface {
	Create(dbc dbctx.Context, rows []*types.LibraryItemVersion) error
	ListByItem(dbc dbctx.Context, uid string) ([]*types.LibraryItemVersion, error)
	// CloseOpen sets end_date on snapshot seq if it is still open. It reports
	// whether a row was closed.
	CloseOpen(dbc dbctx.Context, uid string, seq int, endDate time.Time) (bool, error)
}

type libraryItemVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLibraryItemVersionRepo(db *gorm.DB, baseLog *logger.Logger) LibraryItemVersionRepo {
	return &libraryItemVersionRepo{
		db:  db,
		log: baseLog.With("repo", "LibraryItemVersionRepo"),
	}
}

func (r *libraryItemVersionRepo) Create(dbc dbctx.Context, rows []*types.LibraryItemVersion) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(&rows).Error
}

func (r *libraryItemVersionRepo) ListByItem(dbc dbctx.Context, uid string) ([]*types.LibraryItemVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.LibraryItemVersion
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

func (r *libraryItemVersionRepo) CloseOpen(dbc dbctx.Context, uid string, seq int, endDate time.Time) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.LibraryItemVersion{}).
		Where("item_uid = ? AND seq = ? AND end_date IS NULL", strings.TrimSpace(uid), seq).
		Update("end_date", endDate.UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

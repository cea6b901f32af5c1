package library

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/mdr-library-backend/internal/domain/library"
	"github.com/yungbote/mdr-library-backend/internal/platform/dbctx"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
)

type LibraryRepo interface {
	Upsert(dbc dbctx.Context, libs []*types.Library) error
	// GetByName returns nil, nil when no library has the name.
	GetByName(dbc dbctx.Context, name string) (*types.Library, error)
	List(dbc dbctx.Context) ([]*types.Library, error)
}

type libraryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLibraryRepo(db *gorm.DB, baseLog *logger.Logger) LibraryRepo {
	return &libraryRepo{
		db:  db,
		log: baseLog.With("repo", "LibraryRepo"),
	}
}

func (r *libraryRepo) Upsert(dbc dbctx.Context, libs []*types.Library) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(libs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, l := range libs {
		l.Name = strings.TrimSpace(l.Name)
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		l.UpdatedAt = now
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_editable", "updated_at"}),
		}).
		Create(&libs).Error
}

func (r *libraryRepo) GetByName(dbc dbctx.Context, name string) (*types.Library, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	var out types.Library
	err := transaction.WithContext(dbc.Ctx).
		Where("name = ?", name).
		Limit(1).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *libraryRepo) List(dbc dbctx.Context) ([]*types.Library, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Library
	if err := transaction.WithContext(dbc.Ctx).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

package aggregates

import (
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/mdr-library-backend/internal/platform/dbctx"
)

// CASGuard provides compare-and-set helpers for relational aggregate writes.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

func (g CASGuard) baseDB(dbc dbctx.Context) (*gorm.DB, error) {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx), nil
	}
	if g.db != nil {
		return g.db.WithContext(dbc.Ctx), nil
	}
	return nil, ValidationError("missing db transaction context")
}

// UpdateByCounter updates the row keyed by uid only while counterColumn still
// holds expected. The caller bumps the counter in updates.
func (g CASGuard) UpdateByCounter(dbc dbctx.Context, table, counterColumn, uid string, expected int, updates map[string]any) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	table = strings.TrimSpace(table)
	counterColumn = strings.TrimSpace(counterColumn)
	if table == "" || counterColumn == "" || strings.TrimSpace(uid) == "" {
		return false, ValidationError("table, counter column and uid are required for UpdateByCounter")
	}
	if expected < 0 {
		return false, ValidationError("expected counter must be >= 0")
	}
	res := db.Table(table).
		Where("uid = ? AND "+counterColumn+" = ?", uid, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateByStatus updates the row keyed by uid only when its status is allowed.
func (g CASGuard) UpdateByStatus(dbc dbctx.Context, table, uid string, allowedStatuses []string, updates map[string]any) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	table = strings.TrimSpace(table)
	if table == "" || strings.TrimSpace(uid) == "" {
		return false, ValidationError("table and uid are required for UpdateByStatus")
	}
	if len(allowedStatuses) == 0 {
		return false, ValidationError("allowedStatuses must not be empty")
	}
	res := db.Table(table).
		Where("uid = ? AND status IN ?", uid, allowedStatuses).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RequireCASSuccess converts a failed compare-and-set into a typed conflict error.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(strings.TrimSpace(message))
}

// RequireCounterMatch validates that a freshly read counter still equals the
// value a handle was taken at.
func RequireCounterMatch(current, expected int) error {
	if expected < 0 {
		return ValidationError("expected counter must be >= 0")
	}
	if current != expected {
		return ConflictError("audit trail advanced since the item was loaded")
	}
	return nil
}

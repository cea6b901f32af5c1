package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/mdr-library-backend/internal/domain/library"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// =========================
		// Library catalogue
		// =========================
		&library.Library{},

		// =========================
		// Versioned items
		// =========================
		&library.LibraryItemRoot{},
		&library.LibraryItemVersion{},
		&library.LibraryItemAudit{},
	); err != nil {
		return err
	}
	return ensureIndexes(db)
}

// ensureIndexes adds constraints AutoMigrate cannot express. Partial indexes
// are supported by both Postgres and SQLite.
func ensureIndexes(db *gorm.DB) error {
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_library_item_version_open
			ON library_item_version (item_uid) WHERE end_date IS NULL`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure index: %w", err)
		}
	}
	return nil
}

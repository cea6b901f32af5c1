package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
)

// SQLiteService backs single-node and test deployments. SQLite has no row
// locks, so concurrent writers to one item are caught by the audit counter
// compare-and-set and surface as conflicts.
type SQLiteService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSQLiteService(logg *logger.Logger, path string) (*SQLiteService, error) {
	serviceLog := logg.With("service", "SQLiteService")
	path = strings.TrimSpace(path)
	if path == "" {
		path = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig(serviceLog))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite %q: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One writer at a time; readers share the same connection.
	sqlDB.SetMaxOpenConns(1)

	serviceLog.Info("opened SQLite", "path", path)
	return &SQLiteService{db: db, log: serviceLog}, nil
}

func (s *SQLiteService) DB() *gorm.DB { return s.db }

func (s *SQLiteService) Close() error { return closeDB(s.db) }

package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/mdr-library-backend/internal/data/repos/library"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
)

type LibraryRepo = library.LibraryRepo
type LibraryItemRootRepo = library.LibraryItemRootRepo
type LibraryItemVersionRepo = library.LibraryItemVersionRepo
type LibraryItemAuditRepo = library.LibraryItemAuditRepo

func NewLibraryRepo(db *gorm.DB, baseLog *logger.Logger) LibraryRepo {
	return library.NewLibraryRepo(db, baseLog)
}
func NewLibraryItemRootRepo(db *gorm.DB, baseLog *logger.Logger) LibraryItemRootRepo {
	return library.NewLibraryItemRootRepo(db, baseLog)
}
func NewLibraryItemVersionRepo(db *gorm.DB, baseLog *logger.Logger) LibraryItemVersionRepo {
	return library.NewLibraryItemVersionRepo(db, baseLog)
}
func NewLibraryItemAuditRepo(db *gorm.DB, baseLog *logger.Logger) LibraryItemAuditRepo {
	return library.NewLibraryItemAuditRepo(db, baseLog)
}

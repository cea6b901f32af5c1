package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/mdr-library-backend/internal/domain/library"
)

func SeedLibrary(tb testing.TB, ctx context.Context, tx *gorm.DB, name string, editable bool) *types.Library {
	tb.Helper()
	now := time.Now().UTC()
	l := &types.Library{Name: name, IsEditable: editable, CreatedAt: now, UpdatedAt: now}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed library: %v", err)
	}
	return l
}

// SeedDraftItem stores a Draft 0.1 item with one open snapshot and one
// Create audit entry.
func SeedDraftItem(tb testing.TB, ctx context.Context, tx *gorm.DB, entityType, libraryName, author string) *types.LibraryItemRoot {
	tb.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	root := &types.LibraryItemRoot{
		UID:         uuid.NewString(),
		EntityType:  entityType,
		LibraryName: libraryName,
		Status:      "Draft",
		Major:       0,
		Minor:       1,
		AuditCount:  1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(root).Error; err != nil {
		tb.Fatalf("seed root: %v", err)
	}
	v := &types.LibraryItemVersion{
		ID:                uuid.New(),
		ItemUID:           root.UID,
		Seq:               1,
		Status:            "Draft",
		Minor:             1,
		Author:            author,
		ChangeDescription: "Initial version",
		StartDate:         now,
		Payload:           datatypes.JSON([]byte(`{"name":"seed"}`)),
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed version: %v", err)
	}
	a := &types.LibraryItemAudit{
		ID:         uuid.New(),
		ItemUID:    root.UID,
		Seq:        1,
		Kind:       "Create",
		Author:     author,
		Status:     "Draft",
		Minor:      1,
		OccurredAt: now,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed audit: %v", err)
	}
	return root
}

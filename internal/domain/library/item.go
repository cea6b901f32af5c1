package library

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// LibraryItemRoot is the identity row of one item. Status, Major and Minor
// mirror the current snapshot; AuditCount is the compare-and-set counter.
type LibraryItemRoot struct {
	UID         string    `gorm:"column:uid;primaryKey" json:"uid"`
	EntityType  string    `gorm:"column:entity_type;not null;index" json:"entity_type"`
	LibraryName string    `gorm:"column:library_name;not null;index" json:"library_name"`
	Status      string    `gorm:"column:status;not null" json:"status"`
	Major       int       `gorm:"column:major;not null" json:"major"`
	Minor       int       `gorm:"column:minor;not null" json:"minor"`
	Deleted     bool      `gorm:"column:deleted;not null;default:false;index" json:"deleted"`
	AuditCount  int       `gorm:"column:audit_count;not null" json:"audit_count"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (LibraryItemRoot) TableName() string { return "library_item_root" }

// LibraryItemVersion is one snapshot of an item. Seq is its 1-based position
// in the chain; only the last row has a nil EndDate.
type LibraryItemVersion struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ItemUID           string         `gorm:"column:item_uid;not null;uniqueIndex:idx_library_item_version_seq,priority:1" json:"item_uid"`
	Seq               int            `gorm:"column:seq;not null;uniqueIndex:idx_library_item_version_seq,priority:2" json:"seq"`
	Status            string         `gorm:"column:status;not null" json:"status"`
	Major             int            `gorm:"column:major;not null" json:"major"`
	Minor             int            `gorm:"column:minor;not null" json:"minor"`
	Author            string         `gorm:"column:author;not null" json:"author"`
	ChangeDescription string         `gorm:"column:change_description" json:"change_description"`
	StartDate         time.Time      `gorm:"column:start_date;not null" json:"start_date"`
	EndDate           *time.Time     `gorm:"column:end_date" json:"end_date,omitempty"`
	Payload           datatypes.JSON `gorm:"column:payload" json:"payload"`
}

func (LibraryItemVersion) TableName() string { return "library_item_version" }

// LibraryItemAudit is one append-only audit entry.
type LibraryItemAudit struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ItemUID    string    `gorm:"column:item_uid;not null;uniqueIndex:idx_library_item_audit_seq,priority:1" json:"item_uid"`
	Seq        int       `gorm:"column:seq;not null;uniqueIndex:idx_library_item_audit_seq,priority:2" json:"seq"`
	Kind       string    `gorm:"column:kind;not null" json:"kind"`
	Author     string    `gorm:"column:author;not null" json:"author"`
	Status     string    `gorm:"column:status;not null" json:"status"`
	Major      int       `gorm:"column:major;not null" json:"major"`
	Minor      int       `gorm:"column:minor;not null" json:"minor"`
	OccurredAt time.Time `gorm:"column:occurred_at;not null;index" json:"occurred_at"`
}

func (LibraryItemAudit) TableName() string { return "library_item_audit" }

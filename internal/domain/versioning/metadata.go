package versioning

import "time"

// Default change descriptions recorded for transitions that take none.
const (
	DescriptionInitial     = "Initial version"
	DescriptionNewDraft    = "New draft created"
	DescriptionApproved    = "Approved version"
	DescriptionRetired     = "Inactivated version"
	DescriptionReactivated = "Reactivated version"
	DescriptionDeleted     = "Deleted version"
)

// ItemMetadata describes one historical snapshot of an item.
// EndDate is nil while the snapshot is the current one.
type ItemMetadata struct {
	Version           VersionLabel `json:"version"`
	Author            string       `json:"author"`
	ChangeDescription string       `json:"change_description"`
	StartDate         time.Time    `json:"start_date"`
	EndDate           *time.Time   `json:"end_date,omitempty"`
}

func (m ItemMetadata) Open() bool { return m.EndDate == nil }

func (m ItemMetadata) closedAt(at time.Time) ItemMetadata {
	end := at
	m.EndDate = &end
	return m
}

// Snapshot pairs a metadata entry with the payload it was recorded with.
type Snapshot[V any] struct {
	Metadata ItemMetadata `json:"metadata"`
	Payload  V            `json:"payload"`
}

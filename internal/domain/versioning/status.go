package versioning

import (
	"fmt"
	"strconv"
	"strings"
)

// Status is the lifecycle category of a version snapshot.
type Status string

const (
	StatusDraft   Status = "Draft"
	StatusFinal   Status = "Final"
	StatusRetired Status = "Retired"
	// StatusDeleted is terminal and only reachable from a never-approved Draft.
	StatusDeleted Status = "Deleted"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusFinal, StatusRetired, StatusDeleted:
		return true
	default:
		return false
	}
}

// ParseStatus accepts any casing of a known status name.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "draft":
		return StatusDraft, nil
	case "final":
		return StatusFinal, nil
	case "retired":
		return StatusRetired, nil
	case "deleted":
		return StatusDeleted, nil
	default:
		return "", fmt.Errorf("unknown status %q", raw)
	}
}

// VersionLabel is the (status, major, minor) triple carried by a snapshot.
type VersionLabel struct {
	Status Status `json:"status"`
	Major  int    `json:"major"`
	Minor  int    `json:"minor"`
}

// String renders the canonical "major.minor" form.
func (v VersionLabel) String() string {
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
}

// Compare orders labels by (major, minor) and ignores status.
func (v VersionLabel) Compare(o VersionLabel) int {
	switch {
	case v.Major != o.Major:
		if v.Major < o.Major {
			return -1
		}
		return 1
	case v.Minor != o.Minor:
		if v.Minor < o.Minor {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// Validate checks the numbering rules of the label's status.
func (v VersionLabel) Validate() error {
	if v.Major < 0 || v.Minor < 0 {
		return invalidState(fmt.Sprintf("negative version %s", v))
	}
	switch v.Status {
	case StatusFinal, StatusRetired:
		if v.Minor != 0 || v.Major < 1 {
			return invalidState(fmt.Sprintf("%s version must be N.0 with N >= 1, got %s", v.Status, v))
		}
	case StatusDraft:
		if v.Minor < 1 {
			return invalidState(fmt.Sprintf("Draft version must have minor >= 1, got %s", v))
		}
	case StatusDeleted:
		if v.Major != 0 || v.Minor < 1 {
			return invalidState(fmt.Sprintf("Deleted version must be 0.N with N >= 1, got %s", v))
		}
	default:
		return invalidState(fmt.Sprintf("unknown status %q", v.Status))
	}
	return nil
}

// ParseVersion parses a canonical "major.minor" string.
func ParseVersion(raw string) (major, minor int, err error) {
	head, tail, ok := strings.Cut(strings.TrimSpace(raw), ".")
	if !ok {
		return 0, 0, fmt.Errorf("version %q is not major.minor", raw)
	}
	if major, err = strconv.Atoi(head); err != nil || major < 0 {
		return 0, 0, fmt.Errorf("invalid major in version %q", raw)
	}
	if minor, err = strconv.Atoi(tail); err != nil || minor < 0 {
		return 0, 0, fmt.Errorf("invalid minor in version %q", raw)
	}
	return major, minor, nil
}

package versioning

import "fmt"

// Replay recomputes the label sequence implied by an audit history and checks
// that every recorded label matches the transition rules. The returned slice
// has one label per entry.
func Replay(entries []AuditEntry) ([]VersionLabel, error) {
	out := make([]VersionLabel, 0, len(entries))
	var cur VersionLabel
	for i, e := range entries {
		next, err := replayStep(i, cur, e.Kind)
		if err != nil {
			if ReasonOf(err) == ReasonInvalidState {
				return nil, err
			}
			return nil, invalidState(fmt.Sprintf("audit entry %d (%s): %s", i+1, e.Kind, err))
		}
		if next != e.Version {
			return nil, invalidState(fmt.Sprintf("audit entry %d (%s) records %s %s, expected %s %s",
				i+1, e.Kind, e.Version.Status, e.Version, next.Status, next))
		}
		out = append(out, next)
		cur = next
	}
	return out, nil
}

func replayStep(i int, cur VersionLabel, kind AuditKind) (VersionLabel, error) {
	if i == 0 {
		if kind != AuditCreate {
			return VersionLabel{}, invalidState(fmt.Sprintf("history must start with %s, got %s", AuditCreate, kind))
		}
		return VersionLabel{Status: StatusDraft, Major: 0, Minor: 1}, nil
	}
	if cur.Status == StatusDeleted {
		return VersionLabel{}, rejected(ReasonLabelsChanged, cur)
	}
	switch kind {
	case AuditEdit:
		if cur.Status != StatusDraft {
			return VersionLabel{}, rejected(ReasonNotDraft, cur)
		}
		return VersionLabel{Status: StatusDraft, Major: cur.Major, Minor: cur.Minor + 1}, nil
	case AuditApprove:
		if cur.Status != StatusDraft {
			return VersionLabel{}, rejected(ReasonNotDraft, cur)
		}
		return VersionLabel{Status: StatusFinal, Major: cur.Major + 1}, nil
	case AuditNewVersion:
		if cur.Status != StatusFinal {
			return VersionLabel{}, rejected(ReasonCannotCreateDraft, cur)
		}
		return VersionLabel{Status: StatusDraft, Major: cur.Major, Minor: 1}, nil
	case AuditRetire:
		if cur.Status != StatusFinal {
			return VersionLabel{}, rejected(ReasonCannotRetire, cur)
		}
		return VersionLabel{Status: StatusRetired, Major: cur.Major, Minor: cur.Minor}, nil
	case AuditReactivate:
		if cur.Status != StatusRetired {
			return VersionLabel{}, rejected(ReasonNotRetired, cur)
		}
		return VersionLabel{Status: StatusFinal, Major: cur.Major, Minor: cur.Minor}, nil
	case AuditDelete:
		if cur.Status != StatusDraft || cur.Major != 0 {
			return VersionLabel{}, rejected(ReasonAccepted, cur)
		}
		return VersionLabel{Status: StatusDeleted, Major: 0, Minor: cur.Minor}, nil
	default:
		return VersionLabel{}, invalidState(fmt.Sprintf("unexpected %s after %s %s", kind, cur.Status, cur))
	}
}

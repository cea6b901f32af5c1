package versioning

// Action is a transition a caller may request next.
type Action string

const (
	ActionApprove    Action = "approve"
	ActionEdit       Action = "edit"
	ActionDelete     Action = "delete"
	ActionNewVersion Action = "new_version"
	ActionRetire     Action = "inactivate"
	ActionReactivate Action = "reactivate"
)

// PossibleActions is derived only from the status and major version.
func PossibleActions(v VersionLabel) []Action {
	switch v.Status {
	case StatusDraft:
		if v.Major == 0 {
			return []Action{ActionApprove, ActionEdit, ActionDelete}
		}
		return []Action{ActionApprove, ActionEdit}
	case StatusFinal:
		return []Action{ActionRetire, ActionNewVersion}
	case StatusRetired:
		return []Action{ActionReactivate}
	default:
		return []Action{}
	}
}

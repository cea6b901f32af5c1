package versioning

import "errors"

// Reason identifies which lifecycle precondition failed.
type Reason string

const (
	ReasonAccepted          Reason = "accepted"
	ReasonNotDraft          Reason = "not_draft"
	ReasonCannotRetire      Reason = "cannot_retire"
	ReasonCannotCreateDraft Reason = "cannot_create_draft"
	ReasonNotRetired        Reason = "not_retired"
	ReasonLabelsChanged     Reason = "labels_changed"
	ReasonNotEditable       Reason = "library_not_editable"
	ReasonNoChanges         Reason = "no_changes"
	ReasonInvalidState      Reason = "invalid_state"
)

var reasonMessages = map[Reason]string{
	ReasonAccepted:          "Object has been accepted",
	ReasonNotDraft:          "The object is not in draft status.",
	ReasonCannotRetire:      "Cannot retire draft version.",
	ReasonCannotCreateDraft: "Cannot create new Draft version",
	ReasonNotRetired:        "Only RETIRED version can be reactivated.",
	ReasonLabelsChanged:     "Object labels were changed — likely the object was deleted in a concurrent transaction.",
	ReasonNotEditable:       "Library is not editable.",
	ReasonNoChanges:         "Nothing to change: the new value is equal to the current one.",
}

// Message returns the stable user-facing message of a reason.
func (r Reason) Message() string {
	return reasonMessages[r]
}

// Error is returned when a lifecycle precondition does not hold.
// Callers branch on Reason; Message is stable and safe to show to users.
type Error struct {
	Reason  Reason
	Message string
	// Status and Version describe the aggregate the operation was validated against.
	Status  Status
	Version string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func rejected(reason Reason, label VersionLabel) error {
	return &Error{
		Reason:  reason,
		Message: reason.Message(),
		Status:  label.Status,
		Version: label.String(),
	}
}

func invalidState(msg string) error {
	return &Error{Reason: ReasonInvalidState, Message: msg}
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var verr *Error
	if errors.As(err, &verr) && verr != nil {
		return verr, true
	}
	return nil, false
}

// IsReason reports whether err carries the given reason.
func IsReason(err error, reason Reason) bool {
	verr, ok := AsError(err)
	return ok && verr.Reason == reason
}

// ReasonOf returns the reason carried by err, or "".
func ReasonOf(err error) Reason {
	if verr, ok := AsError(err); ok {
		return verr.Reason
	}
	return ""
}

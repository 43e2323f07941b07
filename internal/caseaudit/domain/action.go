package domain

import "strings"

type ActionKind string

const (
	ActionStart    ActionKind = "start"
	ActionSave     ActionKind = "save"
	ActionComplete ActionKind = "complete"
	ActionReopen   ActionKind = "reopen"
)

func ParseActionKind(raw string) (ActionKind, error) {
	kind := ActionKind(strings.ToLower(strings.TrimSpace(raw)))
	switch kind {
	case ActionStart, ActionSave, ActionComplete, ActionReopen:
		return kind, nil
	default:
		return "", ErrInvalidActionKind
	}
}

// Event is the transition trail action written for a successful kind.
func (k ActionKind) Event() string {
	switch k {
	case ActionStart:
		return "case_audit.started"
	case ActionSave:
		return "case_audit.saved"
	case ActionComplete:
		return "case_audit.completed"
	case ActionReopen:
		return "case_audit.reopened"
	default:
		return "case_audit.unknown"
	}
}

type ActionRequest struct {
	RecordID string         `json:"-"`
	ActorID  string         `json:"-"`
	Kind     ActionKind     `json:"kind" validate:"required,oneof=start save complete reopen"`
	Review   *ReviewPayload `json:"review,omitempty"`
	// ExpectedVersion rejects the action when the record moved on since the caller read it.
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

// Decision is the outcome of a permission check with a machine-readable reason.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

package model

import "fmt"

// Action is a conflict-resolution decision.
type Action int

const (
	// ActionKeepRegistry applies the registry identity's name and phone.
	ActionKeepRegistry Action = iota + 1
	// ActionUseImported keeps each record's own imported name and phone.
	ActionUseImported
	// ActionManualEdit applies a user-supplied name and phone.
	ActionManualEdit
	// ActionCreateIdentity registers a new identity and links the records to it.
	ActionCreateIdentity
)

// Actions lists every action in display order.
var Actions = []Action{ActionKeepRegistry, ActionUseImported, ActionManualEdit, ActionCreateIdentity}

// String returns the wire name of the action.
func (a Action) String() string {
	switch a {
	case ActionKeepRegistry:
		return "keep_registry"
	case ActionUseImported:
		return "use_imported"
	case ActionManualEdit:
		return "manual_edit"
	case ActionCreateIdentity:
		return "create_identity"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ParseAction converts a wire name into an Action.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// ConflictType classifies why a cluster needs a decision.
type ConflictType string

const (
	// ConflictNameMismatch means no exact match but a similar registry name exists.
	ConflictNameMismatch ConflictType = "name_mismatch"
	// ConflictPhoneMismatch means the identity matched but phones disagree.
	ConflictPhoneMismatch ConflictType = "phone_mismatch"
	// ConflictNoMatch means nothing in the registry resembles the name.
	ConflictNoMatch ConflictType = "no_match"
)

// ParseConflictType validates a conflict type name.
func ParseConflictType(s string) (ConflictType, error) {
	switch ConflictType(s) {
	case ConflictNameMismatch, ConflictPhoneMismatch, ConflictNoMatch:
		return ConflictType(s), nil
	default:
		return "", fmt.Errorf("unknown conflict type %q", s)
	}
}

// ConflictState is the lifecycle state of a conflict.
type ConflictState string

const (
	// StatePending awaits a decision.
	StatePending ConflictState = "pending"
	// StateResolved has an explicit decision applied.
	StateResolved ConflictState = "resolved"
	// StateSkipped had the skip default applied.
	StateSkipped ConflictState = "skipped"
)

// ConflictResolution is one decision for one conflict.
type ConflictResolution struct {
	ManualName  string
	ManualPhone string
	RecordIndex int
	Action      Action
}

// SavedDecision is a decision persisted for an unfinished session. ClusterKey
// is the normalized cluster name, which stays stable when a changed registry
// renumbers the conflicts of a resumed run.
type SavedDecision struct {
	ClusterKey string
	Resolution ConflictResolution
}

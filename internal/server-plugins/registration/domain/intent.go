package registration

import "strings"

// OperationKind is the closed set of operations a command can resolve to.
type OperationKind string

const (
	OperationCreateAppRegistration OperationKind = "create_app_registration"
	OperationUnknown               OperationKind = "unknown"
)

// ParseOperationKind maps a model-supplied action onto a known kind.
// Anything outside the supported set, including update and delete actions, is unknown.
func ParseOperationKind(action string) OperationKind {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case string(OperationCreateAppRegistration):
		return OperationCreateAppRegistration
	default:
		return OperationUnknown
	}
}

// PermissionName is a permission as requested by the caller, before catalog resolution.
type PermissionName string

// CommandIntent is the structured form of a natural-language command.
// An unknown intent carries only RawAction.
type CommandIntent struct {
	Kind                 OperationKind    `json:"kind"`
	RawAction            string           `json:"rawAction,omitempty"`
	Name                 string           `json:"name,omitempty"`
	Description          string           `json:"description,omitempty"`
	RequestedPermissions []PermissionName `json:"requestedPermissions,omitempty"`
	Justification        string           `json:"justification,omitempty"`
}

// NewCommandIntent builds an intent with the permission list de-duplicated.
// Unknown kinds drop every field except the raw action.
func NewCommandIntent(kind OperationKind, rawAction, name, description string, permissions []string, justification string) CommandIntent {
	if kind != OperationCreateAppRegistration {
		return CommandIntent{Kind: OperationUnknown, RawAction: rawAction}
	}
	return CommandIntent{
		Kind:                 kind,
		RawAction:            rawAction,
		Name:                 name,
		Description:          description,
		RequestedPermissions: dedupePermissions(permissions),
		Justification:        justification,
	}
}

func dedupePermissions(values []string) []PermissionName {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]PermissionName, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, PermissionName(v))
	}
	return out
}

// ValidatedIntent can only be produced by IntentValidator.
type ValidatedIntent struct {
	name          string
	description   string
	justification string
	permissions   []Permission
}

func (v *ValidatedIntent) Name() string          { return v.name }
func (v *ValidatedIntent) Description() string   { return v.description }
func (v *ValidatedIntent) Justification() string { return v.justification }

// Permissions returns a copy of the resolved catalog entries.
func (v *ValidatedIntent) Permissions() []Permission {
	out := make([]Permission, len(v.permissions))
	copy(out, v.permissions)
	return out
}

package registration

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const DefaultMaxNameLength = 120

// ValidationRules are the tunable limits applied by IntentValidator.
type ValidationRules struct {
	MaxNameLength      int
	RequirePermissions bool
}

// IntentValidator checks a CommandIntent against the permission catalog.
type IntentValidator struct {
	catalog *PermissionCatalog
	rules   ValidationRules
}

func NewIntentValidator(catalog *PermissionCatalog, rules ValidationRules) *IntentValidator {
	if rules.MaxNameLength <= 0 {
		rules.MaxNameLength = DefaultMaxNameLength
	}
	return &IntentValidator{catalog: catalog, rules: rules}
}

// Validate runs the checks in order and returns the first failure.
func (v *IntentValidator) Validate(intent CommandIntent) (*ValidatedIntent, error) {
	if intent.Kind != OperationCreateAppRegistration {
		return nil, unsupportedOperation(intent.RawAction)
	}

	name := strings.TrimSpace(intent.Name)
	if err := v.validateName(name); err != nil {
		return nil, err
	}

	resolved := make([]Permission, 0, len(intent.RequestedPermissions))
	seen := make(map[string]struct{}, len(intent.RequestedPermissions))
	for _, requested := range intent.RequestedPermissions {
		p, ok := v.catalog.Lookup(requested)
		if !ok {
			return nil, &ValidationError{
				Kind:   ValidationUnknownPermission,
				Value:  string(requested),
				Reason: fmt.Sprintf("permission %q is not in the permission catalog", requested),
			}
		}
		if _, dup := seen[p.Name]; dup {
			continue
		}
		seen[p.Name] = struct{}{}
		resolved = append(resolved, p)
	}

	if v.rules.RequirePermissions && len(resolved) == 0 {
		return nil, &ValidationError{
			Kind:   ValidationNoPermissionsSpecified,
			Reason: "at least one permission must be requested",
		}
	}

	return &ValidatedIntent{
		name:          name,
		description:   strings.TrimSpace(intent.Description),
		justification: strings.TrimSpace(intent.Justification),
		permissions:   resolved,
	}, nil
}

func (v *IntentValidator) validateName(name string) error {
	if name == "" {
		return &ValidationError{Kind: ValidationInvalidName, Reason: "application name is required"}
	}
	if n := utf8.RuneCountInString(name); n > v.rules.MaxNameLength {
		return &ValidationError{
			Kind:   ValidationInvalidName,
			Value:  name,
			Reason: fmt.Sprintf("application name is %d characters long, the maximum is %d", n, v.rules.MaxNameLength),
		}
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return &ValidationError{
				Kind:   ValidationInvalidName,
				Value:  name,
				Reason: "application name contains control characters",
			}
		}
	}
	return nil
}

func unsupportedOperation(rawAction string) *ValidationError {
	action := strings.TrimSpace(rawAction)
	reason := "the command does not describe a supported operation"
	if action != "" && action != string(OperationUnknown) {
		reason = fmt.Sprintf("operation %q is not supported", action)
	}
	return &ValidationError{Kind: ValidationUnsupportedOperation, Value: action, Reason: reason}
}

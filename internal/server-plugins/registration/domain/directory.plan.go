package registration

import (
	"encoding/json"
	"fmt"
	"time"
)

type StepKind string

const (
	StepCreateApplication      StepKind = "create_application"
	StepCreateServicePrincipal StepKind = "create_service_principal"
	StepAssignPermissions      StepKind = "assign_permissions"
	StepCreateSecret           StepKind = "create_secret"
)

type StepID string

const (
	StepIDApplication      StepID = "application"
	StepIDServicePrincipal StepID = "service-principal"
	StepIDPermissions      StepID = "permissions"
	StepIDSecret           StepID = "secret"
)

// OutputKey names a value produced by a step. The keys double as the result data keys.
type OutputKey string

const (
	OutputApplicationID      OutputKey = "applicationId"
	OutputObjectID           OutputKey = "objectId"
	OutputServicePrincipalID OutputKey = "servicePrincipalId"
	OutputClientSecret       OutputKey = "clientSecret"
)

// Ref points at an output of an earlier step, resolved at execution time.
type Ref struct {
	Step   StepID    `json:"step"`
	Output OutputKey `json:"output"`
}

func (r Ref) String() string { return fmt.Sprintf("${%s.%s}", r.Step, r.Output) }

// StepPayload is the typed input of a DirectoryStep.
type StepPayload interface {
	Refs() []Ref
}

type CreateApplicationPayload struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (CreateApplicationPayload) Refs() []Ref { return nil }

type CreateServicePrincipalPayload struct {
	ApplicationID Ref `json:"applicationId"`
}

func (p CreateServicePrincipalPayload) Refs() []Ref { return []Ref{p.ApplicationID} }

type AssignPermissionsPayload struct {
	ServicePrincipalID  Ref          `json:"servicePrincipalId"`
	ApplicationObjectID Ref          `json:"applicationObjectId"`
	Permissions         []Permission `json:"permissions"`
}

func (p AssignPermissionsPayload) Refs() []Ref {
	return []Ref{p.ServicePrincipalID, p.ApplicationObjectID}
}

type CreateSecretPayload struct {
	ApplicationObjectID Ref
	DisplayName         string
	Lifetime            time.Duration
}

func (p CreateSecretPayload) Refs() []Ref { return []Ref{p.ApplicationObjectID} }

func (p CreateSecretPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ApplicationObjectID Ref    `json:"applicationObjectId"`
		DisplayName         string `json:"displayName"`
		Lifetime            string `json:"lifetime"`
	}{p.ApplicationObjectID, p.DisplayName, p.Lifetime.String()})
}

type DirectoryStep struct {
	ID        StepID      `json:"id"`
	Kind      StepKind    `json:"kind"`
	DependsOn []StepID    `json:"dependsOn,omitempty"`
	Payload   StepPayload `json:"payload"`
}

// Plan is an ordered list of steps; execution follows slice order.
type Plan struct {
	Steps []DirectoryStep `json:"steps"`
}

// Validate checks that ids are unique and that every dependency and every
// referenced step appears strictly before the step that uses it.
func (p Plan) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidPlan)
	}
	seen := make(map[StepID]struct{}, len(p.Steps))
	for i, step := range p.Steps {
		if step.ID == "" {
			return fmt.Errorf("%w: step %d has no id", ErrInvalidPlan, i)
		}
		if _, dup := seen[step.ID]; dup {
			return fmt.Errorf("%w: duplicate step id %q", ErrInvalidPlan, step.ID)
		}
		if step.Payload == nil {
			return fmt.Errorf("%w: step %q has no payload", ErrInvalidPlan, step.ID)
		}
		if !payloadMatches(step.Kind, step.Payload) {
			return fmt.Errorf("%w: step %q payload does not match kind %s", ErrInvalidPlan, step.ID, step.Kind)
		}
		for _, dep := range step.DependsOn {
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("%w: step %q depends on %q which does not run before it", ErrInvalidPlan, step.ID, dep)
			}
		}
		for _, ref := range step.Payload.Refs() {
			if _, ok := seen[ref.Step]; !ok {
				return fmt.Errorf("%w: step %q references %s before it is produced", ErrInvalidPlan, step.ID, ref)
			}
		}
		seen[step.ID] = struct{}{}
	}
	return nil
}

func payloadMatches(kind StepKind, payload StepPayload) bool {
	switch payload.(type) {
	case CreateApplicationPayload:
		return kind == StepCreateApplication
	case CreateServicePrincipalPayload:
		return kind == StepCreateServicePrincipal
	case AssignPermissionsPayload:
		return kind == StepAssignPermissions
	case CreateSecretPayload:
		return kind == StepCreateSecret
	default:
		return false
	}
}

// PlannerConfig holds the credential settings applied to every plan.
type PlannerConfig struct {
	SecretDisplayName string
	SecretLifetime    time.Duration
}

// Planner turns a ValidatedIntent into the fixed four-step provisioning plan.
// It performs no I/O and reads no clock.
type Planner struct {
	secretDisplayName string
	secretLifetime    time.Duration
}

func NewPlanner(cfg PlannerConfig) *Planner {
	if cfg.SecretDisplayName == "" {
		cfg.SecretDisplayName = "Default Secret"
	}
	if cfg.SecretLifetime <= 0 {
		cfg.SecretLifetime = 365 * 24 * time.Hour
	}
	return &Planner{secretDisplayName: cfg.SecretDisplayName, secretLifetime: cfg.SecretLifetime}
}

func (p *Planner) Plan(intent *ValidatedIntent) Plan {
	appID := Ref{Step: StepIDApplication, Output: OutputApplicationID}
	objectID := Ref{Step: StepIDApplication, Output: OutputObjectID}
	spID := Ref{Step: StepIDServicePrincipal, Output: OutputServicePrincipalID}

	return Plan{Steps: []DirectoryStep{
		{
			ID:   StepIDApplication,
			Kind: StepCreateApplication,
			Payload: CreateApplicationPayload{
				Name:        intent.Name(),
				Description: intent.Description(),
			},
		},
		{
			ID:        StepIDServicePrincipal,
			Kind:      StepCreateServicePrincipal,
			DependsOn: []StepID{StepIDApplication},
			Payload:   CreateServicePrincipalPayload{ApplicationID: appID},
		},
		{
			ID:        StepIDPermissions,
			Kind:      StepAssignPermissions,
			DependsOn: []StepID{StepIDApplication, StepIDServicePrincipal},
			Payload: AssignPermissionsPayload{
				ServicePrincipalID:  spID,
				ApplicationObjectID: objectID,
				Permissions:         intent.Permissions(),
			},
		},
		{
			ID:        StepIDSecret,
			Kind:      StepCreateSecret,
			DependsOn: []StepID{StepIDApplication},
			Payload: CreateSecretPayload{
				ApplicationObjectID: objectID,
				DisplayName:         p.secretDisplayName,
				Lifetime:            p.secretLifetime,
			},
		},
	}}
}

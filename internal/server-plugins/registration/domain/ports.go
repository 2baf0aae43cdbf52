package registration

import (
	"context"
	"time"
)

// PromptContext carries the system prompt and sampling limits for one interpretation.
type PromptContext struct {
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
}

// Interpreter turns free text into the model's raw reply.
type Interpreter interface {
	Interpret(ctx context.Context, prompt PromptContext, rawText string) (string, error)
}

type ApplicationRef struct {
	ApplicationID string
	ObjectID      string
}

type ServicePrincipalRef struct {
	ServicePrincipalID string
}

type PermissionAssignment struct {
	ServicePrincipalID  string
	ApplicationObjectID string
	Permissions         []Permission
}

type SecretSpec struct {
	DisplayName string
	Lifetime    time.Duration
}

type SecretCredential struct {
	KeyID string
	Value string
}

// DirectoryService performs the remote directory operations of a plan.
// Failures should be returned as *DirectoryStepError so they can be classified.
type DirectoryService interface {
	CreateApplication(ctx context.Context, name, description string) (ApplicationRef, error)
	CreateServicePrincipal(ctx context.Context, applicationID string) (ServicePrincipalRef, error)
	AssignPermissions(ctx context.Context, assignment PermissionAssignment) error
	CreateSecret(ctx context.Context, applicationObjectID string, spec SecretSpec) (SecretCredential, error)
}

// SecretSink optionally persists the generated client secret. It returns a
// reference to the stored secret, never the value.
type SecretSink interface {
	Store(ctx context.Context, name, value string) (string, error)
}

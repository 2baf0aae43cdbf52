package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domain "github.com/entra-mcp/entra-mcp/internal/server-plugins/registration/domain"
)

const (
	adviceStoreSecret  = "Store the client secret securely; it will not be shown again."
	adviceAdminConsent = "Admin consent may be required for application permissions; ask a directory administrator to grant it."
)

// Orchestrator executes a Plan against the directory, one step at a time.
// It never rolls back: a failed run reports what was created before the failure.
type Orchestrator struct {
	directory   domain.DirectoryService
	sink        domain.SecretSink
	stepTimeout time.Duration
	logger      *slog.Logger
}

// NewOrchestrator builds an orchestrator. sink may be nil.
func NewOrchestrator(directory domain.DirectoryService, sink domain.SecretSink, stepTimeout time.Duration, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		directory:   directory,
		sink:        sink,
		stepTimeout: stepTimeout,
		logger:      logger,
	}
}

func (o *Orchestrator) Run(ctx context.Context, plan domain.Plan) *domain.CommandResult {
	return o.run(ctx, plan, o.logger)
}

func (o *Orchestrator) run(ctx context.Context, plan domain.Plan, logger *slog.Logger) *domain.CommandResult {
	if err := plan.Validate(); err != nil {
		logger.Error("Refusing to execute invalid plan", "error", err)
		return domain.NewFailureResult(
			fmt.Sprintf("The directory plan is invalid: %v", err),
			domain.ErrorDetailFromError(domain.StagePlanning, err),
			nil,
			[]string{"No directory objects were created."},
			nil,
		)
	}

	ledger := domain.NewLedger()
	appName := ""
	for _, step := range plan.Steps {
		if p, ok := step.Payload.(domain.CreateApplicationPayload); ok {
			appName = p.Name
		}

		if err := ctx.Err(); err != nil {
			logger.Warn("Run cancelled before step", "step", step.ID, "error", err)
			return o.cancelled(step, ledger, err)
		}

		started := time.Now()
		remoteID, err := o.runStep(ctx, step, ledger)
		result := domain.StepResult{
			StepID:    step.ID,
			Kind:      step.Kind,
			Succeeded: err == nil,
			RemoteID:  remoteID,
			Duration:  time.Since(started),
		}
		if err != nil {
			stepErr := asStepError(step.Kind, err)
			result.Error = stepErr.Error()
			ledger.Record(result)
			logger.Error("Directory step failed",
				"step", step.ID,
				"kind", step.Kind,
				"error_kind", stepErr.Kind,
				"status", stepErr.StatusCode,
				"duration", result.Duration)
			return o.failed(stepErr, ledger)
		}
		ledger.Record(result)
		logger.Info("Directory step completed",
			"step", step.ID,
			"kind", step.Kind,
			"remote_id", remoteID,
			"duration", result.Duration)
	}

	return o.succeeded(ctx, appName, ledger, logger)
}

func (o *Orchestrator) runStep(ctx context.Context, step domain.DirectoryStep, ledger *domain.Ledger) (string, error) {
	if o.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.stepTimeout)
		defer cancel()
	}

	switch p := step.Payload.(type) {
	case domain.CreateApplicationPayload:
		ref, err := o.directory.CreateApplication(ctx, p.Name, p.Description)
		if err != nil {
			return "", err
		}
		if ref.ApplicationID == "" || ref.ObjectID == "" {
			return "", missingIdentifier("application")
		}
		ledger.Capture(step.ID, domain.OutputApplicationID, ref.ApplicationID)
		ledger.Capture(step.ID, domain.OutputObjectID, ref.ObjectID)
		return ref.ObjectID, nil

	case domain.CreateServicePrincipalPayload:
		appID, err := ledger.Resolve(p.ApplicationID)
		if err != nil {
			return "", err
		}
		ref, err := o.directory.CreateServicePrincipal(ctx, appID)
		if err != nil {
			return "", err
		}
		if ref.ServicePrincipalID == "" {
			return "", missingIdentifier("service principal")
		}
		ledger.Capture(step.ID, domain.OutputServicePrincipalID, ref.ServicePrincipalID)
		return ref.ServicePrincipalID, nil

	case domain.AssignPermissionsPayload:
		spID, err := ledger.Resolve(p.ServicePrincipalID)
		if err != nil {
			return "", err
		}
		objectID, err := ledger.Resolve(p.ApplicationObjectID)
		if err != nil {
			return "", err
		}
		return "", o.directory.AssignPermissions(ctx, domain.PermissionAssignment{
			ServicePrincipalID:  spID,
			ApplicationObjectID: objectID,
			Permissions:         p.Permissions,
		})

	case domain.CreateSecretPayload:
		objectID, err := ledger.Resolve(p.ApplicationObjectID)
		if err != nil {
			return "", err
		}
		cred, err := o.directory.CreateSecret(ctx, objectID, domain.SecretSpec{
			DisplayName: p.DisplayName,
			Lifetime:    p.Lifetime,
		})
		if err != nil {
			return "", err
		}
		if cred.Value == "" {
			return "", missingIdentifier("client secret")
		}
		ledger.Capture(step.ID, domain.OutputClientSecret, cred.Value)
		return cred.KeyID, nil

	default:
		return "", fmt.Errorf("%w: unsupported payload %T", domain.ErrInvalidPlan, step.Payload)
	}
}

func (o *Orchestrator) succeeded(ctx context.Context, appName string, ledger *domain.Ledger, logger *slog.Logger) *domain.CommandResult {
	nextSteps := []string{adviceStoreSecret, adviceAdminConsent}

	if o.sink != nil {
		secret, _ := ledger.Value(domain.OutputClientSecret)
		ref, err := o.sink.Store(ctx, appName, secret)
		if err != nil {
			logger.Warn("Storing client secret in vault failed", "error", err)
			nextSteps = append(nextSteps, fmt.Sprintf("Storing the client secret in the vault failed (%v); store it manually.", err))
		} else {
			nextSteps = append(nextSteps, fmt.Sprintf("The client secret was also stored in the vault as %s.", ref))
		}
	}

	return domain.NewSuccessResult(
		fmt.Sprintf("App registration '%s' created successfully.", appName),
		ledger.Data(),
		nextSteps,
		ledger.Results(),
	)
}

func (o *Orchestrator) failed(stepErr *domain.DirectoryStepError, ledger *domain.Ledger) *domain.CommandResult {
	return domain.NewFailureResult(
		failureMessage(stepErr),
		domain.ErrorDetailFromError(domain.StageDirectory, stepErr),
		ledger.Data(),
		failureAdvice(stepErr.Kind, ledger),
		ledger.Results(),
	)
}

func (o *Orchestrator) cancelled(step domain.DirectoryStep, ledger *domain.Ledger, cause error) *domain.CommandResult {
	stepErr := &domain.DirectoryStepError{
		Kind:   domain.DirectoryRemoteUnavailable,
		Step:   step.Kind,
		Reason: "the run was cancelled before this step started",
		Err:    cause,
	}
	return o.failed(stepErr, ledger)
}

func failureMessage(err *domain.DirectoryStepError) string {
	action := strings.ReplaceAll(string(err.Step), "_", " ")
	reason := err.Reason
	if reason == "" && err.Err != nil {
		reason = err.Err.Error()
	}
	switch err.Kind {
	case domain.DirectoryRequiresAdminConsent:
		return fmt.Sprintf("Failed to %s: admin consent is required (%s).", action, reason)
	case domain.DirectoryRemoteUnavailable:
		return fmt.Sprintf("Failed to %s: the directory service is unavailable (%s).", action, reason)
	default:
		return fmt.Sprintf("Failed to %s: %s.", action, reason)
	}
}

func failureAdvice(kind domain.DirectoryErrorKind, ledger *domain.Ledger) []string {
	var advice []string
	if objectID, ok := ledger.Value(domain.OutputObjectID); ok {
		appID, _ := ledger.Value(domain.OutputApplicationID)
		advice = append(advice, fmt.Sprintf(
			"The application registration was partially created (object id %s, application id %s); delete it or finish it manually before retrying.",
			objectID, appID))
	}
	if spID, ok := ledger.Value(domain.OutputServicePrincipalID); ok {
		advice = append(advice, fmt.Sprintf("A service principal was created with id %s.", spID))
	}
	switch kind {
	case domain.DirectoryRequiresAdminConsent:
		advice = append(advice, "Ask a directory administrator to grant admin consent for the requested permissions.")
	case domain.DirectoryRemoteUnavailable:
		advice = append(advice, "The directory service could not be reached; retry later.")
	}
	if len(advice) == 0 {
		advice = append(advice, "No directory objects were created; correct the request and retry.")
	}
	return advice
}

// asStepError classifies any step failure as a DirectoryStepError tagged with the step.
func asStepError(step domain.StepKind, err error) *domain.DirectoryStepError {
	var de *domain.DirectoryStepError
	if errors.As(err, &de) {
		tagged := *de
		tagged.Step = step
		return &tagged
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &domain.DirectoryStepError{
			Kind:   domain.DirectoryRemoteUnavailable,
			Step:   step,
			Reason: "the directory call did not complete in time",
			Err:    err,
		}
	}
	return &domain.DirectoryStepError{
		Kind:   domain.DirectoryRemoteRejected,
		Step:   step,
		Reason: err.Error(),
	}
}

func missingIdentifier(what string) error {
	return domain.NewDirectoryStepError(domain.DirectoryRemoteRejected, 0,
		fmt.Sprintf("the directory returned no %s identifier", what), nil)
}

package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/entra-mcp/entra-mcp/internal/server-plugins/registration/domain"
	"github.com/entra-mcp/entra-mcp/internal/shared"
	"github.com/entra-mcp/entra-mcp/internal/shared/audit"
	"github.com/entra-mcp/entra-mcp/internal/shared/metrics"
	"github.com/google/uuid"
)

const auditResource = "app_registrations"

// CommandService is the inbound entry point: extraction, validation, planning, orchestration.
type CommandService struct {
	extractor      *Extractor
	validator      *domain.IntentValidator
	planner        *domain.Planner
	orchestrator   *Orchestrator
	auditSink      audit.EventSink
	metrics        metrics.Collector
	commandTimeout time.Duration
	logger         *slog.Logger
}

func NewCommandService(
	extractor *Extractor,
	validator *domain.IntentValidator,
	planner *domain.Planner,
	orchestrator *Orchestrator,
	auditSink audit.EventSink,
	commandTimeout time.Duration,
	logger *slog.Logger,
) *CommandService {
	if auditSink == nil {
		auditSink = audit.NewNoOpSink()
	}
	return &CommandService{
		extractor:      extractor,
		validator:      validator,
		planner:        planner,
		orchestrator:   orchestrator,
		auditSink:      auditSink,
		metrics:        metrics.NewNoOpCollector(),
		commandTimeout: commandTimeout,
		logger:         logger,
	}
}

// WithMetrics makes the service report every command and step to collector.
func (s *CommandService) WithMetrics(collector metrics.Collector) *CommandService {
	if collector != nil {
		s.metrics = collector
	}
	return s
}

// ProcessCommand never returns a nil result; every failure is reported in it.
func (s *CommandService) ProcessCommand(ctx context.Context, rawText string) *domain.CommandResult {
	run := s.startRun(ctx)
	defer run.cancel()

	intent, err := s.extractor.Extract(run.ctx, rawText)
	if err != nil {
		return s.finish(run, domain.CommandIntent{Kind: domain.OperationUnknown}, extractionFailure(err))
	}
	return s.finish(run, intent, s.execute(run, intent))
}

// ProcessIntent runs an already structured intent, skipping extraction.
func (s *CommandService) ProcessIntent(ctx context.Context, intent domain.CommandIntent) *domain.CommandResult {
	run := s.startRun(ctx)
	defer run.cancel()

	return s.finish(run, intent, s.execute(run, intent))
}

// PlanCommand interprets and validates a command and returns the plan without executing it.
func (s *CommandService) PlanCommand(ctx context.Context, rawText string) (domain.Plan, error) {
	intent, err := s.extractor.Extract(ctx, rawText)
	if err != nil {
		return domain.Plan{}, err
	}
	validated, err := s.validator.Validate(intent)
	if err != nil {
		return domain.Plan{}, err
	}
	return s.planner.Plan(validated), nil
}

type commandRun struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time
	logger  *slog.Logger
}

func (s *CommandService) startRun(ctx context.Context) commandRun {
	run := commandRun{id: uuid.NewString(), started: time.Now()}
	if s.commandTimeout > 0 {
		run.ctx, run.cancel = context.WithTimeout(ctx, s.commandTimeout)
	} else {
		run.ctx, run.cancel = context.WithCancel(ctx)
	}
	run.logger = s.logger.With("run_id", run.id)
	return run
}

func (s *CommandService) execute(run commandRun, intent domain.CommandIntent) *domain.CommandResult {
	validated, err := s.validator.Validate(intent)
	if err != nil {
		run.logger.Info("Command rejected", "kind", intent.Kind, "error", err)
		return validationFailure(err)
	}

	plan := s.planner.Plan(validated)
	run.logger.Info("Executing directory plan",
		"application", validated.Name(),
		"steps", len(plan.Steps),
		"permissions", len(validated.Permissions()))

	return s.orchestrator.run(run.ctx, plan, run.logger)
}

func (s *CommandService) finish(run commandRun, intent domain.CommandIntent, result *domain.CommandResult) *domain.CommandResult {
	elapsed := time.Since(run.started)
	result = result.WithRun(run.id, elapsed)

	event := audit.Event{
		Timestamp: run.started,
		Action:    string(intent.Kind),
		Resource:  auditResource,
		Result:    audit.ResultSuccess,
		Duration:  elapsed,
		RequestID: run.id,
		Parameters: map[string]interface{}{
			"name":        intent.Name,
			"permissions": len(intent.RequestedPermissions),
		},
	}
	if tenant, ok := shared.GetTenantContext(run.ctx); ok {
		event.TenantID = tenant.TenantID
		event.UserID = tenant.UserID
	}
	if !result.Success() {
		event.Result = audit.ResultFailure
		event.ErrorMessage = result.Message()
	}
	if err := s.auditSink.Record(run.ctx, event); err != nil {
		run.logger.Warn("Failed to record audit event", "error", err)
	}
	s.recordMetrics(run.ctx, intent, result)

	run.logger.Info("Command processed",
		"success", result.Success(),
		"duration", elapsed)
	return result
}

func (s *CommandService) recordMetrics(ctx context.Context, intent domain.CommandIntent, result *domain.CommandResult) {
	sample := metrics.CommandSample{
		Kind:     string(intent.Kind),
		Success:  result.Success(),
		Duration: result.Duration(),
	}
	if detail := result.ErrorDetail(); detail != nil {
		sample.FailureStage = string(detail.Stage)
		sample.FailureKind = detail.Kind
	}
	s.metrics.RecordCommand(ctx, sample)
	for _, step := range result.Steps() {
		s.metrics.RecordDirectoryStep(ctx, string(step.Kind), step.Duration, step.Succeeded)
	}
}

func extractionFailure(err error) *domain.CommandResult {
	detail := domain.ErrorDetailFromError(domain.StageExtraction, err)
	message := fmt.Sprintf("Failed to interpret the command: %s. Please try rephrasing.", detail.Reason)
	if errors.Is(err, domain.ErrEmptyCommand) {
		message = "No command provided. Please describe the application registration to create."
	}
	return domain.NewFailureResult(message, detail, nil,
		[]string{"No directory objects were created."}, nil)
}

func validationFailure(err error) *domain.CommandResult {
	detail := domain.ErrorDetailFromError(domain.StageValidation, err)
	return domain.NewFailureResult(
		fmt.Sprintf("The command was rejected: %s.", detail.Reason),
		detail, nil,
		[]string{"No directory objects were created; correct the request and retry."}, nil)
}

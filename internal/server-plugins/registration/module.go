package registration

import (
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	plugindomain "github.com/entra-mcp/entra-mcp/internal/server-plugin/domain"
	usecases "github.com/entra-mcp/entra-mcp/internal/server-plugins/registration/application"
	domain "github.com/entra-mcp/entra-mcp/internal/server-plugins/registration/domain"
	"github.com/entra-mcp/entra-mcp/internal/server-plugins/registration/infrastructure"
	"github.com/entra-mcp/entra-mcp/internal/server"
	"github.com/entra-mcp/entra-mcp/internal/shared/audit"
	"github.com/entra-mcp/entra-mcp/internal/shared/metrics"
	"github.com/entra-mcp/entra-mcp/pkg/config"
	"go.uber.org/fx"
)

func newPermissionCatalog(cfg config.CatalogConfig, dir config.DirectoryConfig, logger *slog.Logger) (*domain.PermissionCatalog, error) {
	catalog, err := infrastructure.LoadPermissionCatalog(cfg.File, dir.ResourceAppID)
	if err != nil {
		return nil, err
	}
	logger.Debug("Permission catalog loaded", "file", cfg.File, "permissions", catalog.Len())
	return catalog, nil
}

func newInterpreter(cfg config.InterpreterConfig) domain.Interpreter {
	return infrastructure.NewOpenAIInterpreter(cfg, nil)
}

func newDirectory(cfg config.DirectoryConfig, cred azcore.TokenCredential, logger *slog.Logger) domain.DirectoryService {
	return infrastructure.NewGraphDirectory(cfg, cred, infrastructure.GraphOptions{}, logger.With("component", "graph"))
}

// newSecretSink returns nil when no vault is configured; the orchestrator then only returns the secret.
func newSecretSink(cfg config.SecretStoreConfig, cred azcore.TokenCredential, logger *slog.Logger) (domain.SecretSink, error) {
	if cfg.VaultURL == "" {
		logger.Debug("No Key Vault configured; client secrets are only returned to the caller")
		return nil, nil
	}
	sink, err := infrastructure.NewKeyVaultSink(cfg, cred)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

func newExtractor(interpreter domain.Interpreter, catalog *domain.PermissionCatalog, cfg config.InterpreterConfig, timeouts config.TimeoutsConfig, logger *slog.Logger) *usecases.Extractor {
	settings := usecases.PromptSettings{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}
	return usecases.NewExtractor(interpreter, catalog, settings, timeouts.Extraction, logger.With("component", "extractor"))
}

func newValidator(catalog *domain.PermissionCatalog, cfg config.CatalogConfig) *domain.IntentValidator {
	return domain.NewIntentValidator(catalog, domain.ValidationRules{
		MaxNameLength:      cfg.MaxNameLength,
		RequirePermissions: cfg.RequirePermissions,
	})
}

func newPlanner(cfg config.DirectoryConfig) *domain.Planner {
	return domain.NewPlanner(domain.PlannerConfig{
		SecretDisplayName: cfg.SecretDisplayName,
		SecretLifetime:    cfg.SecretLifetime,
	})
}

func newOrchestrator(directory domain.DirectoryService, sink domain.SecretSink, timeouts config.TimeoutsConfig, logger *slog.Logger) *usecases.Orchestrator {
	return usecases.NewOrchestrator(directory, sink, timeouts.Step, logger.With("component", "orchestrator"))
}

type commandServiceParams struct {
	fx.In
	Extractor    *usecases.Extractor
	Validator    *domain.IntentValidator
	Planner      *domain.Planner
	Orchestrator *usecases.Orchestrator
	AuditSink    audit.EventSink   `optional:"true"`
	Metrics      metrics.Collector `optional:"true"`
	Timeouts     config.TimeoutsConfig
	Logger       *slog.Logger
}

func newCommandService(p commandServiceParams) *usecases.CommandService {
	return usecases.NewCommandService(p.Extractor, p.Validator, p.Planner, p.Orchestrator, p.AuditSink, p.Timeouts.Command, p.Logger).
		WithMetrics(p.Metrics)
}

// ServiceModule wires the command pipeline and its Azure adapters without any MCP surface.
var ServiceModule = fx.Module("registration-service",
	fx.Provide(
		newPermissionCatalog,
		infrastructure.NewTokenCredential,
		newInterpreter,
		newDirectory,
		newSecretSink,
		newExtractor,
		newValidator,
		newPlanner,
		newOrchestrator,
		newCommandService,
	),
)

var Module = fx.Module("registration",
	ServiceModule,
	fx.Provide(
		func(s *usecases.CommandService) server.CommandProcessor { return s },
		fx.Annotate(
			NewRegistrationServerPlugin,
			fx.As(new(plugindomain.ServerPlugin)),
			fx.ResultTags(`group:"server_plugins"`),
		),
	),
)

package fxapp

import (
	"log"

	"github.com/entra-mcp/entra-mcp/internal/server"
	"github.com/entra-mcp/entra-mcp/internal/server-plugins/diagnostics"
	"github.com/entra-mcp/entra-mcp/internal/server-plugins/registration"
	"github.com/entra-mcp/entra-mcp/internal/shared/audit"
	"github.com/entra-mcp/entra-mcp/internal/shared/metrics"
	"github.com/entra-mcp/entra-mcp/pkg/config"
	"github.com/entra-mcp/entra-mcp/pkg/logger"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// New builds the MCP server application from the configuration on disk and in the environment.
func New() *fx.App {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	return fx.New(serverOptions(cfg)...)
}

// NewCLI builds the command pipeline alone, for one-shot use. Pass fx.Populate to get at it.
func NewCLI(cfg *config.ServerConfig, opts ...fx.Option) *fx.App {
	return fx.New(cliOptions(cfg, opts...)...)
}

func serverOptions(cfg *config.ServerConfig) []fx.Option {
	return []fx.Option{
		fxLogger(cfg),
		fx.Supply(cfg),
		config.Module,
		logger.Module,
		audit.Module,
		metrics.Module,
		server.Module,
		registration.Module,
		diagnostics.Module,
	}
}

func cliOptions(cfg *config.ServerConfig, opts ...fx.Option) []fx.Option {
	base := []fx.Option{
		fxLogger(cfg),
		fx.Supply(cfg),
		config.Module,
		logger.Module,
		audit.Module,
		metrics.Module,
		registration.ServiceModule,
	}
	return append(base, opts...)
}

func fxLogger(cfg *config.ServerConfig) fx.Option {
	if cfg.LogLevel != "debug" {
		return fx.NopLogger
	}
	return fx.WithLogger(func() fxevent.Logger {
		return &fxevent.ConsoleLogger{W: log.Writer()}
	})
}

package server

import (
	"log/slog"

	plugins "github.com/entra-mcp/entra-mcp/internal/server-plugin/application"
	"github.com/entra-mcp/entra-mcp/internal/server/auth"
	"github.com/entra-mcp/entra-mcp/pkg/config"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"
)

// Version is stamped at build time.
var Version = "dev"

// NewMCPServerInstance creates a new MCP server instance.
func NewMCPServerInstance(logger *slog.Logger) *server.MCPServer {
	logger.Debug("Creating MCP server instance", "version", Version)
	return server.NewMCPServer(
		"Entra MCP Server",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
	)
}

// NewAuthenticator picks JWT bearer auth when it is enabled, otherwise every caller is trusted.
func NewAuthenticator(cfg config.HTTPConfig, logger *slog.Logger) auth.Authenticator {
	if cfg.Auth.Enabled {
		logger.Info("JWT bearer authentication enabled", "issuer", cfg.Auth.Issuer)
		return auth.NewJWTAuthenticator(cfg.Auth)
	}
	return auth.NewNoOpAuthenticator()
}

func NewAuthorizationChecker(cfg config.HTTPConfig) auth.AuthorizationChecker {
	if cfg.Auth.Enabled {
		return auth.NewPermissionChecker()
	}
	return auth.NewNoOpAuthorizationChecker()
}

type httpHandlerParams struct {
	fx.In
	Processor CommandProcessor `optional:"true"`
	Authn     auth.Authenticator
	Checker   auth.AuthorizationChecker
	Logger    *slog.Logger
}

func newHTTPHandlerFromParams(p httpHandlerParams) *HTTPHandler {
	return NewHTTPHandler(p.Processor, p.Authn, p.Checker, p.Logger)
}

var Module = fx.Module("server",
	fx.Provide(
		NewMCPServerInstance,
		plugins.NewServerPluginRegistry,
		func(registry *plugins.ServerPluginRegistry) ServerPluginProvider { return registry },
		NewMCPAdapter,
		NewAuthenticator,
		NewAuthorizationChecker,
		newHTTPHandlerFromParams,
	),
	fx.Invoke(registerServerHooks),
)

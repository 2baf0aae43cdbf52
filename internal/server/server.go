package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/entra-mcp/entra-mcp/internal/server/auth"
	"github.com/entra-mcp/entra-mcp/internal/shared"
	"github.com/entra-mcp/entra-mcp/pkg/config"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"
)

const shutdownTimeout = 30 * time.Second

type serverHookParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.ServerConfig
	MCPServer *server.MCPServer
	Adapter   *MCPAdapter
	HTTP      *HTTPHandler
	Authn     auth.Authenticator
	Logger    *slog.Logger
}

// registerServerHooks uses fx.Hook to manage the server's lifecycle.
func registerServerHooks(p serverHookParams) {
	cfg, logger := p.Config, p.Logger
	var (
		sseServer  *server.SSEServer
		httpServer *http.Server
	)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := p.Adapter.RegisterAllServerPlugins(ctx); err != nil {
				return fmt.Errorf("failed to register server plugins: %w", err)
			}

			switch cfg.Transport.Type {
			case "sse":
				logger.Info("Starting MCP server with 'sse' transport.")
				sseServer = server.NewSSEServer(p.MCPServer,
					server.WithSSEContextFunc(TenantContextFunc(p.Authn, logger)))
				addr := fmt.Sprintf("%s:%d", cfg.Transport.Host, cfg.Transport.Port)
				go func() {
					logger.Info("SSE server listening", "address", addr)
					if err := sseServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("SSE server failed", "error", err)
					}
				}()
			case "stdio":
				logger.Info("Starting MCP server with 'stdio' transport.")
				go func() {
					if err := server.ServeStdio(p.MCPServer); err != nil {
						logger.Error("Stdio server failed", "error", err)
					}
				}()
			default:
				return fmt.Errorf("unknown transport type: %s", cfg.Transport.Type)
			}

			if cfg.HTTP.Enabled {
				httpServer = &http.Server{
					Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
					Handler:           p.HTTP.Router(cfg.HTTP.CORS),
					ReadHeaderTimeout: 10 * time.Second,
				}
				go func() {
					logger.Info("HTTP front door listening", "address", httpServer.Addr)
					if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("HTTP server failed", "error", err)
					}
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			var errs []error
			if httpServer != nil {
				logger.Info("Shutting down HTTP server gracefully...")
				errs = append(errs, httpServer.Shutdown(shutdownCtx))
			}
			if sseServer != nil {
				logger.Info("Shutting down SSE server gracefully...")
				errs = append(errs, sseServer.Shutdown(shutdownCtx))
			}
			return errors.Join(errs...)
		},
	})
}

// TenantContextFunc authenticates SSE clients from their Authorization header.
// Rejected callers get an anonymous tenant without permissions so guarded tools deny them.
func TenantContextFunc(authn auth.Authenticator, logger *slog.Logger) server.SSEContextFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		tenant, err := authn.Authenticate(ctx, auth.BearerToken(r.Header.Get("Authorization")))
		if err != nil {
			logger.Warn("SSE client failed authentication", "remote_addr", r.RemoteAddr, "error", err)
			tenant = &shared.TenantContext{
				TenantID:        "anonymous",
				Metadata:        map[string]string{},
				AuthenticatedAt: time.Now(),
			}
		}
		return shared.WithTenantContext(ctx, tenant)
	}
}

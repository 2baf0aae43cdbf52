package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/entra-mcp/entra-mcp/internal/server-plugin/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ServerPluginProvider is what the adapter needs from the plugin registry.
type ServerPluginProvider interface {
	GetResourceProviders() []domain.ResourceProvider
	GetToolProviders() []domain.ToolProvider
	GetPromptProviders() []domain.PromptProvider
}

// MCPAdapter registers plugin capabilities on the MCP server.
type MCPAdapter struct {
	registry  ServerPluginProvider
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

func NewMCPAdapter(registry ServerPluginProvider, mcpServer *server.MCPServer, logger *slog.Logger) *MCPAdapter {
	return &MCPAdapter{
		registry:  registry,
		mcpServer: mcpServer,
		logger:    logger,
	}
}

// RegisterAllServerPlugins registers every resource, tool and prompt the registry knows about.
func (a *MCPAdapter) RegisterAllServerPlugins(ctx context.Context) error {
	a.logger.Info("Registering all plugins with MCP server")

	if err := a.registerResources(ctx); err != nil {
		return fmt.Errorf("failed to register resources: %w", err)
	}

	if err := a.registerTools(ctx); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	if err := a.registerPrompts(ctx); err != nil {
		return fmt.Errorf("failed to register prompts: %w", err)
	}

	a.logger.Info("All plugins registered successfully")
	return nil
}

func (a *MCPAdapter) registerResources(ctx context.Context) error {
	providers := a.registry.GetResourceProviders()
	a.logger.Debug("Starting resource registration", "provider_count", len(providers))

	for _, provider := range providers {
		resources, err := provider.GetResources(ctx)
		if err != nil {
			return fmt.Errorf("plugin %s: %w", provider.ID(), err)
		}

		for _, resource := range resources {
			mcpResource := mcp.NewResource(
				resource.URI,
				resource.Name,
				mcp.WithResourceDescription(resource.Description),
				mcp.WithMIMEType(resource.MIMEType),
			)

			a.mcpServer.AddResource(mcpResource, resource.Handler)
			a.logger.Debug("Resource registered",
				"plugin", provider.ID(),
				"resource", resource.Name,
				"uri", resource.URI)
		}
	}
	return nil
}

func (a *MCPAdapter) registerTools(ctx context.Context) error {
	providers := a.registry.GetToolProviders()
	a.logger.Debug("Starting tool registration", "provider_count", len(providers))

	for _, provider := range providers {
		tools, err := provider.GetTools(ctx)
		if err != nil {
			return fmt.Errorf("plugin %s: %w", provider.ID(), err)
		}

		for _, tool := range tools {
			a.mcpServer.AddTool(tool.Builder(), tool.Handler)
			a.logger.Debug("Tool registered",
				"plugin", provider.ID(),
				"tool", tool.Name)
		}
	}
	return nil
}

func (a *MCPAdapter) registerPrompts(ctx context.Context) error {
	for _, provider := range a.registry.GetPromptProviders() {
		prompts, err := provider.GetPrompts(ctx)
		if err != nil {
			return fmt.Errorf("plugin %s: %w", provider.ID(), err)
		}

		for _, prompt := range prompts {
			a.mcpServer.AddPrompt(prompt.Builder(), prompt.Handler)
			a.logger.Debug("Prompt registered",
				"plugin", provider.ID(),
				"prompt", prompt.Name)
		}
	}
	return nil
}

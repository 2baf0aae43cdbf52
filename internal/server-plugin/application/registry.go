package plugins

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/entra-mcp/entra-mcp/internal/server-plugin/domain"
	"go.uber.org/fx"
)

// ServerPluginRegistry holds the plugins contributed by feature modules.
type ServerPluginRegistry struct {
	plugins map[string]domain.ServerPlugin
	mu      sync.RWMutex
	logger  *slog.Logger
}

type ServerPluginRegistryParams struct {
	fx.In
	Logger        *slog.Logger
	ServerPlugins []domain.ServerPlugin `group:"server_plugins"`
}

// NewServerPluginRegistry creates a registry pre-filled with every grouped plugin.
func NewServerPluginRegistry(params ServerPluginRegistryParams) (*ServerPluginRegistry, error) {
	r := &ServerPluginRegistry{
		plugins: make(map[string]domain.ServerPlugin),
		logger:  params.Logger,
	}
	for _, p := range params.ServerPlugins {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register registers a server plugin. IDs must be unique.
func (r *ServerPluginRegistry) Register(plugin domain.ServerPlugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[plugin.ID()]; exists {
		return fmt.Errorf("server plugin %q is already registered", plugin.ID())
	}
	r.plugins[plugin.ID()] = plugin
	if r.logger != nil {
		r.logger.Debug("ServerPlugin registered with registry",
			"plugin", plugin.ID(),
			"name", plugin.Name(),
			"version", plugin.Version())
	}
	return nil
}

// GetServerPlugins returns all plugins ordered by ID.
func (r *ServerPluginRegistry) GetServerPlugins() []domain.ServerPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.plugins))
	for id := range r.plugins {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]domain.ServerPlugin, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.plugins[id])
	}
	return out
}

// GetResourceProviders returns all plugins that provide resources
func (r *ServerPluginRegistry) GetResourceProviders() []domain.ResourceProvider {
	var providers []domain.ResourceProvider
	for _, plugin := range r.GetServerPlugins() {
		if provider, ok := plugin.(domain.ResourceProvider); ok {
			providers = append(providers, provider)
		}
	}
	return providers
}

// GetToolProviders returns all plugins that provide tools
func (r *ServerPluginRegistry) GetToolProviders() []domain.ToolProvider {
	var providers []domain.ToolProvider
	for _, plugin := range r.GetServerPlugins() {
		if provider, ok := plugin.(domain.ToolProvider); ok {
			providers = append(providers, provider)
		}
	}
	return providers
}

// GetPromptProviders returns all plugins that provide prompts
func (r *ServerPluginRegistry) GetPromptProviders() []domain.PromptProvider {
	var providers []domain.PromptProvider
	for _, plugin := range r.GetServerPlugins() {
		if provider, ok := plugin.(domain.PromptProvider); ok {
			providers = append(providers, provider)
		}
	}
	return providers
}

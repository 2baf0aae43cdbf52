package domain

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ServerPlugin identifies a feature contributed to the MCP server. What it
// exposes is discovered through the optional provider interfaces below.
type ServerPlugin interface {
	ID() string
	Name() string
	Description() string
	Version() string
}

type ResourceProvider interface {
	ServerPlugin
	GetResources(ctx context.Context) ([]Resource, error)
}

type ToolProvider interface {
	ServerPlugin
	GetTools(ctx context.Context) ([]Tool, error)
}

type PromptProvider interface {
	ServerPlugin
	GetPrompts(ctx context.Context) ([]Prompt, error)
}

// Resource is a readable URI, e.g. entra://permissions/catalog.
type Resource struct {
	URI         string
	Name        string
	Description string
	MIMEType    string
	Handler     ResourceHandler
}

// Tool pairs a schema builder with its handler; Name must match the built tool.
type Tool struct {
	Name        string
	Description string
	Builder     func() mcp.Tool
	Handler     ToolHandler
}

type Prompt struct {
	Name        string
	Description string
	Builder     func() mcp.Prompt
	Handler     PromptHandler
}

type (
	ResourceHandler = server.ResourceHandlerFunc
	ToolHandler     = server.ToolHandlerFunc
	PromptHandler   = server.PromptHandlerFunc
)

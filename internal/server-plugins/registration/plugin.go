package registration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	plugindomain "github.com/entra-mcp/entra-mcp/internal/server-plugin/domain"
	"github.com/entra-mcp/entra-mcp/internal/server-plugin/authorization"
	usecases "github.com/entra-mcp/entra-mcp/internal/server-plugins/registration/application"
	domain "github.com/entra-mcp/entra-mcp/internal/server-plugins/registration/domain"
	"github.com/entra-mcp/entra-mcp/internal/server"
	"github.com/entra-mcp/entra-mcp/internal/server/auth"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	authResource = "app_registrations"
	authAction   = "create"

	catalogURI = "entra://permissions/catalog"
)

// CommandRunner is the part of the command service the MCP tools use.
type CommandRunner interface {
	ProcessCommand(ctx context.Context, rawText string) *domain.CommandResult
	ProcessIntent(ctx context.Context, intent domain.CommandIntent) *domain.CommandResult
	PlanCommand(ctx context.Context, rawText string) (domain.Plan, error)
}

var _ CommandRunner = (*usecases.CommandService)(nil)

// RegistrationServerPlugin exposes Entra ID app registration provisioning over MCP.
type RegistrationServerPlugin struct {
	runner      CommandRunner
	catalog     *domain.PermissionCatalog
	authChecker auth.AuthorizationChecker
	logger      *slog.Logger
}

func NewRegistrationServerPlugin(
	service *usecases.CommandService,
	catalog *domain.PermissionCatalog,
	authChecker auth.AuthorizationChecker,
	logger *slog.Logger,
) *RegistrationServerPlugin {
	return newRegistrationServerPlugin(service, catalog, authChecker, logger)
}

func newRegistrationServerPlugin(runner CommandRunner, catalog *domain.PermissionCatalog, authChecker auth.AuthorizationChecker, logger *slog.Logger) *RegistrationServerPlugin {
	return &RegistrationServerPlugin{
		runner:      runner,
		catalog:     catalog,
		authChecker: authChecker,
		logger:      logger.With("plugin", "app_registrations"),
	}
}

func (p *RegistrationServerPlugin) ID() string      { return "app_registrations" }
func (p *RegistrationServerPlugin) Name() string    { return "Entra ID App Registrations" }
func (p *RegistrationServerPlugin) Version() string { return "0.1.0" }

func (p *RegistrationServerPlugin) Description() string {
	return "Create Microsoft Entra ID application registrations from natural-language requests"
}

func (p *RegistrationServerPlugin) GetResources(ctx context.Context) ([]plugindomain.Resource, error) {
	return []plugindomain.Resource{
		{
			URI:         catalogURI,
			Name:        "Permission Catalog",
			Description: "Permissions that may be requested for a new application registration",
			MIMEType:    "application/json",
			Handler:     p.handleCatalogResource,
		},
	}, nil
}

func (p *RegistrationServerPlugin) GetTools(ctx context.Context) ([]plugindomain.Tool, error) {
	tools := []plugindomain.Tool{
		{
			Name:        "process_command",
			Description: "Interpret a natural-language command and provision the application registration it describes",
			Builder:     p.buildProcessCommandTool,
			Handler:     p.handleProcessCommand,
		},
		{
			Name:        "create_app_registration",
			Description: "Provision an application registration from explicit fields",
			Builder:     p.buildCreateAppRegistrationTool,
			Handler:     p.handleCreateAppRegistration,
		},
		{
			Name:        "plan_command",
			Description: "Show the directory operations a command would perform without running them",
			Builder:     p.buildPlanCommandTool,
			Handler:     p.handlePlanCommand,
		},
	}

	for i, tool := range tools {
		tools[i] = authorization.WrapToolWithAuthorization(tool, authResource, authAction, p.authChecker, p.logger)
	}
	return tools, nil
}

func (p *RegistrationServerPlugin) GetPrompts(ctx context.Context) ([]plugindomain.Prompt, error) {
	return []plugindomain.Prompt{
		{
			Name:        provisionPromptName,
			Description: "Guide the assistant through provisioning an application registration",
			Builder:     p.buildProvisionPrompt,
			Handler:     p.handleProvisionPrompt,
		},
	}, nil
}

type catalogDocument struct {
	Count       int                 `json:"count"`
	Permissions []domain.Permission `json:"permissions"`
}

func (p *RegistrationServerPlugin) handleCatalogResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	entries := p.catalog.Entries()
	jsonData, err := json.MarshalIndent(catalogDocument{Count: len(entries), Permissions: entries}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize permission catalog: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}

func (p *RegistrationServerPlugin) buildProcessCommandTool() mcp.Tool {
	return mcp.NewTool(
		"process_command",
		mcp.WithDescription("Interpret a natural-language command and create the Entra ID application registration, service principal, permissions and client secret it describes"),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("For example: Create an app called billing-api with User.Read.All to sync invoices"),
		),
	)
}

func (p *RegistrationServerPlugin) buildCreateAppRegistrationTool() mcp.Tool {
	return mcp.NewTool(
		"create_app_registration",
		mcp.WithDescription("Create an Entra ID application registration from explicit fields, skipping language interpretation"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Display name of the application registration"),
		),
		mcp.WithString("description",
			mcp.Description("Purpose of the application"),
		),
		mcp.WithArray("permissions",
			mcp.Required(),
			mcp.Description("Permission names from "+catalogURI),
			mcp.WithStringItems(),
		),
		mcp.WithString("justification",
			mcp.Description("Why the permissions are needed"),
		),
	)
}

func (p *RegistrationServerPlugin) buildPlanCommandTool() mcp.Tool {
	return mcp.NewTool(
		"plan_command",
		mcp.WithDescription("Interpret and validate a command and return the directory plan without creating anything"),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("The natural-language command to plan"),
		),
	)
}

func (p *RegistrationServerPlugin) handleProcessCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, err := req.RequireString("command")
	if err != nil {
		return server.Error("invalid_arguments", "A command is required", "Describe the application registration to create.", nil), nil
	}

	result := p.runner.ProcessCommand(ctx, command)
	return server.NewResultWithLogger(server.CommandResultResponse(result), p.logger), nil
}

func (p *RegistrationServerPlugin) handleCreateAppRegistration(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return server.Error("invalid_arguments", "Application name is required", "", nil), nil
	}

	intent := domain.NewCommandIntent(
		domain.OperationCreateAppRegistration,
		string(domain.OperationCreateAppRegistration),
		name,
		req.GetString("description", ""),
		req.GetStringSlice("permissions", nil),
		req.GetString("justification", ""),
	)

	result := p.runner.ProcessIntent(ctx, intent)
	return server.NewResultWithLogger(server.CommandResultResponse(result), p.logger), nil
}

func (p *RegistrationServerPlugin) handlePlanCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, err := req.RequireString("command")
	if err != nil {
		return server.Error("invalid_arguments", "A command is required", "", nil), nil
	}

	plan, err := p.runner.PlanCommand(ctx, command)
	if err != nil {
		stage := domain.StageExtraction
		if domain.IsValidationError(err) {
			stage = domain.StageValidation
		}
		detail := domain.ErrorDetailFromError(stage, err)
		p.logger.Info("Command could not be planned", "stage", detail.Stage, "kind", detail.Kind)
		return server.NewResultWithLogger(server.ToolResponse{
			Status:  server.ToolStatusError,
			Code:    detail.Kind,
			Message: "The command could not be planned: " + detail.Reason,
			Data:    detail,
			Links:   []server.ToolLink{{Rel: "catalog", Tool: "resources/read", Params: map[string]any{"uri": catalogURI}}},
		}, p.logger), nil
	}

	return server.NewResultWithLogger(server.ToolResponse{
		Status:  server.ToolStatusOK,
		Message: fmt.Sprintf("The command would run %d directory steps.", len(plan.Steps)),
		Data:    plan,
		Links:   []server.ToolLink{{Rel: "execute", Tool: "process_command", Params: map[string]any{"command": command}}},
	}, p.logger), nil
}

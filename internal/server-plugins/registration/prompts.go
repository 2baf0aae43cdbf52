package registration

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const provisionPromptName = "provision_app_registration"

const provisionPromptTemplate = `Provision a Microsoft Entra ID application registration named %q.

Purpose: %s
Requested permissions: %s

1. Read %s and keep only permission names that appear in it.
2. Call plan_command with a one-sentence command describing the registration and review the four steps it returns.
3. If the plan is right, call create_app_registration with the name, description, permissions and justification.
4. Report the application id, object id and service principal id. Never repeat the client secret in full; tell the user where it is stored or that they must store it now.
5. If the result is partial, list the objects that were created and what still has to be done by hand.`

func (p *RegistrationServerPlugin) buildProvisionPrompt() mcp.Prompt {
	return mcp.NewPrompt(
		provisionPromptName,
		mcp.WithPromptDescription("Plan, confirm and provision an Entra ID application registration"),
		mcp.WithArgument("app_name",
			mcp.RequiredArgument(),
			mcp.ArgumentDescription("Display name of the application registration"),
		),
		mcp.WithArgument("purpose",
			mcp.ArgumentDescription("What the application is for"),
		),
		mcp.WithArgument("permissions",
			mcp.ArgumentDescription("Comma-separated permission names"),
		),
	)
}

func (p *RegistrationServerPlugin) handleProvisionPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	appName := strings.TrimSpace(req.Params.Arguments["app_name"])
	if appName == "" {
		return nil, fmt.Errorf("app_name parameter is required")
	}

	purpose := strings.TrimSpace(req.Params.Arguments["purpose"])
	if purpose == "" {
		purpose = "not stated; ask the user"
	}
	permissions := strings.TrimSpace(req.Params.Arguments["permissions"])
	if permissions == "" {
		permissions = "not stated; ask the user"
	}

	return &mcp.GetPromptResult{
		Description: "Provision the " + appName + " application registration",
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.TextContent{Type: "text", Text: fmt.Sprintf(provisionPromptTemplate, appName, purpose, permissions, catalogURI)},
			},
		},
	}, nil
}

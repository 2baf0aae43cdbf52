package authorization

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/entra-mcp/entra-mcp/internal/server-plugin/domain"
	"github.com/entra-mcp/entra-mcp/internal/server/auth"
	"github.com/entra-mcp/entra-mcp/internal/shared"
	"github.com/mark3labs/mcp-go/mcp"
)

// WrapToolWithAuthorization guards a tool with a permission check on resource/action.
// Calls without a tenant context (stdio) are not checked.
func WrapToolWithAuthorization(
	tool domain.Tool,
	resource string,
	action string,
	authChecker auth.AuthorizationChecker,
	logger *slog.Logger,
) domain.Tool {
	originalHandler := tool.Handler
	authorizedHandler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tenantCtx, hasTenant := shared.GetTenantContext(ctx)

		if hasTenant && authChecker != nil {
			if tenantCtx.IsExpired() {
				logger.Warn("Rejected expired credentials",
					"tool", tool.Name,
					"tenant_id", tenantCtx.TenantID,
					"user_id", tenantCtx.UserID)
				return mcp.NewToolResultError("Permission denied: credentials have expired"), nil
			}

			if err := authChecker.CheckPermission(ctx, tenantCtx, resource, action); err != nil {
				logger.Warn("Authorization failed",
					"tool", tool.Name,
					"tenant_id", tenantCtx.TenantID,
					"user_id", tenantCtx.UserID,
					"resource", resource,
					"action", action,
					"error", err)

				return mcp.NewToolResultError(fmt.Sprintf("Permission denied: %v", err)), nil
			}

			logger.Debug("Authorization successful",
				"tool", tool.Name,
				"tenant_id", tenantCtx.TenantID,
				"user_id", tenantCtx.UserID)
		}

		return originalHandler(ctx, request)
	}

	return domain.Tool{
		Name:        tool.Name,
		Description: tool.Description,
		Builder:     tool.Builder,
		Handler:     authorizedHandler,
	}
}

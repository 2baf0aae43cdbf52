package auth

import (
	"context"

	"github.com/entra-mcp/entra-mcp/internal/shared"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*shared.TenantContext, error)
}

type AuthorizationChecker interface {
	CheckPermission(ctx context.Context, tenant *shared.TenantContext, resource, action string) error
}

package auth

import (
	"context"
	"time"

	"github.com/entra-mcp/entra-mcp/internal/shared"
)

// NoOpAuthenticator accepts every caller as the default tenant with all permissions.
type NoOpAuthenticator struct{}

func NewNoOpAuthenticator() *NoOpAuthenticator {
	return &NoOpAuthenticator{}
}

func (a *NoOpAuthenticator) Authenticate(ctx context.Context, token string) (*shared.TenantContext, error) {
	return &shared.TenantContext{
		TenantID:        "default",
		UserID:          "default",
		Permissions:     []string{"*"},
		Metadata:        make(map[string]string),
		AuthenticatedAt: time.Now(),
	}, nil
}

type NoOpAuthorizationChecker struct{}

func NewNoOpAuthorizationChecker() *NoOpAuthorizationChecker {
	return &NoOpAuthorizationChecker{}
}

func (c *NoOpAuthorizationChecker) CheckPermission(ctx context.Context, tenant *shared.TenantContext, resource, action string) error {
	return nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/entra-mcp/entra-mcp/internal/shared"
	"github.com/entra-mcp/entra-mcp/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken     = errors.New("missing bearer token")
	ErrInvalidToken     = errors.New("invalid bearer token")
	ErrPermissionDenied = errors.New("permission denied")
)

// Claims is the bearer token payload understood by the server.
type Claims struct {
	jwt.RegisteredClaims
	TenantID    string   `json:"tid,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// JWTAuthenticator validates HMAC-signed bearer tokens.
type JWTAuthenticator struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTAuthenticator(cfg config.AuthConfig) *JWTAuthenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &JWTAuthenticator{
		secret: []byte(cfg.JWTSecret),
		parser: jwt.NewParser(opts...),
	}
}

func (a *JWTAuthenticator) Authenticate(ctx context.Context, token string) (*shared.TenantContext, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	var claims Claims
	_, err := a.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	tenantID := claims.TenantID
	if tenantID == "" {
		tenantID = "default"
	}
	tenant := &shared.TenantContext{
		TenantID:        tenantID,
		UserID:          claims.Subject,
		Permissions:     claims.Permissions,
		Metadata:        map[string]string{},
		AuthenticatedAt: time.Now(),
	}
	if claims.Issuer != "" {
		tenant.SetMetadata("issuer", claims.Issuer)
	}
	if claims.ExpiresAt != nil {
		expires := claims.ExpiresAt.Time
		tenant.ExpiresAt = &expires
	}
	return tenant, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// PermissionChecker authorises callers from the permissions carried in their token.
type PermissionChecker struct{}

func NewPermissionChecker() *PermissionChecker {
	return &PermissionChecker{}
}

func (c *PermissionChecker) CheckPermission(ctx context.Context, tenant *shared.TenantContext, resource, action string) error {
	if tenant == nil || !tenant.Allows(resource, action) {
		return fmt.Errorf("%w: %s:%s", ErrPermissionDenied, resource, action)
	}
	return nil
}

package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	domain "github.com/entra-mcp/entra-mcp/internal/server-plugins/registration/domain"
	"github.com/entra-mcp/entra-mcp/pkg/config"
)

const (
	graphModule  = "entra-mcp/graph"
	graphVersion = "v1.0.0"
)

// GraphDirectory implements the directory port against Microsoft Graph.
type GraphDirectory struct {
	pipeline       runtime.Pipeline
	baseURL        string
	signInAudience string
	redirectURIs   []string
	grantConsent   bool
	now            func() time.Time
	logger         *slog.Logger
}

// GraphOptions overrides the transport, mainly for tests.
type GraphOptions struct {
	Transport policy.Transporter
	Now       func() time.Time
}

func NewGraphDirectory(cfg config.DirectoryConfig, cred azcore.TokenCredential, opts GraphOptions, logger *slog.Logger) *GraphDirectory {
	baseURL := strings.TrimRight(cfg.GraphBaseURL, "/")
	scope := graphScope(baseURL)

	clientOpts := &policy.ClientOptions{
		Retry:     policy.RetryOptions{MaxRetries: -1},
		Transport: opts.Transport,
	}
	pipeline := runtime.NewPipeline(graphModule, graphVersion, runtime.PipelineOptions{
		PerRetry: []policy.Policy{runtime.NewBearerTokenPolicy(cred, []string{scope}, nil)},
	}, clientOpts)

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &GraphDirectory{
		pipeline:       pipeline,
		baseURL:        baseURL,
		signInAudience: cfg.SignInAudience,
		redirectURIs:   append([]string(nil), cfg.RedirectURIs...),
		grantConsent:   cfg.GrantAdminConsent,
		now:            now,
		logger:         logger,
	}
}

// graphScope derives the ".default" scope from the API host.
func graphScope(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return "https://graph.microsoft.com/.default"
	}
	return fmt.Sprintf("%s://%s/.default", u.Scheme, u.Host)
}

type applicationRequest struct {
	DisplayName    string          `json:"displayName"`
	SignInAudience string          `json:"signInAudience,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	Web            *webApplication `json:"web,omitempty"`
}

type webApplication struct {
	RedirectURIs          []string              `json:"redirectUris"`
	ImplicitGrantSettings implicitGrantSettings `json:"implicitGrantSettings"`
}

type implicitGrantSettings struct {
	EnableIDTokenIssuance bool `json:"enableIdTokenIssuance"`
}

type applicationResponse struct {
	ID    string `json:"id"`
	AppID string `json:"appId"`
}

func (g *GraphDirectory) CreateApplication(ctx context.Context, name, description string) (domain.ApplicationRef, error) {
	body := applicationRequest{
		DisplayName:    name,
		SignInAudience: g.signInAudience,
		Notes:          description,
	}
	if len(g.redirectURIs) > 0 {
		body.Web = &webApplication{
			RedirectURIs:          g.redirectURIs,
			ImplicitGrantSettings: implicitGrantSettings{EnableIDTokenIssuance: true},
		}
	}

	var out applicationResponse
	if err := g.send(ctx, opProvision, http.MethodPost, "/applications", body, &out, http.StatusCreated, http.StatusOK); err != nil {
		return domain.ApplicationRef{}, err
	}
	g.logger.Debug("Graph application created", "object_id", out.ID, "application_id", out.AppID)
	return domain.ApplicationRef{ApplicationID: out.AppID, ObjectID: out.ID}, nil
}

func (g *GraphDirectory) CreateServicePrincipal(ctx context.Context, applicationID string) (domain.ServicePrincipalRef, error) {
	var out struct {
		ID string `json:"id"`
	}
	body := map[string]string{"appId": applicationID}
	if err := g.send(ctx, opProvision, http.MethodPost, "/servicePrincipals", body, &out, http.StatusCreated, http.StatusOK); err != nil {
		return domain.ServicePrincipalRef{}, err
	}
	return domain.ServicePrincipalRef{ServicePrincipalID: out.ID}, nil
}

type resourceAccess struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type requiredResourceAccess struct {
	ResourceAppID  string           `json:"resourceAppId"`
	ResourceAccess []resourceAccess `json:"resourceAccess"`
}

type resourceServicePrincipal struct {
	ID       string `json:"id"`
	AppRoles []struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"appRoles"`
	OAuth2PermissionScopes []struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"oauth2PermissionScopes"`
}

// AssignPermissions declares the permissions on the application and, when
// configured, grants them on behalf of the tenant.
func (g *GraphDirectory) AssignPermissions(ctx context.Context, assignment domain.PermissionAssignment) error {
	if len(assignment.Permissions) == 0 {
		return nil
	}

	byResource := make(map[string][]domain.Permission)
	for _, p := range assignment.Permissions {
		byResource[p.ResourceAppID] = append(byResource[p.ResourceAppID], p)
	}
	resources := make([]string, 0, len(byResource))
	for r := range byResource {
		resources = append(resources, r)
	}
	sort.Strings(resources)

	resourceSPs := make(map[string]*resourceServicePrincipal)
	required := make([]requiredResourceAccess, 0, len(resources))
	for _, resourceAppID := range resources {
		perms := byResource[resourceAppID]
		if needsLookup(perms) || g.grantConsent {
			sp, err := g.lookupResource(ctx, resourceAppID)
			if err != nil {
				return err
			}
			resourceSPs[resourceAppID] = sp
			if perms, err = resolveIDs(perms, sp); err != nil {
				return err
			}
			byResource[resourceAppID] = perms
		}

		access := make([]resourceAccess, 0, len(perms))
		for _, p := range perms {
			access = append(access, resourceAccess{ID: p.ID, Type: string(p.Type)})
		}
		required = append(required, requiredResourceAccess{ResourceAppID: resourceAppID, ResourceAccess: access})
	}

	body := map[string]interface{}{"requiredResourceAccess": required}
	path := "/applications/" + url.PathEscape(assignment.ApplicationObjectID)
	if err := g.send(ctx, opAssign, http.MethodPatch, path, body, nil, http.StatusNoContent, http.StatusOK); err != nil {
		return err
	}

	if !g.grantConsent {
		return nil
	}
	for _, resourceAppID := range resources {
		if err := g.grantResource(ctx, assignment.ServicePrincipalID, resourceSPs[resourceAppID], byResource[resourceAppID]); err != nil {
			return err
		}
	}
	return nil
}

func needsLookup(perms []domain.Permission) bool {
	for _, p := range perms {
		if p.ID == "" {
			return true
		}
	}
	return false
}

func resolveIDs(perms []domain.Permission, sp *resourceServicePrincipal) ([]domain.Permission, error) {
	out := make([]domain.Permission, len(perms))
	for i, p := range perms {
		if p.ID == "" {
			p.ID = findPermissionID(p, sp)
			if p.ID == "" {
				return nil, domain.NewDirectoryStepError(domain.DirectoryRemoteRejected, 0,
					fmt.Sprintf("permission %s is not exposed by resource %s", p.Name, p.ResourceAppID), nil)
			}
		}
		out[i] = p
	}
	return out, nil
}

func findPermissionID(p domain.Permission, sp *resourceServicePrincipal) string {
	if p.Type == domain.PermissionTypeRole {
		for _, r := range sp.AppRoles {
			if strings.EqualFold(r.Value, p.Name) {
				return r.ID
			}
		}
		return ""
	}
	for _, s := range sp.OAuth2PermissionScopes {
		if strings.EqualFold(s.Value, p.Name) {
			return s.ID
		}
	}
	return ""
}

func (g *GraphDirectory) lookupResource(ctx context.Context, resourceAppID string) (*resourceServicePrincipal, error) {
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("appId eq '%s'", resourceAppID))
	query.Set("$select", "id,appRoles,oauth2PermissionScopes")

	var out struct {
		Value []resourceServicePrincipal `json:"value"`
	}
	if err := g.send(ctx, opAssign, http.MethodGet, "/servicePrincipals?"+query.Encode(), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	if len(out.Value) == 0 {
		return nil, domain.NewDirectoryStepError(domain.DirectoryRemoteRejected, http.StatusNotFound,
			fmt.Sprintf("no service principal found for resource application %s", resourceAppID), nil)
	}
	return &out.Value[0], nil
}

// grantResource assigns application roles and grants delegated scopes tenant-wide.
func (g *GraphDirectory) grantResource(ctx context.Context, clientSPID string, resource *resourceServicePrincipal, perms []domain.Permission) error {
	var scopes []string
	for _, p := range perms {
		if p.Type != domain.PermissionTypeRole {
			scopes = append(scopes, p.Name)
			continue
		}
		body := map[string]string{
			"principalId": clientSPID,
			"resourceId":  resource.ID,
			"appRoleId":   p.ID,
		}
		path := "/servicePrincipals/" + url.PathEscape(resource.ID) + "/appRoleAssignedTo"
		if err := g.send(ctx, opConsent, http.MethodPost, path, body, nil, http.StatusCreated, http.StatusOK); err != nil {
			return err
		}
	}
	if len(scopes) == 0 {
		return nil
	}
	body := map[string]string{
		"clientId":    clientSPID,
		"consentType": "AllPrincipals",
		"resourceId":  resource.ID,
		"scope":       strings.Join(scopes, " "),
	}
	return g.send(ctx, opConsent, http.MethodPost, "/oauth2PermissionGrants", body, nil, http.StatusCreated, http.StatusOK)
}

func (g *GraphDirectory) CreateSecret(ctx context.Context, applicationObjectID string, spec domain.SecretSpec) (domain.SecretCredential, error) {
	body := map[string]interface{}{
		"passwordCredential": map[string]string{
			"displayName": spec.DisplayName,
			"endDateTime": g.now().UTC().Add(spec.Lifetime).Format(time.RFC3339),
		},
	}
	var out struct {
		KeyID      string `json:"keyId"`
		SecretText string `json:"secretText"`
	}
	path := "/applications/" + url.PathEscape(applicationObjectID) + "/addPassword"
	if err := g.send(ctx, opProvision, http.MethodPost, path, body, &out, http.StatusOK, http.StatusCreated); err != nil {
		return domain.SecretCredential{}, err
	}
	return domain.SecretCredential{KeyID: out.KeyID, Value: out.SecretText}, nil
}

// send issues one Graph request and decodes the JSON answer into out when it is non-nil.
func (g *GraphDirectory) send(ctx context.Context, op graphOperation, method, path string, body, out interface{}, expected ...int) error {
	req, err := runtime.NewRequest(ctx, method, g.baseURL+path)
	if err != nil {
		return domain.NewDirectoryStepError(domain.DirectoryRemoteRejected, 0, "invalid Graph request", err)
	}
	req.Raw().Header.Set("Accept", "application/json")
	if body != nil {
		if err := runtime.MarshalAsJSON(req, body); err != nil {
			return domain.NewDirectoryStepError(domain.DirectoryRemoteRejected, 0, "failed to encode Graph request", err)
		}
	}

	resp, err := g.pipeline.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if !runtime.HasStatusCode(resp, expected...) {
		payload, _ := runtime.Payload(resp)
		stepErr := classifyGraphResponse(op, resp.StatusCode, payload)
		g.logger.Debug("Graph request failed",
			"method", method,
			"path", strings.SplitN(path, "?", 2)[0],
			"status", resp.StatusCode,
			"kind", stepErr.Kind)
		return stepErr
	}
	if out == nil {
		return nil
	}
	if err := runtime.UnmarshalAsJSON(resp, out); err != nil {
		return domain.NewDirectoryStepError(domain.DirectoryRemoteRejected, resp.StatusCode, "unreadable Graph response", err)
	}
	return nil
}

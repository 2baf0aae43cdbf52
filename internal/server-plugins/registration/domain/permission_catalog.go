package registration

import (
	"fmt"
	"sort"
	"strings"
)

// PermissionType distinguishes application permissions from delegated ones.
type PermissionType string

const (
	PermissionTypeRole  PermissionType = "Role"
	PermissionTypeScope PermissionType = "Scope"
)

// MicrosoftGraphAppID is the well-known application id of Microsoft Graph.
const MicrosoftGraphAppID = "00000003-0000-0000-c000-000000000000"

type Permission struct {
	Name          string         `json:"name" yaml:"name"`
	ID            string         `json:"id,omitempty" yaml:"id"`
	Type          PermissionType `json:"type" yaml:"type"`
	ResourceAppID string         `json:"resourceAppId" yaml:"resource_app_id"`
	Description   string         `json:"description,omitempty" yaml:"description"`
}

// InferPermissionType follows the directory convention: ".All" permissions are
// application roles, everything else is a delegated scope.
func InferPermissionType(name string) PermissionType {
	if strings.HasSuffix(name, ".All") {
		return PermissionTypeRole
	}
	return PermissionTypeScope
}

// PermissionCatalog is the read-only set of permissions a command may request.
type PermissionCatalog struct {
	byKey map[string]Permission
	names []string
}

// NewPermissionCatalog indexes entries by case-insensitive name.
// Missing types are inferred and missing resource ids default to defaultResource.
func NewPermissionCatalog(entries []Permission, defaultResource string) (*PermissionCatalog, error) {
	c := &PermissionCatalog{byKey: make(map[string]Permission, len(entries))}
	for _, p := range entries {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, fmt.Errorf("permission catalog entry without a name")
		}
		key := strings.ToLower(p.Name)
		if _, dup := c.byKey[key]; dup {
			return nil, fmt.Errorf("duplicate permission %q in catalog", p.Name)
		}
		if p.Type == "" {
			p.Type = InferPermissionType(p.Name)
		}
		if p.Type != PermissionTypeRole && p.Type != PermissionTypeScope {
			return nil, fmt.Errorf("permission %q has invalid type %q", p.Name, p.Type)
		}
		if p.ResourceAppID == "" {
			p.ResourceAppID = defaultResource
		}
		c.byKey[key] = p
		c.names = append(c.names, p.Name)
	}
	sort.Strings(c.names)
	return c, nil
}

// Lookup resolves a requested name to its canonical catalog entry.
func (c *PermissionCatalog) Lookup(name PermissionName) (Permission, bool) {
	p, ok := c.byKey[strings.ToLower(strings.TrimSpace(string(name)))]
	return p, ok
}

// Names returns the canonical names in sorted order.
func (c *PermissionCatalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Entries returns every permission sorted by name.
func (c *PermissionCatalog) Entries() []Permission {
	out := make([]Permission, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.byKey[strings.ToLower(n)])
	}
	return out
}

func (c *PermissionCatalog) Len() int { return len(c.names) }

// DefaultPermissions is the built-in Microsoft Graph catalog.
func DefaultPermissions() []Permission {
	return []Permission{
		{Name: "User.Read", ID: "e1fe6dd8-ba31-4d61-89e7-88639da4683d", Type: PermissionTypeScope, Description: "Sign in and read user profile"},
		{Name: "User.Read.All", ID: "df021288-bdef-4463-88db-98f22de89214", Type: PermissionTypeRole, Description: "Read all users' full profiles"},
		{Name: "Sites.Read.All", ID: "332a536c-c7ef-4017-ab91-336970924f0d", Type: PermissionTypeRole, Description: "Read items in all site collections"},
		{Name: "Sites.ReadWrite.All", ID: "9492366f-7969-46a4-8d15-ed1a20078fff", Type: PermissionTypeRole, Description: "Read and write items in all site collections"},
		{Name: "Directory.Read.All", ID: "7ab1d382-f21e-4acd-a863-ba3e13f7da61", Type: PermissionTypeRole, Description: "Read directory data"},
		{Name: "Group.Read.All", ID: "5b567255-7703-4780-807c-7be8301ae99b", Type: PermissionTypeRole, Description: "Read all groups"},
		{Name: "Mail.Read", ID: "810c84a8-4a9e-49e6-bf7d-12d183f40d01", Type: PermissionTypeRole, Description: "Read mail in all mailboxes"},
		{Name: "Mail.Send", ID: "b633e1c5-b582-4048-a93e-9f11b44c7e96", Type: PermissionTypeRole, Description: "Send mail as any user"},
		{Name: "Files.Read.All", ID: "01d4889c-1287-42c6-ac1f-5d1e02578ef6", Type: PermissionTypeRole, Description: "Read files in all site collections"},
		{Name: "Calendars.Read", ID: "798ee544-9d2d-430c-a058-570e29e34338", Type: PermissionTypeRole, Description: "Read calendars in all mailboxes"},
		{Name: "Application.Read.All", ID: "9a5d68dd-52b0-4cc2-bd40-abcf44ac3a30", Type: PermissionTypeRole, Description: "Read all applications"},
		{Name: "openid", ID: "37f7f235-527c-4136-accd-4a02d197296e", Type: PermissionTypeScope, Description: "Sign users in"},
		{Name: "offline_access", ID: "7427e0e9-2fba-42fe-b0c0-848c9e6a8182", Type: PermissionTypeScope, Description: "Maintain access to data you have given it access to"},
		{Name: "profile", ID: "14dad69e-099b-42c9-810b-d002981feec1", Type: PermissionTypeScope, Description: "View users' basic profile"},
		{Name: "email", ID: "64a6cdd6-aab1-4aaf-94b8-3cc8405e90d0", Type: PermissionTypeScope, Description: "View users' email address"},
	}
}

// NewDefaultPermissionCatalog builds the catalog from DefaultPermissions.
func NewDefaultPermissionCatalog(resourceAppID string) *PermissionCatalog {
	if resourceAppID == "" {
		resourceAppID = MicrosoftGraphAppID
	}
	c, err := NewPermissionCatalog(DefaultPermissions(), resourceAppID)
	if err != nil {
		panic(err)
	}
	return c
}

package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"

	domain "github.com/entra-mcp/entra-mcp/internal/server-plugins/registration/domain"
	"github.com/goccy/go-yaml"
)

type catalogFile struct {
	ResourceAppID string              `yaml:"resource_app_id"`
	Permissions   []domain.Permission `yaml:"permissions"`
}

// LoadPermissionCatalog returns the built-in catalog when path is empty,
// otherwise the YAML file at path.
func LoadPermissionCatalog(path, defaultResource string) (*domain.PermissionCatalog, error) {
	if path == "" {
		return domain.NewDefaultPermissionCatalog(defaultResource), nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read permission catalog: %w", err)
	}
	return ParsePermissionCatalog(data, defaultResource)
}

func ParsePermissionCatalog(data []byte, defaultResource string) (*domain.PermissionCatalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse permission catalog: %w", err)
	}
	if len(file.Permissions) == 0 {
		return nil, fmt.Errorf("permission catalog has no permissions")
	}

	resource := file.ResourceAppID
	if resource == "" {
		resource = defaultResource
	}
	if resource == "" {
		resource = domain.MicrosoftGraphAppID
	}
	return domain.NewPermissionCatalog(file.Permissions, resource)
}

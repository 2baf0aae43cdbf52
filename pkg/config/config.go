package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type TransportConfig struct {
	Type string `mapstructure:"type"` // "stdio" or "sse"
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
}

// HTTPConfig configures the JSON front door (POST /api/process-command).
type HTTPConfig struct {
	Enabled bool       `mapstructure:"enabled"`
	Host    string     `mapstructure:"host"`
	Port    int        `mapstructure:"port"`
	CORS    CORSConfig `mapstructure:"cors"`
	Auth    AuthConfig `mapstructure:"auth"`
}

// DirectoryConfig holds the Entra ID tenant context and the Graph defaults
// applied to every provisioned application.
type DirectoryConfig struct {
	TenantID          string        `mapstructure:"tenant_id"`
	ClientID          string        `mapstructure:"client_id"`
	ClientSecret      string        `mapstructure:"client_secret"`
	GraphBaseURL      string        `mapstructure:"graph_base_url"`
	SignInAudience    string        `mapstructure:"sign_in_audience"`
	RedirectURIs      []string      `mapstructure:"redirect_uris"`
	ResourceAppID     string        `mapstructure:"resource_app_id"`
	GrantAdminConsent bool          `mapstructure:"grant_admin_consent"`
	SecretDisplayName string        `mapstructure:"secret_display_name"`
	SecretLifetime    time.Duration `mapstructure:"secret_lifetime"`
}

type InterpreterConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	APIKey      string  `mapstructure:"api_key"`
	Deployment  string  `mapstructure:"deployment"`
	APIVersion  string  `mapstructure:"api_version"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// SecretStoreConfig enables the optional Key Vault sink. An empty VaultURL
// means secrets are only returned in the command response.
type SecretStoreConfig struct {
	VaultURL   string `mapstructure:"vault_url"`
	NamePrefix string `mapstructure:"name_prefix"`
}

type CatalogConfig struct {
	File               string `mapstructure:"file"`
	MaxNameLength      int    `mapstructure:"max_name_length"`
	RequirePermissions bool   `mapstructure:"require_permissions"`
}

type TimeoutsConfig struct {
	Extraction time.Duration `mapstructure:"extraction"`
	Step       time.Duration `mapstructure:"step"`
	Command    time.Duration `mapstructure:"command"`
}

type ServerConfig struct {
	Transport     TransportConfig   `mapstructure:"transport"`
	HTTP          HTTPConfig        `mapstructure:"http"`
	LogLevel      string            `mapstructure:"log_level"`
	LogFormat     string            `mapstructure:"log_format"`
	LogBufferSize int               `mapstructure:"log_buffer_size"`
	Directory     DirectoryConfig   `mapstructure:"directory"`
	Interpreter   InterpreterConfig `mapstructure:"interpreter"`
	SecretStore   SecretStoreConfig `mapstructure:"secret_store"`
	Catalog       CatalogConfig     `mapstructure:"catalog"`
	Timeouts      TimeoutsConfig    `mapstructure:"timeouts"`
}

func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Transport: TransportConfig{
			Type: "stdio",
			Host: "localhost",
			Port: 8080,
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Host:    "0.0.0.0",
			Port:    5000,
			CORS: CORSConfig{
				Enabled:        false,
				AllowedOrigins: []string{},
				AllowedMethods: []string{"POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization"},
				MaxAge:         300,
			},
		},
		LogLevel:      "info",
		LogFormat:     "json",
		LogBufferSize: 1000,
		Directory: DirectoryConfig{
			GraphBaseURL:      "https://graph.microsoft.com/v1.0",
			SignInAudience:    "AzureADMyOrg",
			RedirectURIs:      []string{"https://localhost:44321"},
			ResourceAppID:     "00000003-0000-0000-c000-000000000000",
			SecretDisplayName: "Default Secret",
			SecretLifetime:    365 * 24 * time.Hour,
		},
		Interpreter: InterpreterConfig{
			APIVersion:  "2023-05-15",
			Temperature: 0,
			MaxTokens:   800,
		},
		SecretStore: SecretStoreConfig{
			NamePrefix: "app-",
		},
		Catalog: CatalogConfig{
			MaxNameLength:      120,
			RequirePermissions: true,
		},
		Timeouts: TimeoutsConfig{
			Extraction: 30 * time.Second,
			Step:       20 * time.Second,
			Command:    2 * time.Minute,
		},
	}
}

// legacyEnv maps configuration keys to the environment variable names used by
// existing deployments.
var legacyEnv = map[string]string{
	"directory.tenant_id":     "AZURE_TENANT_ID",
	"directory.client_id":     "AZURE_CLIENT_ID",
	"directory.client_secret": "AZURE_CLIENT_SECRET",
	"interpreter.endpoint":    "AZURE_OPENAI_ENDPOINT",
	"interpreter.api_key":     "AZURE_OPENAI_API_KEY",
	"interpreter.deployment":  "AZURE_OPENAI_DEPLOYMENT",
	"secret_store.vault_url":  "AZURE_KEYVAULT_URL",
}

func LoadConfig() (*ServerConfig, error) {
	return LoadConfigWith(viper.New())
}

// LoadConfigWith loads the configuration through the given viper instance.
func LoadConfigWith(v *viper.Viper) (*ServerConfig, error) {
	config := DefaultConfig()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/entra-mcp/")
	v.AddConfigPath("$HOME/.entra-mcp/")

	v.SetEnvPrefix("ENTRA_MCP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "ENTRA_MCP_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	// Transport defaults
	v.SetDefault("transport.type", config.Transport.Type)
	v.SetDefault("transport.host", config.Transport.Host)
	v.SetDefault("transport.port", config.Transport.Port)

	// HTTP front door defaults
	v.SetDefault("http.enabled", config.HTTP.Enabled)
	v.SetDefault("http.host", config.HTTP.Host)
	v.SetDefault("http.port", config.HTTP.Port)
	v.SetDefault("http.cors.enabled", config.HTTP.CORS.Enabled)
	v.SetDefault("http.cors.allowed_origins", config.HTTP.CORS.AllowedOrigins)
	v.SetDefault("http.cors.allowed_methods", config.HTTP.CORS.AllowedMethods)
	v.SetDefault("http.cors.allowed_headers", config.HTTP.CORS.AllowedHeaders)
	v.SetDefault("http.cors.max_age", config.HTTP.CORS.MaxAge)
	v.SetDefault("http.auth.enabled", config.HTTP.Auth.Enabled)
	v.SetDefault("http.auth.jwt_secret", config.HTTP.Auth.JWTSecret)
	v.SetDefault("http.auth.issuer", config.HTTP.Auth.Issuer)
	v.SetDefault("http.auth.audience", config.HTTP.Auth.Audience)

	v.SetDefault("log_level", config.LogLevel)
	v.SetDefault("log_format", config.LogFormat)
	v.SetDefault("log_buffer_size", config.LogBufferSize)

	// Directory defaults
	v.SetDefault("directory.graph_base_url", config.Directory.GraphBaseURL)
	v.SetDefault("directory.sign_in_audience", config.Directory.SignInAudience)
	v.SetDefault("directory.redirect_uris", config.Directory.RedirectURIs)
	v.SetDefault("directory.resource_app_id", config.Directory.ResourceAppID)
	v.SetDefault("directory.grant_admin_consent", config.Directory.GrantAdminConsent)
	v.SetDefault("directory.secret_display_name", config.Directory.SecretDisplayName)
	v.SetDefault("directory.secret_lifetime", config.Directory.SecretLifetime)

	// Interpreter defaults
	v.SetDefault("interpreter.api_version", config.Interpreter.APIVersion)
	v.SetDefault("interpreter.temperature", config.Interpreter.Temperature)
	v.SetDefault("interpreter.max_tokens", config.Interpreter.MaxTokens)

	v.SetDefault("secret_store.name_prefix", config.SecretStore.NamePrefix)

	v.SetDefault("catalog.file", config.Catalog.File)
	v.SetDefault("catalog.max_name_length", config.Catalog.MaxNameLength)
	v.SetDefault("catalog.require_permissions", config.Catalog.RequirePermissions)

	v.SetDefault("timeouts.extraction", config.Timeouts.Extraction)
	v.SetDefault("timeouts.step", config.Timeouts.Step)
	v.SetDefault("timeouts.command", config.Timeouts.Command)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func ValidateConfig(config *ServerConfig) error {
	if config.Transport.Port <= 0 || config.Transport.Port > 65535 {
		return fmt.Errorf("the transport port must be between 1 and 65535")
	}

	validTransports := map[string]bool{"stdio": true, "sse": true}
	if !validTransports[config.Transport.Type] {
		return fmt.Errorf("unknown transport type: %s", config.Transport.Type)
	}

	if config.HTTP.Enabled && (config.HTTP.Port <= 0 || config.HTTP.Port > 65535) {
		return fmt.Errorf("the HTTP port must be between 1 and 65535")
	}

	if config.HTTP.Auth.Enabled && config.HTTP.Auth.JWTSecret == "" {
		return fmt.Errorf("the JWT secret cannot be empty when HTTP auth is enabled")
	}

	if config.Timeouts.Extraction <= 0 || config.Timeouts.Step <= 0 || config.Timeouts.Command <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	if config.Directory.TenantID == "" {
		return fmt.Errorf("the directory tenant ID cannot be empty")
	}

	if config.Directory.GraphBaseURL == "" {
		return fmt.Errorf("the Graph base URL cannot be empty")
	}

	if config.Directory.SecretLifetime <= 0 {
		return fmt.Errorf("the secret lifetime must be positive")
	}

	if config.Interpreter.Endpoint == "" || config.Interpreter.APIKey == "" || config.Interpreter.Deployment == "" {
		return fmt.Errorf("the interpreter endpoint, API key and deployment are required")
	}

	if config.Catalog.MaxNameLength <= 0 {
		return fmt.Errorf("the maximum name length must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return fmt.Errorf("invalid log level: %s", config.LogLevel)
	}

	validLogFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validLogFormats[config.LogFormat] {
		return fmt.Errorf("invalid log format: %s", config.LogFormat)
	}

	return nil
}

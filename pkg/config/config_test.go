//go:build !integration

package config_test

import (
	"os"
	"time"

	"github.com/entra-mcp/entra-mcp/pkg/config"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"
)

func setEnv(key, value string) {
	previous, had := os.LookupEnv(key)
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(func() {
		if had {
			_ = os.Setenv(key, previous)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func validConfig() *config.ServerConfig {
	cfg := config.DefaultConfig()
	cfg.Directory.TenantID = "tenant"
	cfg.Interpreter.Endpoint = "https://example.openai.azure.com"
	cfg.Interpreter.APIKey = "key"
	cfg.Interpreter.Deployment = "gpt-4o"
	return cfg
}

var _ = Describe("LoadConfigWith", func() {
	BeforeEach(func() {
		setEnv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
		setEnv("AZURE_OPENAI_API_KEY", "key")
		setEnv("AZURE_OPENAI_DEPLOYMENT", "gpt-4o")
	})

	It("reads the legacy Azure variable names", func() {
		setEnv("AZURE_TENANT_ID", "contoso")
		setEnv("AZURE_KEYVAULT_URL", "https://vault.example.net")

		cfg, err := config.LoadConfigWith(viper.New())
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Directory.TenantID).To(Equal("contoso"))
		Expect(cfg.Interpreter.Deployment).To(Equal("gpt-4o"))
		Expect(cfg.SecretStore.VaultURL).To(Equal("https://vault.example.net"))
	})

	It("applies defaults", func() {
		setEnv("AZURE_TENANT_ID", "contoso")

		cfg, err := config.LoadConfigWith(viper.New())
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Transport.Type).To(Equal("stdio"))
		Expect(cfg.Directory.GraphBaseURL).To(Equal("https://graph.microsoft.com/v1.0"))
		Expect(cfg.Directory.SecretLifetime).To(Equal(365 * 24 * time.Hour))
		Expect(cfg.Catalog.MaxNameLength).To(Equal(120))
		Expect(cfg.Catalog.RequirePermissions).To(BeTrue())
		Expect(cfg.Timeouts.Step).To(Equal(20 * time.Second))
	})

	It("prefers the prefixed variables for regular keys", func() {
		setEnv("AZURE_TENANT_ID", "contoso")
		setEnv("ENTRA_MCP_LOG_LEVEL", "debug")
		setEnv("ENTRA_MCP_TIMEOUTS_STEP", "5s")

		cfg, err := config.LoadConfigWith(viper.New())
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.LogLevel).To(Equal("debug"))
		Expect(cfg.Timeouts.Step).To(Equal(5 * time.Second))
	})

	It("fails without a tenant", func() {
		setEnv("AZURE_TENANT_ID", "")

		_, err := config.LoadConfigWith(viper.New())
		Expect(err).To(MatchError(ContainSubstring("tenant ID")))
	})
})

var _ = Describe("ValidateConfig", func() {
	DescribeTable("rejects invalid settings",
		func(mutate func(*config.ServerConfig), message string) {
			cfg := validConfig()
			mutate(cfg)
			Expect(config.ValidateConfig(cfg)).To(MatchError(ContainSubstring(message)))
		},
		Entry("transport port", func(c *config.ServerConfig) { c.Transport.Port = 0 }, "transport port"),
		Entry("transport type", func(c *config.ServerConfig) { c.Transport.Type = "ws" }, "unknown transport"),
		Entry("http port", func(c *config.ServerConfig) { c.HTTP.Enabled = true; c.HTTP.Port = 70000 }, "HTTP port"),
		Entry("jwt secret", func(c *config.ServerConfig) { c.HTTP.Auth.Enabled = true }, "JWT secret"),
		Entry("timeouts", func(c *config.ServerConfig) { c.Timeouts.Step = 0 }, "timeouts"),
		Entry("interpreter", func(c *config.ServerConfig) { c.Interpreter.APIKey = "" }, "interpreter"),
		Entry("name length", func(c *config.ServerConfig) { c.Catalog.MaxNameLength = 0 }, "name length"),
		Entry("log level", func(c *config.ServerConfig) { c.LogLevel = "trace" }, "log level"),
		Entry("log format", func(c *config.ServerConfig) { c.LogFormat = "xml" }, "log format"),
	)

	It("accepts a complete configuration", func() {
		Expect(config.ValidateConfig(validConfig())).To(Succeed())
	})
})

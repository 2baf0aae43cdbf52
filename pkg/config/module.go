package config

import "go.uber.org/fx"

// Module exposes the sub-configurations of a supplied *ServerConfig.
var Module = fx.Module("config",
	fx.Provide(func(cfg *ServerConfig) TransportConfig { return cfg.Transport }),
	fx.Provide(func(cfg *ServerConfig) HTTPConfig { return cfg.HTTP }),
	fx.Provide(func(cfg *ServerConfig) DirectoryConfig { return cfg.Directory }),
	fx.Provide(func(cfg *ServerConfig) InterpreterConfig { return cfg.Interpreter }),
	fx.Provide(func(cfg *ServerConfig) SecretStoreConfig { return cfg.SecretStore }),
	fx.Provide(func(cfg *ServerConfig) CatalogConfig { return cfg.Catalog }),
	fx.Provide(func(cfg *ServerConfig) TimeoutsConfig { return cfg.Timeouts }),
)

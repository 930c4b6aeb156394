package config

import "time"

// Config represents the complete trackhook configuration.
type Config struct {
	Service ServiceConfig `yaml:"service" json:"service"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Webhook WebhookConfig `yaml:"webhook" json:"webhook"`
	Store   StoreConfig   `yaml:"store" json:"store"`

	// SourcePath is the file the config was loaded from, empty when built
	// from defaults and environment only.
	SourcePath string `yaml:"-" json:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name" json:"name"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`
}

// ServerConfig defines HTTP server settings.
type ServerConfig struct {
	Listen       string        `yaml:"listen" json:"listen"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	CORS         CORSConfig    `yaml:"cors" json:"cors"`
}

// CORSConfig lists origins allowed to call the lookup endpoints from a browser.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// WebhookConfig defines the fulfillment webhook endpoint.
type WebhookConfig struct {
	Path        string `yaml:"path" json:"path"`
	Secret      string `yaml:"secret" json:"secret"`
	ShopDomain  string `yaml:"shop_domain,omitempty" json:"shop_domain,omitempty"`
	MaxBodySize string `yaml:"max_body_size" json:"max_body_size"`
}

// StoreConfig selects the tracking record backend.
type StoreConfig struct {
	// DSN is a scheme-prefixed location, e.g. sqlite://./data/trackhook.db.
	DSN string `yaml:"dsn" json:"dsn"`
	// History enables the append-only per-order audit log.
	History bool `yaml:"history" json:"history"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "trackhook",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Server: ServerConfig{
			Listen:       ":3000",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
			},
		},
		Webhook: WebhookConfig{
			Path:        "/webhooks/fulfillments",
			MaxBodySize: "1MB",
		},
		Store: StoreConfig{
			DSN:     "sqlite://./data/trackhook.db",
			History: true,
		},
	}
}

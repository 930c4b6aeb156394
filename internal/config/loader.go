package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Environment variables read on top of the config file.
const (
	EnvConfigPath    = "TRACKHOOK_CONFIG"
	EnvPort          = "PORT"
	EnvWebhookSecret = "SHOPIFY_WEBHOOK_SECRET"
	EnvStoreDSN      = "TRACKHOOK_STORE_DSN"
	EnvLogLevel      = "LOG_LEVEL"
)

const redactedValue = "xxxxx"

var knownStoreSchemes = map[string]bool{
	"memory": true, "mem": true,
	"sqlite": true, "sqlite3": true,
	"redis": true, "rediss": true,
	"postgres": true, "postgresql": true,
}

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Discover returns the config file to load. An explicit path wins, then
// $TRACKHOOK_CONFIG, then ./config.yaml. An empty result means no file was
// found and the config comes from defaults and environment only.
func Discover(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("$%s points at %s: %w", EnvConfigPath, p, err)
		}
		return p, nil
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml", nil
	}
	return "", nil
}

// Load reads, interpolates, overrides and validates configuration.
// An empty configPath builds the config from defaults and environment only.
func Load(configPath string) (*Config, error) {
	cfg, err := Read(configPath)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Read is Load without validation, for tooling that reports every problem
// instead of stopping at the first.
func Read(configPath string) (*Config, error) {
	cfg := Defaults()

	if configPath != "" {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("config file not found: %s\n"+
				"Hint: Check the path or run with --config flag", absPath)
		}
		if info.IsDir() {
			absPath = filepath.Join(absPath, "config.yaml")
		}

		data, err := os.ReadFile(absPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", absPath, err)
		}
		if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", absPath, err)
		}
		cfg.SourcePath = absPath
	}

	applyEnvOverrides(cfg)
	return applyConfigDefaults(cfg), nil
}

// applyEnvOverrides lets deployment environments set the values platforms
// usually inject without editing the file.
func applyEnvOverrides(cfg *Config) {
	if port := strings.TrimSpace(os.Getenv(EnvPort)); port != "" {
		cfg.Server.Listen = ":" + port
	}
	if secret, ok := os.LookupEnv(EnvWebhookSecret); ok && secret != "" {
		cfg.Webhook.Secret = secret
	}
	if dsn := strings.TrimSpace(os.Getenv(EnvStoreDSN)); dsn != "" {
		cfg.Store.DSN = dsn
	}
	if level := strings.TrimSpace(os.Getenv(EnvLogLevel)); level != "" {
		cfg.Service.LogLevel = strings.ToLower(level)
	}
}

// applyConfigDefaults fills values left empty by the file.
func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaults.Server.Listen
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = defaults.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = defaults.Server.WriteTimeout
	}

	if cfg.Webhook.Path == "" {
		cfg.Webhook.Path = defaults.Webhook.Path
	}
	if cfg.Webhook.MaxBodySize == "" {
		cfg.Webhook.MaxBodySize = defaults.Webhook.MaxBodySize
	}

	return cfg
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Left in place so validation can name the missing variable.
		return match
	})
}

// Validate performs basic validation on the configuration.
func Validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if !strings.HasPrefix(cfg.Webhook.Path, "/") {
		return fmt.Errorf("webhook.path must start with / (got %q)", cfg.Webhook.Path)
	}
	if err := CheckUnresolved("webhook.secret", cfg.Webhook.Secret); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Webhook.Secret) == "" {
		return fmt.Errorf("webhook.secret is required (set it in the config file or $%s)", EnvWebhookSecret)
	}
	if _, err := ParseSize(cfg.Webhook.MaxBodySize); err != nil {
		return fmt.Errorf("webhook.max_body_size %q: %w", cfg.Webhook.MaxBodySize, err)
	}

	if err := CheckUnresolved("store.dsn", cfg.Store.DSN); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Store.DSN) == "" {
		return fmt.Errorf("store.dsn is required (set it in the config file or $%s)", EnvStoreDSN)
	}
	if _, ok := StoreScheme(cfg.Store.DSN); !ok {
		return fmt.Errorf("store.dsn must start with memory://, sqlite://, redis:// or postgres:// (got %q)", cfg.Store.DSN)
	}

	return nil
}

// StoreScheme returns the lowercased scheme of a store DSN and whether it
// names a supported backend.
func StoreScheme(dsn string) (string, bool) {
	scheme, _, ok := strings.Cut(strings.TrimSpace(dsn), "://")
	if !ok {
		return "", false
	}
	scheme = strings.ToLower(scheme)
	return scheme, knownStoreSchemes[scheme]
}

// CheckUnresolved reports a ${VAR} placeholder that survived interpolation.
func CheckUnresolved(field, value string) error {
	if matches := envVarPattern.FindStringSubmatch(value); len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return nil
}

// Fingerprint returns the BLAKE3 hex digest of a config file, so operators
// can confirm two hosts run the same file.
func Fingerprint(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// Redacted returns a copy safe to print. The webhook secret and any
// password in the store DSN are masked.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.Webhook.Secret != "" {
		cp.Webhook.Secret = redactedValue
	}
	if u, err := url.Parse(cp.Store.DSN); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), redactedValue)
			cp.Store.DSN = u.String()
		}
	}
	cp.Server.CORS.AllowedOrigins = append([]string(nil), c.Server.CORS.AllowedOrigins...)
	return &cp
}

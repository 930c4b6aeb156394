// Package doctor validates trackhook configuration before the service starts.
package doctor

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"

	"github.com/mattjoyce/trackhook/internal/config"
)

// minSecretLength is the length below which a webhook secret is flagged.
const minSecretLength = 16

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a configuration that has been read but not yet validated.
type Doctor struct {
	cfg *config.Config
}

// New creates a Doctor from a config.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateServiceConfig(r)
	d.validateServerConfig(r)
	d.validateWebhookConfig(r)
	d.validateStoreConfig(r)
	d.warnWeakSecret(r)
	d.warnOpenCORS(r)
	d.warnUnpinnedShop(r)
	d.warnEphemeralStore(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateServiceConfig(r *Result) {
	switch d.cfg.Service.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		d.addError(r, "service", "service.log_level",
			fmt.Sprintf("must be one of debug, info, warn, error (got %q)", d.cfg.Service.LogLevel))
	}
	if d.cfg.Service.LogFormat != "json" && d.cfg.Service.LogFormat != "text" {
		d.addError(r, "service", "service.log_format",
			fmt.Sprintf("must be json or text (got %q)", d.cfg.Service.LogFormat))
	}
}

func (d *Doctor) validateServerConfig(r *Result) {
	if _, _, err := net.SplitHostPort(d.cfg.Server.Listen); err != nil {
		d.addError(r, "server", "server.listen",
			fmt.Sprintf("invalid listen address %q: %v", d.cfg.Server.Listen, err))
	}
}

func (d *Doctor) validateWebhookConfig(r *Result) {
	wc := d.cfg.Webhook
	if err := config.CheckUnresolved("webhook.secret", wc.Secret); err != nil {
		d.addError(r, "webhook", "webhook.secret", err.Error())
	} else if strings.TrimSpace(wc.Secret) == "" {
		d.addError(r, "webhook", "webhook.secret",
			fmt.Sprintf("secret is required (set it in the config file or $%s)", config.EnvWebhookSecret))
	}
	if !strings.HasPrefix(wc.Path, "/") {
		d.addError(r, "webhook", "webhook.path", fmt.Sprintf("must start with / (got %q)", wc.Path))
	}
	if _, err := config.ParseSize(wc.MaxBodySize); err != nil {
		d.addError(r, "webhook", "webhook.max_body_size",
			fmt.Sprintf("invalid size %q: %v", wc.MaxBodySize, err))
	}
}

func (d *Doctor) validateStoreConfig(r *Result) {
	dsn := d.cfg.Store.DSN
	if err := config.CheckUnresolved("store.dsn", dsn); err != nil {
		d.addError(r, "store", "store.dsn", err.Error())
		return
	}
	if strings.TrimSpace(dsn) == "" {
		d.addError(r, "store", "store.dsn",
			fmt.Sprintf("dsn is required (set it in the config file or $%s)", config.EnvStoreDSN))
		return
	}
	if _, ok := config.StoreScheme(dsn); !ok {
		d.addError(r, "store", "store.dsn",
			"dsn must start with memory://, sqlite://, redis:// or postgres://")
	}
}

// warnWeakSecret flags secrets short enough to be guessable.
func (d *Doctor) warnWeakSecret(r *Result) {
	secret := strings.TrimSpace(d.cfg.Webhook.Secret)
	if secret == "" || config.CheckUnresolved("", secret) != nil {
		return
	}
	if len(secret) < minSecretLength {
		d.addWarning(r, "webhook", "webhook.secret",
			fmt.Sprintf("secret is shorter than %d characters", minSecretLength))
	}
}

// warnOpenCORS flags lookup endpoints callable from any origin.
func (d *Doctor) warnOpenCORS(r *Result) {
	for _, origin := range d.cfg.Server.CORS.AllowedOrigins {
		if origin == "*" {
			d.addWarning(r, "server", "server.cors.allowed_origins",
				"lookup endpoints accept requests from any origin")
			return
		}
	}
}

func (d *Doctor) warnUnpinnedShop(r *Result) {
	if d.cfg.Webhook.ShopDomain == "" {
		d.addWarning(r, "webhook", "webhook.shop_domain",
			"not set; signed requests from any shop are accepted")
	}
}

// warnEphemeralStore flags setups that lose data or audit trail on restart.
func (d *Doctor) warnEphemeralStore(r *Result) {
	if scheme, ok := config.StoreScheme(d.cfg.Store.DSN); ok && (scheme == "memory" || scheme == "mem") {
		d.addWarning(r, "store", "store.dsn",
			"memory store is not durable; tracking records are lost on restart")
	}
	if !d.cfg.Store.History {
		d.addWarning(r, "store", "store.history",
			"history disabled; applied deliveries leave no audit trail")
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

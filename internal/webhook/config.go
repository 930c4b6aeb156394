package webhook

import (
	"fmt"
	"strings"

	"github.com/mattjoyce/trackhook/internal/config"
)

// FromGlobalConfig converts config.WebhookConfig to webhook.Config.
// Parses the max body size and applies defaults.
func FromGlobalConfig(wc config.WebhookConfig) (Config, error) {
	if strings.TrimSpace(wc.Secret) == "" {
		return Config{}, fmt.Errorf("webhook secret is not configured")
	}

	maxBodySize := int64(DefaultMaxBodySize)
	if wc.MaxBodySize != "" {
		size, err := config.ParseSize(wc.MaxBodySize)
		if err != nil {
			return Config{}, fmt.Errorf("webhook: invalid max_body_size %q: %w", wc.MaxBodySize, err)
		}
		maxBodySize = size
	}

	path := wc.Path
	if path == "" {
		path = DefaultPath
	}

	return Config{
		Path:        path,
		Secret:      wc.Secret,
		ShopDomain:  wc.ShopDomain,
		MaxBodySize: maxBodySize,
	}, nil
}

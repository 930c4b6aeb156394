package webhook

import (
	"testing"

	"github.com/mattjoyce/trackhook/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromGlobalConfig(t *testing.T) {
	cfg, err := FromGlobalConfig(config.WebhookConfig{Secret: "s", ShopDomain: "shop.example.com", MaxBodySize: "2MB"})
	require.NoError(t, err)
	assert.Equal(t, DefaultPath, cfg.Path)
	assert.Equal(t, "s", cfg.Secret)
	assert.Equal(t, "shop.example.com", cfg.ShopDomain)
	assert.Equal(t, int64(2<<20), cfg.MaxBodySize)

	cfg, err = FromGlobalConfig(config.WebhookConfig{Secret: "s", Path: "/hooks/shopify"})
	require.NoError(t, err)
	assert.Equal(t, "/hooks/shopify", cfg.Path)
	assert.Equal(t, int64(DefaultMaxBodySize), cfg.MaxBodySize)
}

func TestFromGlobalConfigErrors(t *testing.T) {
	_, err := FromGlobalConfig(config.WebhookConfig{})
	assert.ErrorContains(t, err, "secret")

	_, err = FromGlobalConfig(config.WebhookConfig{Secret: "s", MaxBodySize: "lots"})
	assert.ErrorContains(t, err, "max_body_size")
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xcp-ng/xenclean/pkg/config"
)

func TestApplyFlags(t *testing.T) {
	cfg := config.GetDefaultConfig()
	applyFlags(cfg, 0, false, false, false)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.False(t, cfg.DryRun)

	applyFlags(cfg, 1, true, true, false)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.SkipProducts)
	assert.False(t, cfg.SkipRegistry)

	applyFlags(cfg, 3, false, false, true)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.True(t, cfg.SkipProducts, "config file setting is kept")
	assert.True(t, cfg.SkipRegistry)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("VendorName: ExampleVendor\nVendorDeviceID: \" C000 \"\nUninstallOrder: []\n"), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "ExampleVendor", cfg.VendorName)
	assert.Equal(t, "C000", cfg.VendorDeviceID)
	assert.Equal(t, "XP", cfg.VendorPrefix)
	assert.Equal(t, "oem", cfg.PackagePrefix)
	assert.NotEmpty(t, cfg.UninstallOrder)
	assert.Equal(t, 15, cfg.InstallerTimeoutMinutes)
}

func TestLoadFileRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("VendorName: [unterminated\n"), 0644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadConfigFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig().VendorName, cfg.VendorName)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "Config.yaml")
	cfg := GetDefaultConfig()
	cfg.AdditionalPublishers = []string{"Citrix"}
	cfg.DryRun = true

	require.NoError(t, SaveConfig(cfg, path))
	loaded, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"XCP-ng", "Citrix"}, loaded.Publishers())
	assert.False(t, loaded.DryRun)
}

func TestBranding(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.VendorDeviceID = "0003"

	b := cfg.Branding()
	assert.Equal(t, "XP", b.VendorPrefix)
	assert.Equal(t, "0003", b.VendorDeviceID)
}

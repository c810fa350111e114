// pkg/config/config.go - configuration settings for xenclean.

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xcp-ng/xenclean/pkg/descriptor"
)

const ConfigPath = `C:\ProgramData\XenClean\Config.yaml`

// RegistryPath holds policy-managed settings used when no YAML file exists.
const RegistryPath = `SOFTWARE\XenClean\Config`

// ErrNoConfig is returned by LoadRegistry when the policy key is missing.
var ErrNoConfig = errors.New("no configuration found")

// Configuration holds the configurable options for xenclean in YAML format.
type Configuration struct {
	// Driver package publisher written by this product's INF files.
	VendorName string `yaml:"VendorName"`
	// Other publishers whose packages are also cleaned up.
	AdditionalPublishers []string `yaml:"AdditionalPublishers"`
	VendorPrefix         string   `yaml:"VendorPrefix"`
	VendorDeviceID       string   `yaml:"VendorDeviceID"`
	PackagePrefix        string   `yaml:"PackagePrefix"`
	DriverStorePath      string   `yaml:"DriverStorePath"`
	UninstallOrder       []string `yaml:"UninstallOrder"`
	UpgradeCodes         []string `yaml:"UpgradeCodes"`

	LogDir           string `yaml:"LogDir"`
	LogLevel         string `yaml:"LogLevel"`
	LogRetentionRuns int    `yaml:"LogRetentionRuns"`
	EnableYAMLLog    bool   `yaml:"EnableYAMLLog"`
	Verbose          bool   `yaml:"Verbose"`

	MinimumWindowsVersion   string `yaml:"MinimumWindowsVersion"`
	InstallerTimeoutMinutes int    `yaml:"InstallerTimeoutMinutes"`
	SkipProducts            bool   `yaml:"SkipProducts"`
	SkipRegistry            bool   `yaml:"SkipRegistry"`

	// Set from the command line only.
	DryRun bool `yaml:"-"`
}

// LoadConfig loads the configuration from ConfigPath. If the file doesn't
// exist it falls back to the registry policy key, then to defaults.
func LoadConfig() (*Configuration, error) {
	return LoadConfigFrom(ConfigPath)
}

// LoadConfigFrom is LoadConfig for an explicit file path.
func LoadConfigFrom(path string) (*Configuration, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, regErr := LoadRegistry()
		if regErr == nil {
			log.Printf("Loaded configuration from registry path: %s", RegistryPath)
			return cfg, nil
		}
		if !errors.Is(regErr, ErrNoConfig) {
			log.Printf("Failed to load configuration from registry: %v", regErr)
		}
		return GetDefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a YAML configuration file. Fields missing from the file
// keep their default values.
func LoadFile(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	cfg := GetDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Configuration, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create configuration directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// GetDefaultConfig provides default configuration values.
func GetDefaultConfig() *Configuration {
	windir := os.Getenv("WINDIR")
	if windir == "" {
		windir = `C:\Windows`
	}
	return &Configuration{
		VendorName:              "XCP-ng",
		VendorPrefix:            "XP",
		VendorDeviceID:          "",
		PackagePrefix:           "oem",
		DriverStorePath:         filepath.Join(windir, "INF"),
		UninstallOrder:          descriptor.UninstallOrder(),
		UpgradeCodes:            DefaultUpgradeCodes(),
		LogDir:                  `C:\ProgramData\XenClean\logs`,
		LogLevel:                "INFO",
		LogRetentionRuns:        10,
		MinimumWindowsVersion:   "10.0.14393",
		InstallerTimeoutMinutes: 15,
	}
}

// DefaultUpgradeCodes lists MSI upgrade codes of this product and of the
// earlier builds it replaces.
func DefaultUpgradeCodes() []string {
	return []string{
		"{EE3B949D-C431-462B-B6DC-5BEDA078D772}",
		"{48E5492C-6843-452E-97A2-A5FE2D24B141}",
		"{AF9B2559-3E91-4206-98C2-F560009FF7F1}",
		"{10828840-D8A9-4953-B44A-1F1D3CD7ECB0}",
		"{D60FED1E-316C-41B0-B7A5-E44951A82618}",
	}
}

// Branding returns the identifier branding for descriptor.Build.
func (c *Configuration) Branding() descriptor.Branding {
	return descriptor.Branding{
		VendorPrefix:   c.VendorPrefix,
		VendorDeviceID: c.VendorDeviceID,
	}
}

// Publishers returns VendorName followed by AdditionalPublishers.
func (c *Configuration) Publishers() []string {
	var out []string
	if c.VendorName != "" {
		out = append(out, c.VendorName)
	}
	for _, p := range c.AdditionalPublishers {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalize fills fields a file may have cleared explicitly.
func (c *Configuration) normalize() {
	defaults := GetDefaultConfig()
	if c.PackagePrefix == "" {
		c.PackagePrefix = defaults.PackagePrefix
	}
	if c.DriverStorePath == "" {
		c.DriverStorePath = defaults.DriverStorePath
	}
	if len(c.UninstallOrder) == 0 {
		c.UninstallOrder = defaults.UninstallOrder
	}
	if c.LogDir == "" {
		c.LogDir = defaults.LogDir
	}
	if c.InstallerTimeoutMinutes <= 0 {
		c.InstallerTimeoutMinutes = defaults.InstallerTimeoutMinutes
	}
	c.VendorPrefix = strings.TrimSpace(c.VendorPrefix)
	c.VendorDeviceID = strings.TrimSpace(c.VendorDeviceID)
}

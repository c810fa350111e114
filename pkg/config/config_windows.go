// pkg/config/config_windows.go - registry policy fallback.

package config

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"golang.org/x/sys/windows/registry"
)

// LoadRegistry loads configuration values from RegistryPath on top of the
// defaults.
func LoadRegistry() (*Configuration, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, RegistryPath, registry.READ)
	if errors.Is(err, registry.ErrNotExist) {
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open registry key %s: %w", RegistryPath, err)
	}
	defer key.Close()

	cfg := GetDefaultConfig()

	loadStringFromRegistry(key, "VendorName", &cfg.VendorName)
	loadStringFromRegistry(key, "VendorPrefix", &cfg.VendorPrefix)
	loadStringFromRegistry(key, "VendorDeviceID", &cfg.VendorDeviceID)
	loadStringFromRegistry(key, "PackagePrefix", &cfg.PackagePrefix)
	loadStringFromRegistry(key, "DriverStorePath", &cfg.DriverStorePath)
	loadStringFromRegistry(key, "LogDir", &cfg.LogDir)
	loadStringFromRegistry(key, "LogLevel", &cfg.LogLevel)
	loadStringFromRegistry(key, "MinimumWindowsVersion", &cfg.MinimumWindowsVersion)

	loadIntFromRegistry(key, "LogRetentionRuns", &cfg.LogRetentionRuns)
	loadIntFromRegistry(key, "InstallerTimeoutMinutes", &cfg.InstallerTimeoutMinutes)

	loadBoolFromRegistry(key, "EnableYAMLLog", &cfg.EnableYAMLLog)
	loadBoolFromRegistry(key, "Verbose", &cfg.Verbose)
	loadBoolFromRegistry(key, "SkipProducts", &cfg.SkipProducts)
	loadBoolFromRegistry(key, "SkipRegistry", &cfg.SkipRegistry)

	loadStringArrayFromRegistry(key, "AdditionalPublishers", &cfg.AdditionalPublishers)
	loadStringArrayFromRegistry(key, "UninstallOrder", &cfg.UninstallOrder)
	loadStringArrayFromRegistry(key, "UpgradeCodes", &cfg.UpgradeCodes)

	cfg.normalize()
	return cfg, nil
}

// loadStringFromRegistry loads a string value from registry if it exists.
func loadStringFromRegistry(key registry.Key, valueName string, target *string) {
	if val, _, err := key.GetStringValue(valueName); err == nil && val != "" {
		*target = val
		log.Printf("Registry: Loaded %s = %s", valueName, val)
	}
}

// loadBoolFromRegistry accepts "true"/"false", "1"/"0" or a DWORD.
func loadBoolFromRegistry(key registry.Key, valueName string, target *bool) {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.ParseBool(val); parseErr == nil {
			*target = parsed
			return
		}
	}
	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = val != 0
	}
}

// loadIntFromRegistry loads an integer value from registry if it exists.
func loadIntFromRegistry(key registry.Key, valueName string, target *int) {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.Atoi(val); parseErr == nil {
			*target = parsed
			return
		}
	}
	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = int(val)
	}
}

// loadStringArrayFromRegistry reads REG_MULTI_SZ or a comma-separated string.
func loadStringArrayFromRegistry(key registry.Key, valueName string, target *[]string) {
	if vals, _, err := key.GetStringsValue(valueName); err == nil {
		if filtered := splitNonEmpty(vals); len(filtered) > 0 {
			*target = filtered
			return
		}
	}
	if val, _, err := key.GetStringValue(valueName); err == nil && val != "" {
		if filtered := splitNonEmpty(strings.Split(val, ",")); len(filtered) > 0 {
			*target = filtered
		}
	}
}

func splitNonEmpty(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

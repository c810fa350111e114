//go:build !windows

package config

// LoadRegistry always reports ErrNoConfig outside Windows.
func LoadRegistry() (*Configuration, error) {
	return nil, ErrNoConfig
}

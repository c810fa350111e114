//go:build !windows

package preflight

func windowsVersion() (string, error) { return "", ErrUnsupported }

func isElevated() (bool, error) { return false, ErrUnsupported }

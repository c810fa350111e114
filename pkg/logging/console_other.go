//go:build !windows

package logging

// EnableANSIConsole is a no-op outside Windows.
func EnableANSIConsole() {}

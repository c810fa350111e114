//go:build !windows

package regclean

func systemHive() Hive { return nil }

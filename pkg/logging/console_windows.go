// pkg/logging/console_windows.go

package logging

import "golang.org/x/sys/windows"

// EnableANSIConsole turns on virtual terminal processing so colored output
// renders in the Windows console.
func EnableANSIConsole() {
	handle, err := windows.GetStdHandle(windows.STD_OUTPUT_HANDLE)
	if err != nil {
		return
	}
	var mode uint32
	if err := windows.GetConsoleMode(handle, &mode); err == nil {
		mode |= windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING
		_ = windows.SetConsoleMode(handle, mode)
	}
}

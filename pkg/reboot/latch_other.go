//go:build !windows

package reboot

import "os"

// NewLatch returns a FileLatch in the temporary directory.
func NewLatch() Latch {
	return NewFileLatch(os.TempDir())
}

// pkg/reboot/reboot.go - process-independent "reboot required" marker.
//
// A removal can run in one process while the decision to prompt for a
// restart is taken in another, so the marker lives outside process memory.
// Scheduling is idempotent and never fails the caller.

package reboot

import (
	"os"
	"path/filepath"
)

// AtomName is the marker the installer's reboot check looks for.
const AtomName = "WcaDeferredActionRequiresReboot"

// Latch records that a reboot is required.
type Latch interface {
	// Schedule sets the marker. Errors are swallowed.
	Schedule()
	// IsScheduled reports whether the marker is set.
	IsScheduled() bool
}

// FileLatch keeps the marker as a file.
type FileLatch struct {
	Path string
}

// NewFileLatch returns a FileLatch under dir named after AtomName.
func NewFileLatch(dir string) *FileLatch {
	return &FileLatch{Path: filepath.Join(dir, AtomName)}
}

func (l *FileLatch) Schedule() {
	if l.IsScheduled() {
		return
	}
	_ = os.MkdirAll(filepath.Dir(l.Path), 0755)
	_ = os.WriteFile(l.Path, nil, 0644)
}

func (l *FileLatch) IsScheduled() bool {
	_, err := os.Stat(l.Path)
	return err == nil
}

// Clear removes the marker.
func (l *FileLatch) Clear() error {
	err := os.Remove(l.Path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

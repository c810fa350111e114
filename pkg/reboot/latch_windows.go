// pkg/reboot/latch_windows.go - global atom marker.

package reboot

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modkernel32         = windows.NewLazySystemDLL("kernel32.dll")
	procGlobalAddAtomW  = modkernel32.NewProc("GlobalAddAtomW")
	procGlobalFindAtomW = modkernel32.NewProc("GlobalFindAtomW")
)

// AtomLatch keeps the marker in the global atom table, where it is visible
// to every process of the session until logoff or restart.
type AtomLatch struct {
	Name string
}

// NewLatch returns the platform marker: an AtomLatch named AtomName.
func NewLatch() Latch {
	return &AtomLatch{Name: AtomName}
}

func (l *AtomLatch) Schedule() {
	if l.IsScheduled() {
		return
	}
	name, err := windows.UTF16PtrFromString(l.Name)
	if err != nil {
		return
	}
	procGlobalAddAtomW.Call(uintptr(unsafe.Pointer(name)))
}

func (l *AtomLatch) IsScheduled() bool {
	name, err := windows.UTF16PtrFromString(l.Name)
	if err != nil {
		return false
	}
	atom, _, _ := procGlobalFindAtomW.Call(uintptr(unsafe.Pointer(name)))
	return atom != 0
}

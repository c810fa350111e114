// pkg/reboot/pending_windows.go

package reboot

import (
	"golang.org/x/sys/windows/registry"
)

// DetectPending checks the places Windows records restarts it is waiting
// for. It returns true with the reasons when any is set.
func DetectPending() (bool, []string) {
	var reasons []string

	if keyExists(registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Windows\CurrentVersion\WindowsUpdate\Auto Update\RebootRequired`) {
		reasons = append(reasons, "Windows Update requires reboot")
	}
	if keyExists(registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Windows\CurrentVersion\Component Based Servicing\RebootPending`) {
		reasons = append(reasons, "Component servicing reboot pending")
	}
	if hasPendingFileRenames() {
		reasons = append(reasons, "Pending file rename operations")
	}
	if NewLatch().IsScheduled() {
		reasons = append(reasons, "Driver removal requires reboot")
	}

	return len(reasons) > 0, reasons
}

func keyExists(root registry.Key, path string) bool {
	k, err := registry.OpenKey(root, path, registry.QUERY_VALUE)
	if err != nil {
		return false
	}
	k.Close()
	return true
}

func hasPendingFileRenames() bool {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE,
		`SYSTEM\CurrentControlSet\Control\Session Manager`, registry.QUERY_VALUE)
	if err != nil {
		return false
	}
	defer k.Close()

	val, _, err := k.GetStringsValue("PendingFileRenameOperations")
	if err != nil {
		return false
	}
	return len(val) > 0
}

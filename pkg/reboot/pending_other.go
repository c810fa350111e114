//go:build !windows

package reboot

// DetectPending reports only the driver removal marker outside Windows.
func DetectPending() (bool, []string) {
	if NewLatch().IsScheduled() {
		return true, []string{"Driver removal requires reboot"}
	}
	return false, nil
}

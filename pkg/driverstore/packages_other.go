//go:build !windows

package driverstore

type systemPackages struct{}

// NewPackageManager returns a PackageManager whose calls fail with
// ErrUnsupported.
func NewPackageManager() PackageManager {
	return systemPackages{}
}

func (systemPackages) Uninstall(string) error { return ErrUnsupported }

func (systemPackages) Install(string, bool) (bool, error) { return false, ErrUnsupported }

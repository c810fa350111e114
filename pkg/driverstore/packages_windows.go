// pkg/driverstore/packages_windows.go

package driverstore

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modnewdev            = windows.NewLazySystemDLL("newdev.dll")
	procDiInstallDriverW = modnewdev.NewProc("DiInstallDriverW")
)

const diirflagForceInf = 0x00000002

type systemPackages struct{}

// NewPackageManager returns the SetupAPI driver store manager.
func NewPackageManager() PackageManager {
	return systemPackages{}
}

func (systemPackages) Uninstall(fileName string) error {
	return windows.SetupUninstallOEMInf(fileName, windows.SUOI_FORCEDELETE)
}

func (systemPackages) Install(infPath string, force bool) (bool, error) {
	path, err := windows.UTF16PtrFromString(infPath)
	if err != nil {
		return false, err
	}
	var flags uintptr
	if force {
		flags = diirflagForceInf
	}
	var reboot int32
	r1, _, e1 := procDiInstallDriverW.Call(
		0,
		uintptr(unsafe.Pointer(path)),
		flags,
		uintptr(unsafe.Pointer(&reboot)),
	)
	if r1 == 0 {
		// No present device matched; the package is still staged.
		if errors.Is(e1, windows.ERROR_NO_MORE_ITEMS) {
			return reboot != 0, nil
		}
		return false, e1
	}
	return reboot != 0, nil
}

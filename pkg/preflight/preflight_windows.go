package preflight

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// windowsVersion uses RtlGetVersion, which unlike GetVersionEx is not
// subject to manifest based version lies.
func windowsVersion() (string, error) {
	v := windows.RtlGetVersion()
	return fmt.Sprintf("%d.%d.%d", v.MajorVersion, v.MinorVersion, v.BuildNumber), nil
}

func isElevated() (bool, error) {
	return windows.GetCurrentProcessToken().IsElevated(), nil
}

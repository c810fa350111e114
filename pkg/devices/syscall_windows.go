// pkg/devices/syscall_windows.go - SetupDiOpenDeviceInfoW, DiUninstallDevice
// and string-list device properties, which golang.org/x/sys/windows does not
// wrap or decode.

package devices

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modsetupapi = windows.NewLazySystemDLL("setupapi.dll")
	modnewdev   = windows.NewLazySystemDLL("newdev.dll")

	procSetupDiOpenDeviceInfoW    = modsetupapi.NewProc("SetupDiOpenDeviceInfoW")
	procSetupDiGetDevicePropertyW = modsetupapi.NewProc("SetupDiGetDevicePropertyW")
	procDiUninstallDevice         = modnewdev.NewProc("DiUninstallDevice")
)

// devInfoData mirrors SP_DEVINFO_DATA, whose size field windows.DevInfoData
// does not export.
type devInfoData struct {
	size      uint32
	ClassGUID windows.GUID
	DevInst   windows.DEVINST
	_         uintptr
}

func newDevInfoData() *windows.DevInfoData {
	d := &devInfoData{}
	d.size = uint32(unsafe.Sizeof(*d))
	return (*windows.DevInfoData)(unsafe.Pointer(d))
}

// Device property keys read by this package.
var (
	devpkeyDeviceChildren = windows.DEVPROPKEY{
		FmtID: windows.DEVPROPGUID{Data1: 0x4340a6c5, Data2: 0x93fa, Data3: 0x4706, Data4: [8]byte{0x97, 0x2c, 0x7b, 0x64, 0x80, 0x08, 0xa5, 0xa7}},
		PID:   9,
	}
	devpkeyDeviceDriverInfPath = windows.DEVPROPKEY{
		FmtID: windows.DEVPROPGUID{Data1: 0xa8b865dd, Data2: 0x2e3d, Data3: 0x4094, Data4: [8]byte{0xad, 0x97, 0xe5, 0x93, 0xa7, 0x0c, 0x75, 0xd6}},
		PID:   5,
	}
)

func setupDiOpenDeviceInfo(set windows.DevInfo, instanceID string, data *windows.DevInfoData) error {
	id, err := windows.UTF16PtrFromString(instanceID)
	if err != nil {
		return err
	}
	r1, _, e1 := procSetupDiOpenDeviceInfoW.Call(
		uintptr(set),
		uintptr(unsafe.Pointer(id)),
		0,
		0,
		uintptr(unsafe.Pointer(data)),
	)
	if r1 == 0 {
		return e1
	}
	return nil
}

func diUninstallDevice(set windows.DevInfo, data *windows.DevInfoData) (needReboot bool, err error) {
	var reboot int32
	r1, _, e1 := procDiUninstallDevice.Call(
		0,
		uintptr(set),
		uintptr(unsafe.Pointer(data)),
		0,
		uintptr(unsafe.Pointer(&reboot)),
	)
	if r1 == 0 {
		return false, e1
	}
	return reboot != 0, nil
}

// deviceStringList reads a DEVPROP_TYPE_STRING_LIST property.
// windows.SetupDiGetDeviceProperty only decodes DEVPROP_TYPE_STRING.
func deviceStringList(set windows.DevInfo, data *windows.DevInfoData, key *windows.DEVPROPKEY) ([]string, error) {
	size := uint32(256)
	for {
		var typ windows.DEVPROPTYPE
		buf := make([]uint16, size/2+1)
		r1, _, e1 := procSetupDiGetDevicePropertyW.Call(
			uintptr(set),
			uintptr(unsafe.Pointer(data)),
			uintptr(unsafe.Pointer(key)),
			uintptr(unsafe.Pointer(&typ)),
			uintptr(unsafe.Pointer(&buf[0])),
			uintptr(len(buf)*2),
			uintptr(unsafe.Pointer(&size)),
			0,
		)
		if r1 == 0 {
			if e1 == windows.ERROR_INSUFFICIENT_BUFFER {
				continue
			}
			return nil, e1
		}
		if typ != windows.DEVPROP_TYPE_STRING_LIST {
			return nil, fmt.Errorf("unexpected property type %#x", typ)
		}
		return splitMultiSz(buf[:size/2]), nil
	}
}

// splitMultiSz splits a REG_MULTI_SZ style buffer of NUL-terminated strings.
func splitMultiSz(buf []uint16) []string {
	var out []string
	for start, i := 0, 0; i < len(buf); i++ {
		if buf[i] != 0 {
			continue
		}
		if i == start {
			break
		}
		out = append(out, windows.UTF16ToString(buf[start:i]))
		start = i + 1
	}
	return out
}

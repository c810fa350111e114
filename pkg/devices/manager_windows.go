// pkg/devices/manager_windows.go - SetupAPI backed Manager.

package devices

import (
	"errors"
	"fmt"
	"iter"

	"github.com/google/uuid"
	"golang.org/x/sys/windows"
)

type systemManager struct{}

// NewManager returns the SetupAPI device manager.
func NewManager() Manager {
	return systemManager{}
}

func (systemManager) Enumerate(class *uuid.UUID, presence Presence) iter.Seq2[Device, error] {
	return func(yield func(Device, error) bool) {
		var flags windows.DIGCF
		var guid *windows.GUID
		if class == nil {
			flags |= windows.DIGCF_ALLCLASSES
		} else {
			g := toGUID(*class)
			guid = &g
		}
		if presence == PresentOnly {
			flags |= windows.DIGCF_PRESENT
		}

		set, err := windows.SetupDiGetClassDevsEx(guid, "", 0, flags, 0, "")
		if err != nil {
			yield(nil, fmt.Errorf("failed to open device information set: %w", err))
			return
		}
		defer set.Close()

		for i := 0; ; i++ {
			data, err := set.EnumDeviceInfo(i)
			if errors.Is(err, windows.ERROR_NO_MORE_ITEMS) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("failed to enumerate device %d: %w", i, err))
				return
			}
			if !yield(&device{set: set, data: data}, nil) {
				return
			}
		}
	}
}

func (systemManager) Open(instanceID string, fn func(Device) error) error {
	set, err := windows.SetupDiCreateDeviceInfoListEx(nil, 0, "")
	if err != nil {
		return fmt.Errorf("failed to create device information set: %w", err)
	}
	defer set.Close()

	data := newDevInfoData()
	if err := setupDiOpenDeviceInfo(set, instanceID, data); err != nil {
		return fmt.Errorf("failed to open device %s: %w", instanceID, err)
	}
	return fn(&device{set: set, data: data})
}

type device struct {
	set  windows.DevInfo
	data *windows.DevInfoData
}

func (d *device) HardwareIDs() ([]string, error) {
	var ids []string
	for _, prop := range []windows.SPDRP{windows.SPDRP_HARDWAREID, windows.SPDRP_COMPATIBLEIDS} {
		v, err := d.set.DeviceRegistryProperty(d.data, prop)
		if isMissing(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		switch v := v.(type) {
		case []string:
			ids = append(ids, v...)
		case string:
			ids = append(ids, v)
		}
	}
	return ids, nil
}

func (d *device) InstanceID() (string, bool, error) {
	id, err := d.set.DeviceInstanceID(d.data)
	if isMissing(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, id != "", nil
}

func (d *device) Children() ([]string, bool, error) {
	children, err := deviceStringList(d.set, d.data, &devpkeyDeviceChildren)
	if isMissing(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return children, len(children) > 0, nil
}

func (d *device) DriverPackage() (string, bool, error) {
	v, err := windows.SetupDiGetDeviceProperty(d.set, d.data, &devpkeyDeviceDriverInfPath)
	if isMissing(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	name, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("unexpected value %T for driver inf path", v)
	}
	return name, name != "", nil
}

func (d *device) Uninstall() (bool, error) {
	return diUninstallDevice(d.set, d.data)
}

func isMissing(err error) bool {
	return errors.Is(err, windows.ERROR_NOT_FOUND) || errors.Is(err, windows.ERROR_INVALID_DATA)
}

func toGUID(u uuid.UUID) windows.GUID {
	return windows.GUID{
		Data1: uint32(u[0])<<24 | uint32(u[1])<<16 | uint32(u[2])<<8 | uint32(u[3]),
		Data2: uint16(u[4])<<8 | uint16(u[5]),
		Data3: uint16(u[6])<<8 | uint16(u[7]),
		Data4: [8]byte{u[8], u[9], u[10], u[11], u[12], u[13], u[14], u[15]},
	}
}

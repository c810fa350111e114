// pkg/devices/devices.go - enumeration of installed devices.
//
// A Device is only valid inside the iteration or callback that produced it;
// the underlying device information set is released when that scope ends.

package devices

import (
	"errors"
	"iter"

	"github.com/google/uuid"
)

// ErrUnsupported is returned on platforms without a device manager.
var ErrUnsupported = errors.New("device management is not supported on this platform")

// Presence selects which devices an enumeration returns.
type Presence int

const (
	// AllConfigured includes devices that are installed but not attached.
	AllConfigured Presence = iota
	// PresentOnly includes only devices currently attached.
	PresentOnly
)

func (p Presence) String() string {
	if p == PresentOnly {
		return "present"
	}
	return "all"
}

// Device is one entry of a device information set.
//
// Property accessors return (value, true, nil) when the property is set,
// (zero, false, nil) when the device has no such property, and
// (zero, false, err) when the query itself failed.
type Device interface {
	// HardwareIDs returns hardware IDs followed by compatible IDs.
	HardwareIDs() ([]string, error)
	InstanceID() (string, bool, error)
	// Children returns the instance IDs of the device's children.
	Children() ([]string, bool, error)
	// DriverPackage returns the driver store file name of the bound
	// package, e.g. oem12.inf.
	DriverPackage() (string, bool, error)
	// Uninstall removes the device and reports whether a reboot is needed
	// to complete the removal.
	Uninstall() (needReboot bool, err error)
}

// Manager enumerates and opens devices.
type Manager interface {
	// Enumerate yields the devices of class, or of every class when class
	// is nil. A failure yields a single error and ends the sequence.
	Enumerate(class *uuid.UUID, presence Presence) iter.Seq2[Device, error]
	// Open locates a device by instance ID and passes it to fn.
	Open(instanceID string, fn func(Device) error) error
}

// Match is a device selected by Find, detached from its information set.
type Match struct {
	InstanceID string
	IDs        []string
}

// Find collects the devices whose identifiers satisfy match. Devices whose
// identifiers cannot be read are skipped. An error is returned only when
// enumeration fails before the first device; a later failure ends the
// search with what was collected.
func Find(m Manager, class *uuid.UUID, presence Presence, match func(ids []string) bool) ([]Match, error) {
	var out []Match
	listed := 0
	for dev, err := range m.Enumerate(class, presence) {
		if err != nil {
			if listed == 0 {
				return nil, err
			}
			break
		}
		listed++
		ids, err := dev.HardwareIDs()
		if err != nil || !match(ids) {
			continue
		}
		instanceID, ok, err := dev.InstanceID()
		if err != nil || !ok {
			instanceID = ""
		}
		out = append(out, Match{InstanceID: instanceID, IDs: ids})
	}
	return out, nil
}

// Package devicestest provides an in-memory devices.Manager for tests.
package devicestest

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/xcp-ng/xenclean/pkg/devices"
)

// Device is a fake device node. Zero-valued error fields mean success.
type Device struct {
	InstanceID string
	Class      uuid.UUID
	IDs        []string
	Children   []string
	Package    string
	Absent     bool

	NeedReboot   bool
	UninstallErr error
	IDsErr       error
	ChildrenErr  error
	PackageErr   error
}

// Manager holds a device tree. Uninstalled devices disappear from later
// enumerations. Calls records every Uninstall attempt as "uninstall:<id>".
type Manager struct {
	mu      sync.Mutex
	devices []*Device
	removed map[string]bool

	// EnumerateErr fails enumeration before any device is listed.
	EnumerateErr error
	// TrailingErr is yielded after the last device of a non-empty listing.
	TrailingErr error
	Calls       []string
}

// NewManager returns a Manager populated with devs.
func NewManager(devs ...*Device) *Manager {
	return &Manager{devices: devs, removed: make(map[string]bool)}
}

// Removed reports whether the device with instanceID was uninstalled.
func (m *Manager) Removed(instanceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removed[strings.ToUpper(instanceID)]
}

// Uninstalled returns the instance IDs passed to Uninstall, in call order.
func (m *Manager) Uninstalled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.Calls {
		if id, ok := strings.CutPrefix(c, "uninstall:"); ok {
			out = append(out, id)
		}
	}
	return out
}

func (m *Manager) Enumerate(class *uuid.UUID, presence devices.Presence) iter.Seq2[devices.Device, error] {
	return func(yield func(devices.Device, error) bool) {
		if m.EnumerateErr != nil {
			yield(nil, m.EnumerateErr)
			return
		}
		m.mu.Lock()
		snapshot := append([]*Device(nil), m.devices...)
		m.mu.Unlock()

		listed := 0
		for _, d := range snapshot {
			if m.Removed(d.InstanceID) {
				continue
			}
			if class != nil && d.Class != *class {
				continue
			}
			if presence == devices.PresentOnly && d.Absent {
				continue
			}
			listed++
			if !yield(&handle{m: m, d: d}, nil) {
				return
			}
		}
		if m.TrailingErr != nil && listed > 0 {
			yield(nil, m.TrailingErr)
		}
	}
}

func (m *Manager) Open(instanceID string, fn func(devices.Device) error) error {
	m.mu.Lock()
	var found *Device
	for _, d := range m.devices {
		if strings.EqualFold(d.InstanceID, instanceID) && !m.removed[strings.ToUpper(d.InstanceID)] {
			found = d
			break
		}
	}
	m.mu.Unlock()
	if found == nil {
		return fmt.Errorf("failed to open device %s: %w", instanceID, errNoDevice)
	}
	return fn(&handle{m: m, d: found})
}

var errNoDevice = errors.New("no such device")

type handle struct {
	m *Manager
	d *Device
}

func (h *handle) HardwareIDs() ([]string, error) {
	if h.d.IDsErr != nil {
		return nil, h.d.IDsErr
	}
	return h.d.IDs, nil
}

func (h *handle) InstanceID() (string, bool, error) {
	return h.d.InstanceID, h.d.InstanceID != "", nil
}

func (h *handle) Children() ([]string, bool, error) {
	if h.d.ChildrenErr != nil {
		return nil, false, h.d.ChildrenErr
	}
	return h.d.Children, len(h.d.Children) > 0, nil
}

func (h *handle) DriverPackage() (string, bool, error) {
	if h.d.PackageErr != nil {
		return "", false, h.d.PackageErr
	}
	return h.d.Package, h.d.Package != "", nil
}

func (h *handle) Uninstall() (bool, error) {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	h.m.Calls = append(h.m.Calls, "uninstall:"+h.d.InstanceID)
	if h.d.UninstallErr != nil {
		return h.d.NeedReboot, h.d.UninstallErr
	}
	h.m.removed[strings.ToUpper(h.d.InstanceID)] = true
	return h.d.NeedReboot, nil
}

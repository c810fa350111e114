//go:build !windows

package devices

import (
	"iter"

	"github.com/google/uuid"
)

type systemManager struct{}

// NewManager returns a Manager whose every call fails with ErrUnsupported.
func NewManager() Manager {
	return systemManager{}
}

func (systemManager) Enumerate(*uuid.UUID, Presence) iter.Seq2[Device, error] {
	return func(yield func(Device, error) bool) {
		yield(nil, ErrUnsupported)
	}
}

func (systemManager) Open(string, func(Device) error) error {
	return ErrUnsupported
}

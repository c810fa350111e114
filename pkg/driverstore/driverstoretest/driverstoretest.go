// Package driverstoretest provides a recording driverstore.PackageManager.
package driverstoretest

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Packages records calls and fails the names listed in Fail. When Dir is
// set, a successful Uninstall also deletes the file from Dir.
type Packages struct {
	mu sync.Mutex

	Dir string

	Fail       map[string]error
	NeedReboot bool
	InstallErr error

	Uninstalled []string
	Installed   []string
	Forced      []bool
}

// Uninstall records name and returns its configured failure.
func (p *Packages) Uninstall(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Uninstalled = append(p.Uninstalled, name)
	for k, err := range p.Fail {
		if strings.EqualFold(k, name) {
			return err
		}
	}
	if p.Dir != "" {
		os.Remove(filepath.Join(p.Dir, name))
	}
	return nil
}

// Install records infPath and force.
func (p *Packages) Install(infPath string, force bool) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Installed = append(p.Installed, infPath)
	p.Forced = append(p.Forced, force)
	if p.InstallErr != nil {
		return false, p.InstallErr
	}
	return p.NeedReboot, nil
}

// pkg/actions/actions.go - installer transaction steps.
//
// Install and Uninstall run deferred inside the installer transaction; their
// rollbacks undo an install but never re-install what an uninstall removed.
// CheckIncompatibleDevices and CheckReboot run immediately and report back
// through the Data bag.

package actions

import (
	"fmt"
	"strings"

	"github.com/xcp-ng/xenclean/pkg/config"
	"github.com/xcp-ng/xenclean/pkg/descriptor"
	"github.com/xcp-ng/xenclean/pkg/devices"
	"github.com/xcp-ng/xenclean/pkg/driverstore"
	"github.com/xcp-ng/xenclean/pkg/logging"
	"github.com/xcp-ng/xenclean/pkg/reboot"
	"github.com/xcp-ng/xenclean/pkg/removal"
)

// Runner carries the collaborators of every step.
type Runner struct {
	Registry *descriptor.Registry
	Devices  devices.Manager
	Store    *driverstore.Store
	Remover  *removal.Remover
	Latch    reboot.Latch
	Log      *logging.Logger
}

// NewRunner wires a Runner to the running system.
func NewRunner(cfg *config.Configuration, log *logging.Logger) *Runner {
	mgr := devices.NewManager()
	store := driverstore.NewStore(cfg.DriverStorePath, driverstore.NewPackageManager(), log)
	store.DryRun = cfg.DryRun
	return &Runner{
		Registry: descriptor.Build(cfg.Branding()),
		Devices:  mgr,
		Store:    store,
		Remover: &removal.Remover{
			Devices:       mgr,
			Store:         store,
			PackagePrefix: cfg.PackagePrefix,
			Publishers:    cfg.Publishers(),
			Log:           log,
			DryRun:        cfg.DryRun,
		},
		Latch: reboot.NewLatch(),
		Log:   log,
	}
}

// Install stages the package named by data. Families marked SafeInstall are
// not forced over a better-ranked driver.
func (r *Runner) Install(data Data) error {
	drv, fam, ok := r.resolve(data)
	if !ok {
		return nil
	}
	r.Log.Info("Installing driver", "family", drv.Name, "inf", drv.InfPath, "safe", fam.SafeInstall)

	needReboot, err := r.Store.Install(drv.InfPath, !fam.SafeInstall)
	if needReboot {
		r.Latch.Schedule()
	}
	if err != nil {
		r.Log.Error("Driver install failed", "family", drv.Name, "error", err)
		return err
	}
	return nil
}

// InstallRollback removes what Install put in place.
func (r *Runner) InstallRollback(data Data) error {
	return r.Uninstall(data)
}

// Uninstall removes the family's devices and driver packages.
func (r *Runner) Uninstall(data Data) error {
	drv, fam, ok := r.resolve(data)
	if !ok {
		return nil
	}
	r.Log.Info("Uninstalling driver", "family", drv.Name, "inf", drv.InfPath)

	out, err := r.Remover.RemoveFamily(fam, drv.InfPath)
	if out.RebootRequired {
		r.Latch.Schedule()
	}
	if err != nil {
		r.Log.Error("Driver uninstall failed", "family", drv.Name, "error", err)
		return err
	}
	r.Log.Info("Driver uninstalled", "family", drv.Name,
		"devices", out.DevicesRemoved, "packages", strings.Join(out.Packages(), ","),
		"failures", len(out.Failures()), "reboot", out.RebootRequired)
	return nil
}

// UninstallRollback does nothing; removed drivers are not reinstalled.
func (r *Runner) UninstallRollback(Data) error {
	return nil
}

// CheckIncompatibleDevices stores the instance IDs of present devices that
// belong to incompatible builds in props, joined by ", ".
func (r *Runner) CheckIncompatibleDevices(props Data) error {
	found, err := r.IncompatibleDevices()
	if err != nil {
		return err
	}
	props[PropIncompatibleDevices] = strings.Join(found, ", ")
	return nil
}

// IncompatibleDevices lists present devices carrying an incompatible ID.
// Devices without a readable instance ID are reported as "(unknown)".
func (r *Runner) IncompatibleDevices() ([]string, error) {
	patterns := r.Registry.IncompatibleIDs()
	matches, err := devices.Find(r.Devices, nil, devices.PresentOnly, func(ids []string) bool {
		return descriptor.MatchesAny(ids, patterns)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check for incompatible devices: %w", err)
	}

	found := make([]string, 0, len(matches))
	for _, m := range matches {
		r.Log.Warn("Found device with incompatible IDs", "instance", m.InstanceID, "ids", strings.Join(m.IDs, ","))
		if m.InstanceID == "" {
			found = append(found, "(unknown)")
		} else {
			found = append(found, m.InstanceID)
		}
	}
	return found, nil
}

// CheckReboot sets PropRebootAtEnd when a reboot has been scheduled.
func (r *Runner) CheckReboot(props Data) bool {
	if !r.Latch.IsScheduled() {
		return false
	}
	props[PropRebootAtEnd] = "1"
	return true
}

func (r *Runner) resolve(data Data) (Driver, descriptor.Family, bool) {
	drv, ok := data.Driver(descriptor.InstallOrder())
	if !ok {
		r.Log.Debug("No driver named in step data", "data", data.String())
		return Driver{}, descriptor.Family{}, false
	}
	fam, ok := r.Registry.Resolve(drv.Name)
	if !ok {
		r.Log.Warn("Unknown driver family", "family", drv.Name)
		return Driver{}, descriptor.Family{}, false
	}
	return drv, fam, true
}

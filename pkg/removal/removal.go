// pkg/removal/removal.go - cascading removal of a driver family.
//
// Every matched device goes through the same steps: its children are
// removed first, then the name of its bound driver package is captured, then
// the device itself is removed. Failures are logged and recorded; only a
// failure to start enumeration aborts a pass.

package removal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xcp-ng/xenclean/pkg/descriptor"
	"github.com/xcp-ng/xenclean/pkg/devices"
	"github.com/xcp-ng/xenclean/pkg/driverstore"
	"github.com/xcp-ng/xenclean/pkg/logging"
)

// maxDepth bounds child recursion on malformed device trees.
const maxDepth = 8

// Outcome aggregates a removal pass.
type Outcome struct {
	DevicesRemoved  int
	PackagesRemoved map[string]struct{}
	RebootRequired  bool
	Results         []driverstore.Result
}

// Packages returns the removed package names in sorted order.
func (o Outcome) Packages() []string {
	out := make([]string, 0, len(o.PackagesRemoved))
	for name := range o.PackagesRemoved {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Failures returns the failed results.
func (o Outcome) Failures() []driverstore.Result {
	return driverstore.Failed(o.Results)
}

// Merge folds other into o.
func (o *Outcome) Merge(other Outcome) {
	o.DevicesRemoved += other.DevicesRemoved
	o.RebootRequired = o.RebootRequired || other.RebootRequired
	o.Results = append(o.Results, other.Results...)
	for name := range other.PackagesRemoved {
		o.addPackage(name)
	}
}

// Changed reports whether the pass removed anything.
func (o Outcome) Changed() bool {
	return o.DevicesRemoved > 0 || len(o.PackagesRemoved) > 0
}

func (o *Outcome) addPackage(name string) {
	if o.PackagesRemoved == nil {
		o.PackagesRemoved = make(map[string]struct{})
	}
	o.PackagesRemoved[strings.ToLower(name)] = struct{}{}
}

// Remover removes devices and driver packages.
type Remover struct {
	Devices devices.Manager
	Store   *driverstore.Store
	// PackagePrefix marks packages the driver store assigned to third-party
	// INF files. Bound packages without it are never removed.
	PackagePrefix string
	// Publishers identify the product's packages during the metadata scan.
	Publishers []string
	Log        *logging.Logger
	DryRun     bool
}

// RemoveDevices removes every device of fam that matches in mode. It
// returns the captured package names alongside the outcome; they are not
// removed here.
func (r *Remover) RemoveDevices(fam descriptor.Family, mode descriptor.MatchMode) (Outcome, []string, error) {
	var out Outcome
	var packages []string
	listed, matched := 0, 0

	for dev, err := range r.Devices.Enumerate(fam.Class, devices.AllConfigured) {
		if err != nil {
			// Only a set that could not be opened at all is fatal.
			if listed == 0 {
				return out, packages, fmt.Errorf("failed to enumerate %s devices: %w", fam.Name, err)
			}
			r.Log.Warn("Device enumeration ended early", "family", fam.Name, "error", err)
			out.Results = append(out.Results, driverstore.Result{Item: fam.Name, Action: "enumerate", Err: err})
			break
		}
		listed++

		ids, err := dev.HardwareIDs()
		if err != nil {
			r.Log.Debug("Cannot read device identifiers", "family", fam.Name, "error", err)
			continue
		}
		if !fam.Matches(ids, mode) {
			continue
		}
		matched++

		instanceID := describe(dev)
		r.Log.Info("Found device", "family", fam.Name, "instance", instanceID, "id", fam.FirstMatch(ids, mode))

		packages = append(packages, r.removeTree(dev, instanceID, 0, &out)...)
	}

	if matched == 0 {
		r.Log.Debug("No devices found", "family", fam.Name)
	}
	return out, packages, nil
}

// removeTree removes dev after its children and returns the package names
// captured along the way.
func (r *Remover) removeTree(dev devices.Device, instanceID string, depth int, out *Outcome) []string {
	var packages []string

	children, ok, err := dev.Children()
	switch {
	case err != nil:
		r.Log.Warn("Cannot read device children", "instance", instanceID, "error", err)
	case ok && depth < maxDepth:
		for _, child := range children {
			err := r.Devices.Open(child, func(c devices.Device) error {
				packages = append(packages, r.removeTree(c, child, depth+1, out)...)
				return nil
			})
			if err != nil {
				r.Log.Warn("Cannot open child device", "parent", instanceID, "instance", child, "error", err)
				out.Results = append(out.Results, driverstore.Result{Item: child, Action: "open-device", Err: err})
			}
		}
	case ok:
		r.Log.Warn("Device tree too deep, children left in place", "instance", instanceID)
	}

	if name := r.capturePackage(dev, instanceID); name != "" {
		packages = append(packages, name)
	}

	res := driverstore.Result{Item: instanceID, Action: "remove-device"}
	if r.DryRun {
		r.Log.Info("Would remove device", "instance", instanceID)
		out.Results = append(out.Results, res)
		return packages
	}

	needReboot, err := dev.Uninstall()
	out.RebootRequired = out.RebootRequired || needReboot
	if err != nil {
		res.Err = err
		r.Log.Warn("Cannot uninstall device", "instance", instanceID, "error", err)
	} else {
		out.DevicesRemoved++
		r.Log.Info("Removed device", "instance", instanceID, "reboot", needReboot)
	}
	out.Results = append(out.Results, res)
	return packages
}

// capturePackage returns the vendor-owned package bound to dev, or "".
func (r *Remover) capturePackage(dev devices.Device, instanceID string) string {
	name, ok, err := dev.DriverPackage()
	if err != nil {
		r.Log.Warn("Cannot read bound driver package", "instance", instanceID, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	if !r.ownsPackage(name) {
		r.Log.Debug("Bound driver package is not third-party, leaving it", "instance", instanceID, "package", name)
		return ""
	}
	r.Log.Debug("Captured driver package", "instance", instanceID, "package", name)
	return name
}

func (r *Remover) ownsPackage(name string) bool {
	prefix := r.PackagePrefix
	if prefix == "" {
		prefix = "oem"
	}
	return len(name) >= len(prefix) && strings.EqualFold(name[:len(prefix)], prefix)
}

// RemoveFamily removes the devices of fam, then their driver packages. When
// no device matched and originalInf is set, packages are located through the
// driver store metadata scan instead.
func (r *Remover) RemoveFamily(fam descriptor.Family, originalInf string) (Outcome, error) {
	out, packages, err := r.RemoveDevices(fam, descriptor.MatchEither)
	if err != nil {
		return out, err
	}

	var results []driverstore.Result
	switch {
	case len(packages) > 0:
		results = r.Store.RemovePackages(dedupe(packages))
	case countAttempts(out.Results) == 0 && originalInf != "":
		r.Log.Info("No devices left, scanning driver store", "family", fam.Name, "inf", originalInf)
		results = r.Store.RemoveByMetadata(originalInf, r.Publishers)
	}

	for _, res := range results {
		if res.OK() && res.Action == "remove-package" && !r.DryRun {
			out.addPackage(res.Item)
		}
	}
	out.Results = append(out.Results, results...)
	return out, nil
}

// RemoveAll runs RemoveFamily for each name in order. Names the registry
// does not know are skipped. Packages of families without devices are
// located by catalog name.
func (r *Remover) RemoveAll(reg *descriptor.Registry, order []string) (Outcome, error) {
	var total Outcome
	for _, name := range order {
		fam, ok := reg.Resolve(name)
		if !ok {
			r.Log.Debug("Unknown driver family, skipping", "family", name)
			continue
		}
		r.Log.Info("Uninstalling driver family", "family", fam.Name)

		out, err := r.RemoveFamily(fam, strings.ToLower(fam.Name)+".inf")
		if err != nil {
			return total, err
		}
		total.Merge(out)
	}
	return total, nil
}

func countAttempts(results []driverstore.Result) int {
	n := 0
	for _, res := range results {
		if res.Action == "remove-device" {
			n++
		}
	}
	return n
}

func describe(dev devices.Device) string {
	id, ok, err := dev.InstanceID()
	if err != nil || !ok {
		return "(unknown)"
	}
	return id
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		key := strings.ToLower(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}

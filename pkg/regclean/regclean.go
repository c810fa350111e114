// Package regclean removes the registry state the PV drivers leave behind
// once their packages are gone: class filter entries and xenfilt parameters.
package regclean

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/xcp-ng/xenclean/pkg/descriptor"
	"github.com/xcp-ng/xenclean/pkg/logging"
)

const (
	classRoot        = `SYSTEM\CurrentControlSet\Control\Class`
	filterParameters = `SYSTEM\CurrentControlSet\Services\xenfilt\Parameters`
)

var (
	ErrNotFound       = errors.New("registry value not found")
	ErrNotMultiString = errors.New("registry value is not REG_MULTI_SZ")
	ErrUnsupported    = errors.New("regclean: not supported on this platform")
)

// FilterDrivers are the service names registered as class filters.
var FilterDrivers = []string{"xenfilt", "scsifilt"}

// FilterClasses are the device classes whose filter lists are cleaned.
var FilterClasses = []uuid.UUID{descriptor.ClassHDC, descriptor.ClassSystem}

var filterValues = []string{"UpperFilters", "LowerFilters"}

var staleParameters = []string{"ActiveDeviceID", "ActiveInstanceID", "ActiveLocationInformation"}

// Hive is the slice of the machine hive the cleaner touches. Paths are
// relative to HKEY_LOCAL_MACHINE.
type Hive interface {
	// ReadMultiString fails with ErrNotMultiString for values of any other type.
	ReadMultiString(path, name string) ([]string, error)
	ValueExists(path, name string) (bool, error)
	WriteMultiString(path, name string, values []string) error
	DeleteValue(path, name string) error
}

// Change is one registry edit. A nil After deletes the value.
type Change struct {
	Path   string
	Value  string
	Before []string
	After  []string
}

func (c Change) String() string {
	if c.After == nil {
		return fmt.Sprintf(`delete %s\%s`, c.Path, c.Value)
	}
	return fmt.Sprintf(`%s\%s: %v -> %v`, c.Path, c.Value, c.Before, c.After)
}

// Report collects the edits Clean made, or would make in dry-run mode, and
// the failures it skipped past.
type Report struct {
	Changes []Change
	Errors  []error
}

// Cleaner strips PV filter drivers from the machine hive.
type Cleaner struct {
	Hive   Hive
	Log    *logging.Logger
	DryRun bool
}

// NewCleaner returns a cleaner over the local machine hive.
func NewCleaner(log *logging.Logger, dryRun bool) *Cleaner {
	return &Cleaner{Hive: systemHive(), Log: log, DryRun: dryRun}
}

// RemoveFilters returns values without any entry equal (ignoring case) to
// one of names, and whether anything was dropped.
func RemoveFilters(values, names []string) ([]string, bool) {
	out := make([]string, 0, len(values))
	changed := false
	for _, v := range values {
		drop := false
		for _, n := range names {
			if strings.EqualFold(strings.TrimSpace(v), n) {
				drop = true
				break
			}
		}
		if drop {
			changed = true
			continue
		}
		out = append(out, v)
	}
	return out, changed
}

func classKey(class uuid.UUID) string {
	return classRoot + `\{` + strings.ToUpper(class.String()) + `}`
}

// Clean strips the filter drivers from the class filter lists and deletes
// stale xenfilt parameters. Every failure is recorded; none stops the walk.
func (c *Cleaner) Clean() Report {
	var rep Report
	if c.Hive == nil {
		rep.Errors = append(rep.Errors, ErrUnsupported)
		return rep
	}

	for _, class := range FilterClasses {
		path := classKey(class)
		for _, name := range filterValues {
			c.cleanFilterValue(&rep, path, name)
		}
	}

	for _, name := range staleParameters {
		exists, err := c.Hive.ValueExists(filterParameters, name)
		if err != nil {
			c.Log.Warn("Failed to read filter parameter", "key", filterParameters, "value", name, "error", err)
			rep.Errors = append(rep.Errors, fmt.Errorf("read %s\\%s: %w", filterParameters, name, err))
			continue
		}
		if !exists {
			continue
		}
		c.apply(&rep, Change{Path: filterParameters, Value: name})
	}
	return rep
}

func (c *Cleaner) cleanFilterValue(rep *Report, path, name string) {
	before, err := c.Hive.ReadMultiString(path, name)
	if errors.Is(err, ErrNotFound) {
		return
	}
	if errors.Is(err, ErrNotMultiString) {
		c.Log.Debug("Skipping class filter value of unexpected type", "key", path, "value", name)
		return
	}
	if err != nil {
		c.Log.Warn("Failed to read class filters", "key", path, "value", name, "error", err)
		rep.Errors = append(rep.Errors, fmt.Errorf("read %s\\%s: %w", path, name, err))
		return
	}
	after, changed := RemoveFilters(before, FilterDrivers)
	if !changed {
		return
	}
	ch := Change{Path: path, Value: name, Before: before}
	if len(after) > 0 {
		ch.After = after
	}
	c.apply(rep, ch)
}

func (c *Cleaner) apply(rep *Report, ch Change) {
	if c.DryRun {
		c.Log.Info("[dry-run] Would change registry", "change", ch.String())
		rep.Changes = append(rep.Changes, ch)
		return
	}

	var err error
	if ch.After == nil {
		err = c.Hive.DeleteValue(ch.Path, ch.Value)
		if errors.Is(err, ErrNotFound) {
			err = nil
		}
	} else {
		err = c.Hive.WriteMultiString(ch.Path, ch.Value, ch.After)
	}
	if err != nil {
		c.Log.Warn("Failed to change registry", "change", ch.String(), "error", err)
		rep.Errors = append(rep.Errors, fmt.Errorf("%s: %w", ch, err))
		return
	}
	c.Log.Info("Registry cleaned", "change", ch.String())
	rep.Changes = append(rep.Changes, ch)
}

// Package cleanup runs a full removal of the PV tools: installer products,
// driver devices and packages, then leftover registry state.
package cleanup

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/xcp-ng/xenclean/pkg/config"
	"github.com/xcp-ng/xenclean/pkg/descriptor"
	"github.com/xcp-ng/xenclean/pkg/devices"
	"github.com/xcp-ng/xenclean/pkg/driverstore"
	"github.com/xcp-ng/xenclean/pkg/logging"
	"github.com/xcp-ng/xenclean/pkg/products"
	"github.com/xcp-ng/xenclean/pkg/regclean"
	"github.com/xcp-ng/xenclean/pkg/removal"
	"github.com/xcp-ng/xenclean/pkg/version"
)

// ProductRemover uninstalls the MSI products registered under upgrade codes.
type ProductRemover interface {
	UninstallAll(ctx context.Context, upgradeCodes []string) products.Report
}

// RegistryCleaner drops filter entries and parameters left in the hive.
type RegistryCleaner interface {
	Clean() regclean.Report
}

// Summary is written to summary.json in the run log directory.
type Summary struct {
	Version         string    `json:"version" yaml:"version"`
	Start           time.Time `json:"start" yaml:"start"`
	Duration        string    `json:"duration" yaml:"duration"`
	DryRun          bool      `json:"dry_run" yaml:"dry_run"`
	ProductsRemoved []string  `json:"products_removed" yaml:"products_removed"`
	DevicesRemoved  int       `json:"devices_removed" yaml:"devices_removed"`
	PackagesRemoved []string  `json:"packages_removed" yaml:"packages_removed"`
	RegistryChanges []string  `json:"registry_changes" yaml:"registry_changes"`
	Failures        []string  `json:"failures" yaml:"failures"`
	RebootRequired  bool      `json:"reboot_required" yaml:"reboot_required"`
}

// Changed reports whether the run removed or rewrote anything.
func (s Summary) Changed() bool {
	return len(s.ProductsRemoved) > 0 || s.DevicesRemoved > 0 ||
		len(s.PackagesRemoved) > 0 || len(s.RegistryChanges) > 0
}

// Cleaner runs products, devices, the driver store sweep and the registry
// steps in order.
type Cleaner struct {
	Config   *config.Configuration
	Registry *descriptor.Registry
	Remover  *removal.Remover
	Products ProductRemover
	Hive     RegistryCleaner
	Log      *logging.Logger
	Now      func() time.Time
}

// New wires a Cleaner to the running system.
func New(cfg *config.Configuration, log *logging.Logger) *Cleaner {
	store := driverstore.NewStore(cfg.DriverStorePath, driverstore.NewPackageManager(), log)
	store.DryRun = cfg.DryRun
	return &Cleaner{
		Config:   cfg,
		Registry: descriptor.Build(cfg.Branding()),
		Remover: &removal.Remover{
			Devices:       devices.NewManager(),
			Store:         store,
			PackagePrefix: cfg.PackagePrefix,
			Publishers:    cfg.Publishers(),
			Log:           log,
			DryRun:        cfg.DryRun,
		},
		Products: products.NewUninstaller(cfg, log),
		Hive:     regclean.NewCleaner(log, cfg.DryRun),
		Log:      log,
		Now:      time.Now,
	}
}

// Run performs every step. Step failures are folded into the summary; the
// error return is reserved for a device enumeration that could not start.
func (c *Cleaner) Run(ctx context.Context) (sum Summary, err error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	start := now()
	sum = Summary{Version: version.Version().Version, Start: start, DryRun: c.Config.DryRun}
	defer func() { sum.Duration = now().Sub(start).Round(time.Millisecond).String() }()

	if c.Config.SkipProducts || c.Products == nil {
		c.Log.Info("Skipping installer products")
	} else {
		c.Log.Info("Removing installer products", "count", len(c.Config.UpgradeCodes))
		rep := c.Products.UninstallAll(ctx, c.Config.UpgradeCodes)
		sum.ProductsRemoved = rep.Removed()
		sum.RebootRequired = rep.RebootRequired
		for _, f := range rep.Failed() {
			sum.Failures = append(sum.Failures, f.String())
		}
	}

	c.Log.Info("Removing driver devices and packages", "order", c.Config.UninstallOrder)
	out, err := c.Remover.RemoveAll(c.Registry, c.Config.UninstallOrder)
	sum.DevicesRemoved = out.DevicesRemoved
	sum.PackagesRemoved = out.Packages()
	sum.RebootRequired = sum.RebootRequired || out.RebootRequired
	for _, f := range out.Failures() {
		sum.Failures = append(sum.Failures, f.String())
	}
	if err != nil {
		c.Log.Error("Driver removal aborted", "error", err)
		return sum, err
	}

	c.Log.Info("Sweeping driver store for staged packages")
	for _, res := range c.sweepStore(out.PackagesRemoved) {
		switch {
		case !res.OK():
			sum.Failures = append(sum.Failures, res.String())
		case res.Action == "remove-package" && !c.Config.DryRun:
			sum.PackagesRemoved = append(sum.PackagesRemoved, strings.ToLower(res.Item))
		}
	}
	sort.Strings(sum.PackagesRemoved)

	if c.Config.SkipRegistry || c.Hive == nil {
		c.Log.Info("Skipping registry cleanup")
	} else {
		rep := c.Hive.Clean()
		for _, ch := range rep.Changes {
			sum.RegistryChanges = append(sum.RegistryChanges, ch.String())
		}
		for _, err := range rep.Errors {
			sum.Failures = append(sum.Failures, err.Error())
		}
	}

	c.Log.Info("Cleanup finished",
		"devices", sum.DevicesRemoved,
		"packages", len(sum.PackagesRemoved),
		"products", len(sum.ProductsRemoved),
		"failures", len(sum.Failures),
		"reboot", sum.RebootRequired)
	return sum, nil
}

// sweepStore removes staged packages of every family in the uninstall order,
// found by catalog name and publisher. A staged copy can outlive its device
// when a newer build is bound, so this runs even for families whose devices
// were removed. Names in removed were already handled.
func (c *Cleaner) sweepStore(removed map[string]struct{}) []driverstore.Result {
	var catalogs []string
	for _, name := range c.Config.UninstallOrder {
		fam, ok := c.Registry.Resolve(name)
		if !ok {
			continue
		}
		catalogs = append(catalogs, driverstore.CatalogFor(strings.ToLower(fam.Name)+".inf"))
	}

	store := c.Remover.Store
	found, results := store.FindByCatalog(catalogs, c.Remover.Publishers)
	var names []string
	for _, pkg := range found {
		if _, done := removed[strings.ToLower(pkg.FileName)]; done {
			continue
		}
		names = append(names, pkg.FileName)
	}
	return append(results, store.RemovePackages(names)...)
}

package cleanup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcp-ng/xenclean/pkg/config"
	"github.com/xcp-ng/xenclean/pkg/descriptor"
	"github.com/xcp-ng/xenclean/pkg/devices/devicestest"
	"github.com/xcp-ng/xenclean/pkg/driverstore"
	"github.com/xcp-ng/xenclean/pkg/driverstore/driverstoretest"
	"github.com/xcp-ng/xenclean/pkg/logging"
	"github.com/xcp-ng/xenclean/pkg/products"
	"github.com/xcp-ng/xenclean/pkg/regclean"
	"github.com/xcp-ng/xenclean/pkg/removal"
)

type fakeProducts struct {
	called bool
	report products.Report
}

func (f *fakeProducts) UninstallAll(context.Context, []string) products.Report {
	f.called = true
	return f.report
}

type fakeHive struct {
	called bool
	report regclean.Report
}

func (f *fakeHive) Clean() regclean.Report {
	f.called = true
	return f.report
}

type fixture struct {
	cleaner *Cleaner
	prod    *fakeProducts
	hive    *fakeHive
	pkgs    *driverstoretest.Packages
	dir     string
}

func newCleaner(t *testing.T, m *devicestest.Manager) (*Cleaner, *fakeProducts, *fakeHive) {
	f := newFixture(t, m)
	return f.cleaner, f.prod, f.hive
}

func newFixture(t *testing.T, m *devicestest.Manager) *fixture {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.UpgradeCodes = []string{"{EE3B949D-C431-462B-B6DC-5BEDA078D772}"}
	log := logging.Discard()
	dir := t.TempDir()
	pkgs := &driverstoretest.Packages{Dir: dir}
	f := &fixture{prod: &fakeProducts{}, hive: &fakeHive{}, pkgs: pkgs, dir: dir}
	f.cleaner = &Cleaner{
		Config:   cfg,
		Registry: descriptor.Build(cfg.Branding()),
		Remover: &removal.Remover{
			Devices:       m,
			Store:         driverstore.NewStore(dir, pkgs, log),
			PackagePrefix: cfg.PackagePrefix,
			Publishers:    []string{"ExampleVendor"},
			Log:           log,
		},
		Products: f.prod,
		Hive:     f.hive,
		Log:      log,
	}
	return f
}

func (f *fixture) writeInf(t *testing.T, name, catalog, provider string) {
	t.Helper()
	body := fmt.Sprintf("[Version]\nProvider=%s\nCatalogFile=%s\n", provider, catalog)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte(body), 0644))
}

func TestRunAllSteps(t *testing.T) {
	m := devicestest.NewManager(&devicestest.Device{
		InstanceID: `PCI\VEN_5853&DEV_0001\3&1`,
		Class:      descriptor.ClassSystem,
		IDs:        []string{`PCI\VEN_5853&DEV_0001`},
		Package:    "oem7.inf",
		NeedReboot: true,
	})
	c, prod, hive := newCleaner(t, m)
	prod.report = products.Report{Results: []products.Result{
		{ProductCode: "{AAAAAAAA-0000-0000-0000-000000000001}"},
		{ProductCode: "{BBBBBBBB-0000-0000-0000-000000000002}", ExitCode: 1603, Err: errors.New("failed")},
	}}
	hive.report = regclean.Report{Changes: []regclean.Change{{Path: "p", Value: "UpperFilters", Before: []string{"xenfilt"}}}}

	sum, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"{AAAAAAAA-0000-0000-0000-000000000001}"}, sum.ProductsRemoved)
	assert.Equal(t, 1, sum.DevicesRemoved)
	assert.Equal(t, []string{"oem7.inf"}, sum.PackagesRemoved)
	assert.Len(t, sum.RegistryChanges, 1)
	assert.Len(t, sum.Failures, 1)
	assert.True(t, sum.RebootRequired)
	assert.True(t, sum.Changed())
	assert.NotEmpty(t, sum.Duration)
}

func TestRunSkipsOptionalSteps(t *testing.T) {
	c, prod, hive := newCleaner(t, devicestest.NewManager())
	c.Config.SkipProducts = true
	c.Config.SkipRegistry = true

	sum, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, prod.called)
	assert.False(t, hive.called)
	assert.False(t, sum.Changed())
}

func TestRunStopsOnEnumerationFailure(t *testing.T) {
	m := devicestest.NewManager()
	m.EnumerateErr = errors.New("setupapi unavailable")
	c, _, hive := newCleaner(t, m)

	_, err := c.Run(context.Background())
	assert.Error(t, err)
	assert.False(t, hive.called)
}

func TestRunSweepsStaleStagedPackages(t *testing.T) {
	m := devicestest.NewManager(&devicestest.Device{
		InstanceID: `XENVIF\NET0`,
		Class:      descriptor.ClassNet,
		IDs:        []string{`XENVIF\VEN_XP0001&DEV_NET&REV_09000000`},
		Package:    "oem7.inf",
	})
	f := newFixture(t, m)
	f.cleaner.Config.SkipProducts = true
	f.writeInf(t, "oem7.inf", "xennet.cat", "ExampleVendor")
	f.writeInf(t, "oem3.inf", "xennet.cat", "ExampleVendor")
	f.writeInf(t, "oem4.inf", "xennet.cat", "Someone Else")
	f.writeInf(t, "oem5.inf", "e1d68x64.cat", "ExampleVendor")

	sum, err := f.cleaner.Run(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"oem7.inf", "oem3.inf"}, f.pkgs.Uninstalled)
	assert.Equal(t, []string{"oem3.inf", "oem7.inf"}, sum.PackagesRemoved)
	assert.FileExists(t, filepath.Join(f.dir, "oem4.inf"))
	assert.FileExists(t, filepath.Join(f.dir, "oem5.inf"))
	assert.Empty(t, sum.Failures)
}

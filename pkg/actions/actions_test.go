package actions

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcp-ng/xenclean/pkg/descriptor"
	"github.com/xcp-ng/xenclean/pkg/devices/devicestest"
	"github.com/xcp-ng/xenclean/pkg/driverstore"
	"github.com/xcp-ng/xenclean/pkg/driverstore/driverstoretest"
	"github.com/xcp-ng/xenclean/pkg/logging"
	"github.com/xcp-ng/xenclean/pkg/reboot"
	"github.com/xcp-ng/xenclean/pkg/removal"
)

func newRunner(t *testing.T, devs ...*devicestest.Device) (*Runner, *devicestest.Manager, *driverstoretest.Packages, *reboot.FileLatch) {
	t.Helper()
	dir := t.TempDir()
	m := devicestest.NewManager(devs...)
	pkgs := &driverstoretest.Packages{Dir: dir}
	store := driverstore.NewStore(dir, pkgs, logging.Discard())
	latch := reboot.NewFileLatch(filepath.Join(t.TempDir(), "latch"))
	return &Runner{
		Registry: descriptor.Build(descriptor.Branding{VendorPrefix: "XP"}),
		Devices:  m,
		Store:    store,
		Remover: &removal.Remover{
			Devices:    m,
			Store:      store,
			Publishers: []string{"XCP-ng"},
			Log:        logging.Discard(),
		},
		Latch: latch,
		Log:   logging.Discard(),
	}, m, pkgs, latch
}

func TestParseData(t *testing.T) {
	d := ParseData(`Xennet=C:\drivers\xennet.inf;Note=a;;b;Empty=;=orphan`)

	assert.Equal(t, `C:\drivers\xennet.inf`, d["Xennet"])
	assert.Equal(t, "a;b", d["Note"])
	assert.Equal(t, "", d["Empty"])
	assert.Len(t, d, 3)
	assert.Equal(t, d, ParseData(d.String()))
}

func TestDataDriverPicksFirstNonEmpty(t *testing.T) {
	d := Data{"xenbus": "", "Xennet": `C:\drivers\xennet.inf`, "Xenvbd": `C:\drivers\xenvbd.inf`}

	drv, ok := d.Driver(descriptor.InstallOrder())
	require.True(t, ok)
	assert.Equal(t, "Xennet", drv.Name)

	_, ok = Data{"Other": "x"}.Driver(descriptor.InstallOrder())
	assert.False(t, ok)
}

func TestInstallForcesOnlyUnsafeFamilies(t *testing.T) {
	r, _, pkgs, latch := newRunner(t)
	pkgs.NeedReboot = true

	require.NoError(t, r.Install(Data{"Xenbus": `C:\drivers\xenbus.inf`}))
	require.NoError(t, r.Install(Data{"Xenvbd": `C:\drivers\xenvbd.inf`}))

	assert.Equal(t, []string{`C:\drivers\xenbus.inf`, `C:\drivers\xenvbd.inf`}, pkgs.Installed)
	assert.Equal(t, []bool{true, false}, pkgs.Forced)
	assert.True(t, latch.IsScheduled())
}

func TestInstallFailureReturned(t *testing.T) {
	r, _, pkgs, latch := newRunner(t)
	pkgs.InstallErr = errors.New("not signed")

	err := r.Install(Data{"Xenbus": `C:\drivers\xenbus.inf`})
	assert.ErrorIs(t, err, pkgs.InstallErr)
	assert.False(t, latch.IsScheduled())
}

func TestUninstallSchedulesReboot(t *testing.T) {
	r, m, pkgs, latch := newRunner(t,
		&devicestest.Device{InstanceID: "NET\\0", Class: descriptor.ClassNet,
			IDs: []string{`XENVIF\VEN_XP0001&DEV_NET&REV_09000000`}, Package: "oem7.inf", NeedReboot: true},
	)

	require.NoError(t, r.Uninstall(Data{"Xennet": `C:\drivers\xennet.inf`}))
	assert.True(t, m.Removed("NET\\0"))
	assert.Equal(t, []string{"oem7.inf"}, pkgs.Uninstalled)
	assert.True(t, latch.IsScheduled())

	props := Data{}
	assert.True(t, r.CheckReboot(props))
	assert.Equal(t, "1", props[PropRebootAtEnd])
}

func TestInstallRollbackUninstalls(t *testing.T) {
	r, m, _, latch := newRunner(t,
		&devicestest.Device{InstanceID: "SYS\\VKBD", Class: descriptor.ClassSystem,
			IDs: []string{`XENBUS\VEN_XP0002&DEV_VKBD&REV_09000000`}},
	)

	require.NoError(t, r.InstallRollback(Data{"Xenvkbd": "xenvkbd.inf"}))
	require.NoError(t, r.UninstallRollback(Data{"Xenvkbd": "xenvkbd.inf"}))
	assert.True(t, m.Removed("SYS\\VKBD"))
	assert.False(t, latch.IsScheduled())
	assert.False(t, r.CheckReboot(Data{}))
}

func TestUnknownOrMissingDriverIsNoOp(t *testing.T) {
	r, m, pkgs, _ := newRunner(t)

	require.NoError(t, r.Uninstall(Data{}))
	require.NoError(t, r.Install(Data{"Xenclass": "x.inf"}))
	assert.Empty(t, m.Calls)
	assert.Empty(t, pkgs.Installed)
}

func TestCheckIncompatibleDevices(t *testing.T) {
	r, _, _, _ := newRunner(t,
		&devicestest.Device{InstanceID: "PCI\\CITRIX", Class: descriptor.ClassSystem, IDs: []string{`pci\ven_5853&dev_c000`}},
		&devicestest.Device{InstanceID: "", Class: descriptor.ClassNet, IDs: []string{`XENVIF\VEN_XN0002&DEV_NET&REV_08000002`}},
		&devicestest.Device{InstanceID: "PCI\\GONE", Class: descriptor.ClassSystem, IDs: []string{`PCI\VEN_5853&DEV_C000`}, Absent: true},
		&devicestest.Device{InstanceID: "PCI\\OURS", Class: descriptor.ClassSystem, IDs: []string{`PCI\VEN_5853&DEV_0001`}},
	)

	props := Data{}
	require.NoError(t, r.CheckIncompatibleDevices(props))
	assert.Equal(t, `PCI\CITRIX, (unknown)`, props[PropIncompatibleDevices])
}

func TestCheckIncompatibleDevicesNoneFound(t *testing.T) {
	r, _, _, _ := newRunner(t)

	props := Data{}
	require.NoError(t, r.CheckIncompatibleDevices(props))
	v, ok := props[PropIncompatibleDevices]
	assert.True(t, ok)
	assert.Equal(t, "", v)
}

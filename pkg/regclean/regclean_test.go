package regclean

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcp-ng/xenclean/pkg/descriptor"
	"github.com/xcp-ng/xenclean/pkg/logging"
)

type memHive struct {
	values   map[string][]string
	strings  map[string]string
	failRead string
	deleted  []string
	written  []string
}

func key(path, name string) string { return path + `\` + name }

func (h *memHive) ReadMultiString(path, name string) ([]string, error) {
	if key(path, name) == h.failRead {
		return nil, errors.New("access denied")
	}
	if _, ok := h.strings[key(path, name)]; ok {
		return nil, ErrNotMultiString
	}
	v, ok := h.values[key(path, name)]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (h *memHive) ValueExists(path, name string) (bool, error) {
	_, multi := h.values[key(path, name)]
	_, single := h.strings[key(path, name)]
	return multi || single, nil
}

func (h *memHive) WriteMultiString(path, name string, values []string) error {
	h.values[key(path, name)] = values
	h.written = append(h.written, key(path, name))
	return nil
}

func (h *memHive) DeleteValue(path, name string) error {
	_, multi := h.values[key(path, name)]
	_, single := h.strings[key(path, name)]
	if !multi && !single {
		return ErrNotFound
	}
	delete(h.values, key(path, name))
	delete(h.strings, key(path, name))
	h.deleted = append(h.deleted, key(path, name))
	return nil
}

func TestRemoveFilters(t *testing.T) {
	out, changed := RemoveFilters([]string{"partmgr", "XENFILT", "scsifilt "}, FilterDrivers)
	assert.True(t, changed)
	assert.Equal(t, []string{"partmgr"}, out)

	out, changed = RemoveFilters([]string{"partmgr"}, FilterDrivers)
	assert.False(t, changed)
	assert.Equal(t, []string{"partmgr"}, out)
}

func TestClassKey(t *testing.T) {
	assert.Equal(t, `SYSTEM\CurrentControlSet\Control\Class\{4D36E96A-E325-11CE-BFC1-08002BE10318}`,
		classKey(descriptor.ClassHDC))
}

func newHive() *memHive {
	hdc := classKey(descriptor.ClassHDC)
	sys := classKey(descriptor.ClassSystem)
	return &memHive{values: map[string][]string{
		key(hdc, "UpperFilters"):                {"xenfilt", "partmgr"},
		key(sys, "UpperFilters"):                {"XENFILT"},
		key(sys, "LowerFilters"):                {"other"},
		key(filterParameters, "ActiveDeviceID"): {`PCI\VEN_5853&DEV_0001`},
	}}
}

func TestClean(t *testing.T) {
	hive := newHive()
	rep := (&Cleaner{Hive: hive, Log: logging.Discard()}).Clean()

	assert.Empty(t, rep.Errors)
	assert.Len(t, rep.Changes, 3)
	hdc := classKey(descriptor.ClassHDC)
	sys := classKey(descriptor.ClassSystem)
	assert.Equal(t, []string{"partmgr"}, hive.values[key(hdc, "UpperFilters")])
	assert.NotContains(t, hive.values, key(sys, "UpperFilters"))
	assert.Equal(t, []string{"other"}, hive.values[key(sys, "LowerFilters")])
	assert.NotContains(t, hive.values, key(filterParameters, "ActiveDeviceID"))

	again := (&Cleaner{Hive: hive, Log: logging.Discard()}).Clean()
	assert.Empty(t, again.Changes)
}

func TestCleanDryRun(t *testing.T) {
	hive := newHive()
	rep := (&Cleaner{Hive: hive, Log: logging.Discard(), DryRun: true}).Clean()
	assert.Len(t, rep.Changes, 3)
	assert.Empty(t, hive.deleted)
	assert.Equal(t, []string{"xenfilt", "partmgr"}, hive.values[key(classKey(descriptor.ClassHDC), "UpperFilters")])
}

func TestCleanReadFailureContinues(t *testing.T) {
	hive := newHive()
	hive.failRead = key(classKey(descriptor.ClassHDC), "UpperFilters")
	rep := (&Cleaner{Hive: hive, Log: logging.Discard()}).Clean()
	require.Len(t, rep.Errors, 1)
	assert.Len(t, rep.Changes, 2)
}

func TestCleanLeavesPlainStringFiltersAlone(t *testing.T) {
	hdc := classKey(descriptor.ClassHDC)
	hive := &memHive{
		values: map[string][]string{},
		strings: map[string]string{
			key(hdc, "UpperFilters"):                  "xenfilt",
			key(filterParameters, "ActiveInstanceID"): `PCI\VEN_5853&DEV_0002\3&267A616A&0&18`,
		},
	}
	rep := (&Cleaner{Hive: hive, Log: logging.Discard()}).Clean()

	assert.Empty(t, rep.Errors)
	assert.Empty(t, hive.written)
	assert.Equal(t, "xenfilt", hive.strings[key(hdc, "UpperFilters")])
	require.Len(t, rep.Changes, 1)
	assert.Equal(t, "ActiveInstanceID", rep.Changes[0].Value)
	assert.NotContains(t, hive.strings, key(filterParameters, "ActiveInstanceID"))
}

func TestCleanWithoutHive(t *testing.T) {
	rep := (&Cleaner{Log: logging.Discard()}).Clean()
	require.Len(t, rep.Errors, 1)
	assert.ErrorIs(t, rep.Errors[0], ErrUnsupported)
}

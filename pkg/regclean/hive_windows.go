package regclean

import (
	"errors"

	"golang.org/x/sys/windows/registry"
)

type machineHive struct{}

func systemHive() Hive { return machineHive{} }

func open(path string, access uint32) (registry.Key, error) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, path, access)
	if errors.Is(err, registry.ErrNotExist) {
		return 0, ErrNotFound
	}
	return k, err
}

func (machineHive) ReadMultiString(path, name string) ([]string, error) {
	k, err := open(path, registry.QUERY_VALUE)
	if err != nil {
		return nil, err
	}
	defer k.Close()

	values, _, err := k.GetStringsValue(name)
	switch {
	case errors.Is(err, registry.ErrNotExist):
		return nil, ErrNotFound
	case errors.Is(err, registry.ErrUnexpectedType):
		return nil, ErrNotMultiString
	}
	return values, err
}

func (machineHive) ValueExists(path, name string) (bool, error) {
	k, err := open(path, registry.QUERY_VALUE)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer k.Close()

	_, _, err = k.GetValue(name, nil)
	if errors.Is(err, registry.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (machineHive) WriteMultiString(path, name string, values []string) error {
	k, err := open(path, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()
	return k.SetStringsValue(name, values)
}

func (machineHive) DeleteValue(path, name string) error {
	k, err := open(path, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()

	err = k.DeleteValue(name)
	if errors.Is(err, registry.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

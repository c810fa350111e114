// pkg/actions/data.go - key/value data handed to installer steps.

package actions

import (
	"sort"
	"strings"
)

// Property names written back by the immediate checks.
const (
	PropIncompatibleDevices = "IncompatibleDevices"
	PropRebootAtEnd         = "RebootAtEnd"
)

// Data is the opaque key/value bag passed to a transaction step. Keys are
// family names for driver steps.
type Data map[string]string

// Driver names the family a step operates on and its package source.
type Driver struct {
	Name    string
	InfPath string
}

// ParseData decodes "Key=Value;Key2=Value2". A literal ';' inside a value is
// written as ";;".
func ParseData(s string) Data {
	d := make(Data)
	var field strings.Builder
	flush := func() {
		kv := field.String()
		field.Reset()
		key, value, ok := strings.Cut(kv, "=")
		if key = strings.TrimSpace(key); !ok || key == "" {
			return
		}
		d[key] = value
	}
	for i := 0; i < len(s); i++ {
		if s[i] != ';' {
			field.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == ';' {
			field.WriteByte(';')
			i++
			continue
		}
		flush()
	}
	flush()
	return d
}

// String encodes d in the ParseData format with sorted keys.
func (d Data) String() string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strings.ReplaceAll(d[k], ";", ";;"))
	}
	return strings.Join(parts, ";")
}

// Get returns the value for key, ignoring case.
func (d Data) Get(key string) (string, bool) {
	if v, ok := d[key]; ok {
		return v, true
	}
	for k, v := range d {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// Driver returns the first name in order that has a non-empty value.
func (d Data) Driver(order []string) (Driver, bool) {
	for _, name := range order {
		if v, ok := d.Get(name); ok && strings.TrimSpace(v) != "" {
			return Driver{Name: name, InfPath: strings.TrimSpace(v)}, true
		}
	}
	return Driver{}, false
}

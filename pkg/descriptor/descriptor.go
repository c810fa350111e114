// pkg/descriptor/descriptor.go - known Xen PV device families and their identifiers.
//
// The registry is built once from a Branding value and never mutated. Family
// names and identifier patterns are compared case-insensitively.

package descriptor

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Device setup classes used by the driver families.
var (
	ClassSystem      = uuid.MustParse("4d36e97d-e325-11ce-bfc1-08002be10318")
	ClassNet         = uuid.MustParse("4d36e972-e325-11ce-bfc1-08002be10318")
	ClassHIDClass    = uuid.MustParse("745a17a0-74d3-11d0-b6fe-00a0c90f57da")
	ClassSCSIAdapter = uuid.MustParse("4d36e97b-e325-11ce-bfc1-08002be10318")
	ClassHDC         = uuid.MustParse("4d36e96a-e325-11ce-bfc1-08002be10318")
)

// Template tokens substituted by Build.
const (
	TokenVendorPrefix   = "{VendorPrefix}"
	TokenVendorDeviceID = "{VendorDeviceID}"
)

// Branding carries the vendor-specific parts of device identifiers.
// Either field may be empty, in which case rows that need it are dropped.
type Branding struct {
	VendorPrefix   string
	VendorDeviceID string
}

// Family describes one driver family: where its devices live and which
// identifiers claim them.
type Family struct {
	Name string
	// Class is nil when the family must be searched across all classes.
	Class *uuid.UUID
	// IDs are the identifiers this product owns. Blank entries are absent
	// templated rows and never match.
	IDs []string
	// IncompatibleIDs belong to competing or legacy builds that must be
	// removed before installation.
	IncompatibleIDs []string
	// SafeInstall families carry boot-critical stacks (storage, network) and
	// are never force-installed over a better-ranked driver.
	SafeInstall bool
}

// Registry is the immutable table of families.
type Registry struct {
	families map[string]Family
	names    []string
}

type row struct {
	name         string
	class        uuid.UUID
	ids          []string
	incompatible []string
	safe         bool
}

// table lists every family with unexpanded templates.
var table = []row{
	{
		name:  "Xenbus",
		class: ClassSystem,
		ids: []string{
			`PCI\VEN_5853&DEV_{VendorDeviceID}&SUBSYS_{VendorDeviceID}5853&REV_01`,
			`PCI\VEN_5853&DEV_0001`,
			`PCI\VEN_5853&DEV_0002`,
		},
		incompatible: []string{
			`PCI\VEN_5853&DEV_C000`,
			`PCI\VEN_5853&DEV_C000&SUBSYS_C0005853&REV_01`,
			`PCI\VEN_5853&DEV_0002&SUBSYS_00015853&REV_01`,
		},
	},
	{
		name:  "Xencons",
		class: ClassSystem,
		ids: []string{
			`XENBUS\VEN_{VendorPrefix}{VendorDeviceID}&DEV_CONS&REV_09000000`,
			`XENBUS\VEN_{VendorPrefix}0001&DEV_CONS&REV_09000000`,
			`XENBUS\VEN_{VendorPrefix}0002&DEV_CONS&REV_09000000`,
		},
	},
	{
		name:  "Xenhid",
		class: ClassHIDClass,
		ids: []string{
			`XENVKBD\VEN_{VendorPrefix}{VendorDeviceID}&DEV_HID&REV_09000000`,
			`XENVKBD\VEN_{VendorPrefix}0001&DEV_HID&REV_09000000`,
			`XENVKBD\VEN_{VendorPrefix}0002&DEV_HID&REV_09000000`,
		},
	},
	{
		name:  "Xeniface",
		class: ClassSystem,
		ids: []string{
			`XENBUS\VEN_{VendorPrefix}{VendorDeviceID}&DEV_IFACE&REV_09000000`,
			`XENBUS\VEN_{VendorPrefix}0001&DEV_IFACE&REV_09000000`,
			`XENBUS\VEN_{VendorPrefix}0002&DEV_IFACE&REV_09000000`,
		},
		incompatible: []string{
			`XENBUS\VEN_XSC000&DEV_IFACE&REV_09000000`,
			`XENBUS\VEN_XS0001&DEV_IFACE&REV_09000000`,
			`XENBUS\VEN_XS0002&DEV_IFACE&REV_09000000`,
			`XENBUS\VEN_XN0002&DEV_IFACE&REV_08000009`,
		},
	},
	{
		name:  "Xennet",
		class: ClassNet,
		ids: []string{
			`XENVIF\VEN_{VendorPrefix}{VendorDeviceID}&DEV_NET&REV_09000000`,
			`XENVIF\VEN_{VendorPrefix}0001&DEV_NET&REV_09000000`,
			`XENVIF\VEN_{VendorPrefix}0002&DEV_NET&REV_09000000`,
		},
		incompatible: []string{
			`XENVIF\VEN_XSC000&DEV_NET&REV_09000000`,
			`XENVIF\VEN_XS0001&DEV_NET&REV_09000000`,
			`XENVIF\VEN_XS0002&DEV_NET&REV_09000000`,
			`XENVIF\VEN_XN0002&DEV_NET&REV_08000002`,
		},
		safe: true,
	},
	{
		name:  "Xenvbd",
		class: ClassSCSIAdapter,
		ids: []string{
			`XENBUS\VEN_{VendorPrefix}{VendorDeviceID}&DEV_VBD&REV_09000000`,
			`XENBUS\VEN_{VendorPrefix}0001&DEV_VBD&REV_09000000`,
			`XENBUS\VEN_{VendorPrefix}0002&DEV_VBD&REV_09000000`,
		},
		incompatible: []string{
			`XENBUS\VEN_XSC000&DEV_VBD&REV_09000000`,
			`XENBUS\VEN_XS0001&DEV_VBD&REV_09000000`,
			`XENBUS\VEN_XS0002&DEV_VBD&REV_09000000`,
			`XENBUS\VEN_XN0002&DEV_VBD&REV_08000009`,
		},
		safe: true,
	},
	{
		name:  "Xenvif",
		class: ClassSystem,
		ids: []string{
			`XENBUS\VEN_{VendorPrefix}{VendorDeviceID}&DEV_VIF&REV_09000000`,
			`XENBUS\VEN_{VendorPrefix}0001&DEV_VIF&REV_09000000`,
			`XENBUS\VEN_{VendorPrefix}0002&DEV_VIF&REV_09000000`,
		},
		incompatible: []string{
			`XENBUS\VEN_XSC000&DEV_VIF&REV_09000000`,
			`XENBUS\VEN_XS0001&DEV_VIF&REV_09000000`,
			`XENBUS\VEN_XS0002&DEV_VIF&REV_09000000`,
			`XENBUS\VEN_XN0002&DEV_VIF&REV_08000009`,
		},
	},
	{
		name:  "Xenvkbd",
		class: ClassSystem,
		ids: []string{
			`XENBUS\VEN_{VendorPrefix}{VendorDeviceID}&DEV_VKBD&REV_09000000`,
			`XENBUS\VEN_{VendorPrefix}0001&DEV_VKBD&REV_09000000`,
			`XENBUS\VEN_{VendorPrefix}0002&DEV_VKBD&REV_09000000`,
		},
	},
}

// uninstallOrder removes leaf functions before the bus they hang off.
var uninstallOrder = []string{
	"Xenvbd",
	"Xennet",
	"Xenvif",
	"Xenhid",
	"Xenvkbd",
	"Xencons",
	"Xeniface",
	"Xenbus",
}

var installOrder = []string{
	"Xenbus",
	"Xeniface",
	"Xencons",
	"Xenvkbd",
	"Xenhid",
	"Xenvif",
	"Xennet",
	"Xenvbd",
}

// Build expands the family table for the given branding.
func Build(b Branding) *Registry {
	r := &Registry{families: make(map[string]Family, len(table))}
	for _, row := range table {
		class := row.class
		fam := Family{
			Name:            row.name,
			Class:           &class,
			IDs:             expandAll(row.ids, b),
			IncompatibleIDs: expandAll(row.incompatible, b),
			SafeInstall:     row.safe,
		}
		r.families[strings.ToLower(row.name)] = fam
		r.names = append(r.names, row.name)
	}
	sort.Strings(r.names)
	return r
}

// Resolve looks a family up by name, ignoring case.
func (r *Registry) Resolve(name string) (Family, bool) {
	fam, ok := r.families[strings.ToLower(strings.TrimSpace(name))]
	return fam, ok
}

// Names returns the family names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// IncompatibleIDs returns every family's incompatible patterns.
func (r *Registry) IncompatibleIDs() []string {
	var out []string
	for _, name := range r.names {
		for _, id := range r.families[strings.ToLower(name)].IncompatibleIDs {
			if id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

// UninstallOrder returns the default removal order.
func UninstallOrder() []string {
	return append([]string(nil), uninstallOrder...)
}

// InstallOrder returns the default installation order.
func InstallOrder() []string {
	return append([]string(nil), installOrder...)
}

func expandAll(templates []string, b Branding) []string {
	if len(templates) == 0 {
		return nil
	}
	out := make([]string, len(templates))
	for i, t := range templates {
		out[i] = expand(t, b)
	}
	return out
}

// expand substitutes the branding tokens in t. A template that needs an
// unset value or carries an unknown token yields "".
func expand(t string, b Branding) string {
	var sb strings.Builder
	rest := t
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return ""
			}
			sb.WriteString(rest)
			return sb.String()
		}
		sb.WriteString(rest[:open])
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return ""
		}
		var value string
		switch rest[open : open+end+1] {
		case TokenVendorPrefix:
			value = b.VendorPrefix
		case TokenVendorDeviceID:
			value = b.VendorDeviceID
		default:
			return ""
		}
		if value == "" {
			return ""
		}
		sb.WriteString(value)
		rest = rest[open+end+1:]
	}
}

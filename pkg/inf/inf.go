// pkg/inf/inf.go - reads the identity fields of a driver package INF file.
//
// Only [Version] CatalogFile and [Version] Provider are read. String tokens
// such as %VendorName% are resolved through the [Strings] section.

package inf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"gopkg.in/ini.v1"
)

// ErrNoField is returned when a required [Version] field is missing.
var ErrNoField = errors.New("inf field not found")

// Package identifies a staged driver package.
type Package struct {
	// FileName is the base name in the driver store, e.g. oem12.inf.
	FileName string `json:"file_name"`
	// CatalogName is the [Version] CatalogFile value, e.g. xennet.cat.
	CatalogName string `json:"catalog_name"`
	// Publisher is the resolved [Version] Provider value.
	Publisher string `json:"publisher"`
}

var loadOptions = ini.LoadOptions{
	Insensitive:             true,
	AllowBooleanKeys:        true,
	AllowShadows:            true,
	SkipUnrecognizableLines: true,
	KeyValueDelimiters:      "=",
}

// ReadFile parses the INF file at path.
func ReadFile(path string) (Package, error) {
	f, err := os.Open(path)
	if err != nil {
		return Package{}, err
	}
	defer f.Close()
	return Parse(filepath.Base(path), f)
}

// Parse reads an INF document in UTF-8 or BOM-marked UTF-16.
func Parse(fileName string, r io.Reader) (Package, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	data, err := io.ReadAll(decoded)
	if err != nil {
		return Package{}, fmt.Errorf("failed to decode %s: %w", fileName, err)
	}

	file, err := ini.LoadSources(loadOptions, bytes.NewReader(data))
	if err != nil {
		return Package{}, fmt.Errorf("failed to parse %s: %w", fileName, err)
	}

	version, err := file.GetSection("version")
	if err != nil {
		return Package{}, fmt.Errorf("%s: [Version]: %w", fileName, ErrNoField)
	}

	pkg := Package{FileName: fileName}
	if pkg.CatalogName, err = field(file, version, "CatalogFile"); err != nil {
		return Package{}, fmt.Errorf("%s: %w", fileName, err)
	}
	if pkg.Publisher, err = field(file, version, "Provider"); err != nil {
		return Package{}, fmt.Errorf("%s: %w", fileName, err)
	}
	return pkg, nil
}

func field(file *ini.File, section *ini.Section, name string) (string, error) {
	if !section.HasKey(name) {
		return "", fmt.Errorf("[Version] %s: %w", name, ErrNoField)
	}
	value := resolveStrings(file, unquote(section.Key(name).String()))
	if value == "" {
		return "", fmt.Errorf("[Version] %s is empty: %w", name, ErrNoField)
	}
	return value, nil
}

// resolveStrings replaces %token% references with [Strings] values.
// Unknown tokens are left as written; %% is a literal percent sign.
func resolveStrings(file *ini.File, value string) string {
	if !strings.Contains(value, "%") {
		return value
	}
	strs, _ := file.GetSection("strings")

	var sb strings.Builder
	rest := value
	for {
		start := strings.IndexByte(rest, '%')
		if start < 0 {
			sb.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start+1:], '%')
		if end < 0 {
			sb.WriteString(rest)
			break
		}
		sb.WriteString(rest[:start])
		token := rest[start+1 : start+1+end]
		switch {
		case token == "":
			sb.WriteByte('%')
		case strs != nil && strs.HasKey(token):
			sb.WriteString(unquote(strs.Key(token).String()))
		default:
			sb.WriteString("%" + token + "%")
		}
		rest = rest[start+end+2:]
	}
	return strings.TrimSpace(sb.String())
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return s
}

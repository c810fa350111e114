// pkg/driverstore/driverstore.go - staged driver package removal and lookup.
//
// Packages bound to devices are removed by file name. When no device is left
// to name them, packages are found by scanning the driver store for INF
// files whose catalog and publisher identify the product.

package driverstore

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xcp-ng/xenclean/pkg/inf"
	"github.com/xcp-ng/xenclean/pkg/logging"
)

// DefaultPattern matches the file names Windows gives staged third-party
// packages.
const DefaultPattern = "oem*.inf"

// ErrUnsupported is returned by the package manager outside Windows.
var ErrUnsupported = errors.New("driver store is not supported on this platform")

// PackageManager talks to the OS driver store.
type PackageManager interface {
	// Uninstall force-removes a staged package by its driver store file name.
	Uninstall(fileName string) error
	// Install stages infPath and updates matching devices. force installs
	// even over a better-ranked driver.
	Install(infPath string, force bool) (needReboot bool, err error)
}

// Result is the outcome of one attempted action on one item.
type Result struct {
	Item   string `json:"item"`
	Action string `json:"action"`
	Err    error  `json:"-"`
}

// OK reports whether the action succeeded.
func (r Result) OK() bool { return r.Err == nil }

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s %s: %v", r.Action, r.Item, r.Err)
	}
	return fmt.Sprintf("%s %s: ok", r.Action, r.Item)
}

// Failed returns the failed results.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Store is a driver store directory plus the manager that edits it.
type Store struct {
	Dir      string
	Pattern  string
	Packages PackageManager
	Log      *logging.Logger
	// DryRun logs removals without performing them.
	DryRun bool
}

// NewStore returns a Store over dir using the default file pattern.
func NewStore(dir string, pm PackageManager, log *logging.Logger) *Store {
	return &Store{Dir: dir, Pattern: DefaultPattern, Packages: pm, Log: log}
}

// RemovePackages force-removes each named package. One failure never stops
// the remaining attempts.
func (s *Store) RemovePackages(names []string) []Result {
	results := make([]Result, 0, len(names))
	for _, name := range names {
		r := Result{Item: name, Action: "remove-package"}
		if s.DryRun {
			s.Log.Info("Would remove driver package", "package", name)
		} else if r.Err = s.Packages.Uninstall(name); r.Err != nil {
			s.Log.Warn("Cannot remove driver package", "package", name, "error", r.Err)
		} else {
			s.Log.Info("Removed driver package", "package", name)
		}
		results = append(results, r)
	}
	return results
}

// Scan lists the candidate package files in the store, sorted by name.
func (s *Store) Scan() ([]string, error) {
	pattern := s.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	matches, err := filepath.Glob(filepath.Join(s.Dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to scan driver store %s: %w", s.Dir, err)
	}

	// Glob also matches 8.3 aliases of longer extensions on Windows.
	files := matches[:0]
	for _, m := range matches {
		if strings.EqualFold(filepath.Ext(m), ".inf") {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// CatalogFor returns the catalog file name a package built from infPath
// declares, e.g. xennet.inf -> xennet.cat.
func CatalogFor(infPath string) string {
	base := filepath.Base(strings.ReplaceAll(infPath, `\`, "/"))
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".cat"
}

// FindByCatalog returns the staged packages whose catalog equals one of
// catalogs and whose publisher equals one of publishers, ignoring case.
// Files that cannot be parsed are reported and skipped.
func (s *Store) FindByCatalog(catalogs, publishers []string) ([]inf.Package, []Result) {
	files, err := s.Scan()
	if err != nil {
		s.Log.Warn("Cannot scan driver store", "dir", s.Dir, "error", err)
		return nil, []Result{{Item: s.Dir, Action: "scan", Err: err}}
	}

	var found []inf.Package
	var results []Result
	for _, path := range files {
		pkg, err := inf.ReadFile(path)
		if err != nil {
			s.Log.Debug("Skipping unreadable driver package", "file", path, "error", err)
			results = append(results, Result{Item: filepath.Base(path), Action: "read-package", Err: err})
			continue
		}
		if containsFold(catalogs, pkg.CatalogName) && containsFold(publishers, pkg.Publisher) {
			s.Log.Debug("Found driver package by metadata", "package", pkg.FileName,
				"catalog", pkg.CatalogName, "publisher", pkg.Publisher)
			found = append(found, pkg)
		}
	}
	return found, results
}

// RemoveByMetadata removes the staged packages built from originalInf,
// located by catalog name and publisher.
func (s *Store) RemoveByMetadata(originalInf string, publishers []string) []Result {
	return s.RemoveByCatalog([]string{CatalogFor(originalInf)}, publishers)
}

// RemoveByCatalog removes every staged package FindByCatalog selects.
func (s *Store) RemoveByCatalog(catalogs, publishers []string) []Result {
	found, results := s.FindByCatalog(catalogs, publishers)
	names := make([]string, len(found))
	for i, pkg := range found {
		names[i] = pkg.FileName
	}
	return append(results, s.RemovePackages(names)...)
}

// Install stages the package at infPath.
func (s *Store) Install(infPath string, force bool) (bool, error) {
	if s.DryRun {
		s.Log.Info("Would install driver package", "inf", infPath, "force", force)
		return false, nil
	}
	needReboot, err := s.Packages.Install(infPath, force)
	if err != nil {
		return needReboot, fmt.Errorf("failed to install %s: %w", infPath, err)
	}
	s.Log.Info("Installed driver package", "inf", infPath, "reboot", needReboot)
	return needReboot, nil
}

func containsFold(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

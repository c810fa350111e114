// Package products removes the MSI products that shipped the guest tools,
// looked up by upgrade code.
package products

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xcp-ng/xenclean/pkg/config"
	"github.com/xcp-ng/xenclean/pkg/logging"
	"github.com/xcp-ng/xenclean/pkg/retry"
)

const commandMsi = "msiexec.exe"

// msiexec exit codes.
const (
	ExitSuccess           = 0
	ExitUnknownProduct    = 1605
	ExitInstallInProgress = 1618
	ExitRebootInitiated   = 1641
	ExitRebootRequired    = 3010
)

var (
	ErrUnsupported = errors.New("products: not supported on this platform")
	ErrTimeout     = errors.New("installer timed out")
)

// Finder returns the product codes installed under an upgrade code.
type Finder func(upgradeCode string) ([]string, error)

// Runner starts a process and reports its exit code. A non-zero exit code is
// not an error; err is reserved for launch failures and timeouts.
type Runner func(ctx context.Context, name string, args ...string) (exitCode int, output string, err error)

// Result is the outcome of one product uninstall or failed query.
type Result struct {
	UpgradeCode string
	ProductCode string
	ExitCode    int
	Err         error
}

func (r Result) OK() bool { return r.Err == nil }

func (r Result) String() string {
	item := r.UpgradeCode
	if r.ProductCode != "" {
		item = r.ProductCode
	}
	if r.Err != nil {
		return fmt.Sprintf("uninstall %s: %v", item, r.Err)
	}
	return fmt.Sprintf("uninstall %s: exit code %d", item, r.ExitCode)
}

// Report collects every Result from UninstallAll.
type Report struct {
	Results        []Result
	RebootRequired bool
}

// Removed lists the product codes that msiexec removed.
func (r Report) Removed() []string {
	var out []string
	for _, res := range r.Results {
		if res.OK() && res.ProductCode != "" && res.ExitCode != ExitUnknownProduct {
			out = append(out, res.ProductCode)
		}
	}
	return out
}

func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

type Uninstaller struct {
	Find    Finder
	Run     Runner
	Cleanup *ProcessCleanup
	Timeout time.Duration
	Retry   retry.RetryConfig
	Log     *logging.Logger
	DryRun  bool
}

// NewUninstaller wires the WMI product query and msiexec.
func NewUninstaller(cfg *config.Configuration, log *logging.Logger) *Uninstaller {
	cleanup := NewProcessCleanup(log)
	return &Uninstaller{
		Find:    FindProducts,
		Run:     cleanup.runCMD,
		Cleanup: cleanup,
		Timeout: time.Duration(cfg.InstallerTimeoutMinutes) * time.Minute,
		Retry:   retry.DefaultConfig(),
		Log:     log,
		DryRun:  cfg.DryRun,
	}
}

// NormalizeCode returns an MSI style GUID, braced and upper case.
func NormalizeCode(code string) (string, error) {
	id, err := uuid.Parse(strings.Trim(strings.TrimSpace(code), "{}"))
	if err != nil {
		return "", fmt.Errorf("invalid product code %q: %w", code, err)
	}
	return "{" + strings.ToUpper(id.String()) + "}", nil
}

// UninstallAll removes every product found under the given upgrade codes.
// Failures are recorded and the walk continues.
func (u *Uninstaller) UninstallAll(ctx context.Context, upgradeCodes []string) Report {
	var rep Report
	if u.Cleanup != nil && !u.DryRun {
		u.Cleanup.CleanupOrphanedMSIProcesses()
	}

	for _, raw := range upgradeCodes {
		upgradeCode, err := NormalizeCode(raw)
		if err != nil {
			u.Log.Warn("Skipping upgrade code", "code", raw, "error", err)
			rep.Results = append(rep.Results, Result{UpgradeCode: raw, Err: err})
			continue
		}
		codes, err := u.Find(upgradeCode)
		if err != nil {
			u.Log.Warn("Failed to query products", "upgradeCode", upgradeCode, "error", err)
			rep.Results = append(rep.Results, Result{UpgradeCode: upgradeCode, Err: err})
			continue
		}
		if len(codes) == 0 {
			u.Log.Debug("No installed product", "upgradeCode", upgradeCode)
			continue
		}
		for _, productCode := range codes {
			res := u.uninstall(ctx, upgradeCode, productCode)
			if res.ExitCode == ExitRebootRequired || res.ExitCode == ExitRebootInitiated {
				rep.RebootRequired = true
			}
			rep.Results = append(rep.Results, res)
		}
	}
	return rep
}

func (u *Uninstaller) uninstall(ctx context.Context, upgradeCode, productCode string) Result {
	res := Result{UpgradeCode: upgradeCode, ProductCode: productCode}
	args := []string{"/x", productCode, "/passive", "/norestart"}
	if u.DryRun {
		u.Log.Info("[dry-run] Would uninstall product", "productCode", productCode, "command", commandMsi+" "+strings.Join(args, " "))
		return res
	}

	u.Log.Info("Uninstalling product", "productCode", productCode, "upgradeCode", upgradeCode)
	res.Err = retry.Retry(ctx, u.Retry, u.Log, func() error {
		code, output, err := u.runOnce(ctx, args)
		res.ExitCode = code
		if err != nil {
			return retry.Permanent(err)
		}
		switch code {
		case ExitSuccess, ExitUnknownProduct, ExitRebootRequired, ExitRebootInitiated:
			return nil
		case ExitInstallInProgress:
			return fmt.Errorf("another installation is in progress (exit code %d)", code)
		default:
			return retry.Permanent(fmt.Errorf("msiexec exited with code %d: %s", code, strings.TrimSpace(output)))
		}
	})

	if res.Err != nil {
		u.Log.Error("Failed to uninstall product", "productCode", productCode, "error", res.Err)
	} else {
		u.Log.Info("Product uninstalled", "productCode", productCode, "exitCode", res.ExitCode)
	}
	return res
}

func (u *Uninstaller) runOnce(ctx context.Context, args []string) (int, string, error) {
	if u.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.Timeout)
		defer cancel()
	}
	return u.Run(ctx, commandMsi, args...)
}

// pkg/preflight/preflight.go - environment checks before any driver is touched.

package preflight

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	goversion "github.com/hashicorp/go-version"

	"github.com/xcp-ng/xenclean/pkg/config"
	"github.com/xcp-ng/xenclean/pkg/logging"
)

// ScriptPath is an optional site hook run before cleanup.
var ScriptPath = `C:\ProgramData\XenClean\preflight.ps1`

var (
	ErrNotElevated = errors.New("administrator rights are required")
	ErrUnsupported = errors.New("preflight: not supported on this platform")
)

// CheckVersion fails when current is older than minimum. An empty minimum
// disables the check.
func CheckVersion(current, minimum string) error {
	if strings.TrimSpace(minimum) == "" {
		return nil
	}
	want, err := goversion.NewVersion(minimum)
	if err != nil {
		return fmt.Errorf("invalid minimum Windows version %q: %w", minimum, err)
	}
	have, err := goversion.NewVersion(current)
	if err != nil {
		return fmt.Errorf("invalid Windows version %q: %w", current, err)
	}
	if have.LessThan(want) {
		return fmt.Errorf("Windows %s is older than the supported minimum %s", current, minimum)
	}
	return nil
}

// Run performs every check and returns the problems found. The caller decides
// which of them are fatal.
func Run(cfg *config.Configuration, log *logging.Logger) []error {
	var problems []error

	current, err := windowsVersion()
	if err != nil {
		problems = append(problems, fmt.Errorf("read Windows version: %w", err))
	} else {
		log.Debug("Windows version", "version", current, "minimum", cfg.MinimumWindowsVersion)
		if err := CheckVersion(current, cfg.MinimumWindowsVersion); err != nil {
			problems = append(problems, err)
		}
	}

	elevated, err := isElevated()
	switch {
	case err != nil:
		problems = append(problems, fmt.Errorf("check elevation: %w", err))
	case !elevated:
		problems = append(problems, ErrNotElevated)
	}

	if err := RunScript(ScriptPath, log); err != nil {
		problems = append(problems, err)
	}

	for _, p := range problems {
		log.Warn("Preflight check failed", "error", p)
	}
	return problems
}

// RunScript runs the PowerShell script at scriptPath if it exists, logging
// each line it prints.
func RunScript(scriptPath string, log *logging.Logger) error {
	if _, err := os.Stat(scriptPath); os.IsNotExist(err) {
		log.Debug("Preflight script not found", "path", scriptPath)
		return nil
	}

	cmd := exec.Command(
		"powershell.exe",
		"-NoLogo",
		"-NoProfile",
		"-NonInteractive",
		"-ExecutionPolicy", "Bypass",
		"-File", scriptPath,
	)
	cmd.Dir = filepath.Dir(scriptPath)

	outputBytes, err := cmd.CombinedOutput()
	for _, line := range strings.Split(string(outputBytes), "\n") {
		txt := strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
		if txt == "" {
			continue
		}
		log.Info(txt, "script", scriptPath)
	}

	if err != nil {
		return fmt.Errorf("preflight script error: %w", err)
	}
	log.Info("Preflight script completed successfully", "script", scriptPath)
	return nil
}

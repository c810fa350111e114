package products

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/xcp-ng/xenclean/pkg/logging"
)

// ProcessCleanup keeps stray msiexec clients from blocking an uninstall.
type ProcessCleanup struct {
	Log    *logging.Logger
	MaxAge time.Duration
	Now    func() time.Time
}

func NewProcessCleanup(log *logging.Logger) *ProcessCleanup {
	return &ProcessCleanup{Log: log, MaxAge: 30 * time.Minute, Now: time.Now}
}

// CleanupOrphanedMSIProcesses terminates msiexec clients older than MaxAge.
// The Windows Installer service itself (msiexec /V) is left alone.
func (pc *ProcessCleanup) CleanupOrphanedMSIProcesses() int {
	pc.Log.Debug("Checking for orphaned msiexec.exe processes")

	procs, err := process.Processes()
	if err != nil {
		pc.Log.Debug("Failed to get process list", "error", err)
		return 0
	}

	killed := 0
	for _, proc := range procs {
		name, err := proc.Name()
		if err != nil || !strings.EqualFold(name, commandMsi) {
			continue
		}
		if cmdline, err := proc.Cmdline(); err == nil && isServiceCommandLine(cmdline) {
			continue
		}
		created, err := proc.CreateTime()
		if err != nil || !pc.isProcessOld(created) {
			continue
		}
		pc.Log.Info("Terminating orphaned msiexec.exe process", "pid", proc.Pid)
		if err := proc.Kill(); err != nil {
			pc.Log.Warn("Failed to kill msiexec process", "pid", proc.Pid, "error", err)
			continue
		}
		killed++
	}
	if killed > 0 {
		pc.Log.Warn("Terminated orphaned msiexec.exe processes", "count", killed)
	}
	return killed
}

// isProcessOld takes a creation time in milliseconds since the epoch.
func (pc *ProcessCleanup) isProcessOld(createdMillis int64) bool {
	if createdMillis <= 0 {
		return false
	}
	now := time.Now
	if pc.Now != nil {
		now = pc.Now
	}
	return now().Sub(time.UnixMilli(createdMillis)) > pc.MaxAge
}

func isServiceCommandLine(cmdline string) bool {
	for _, f := range strings.Fields(cmdline) {
		if strings.EqualFold(f, "/V") {
			return true
		}
	}
	return false
}

// terminateProcessTree kills pid and all of its descendants, leaves first.
func (pc *ProcessCleanup) terminateProcessTree(pid int) error {
	pc.Log.Debug("Terminating process tree", "rootPid", pid)

	root, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return pc.killTree(root)
}

func (pc *ProcessCleanup) killTree(p *process.Process) error {
	children, _ := p.Children()
	for _, child := range children {
		if err := pc.killTree(child); err != nil {
			pc.Log.Debug("Failed to terminate child process", "pid", child.Pid, "error", err)
		}
	}
	return p.Kill()
}

// runCMD runs name hidden, killing its whole process tree when ctx expires.
func (pc *ProcessCleanup) runCMD(ctx context.Context, name string, args ...string) (int, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = sysProcAttr()
	cmd.Cancel = func() error {
		if err := pc.terminateProcessTree(cmd.Process.Pid); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}

	output, err := cmd.CombinedOutput()
	outputStr := string(output)

	if ctx.Err() == context.DeadlineExceeded {
		pc.Log.Error("Installer timed out", "command", name)
		return -1, outputStr, fmt.Errorf("%w: %s", ErrTimeout, name)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), outputStr, nil
	}
	if err != nil {
		return -1, outputStr, err
	}
	return 0, outputStr, nil
}

//go:build !windows

package products

import "syscall"

func sysProcAttr() *syscall.SysProcAttr { return nil }

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xcp-ng/xenclean/pkg/actions"
	"github.com/xcp-ng/xenclean/pkg/reboot"
)

// rebootExitCode matches the installer's ERROR_SUCCESS_REBOOT_REQUIRED.
const rebootExitCode = exitCode(3010)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "check-incompatible",
		Short: "List present devices that belong to incompatible driver builds",
		Long: `check-incompatible prints IncompatibleDevices=<instance IDs> and exits
with status 2 when any device from an incompatible build is present.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRunner()
			if err != nil {
				return err
			}
			props := make(actions.Data)
			if err := r.CheckIncompatibleDevices(props); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), props.String())
			if props[actions.PropIncompatibleDevices] != "" {
				return exitCode(2)
			}
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "check-reboot",
		Short: "Report whether a driver step scheduled a reboot",
		Long:  `check-reboot prints RebootAtEnd=1 and exits with status 3010 when a reboot is scheduled.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRunner()
			if err != nil {
				return err
			}
			props := make(actions.Data)
			if !r.CheckReboot(props) {
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), props.String())
			return rebootExitCode
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "pending-reboot",
		Short: "Report whether Windows has a reboot pending for any reason",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pending, reasons := reboot.DetectPending()
			if !pending {
				fmt.Fprintln(cmd.OutOrStdout(), "No reboot pending")
				return nil
			}
			for _, reason := range reasons {
				fmt.Fprintln(cmd.OutOrStdout(), reason)
			}
			return rebootExitCode
		},
	})
}

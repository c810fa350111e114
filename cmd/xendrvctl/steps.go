package main

import (
	"github.com/spf13/cobra"

	"github.com/xcp-ng/xenclean/pkg/actions"
)

var stepData string

func init() {
	steps := []struct {
		use, short string
		run        func(*actions.Runner, actions.Data) error
	}{
		{"install", "Stage a driver package and update its devices", (*actions.Runner).Install},
		{"install-rollback", "Undo an install step", (*actions.Runner).InstallRollback},
		{"uninstall", "Remove a driver family's devices and packages", (*actions.Runner).Uninstall},
		{"uninstall-rollback", "Undo an uninstall step (does nothing)", (*actions.Runner).UninstallRollback},
	}
	for _, s := range steps {
		rootCmd.AddCommand(newStepCmd(s.use, s.short, s.run))
	}
}

func newStepCmd(use, short string, run func(*actions.Runner, actions.Data) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

The step data names one driver family and its INF file. Separate pairs
with ';' and write a literal ';' as ';;'.

Example:
  xendrvctl ` + use + ` --data "Xennet=C:\Program Files\XCP-ng\xennet\xennet.inf"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRunner()
			if err != nil {
				return err
			}
			return run(r, actions.ParseData(stepData))
		},
	}
	cmd.Flags().StringVar(&stepData, "data", "", "Step data, e.g. \"Xenbus=C:\\path\\xenbus.inf\"")
	return cmd
}

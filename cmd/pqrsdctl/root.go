package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pqrsdctl",
		Short:         "Operator tools for PQRSD deadlines and the lifecycle change feed",
		SilenceUsage: true,
	}
	cmd.AddCommand(newDueDateCmd())
	cmd.AddCommand(newBusinessDaysCmd())
	cmd.AddCommand(newIsBusinessDayCmd())
	cmd.AddCommand(newWatchCmd())
	return cmd
}

func execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

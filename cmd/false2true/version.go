package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/false2true/false2true/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "false2true %s\n", version.String())
		},
	}
}

// Command false2true runs an intercepting proxy that rewrites false to true
// in the textual responses it forwards.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/false2true/false2true/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			for _, msg := range verr.Problems {
				fmt.Fprintln(os.Stderr, msg)
			}
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	run := newRunCmd()

	root := &cobra.Command{
		Use:          "false2true",
		Short:        "Proxy that rewrites false to true in HTTP responses",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         run.RunE,
	}
	root.Flags().AddFlagSet(run.Flags())

	root.AddCommand(run)
	root.AddCommand(newCACmd())
	root.AddCommand(newVersionCmd())
	return root
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const modulePath = "github.com/mesh-intelligence/cypress"

// Version is the release version, overridden at link time with
// -X github.com/mesh-intelligence/cypress/internal/cli.Version=...
var Version = "0.1.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cypress version",
		Args:  argsRule(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "cypress v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cypress/internal/paths"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize cypress storage",
		Long:  "Create the configuration directory and config.yaml, then attach the storage backend once so its schema exists.",
		Args:  argsRule(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.openBackend()
			if err != nil {
				return err
			}
			if err := b.Detach(); err != nil {
				return sysError(fmt.Errorf("finalize storage: %w", err))
			}
			cfg, _ := a.backendConfig()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config: %s\n", paths.ConfigFile(a.configDir))
			if cfg.DataDir != "" {
				fmt.Fprintf(out, "data:   %s\n", cfg.DataDir)
			}
			fmt.Fprintln(out, "cypress initialized successfully")
			return nil
		},
	}
}

package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cypress/internal/httpapi"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	var secure bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over HTTP",
		Args:  argsRule(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.settings.ListenAddr
			}
			b, err := a.openBackend()
			if err != nil {
				return err
			}
			defer b.Detach()

			ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := httpapi.NewServer(b, a.logger, httpapi.Config{SecureCookies: secure})
			if err := srv.ListenAndServe(ctx, addr); err != nil {
				return sysError(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: listen_addr from config, :8080)")
	cmd.Flags().BoolVar(&secure, "secure-cookies", false, "mark session cookies Secure")
	return cmd
}

// contextOf returns the command context, or Background when run outside
// ExecuteContext.
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

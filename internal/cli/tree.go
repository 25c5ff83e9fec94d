package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cypress/internal/backend"
	"github.com/mesh-intelligence/cypress/internal/route"
	"github.com/mesh-intelligence/cypress/internal/session"
	"github.com/mesh-intelligence/cypress/internal/state"
)

func newTreeCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "tree [workspace-id]",
		Short: "Print the workspace tree visible to a user",
		Long: "Tree walks every workspace the user can see, or only the one given,\n" +
			"and loads each folder's files through a dashboard session.",
		Args: argsRule(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withActor(cmd, email, func(b backend.Backend, act *actor) error {
				ctx := contextOf(cmd)
				sess := session.New(b, act.store, a.logger)
				defer sess.Close()

				for _, ws := range act.store.State().Workspaces {
					if len(args) == 1 && ws.ID != args[0] {
						continue
					}
					folders, err := act.service.LoadFolders(ctx, ws.ID)
					if err != nil {
						return err
					}
					for _, f := range folders {
						sess.Navigate(ctx, route.DashboardPath(ws.ID, f.ID, ""))
						sess.Wait()
					}
				}

				tree := act.store.State()
				if len(args) == 1 {
					ws, ok := tree.Workspace(args[0])
					if !ok {
						return userError(fmt.Errorf("workspace %s is not visible to %s", args[0], act.user.Email))
					}
					tree = state.State{Workspaces: []state.Workspace{ws}}
				}
				return a.print(cmd.OutOrStdout(), tree, func(w io.Writer) { printTree(w, tree) })
			})
		},
	}
	cmd.Flags().StringVar(&email, "user", "", "email of the acting user")
	return cmd
}

func printTree(w io.Writer, s state.State) {
	for _, ws := range s.Workspaces {
		fmt.Fprintf(w, "%s %s (%s)\n", ws.IconID, ws.Title, ws.ID)
		for _, f := range ws.Folders {
			fmt.Fprintf(w, "  %s %s (%s)%s\n", f.IconID, f.Title, f.ID, trashSuffix(f.InTrash))
			for _, file := range f.Files {
				fmt.Fprintf(w, "    %s %s (%s)%s\n", file.IconID, file.Title, file.ID, trashSuffix(file.InTrash))
			}
		}
	}
}

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cypress/internal/backend"
	"github.com/mesh-intelligence/cypress/internal/dashboard"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

// withActor opens the backend, resolves --user and runs fn.
func (a *app) withActor(cmd *cobra.Command, email string, fn func(b backend.Backend, act *actor) error) error {
	b, err := a.openBackend()
	if err != nil {
		return err
	}
	defer b.Detach()

	act, err := a.actorFor(contextOf(cmd), b, email)
	if err != nil {
		return err
	}
	return fn(b, act)
}

func newWorkspaceCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage workspaces",
	}
	cmd.PersistentFlags().StringVar(&email, "user", "", "email of the acting user")

	list := &cobra.Command{
		Use:   "list",
		Short: "List private, shared and collaborating workspaces",
		Args:  argsRule(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withActor(cmd, email, func(_ backend.Backend, act *actor) error {
				return a.print(cmd.OutOrStdout(), act.member, func(w io.Writer) {
					for _, set := range []struct {
						name string
						ws   []types.Workspace
					}{
						{"private", act.member.Private},
						{"shared", act.member.Shared},
						{"collaborating", act.member.Collaborating},
					} {
						for _, ws := range set.ws {
							fmt.Fprintf(w, "%s\t%s\t%s %s\n", ws.ID, set.name, ws.IconID, ws.Title)
						}
					}
				})
			})
		},
	}

	var icon string
	var share []string
	create := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a workspace, shared with --share collaborators if given",
		Args:  argsRule(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withActor(cmd, email, func(b backend.Backend, act *actor) error {
				ctx := contextOf(cmd)
				in := dashboard.WorkspaceInput{Title: args[0], IconID: icon, Permission: dashboard.PermissionPrivate}
				if len(share) > 0 {
					in.Permission = dashboard.PermissionShared
					for _, e := range share {
						u, err := b.GetUserByEmail(ctx, e)
						if err != nil {
							return err
						}
						in.Collaborators = append(in.Collaborators, *u)
					}
				}
				ws, err := act.service.CreateWorkspace(ctx, act.user, in)
				if err != nil {
					return err
				}
				return a.print(cmd.OutOrStdout(), ws, func(w io.Writer) {
					fmt.Fprintf(w, "Created workspace %s (%s)\n", ws.Title, ws.ID)
				})
			})
		},
	}
	create.Flags().StringVar(&icon, "icon", "", "icon emoji")
	create.Flags().StringSliceVar(&share, "share", nil, "collaborator emails")

	rename := &cobra.Command{
		Use:   "rename <workspace-id> <title>",
		Short: "Rename a workspace",
		Args:  argsRule(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withActor(cmd, email, func(_ backend.Backend, act *actor) error {
				if err := act.visible(args[0]); err != nil {
					return err
				}
				if err := act.service.RenameWorkspace(contextOf(cmd), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed workspace %s\n", args[0])
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <workspace-id>",
		Short: "Delete a workspace you own, with its folders and files",
		Args:  argsRule(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withActor(cmd, email, func(_ backend.Backend, act *actor) error {
				if err := act.service.DeleteWorkspace(contextOf(cmd), act.user, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted workspace %s\n", args[0])
				return nil
			})
		},
	}

	collaborators := func(use, short string, add bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <workspace-id> <email>...",
			Short: short,
			Args:  argsRule(cobra.MinimumNArgs(2)),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withActor(cmd, email, func(b backend.Backend, act *actor) error {
					ctx := contextOf(cmd)
					var users []types.User
					for _, e := range args[1:] {
						u, err := b.GetUserByEmail(ctx, e)
						if err != nil {
							return err
						}
						users = append(users, *u)
					}
					var err error
					if add {
						err = act.service.AddCollaborators(ctx, act.user, args[0], users)
					} else {
						err = act.service.RemoveCollaborators(ctx, act.user, args[0], users)
					}
					if err != nil {
						return err
					}
					current, err := b.GetCollaborators(ctx, args[0])
					if err != nil {
						return err
					}
					return a.print(cmd.OutOrStdout(), current, func(w io.Writer) {
						for _, u := range current {
							fmt.Fprintf(w, "%s\t%s\n", u.ID, u.Email)
						}
					})
				})
			},
		}
	}

	usage := &cobra.Command{
		Use:   "usage <workspace-id>",
		Short: "Show folder usage against the free plan limit",
		Args:  argsRule(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withActor(cmd, email, func(b backend.Backend, act *actor) error {
				if err := act.visible(args[0]); err != nil {
					return err
				}
				ctx := contextOf(cmd)
				sub, err := b.GetUserSubscriptionStatus(ctx, act.user.ID)
				if err != nil {
					return err
				}
				if _, err := act.service.LoadFolders(ctx, args[0]); err != nil {
					return err
				}
				u := act.service.PlanUsage(sub, args[0])
				return a.print(cmd.OutOrStdout(), u, func(w io.Writer) {
					if !u.Free {
						fmt.Fprintf(w, "%d folders (paid plan, no limit)\n", u.Folders)
						return
					}
					fmt.Fprintf(w, "%d/%d folders (%.0f%%)\n", u.Folders, u.Limit, u.Percent)
				})
			})
		},
	}

	cmd.AddCommand(list, create, rename, del,
		collaborators("share", "Add collaborators to a workspace you own", true),
		collaborators("unshare", "Remove collaborators from a workspace you own", false),
		usage,
	)
	return cmd
}

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cypress/internal/backend"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

func printFolders(w io.Writer, folders []types.Folder) {
	for _, f := range folders {
		fmt.Fprintf(w, "%s\t%s %s%s\n", f.ID, f.IconID, f.Title, trashSuffix(f.InTrash))
	}
}

func printFiles(w io.Writer, files []types.File) {
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%s %s%s\n", f.ID, f.IconID, f.Title, trashSuffix(f.InTrash))
	}
}

func trashSuffix(marker string) string {
	if marker == "" {
		return ""
	}
	return " [" + marker + "]"
}

func newFolderCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "folder",
		Short: "Manage folders in a workspace",
	}
	cmd.PersistentFlags().StringVar(&email, "user", "", "email of the acting user")

	// run loads the workspace's folders into the actor's store before fn.
	run := func(cmd *cobra.Command, workspaceID string, fn func(b backend.Backend, act *actor) error) error {
		return a.withActor(cmd, email, func(b backend.Backend, act *actor) error {
			if err := act.visible(workspaceID); err != nil {
				return err
			}
			if _, err := act.service.LoadFolders(contextOf(cmd), workspaceID); err != nil {
				return err
			}
			return fn(b, act)
		})
	}
	done := func(cmd *cobra.Command, verb, id string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s folder %s\n", verb, id)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list <workspace-id>",
			Short: "List folders ordered by creation time",
			Args:  argsRule(cobra.ExactArgs(1)),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withActor(cmd, email, func(_ backend.Backend, act *actor) error {
					if err := act.visible(args[0]); err != nil {
						return err
					}
					folders, err := act.service.LoadFolders(contextOf(cmd), args[0])
					if err != nil {
						return err
					}
					return a.print(cmd.OutOrStdout(), folders, func(w io.Writer) { printFolders(w, folders) })
				})
			},
		},
		&cobra.Command{
			Use:   "create <workspace-id> [title]",
			Short: "Create a folder",
			Args:  argsRule(cobra.RangeArgs(1, 2)),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, args[0], func(_ backend.Backend, act *actor) error {
					title := ""
					if len(args) > 1 {
						title = args[1]
					}
					f, err := act.service.CreateFolder(contextOf(cmd), act.user, args[0], title)
					if err != nil {
						return err
					}
					return a.print(cmd.OutOrStdout(), f, func(w io.Writer) {
						fmt.Fprintf(w, "Created folder %s (%s)\n", f.Title, f.ID)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "rename <workspace-id> <folder-id> <title>",
			Short: "Rename a folder",
			Args:  argsRule(cobra.ExactArgs(3)),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, args[0], func(_ backend.Backend, act *actor) error {
					if err := act.service.RenameFolder(contextOf(cmd), args[0], args[1], args[2]); err != nil {
						return err
					}
					done(cmd, "Renamed", args[1])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "trash <workspace-id> <folder-id>",
			Short: "Move a folder to the trash",
			Args:  argsRule(cobra.ExactArgs(2)),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, args[0], func(_ backend.Backend, act *actor) error {
					if err := act.service.TrashFolder(contextOf(cmd), act.user, args[0], args[1]); err != nil {
						return err
					}
					done(cmd, "Trashed", args[1])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "restore <workspace-id> <folder-id>",
			Short: "Restore a folder from the trash",
			Args:  argsRule(cobra.ExactArgs(2)),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, args[0], func(_ backend.Backend, act *actor) error {
					if err := act.service.RestoreFolder(contextOf(cmd), args[0], args[1]); err != nil {
						return err
					}
					done(cmd, "Restored", args[1])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete <workspace-id> <folder-id>",
			Short: "Delete a folder and its files",
			Args:  argsRule(cobra.ExactArgs(2)),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, args[0], func(_ backend.Backend, act *actor) error {
					if err := act.service.DeleteFolder(contextOf(cmd), args[0], args[1]); err != nil {
						return err
					}
					done(cmd, "Deleted", args[1])
					return nil
				})
			},
		},
	)
	return cmd
}

func newFileCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Manage files in a folder",
	}
	cmd.PersistentFlags().StringVar(&email, "user", "", "email of the acting user")

	run := func(cmd *cobra.Command, workspaceID string, fn func(b backend.Backend, act *actor) error) error {
		return a.withActor(cmd, email, func(b backend.Backend, act *actor) error {
			if err := act.visible(workspaceID); err != nil {
				return err
			}
			if _, err := act.service.LoadFolders(contextOf(cmd), workspaceID); err != nil {
				return err
			}
			return fn(b, act)
		})
	}
	done := func(cmd *cobra.Command, verb, id string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s file %s\n", verb, id)
	}

	var moveTo string
	move := &cobra.Command{
		Use:   "move <workspace-id> <folder-id> <file-id> --to <folder-id>",
		Short: "Move a file to another folder of the same workspace",
		Args:  argsRule(cobra.ExactArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if moveTo == "" {
				return userError(fmt.Errorf("--to is required"))
			}
			return run(cmd, args[0], func(_ backend.Backend, act *actor) error {
				if err := act.service.MoveFile(contextOf(cmd), args[0], args[1], moveTo, args[2]); err != nil {
					return err
				}
				done(cmd, "Moved", args[2])
				return nil
			})
		},
	}
	move.Flags().StringVar(&moveTo, "to", "", "destination folder id")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list <folder-id>",
			Short: "List files ordered by creation time",
			Args:  argsRule(cobra.ExactArgs(1)),
			RunE: func(cmd *cobra.Command, args []string) error {
				b, err := a.openBackend()
				if err != nil {
					return err
				}
				defer b.Detach()
				files, err := b.GetFiles(contextOf(cmd), args[0])
				if err != nil {
					return err
				}
				return a.print(cmd.OutOrStdout(), files, func(w io.Writer) { printFiles(w, files) })
			},
		},
		&cobra.Command{
			Use:   "create <workspace-id> <folder-id> [title]",
			Short: "Create a file",
			Args:  argsRule(cobra.RangeArgs(2, 3)),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, args[0], func(_ backend.Backend, act *actor) error {
					title := ""
					if len(args) > 2 {
						title = args[2]
					}
					f, err := act.service.CreateFile(contextOf(cmd), args[0], args[1], title)
					if err != nil {
						return err
					}
					return a.print(cmd.OutOrStdout(), f, func(w io.Writer) {
						fmt.Fprintf(w, "Created file %s (%s)\n", f.Title, f.ID)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "rename <workspace-id> <folder-id> <file-id> <title>",
			Short: "Rename a file",
			Args:  argsRule(cobra.ExactArgs(4)),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, args[0], func(_ backend.Backend, act *actor) error {
					if err := act.service.RenameFile(contextOf(cmd), args[0], args[1], args[2], args[3]); err != nil {
						return err
					}
					done(cmd, "Renamed", args[2])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "trash <workspace-id> <folder-id> <file-id>",
			Short: "Move a file to the trash",
			Args:  argsRule(cobra.ExactArgs(3)),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, args[0], func(_ backend.Backend, act *actor) error {
					if err := act.service.TrashFile(contextOf(cmd), act.user, args[0], args[1], args[2]); err != nil {
						return err
					}
					done(cmd, "Trashed", args[2])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "restore <workspace-id> <folder-id> <file-id>",
			Short: "Restore a file from the trash",
			Args:  argsRule(cobra.ExactArgs(3)),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, args[0], func(_ backend.Backend, act *actor) error {
					if err := act.service.RestoreFile(contextOf(cmd), args[0], args[1], args[2]); err != nil {
						return err
					}
					done(cmd, "Restored", args[2])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete <workspace-id> <folder-id> <file-id>",
			Short: "Delete a file",
			Args:  argsRule(cobra.ExactArgs(3)),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, args[0], func(_ backend.Backend, act *actor) error {
					if err := act.service.DeleteFile(contextOf(cmd), args[0], args[1], args[2]); err != nil {
						return err
					}
					done(cmd, "Deleted", args[2])
					return nil
				})
			},
		},
		move,
	)
	return cmd
}

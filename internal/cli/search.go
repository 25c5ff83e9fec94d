package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cypress/internal/backend"
	"github.com/mesh-intelligence/cypress/internal/search"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

// settleTimeout bounds how long --stdin waits for the final lookup after
// input ends.
const settleTimeout = 5 * time.Second

type searchResult struct {
	Term  string       `json:"term"`
	Users []types.User `json:"users"`
	err   error
}

func newSearchCmd(a *app) *cobra.Command {
	var email, workspaceID string
	var stdin bool
	cmd := &cobra.Command{
		Use:   "search [email-prefix]",
		Short: "Find users to add as collaborators",
		Long: "Search lists users whose email starts with the prefix, hiding the acting\n" +
			"user and, with --workspace, the workspace's current collaborators.\n" +
			"With --stdin each input line is a keystroke-level query; only the term\n" +
			"that stays unchanged for search_debounce is looked up.",
		Args: argsRule(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if stdin == (len(args) == 1) {
				return userError(fmt.Errorf("give either a prefix or --stdin"))
			}
			return a.withActor(cmd, email, func(b backend.Backend, act *actor) error {
				ctx := contextOf(cmd)
				var existing []types.User
				if workspaceID != "" {
					if err := act.visible(workspaceID); err != nil {
						return err
					}
					var err error
					if existing, err = b.GetCollaborators(ctx, workspaceID); err != nil {
						return err
					}
				}
				lookup := func(ctx context.Context, term string) ([]types.User, error) {
					found, err := b.GetUsersFromSearch(ctx, term)
					if err != nil {
						return nil, err
					}
					return search.Filter(found, act.user.ID, existing), nil
				}

				if !stdin {
					users, err := lookup(ctx, args[0])
					if err != nil {
						return err
					}
					return a.printSearch(cmd.OutOrStdout(), searchResult{Term: args[0], Users: users})
				}
				return a.searchStream(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), lookup)
			})
		},
	}
	cmd.Flags().StringVar(&email, "user", "", "email of the acting user")
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "hide collaborators of this workspace")
	cmd.Flags().BoolVar(&stdin, "stdin", false, "read successive search terms from standard input")
	return cmd
}

// searchStream feeds each input line to a debouncer and prints the results
// it delivers. After input ends it waits for the last term's lookup.
func (a *app) searchStream(ctx context.Context, in io.Reader, out io.Writer, lookup search.LookupFunc) error {
	results := make(chan searchResult, 16)
	done := make(chan struct{})
	d := search.NewDebouncer(a.settings.SearchDebounce, lookup, func(term string, users []types.User, err error) {
		select {
		case results <- searchResult{Term: term, Users: users, err: err}:
		case <-done:
		}
	})
	// Stop waits for a running delivery, so release it first.
	defer d.Stop()
	defer close(done)

	var last string
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		last = strings.TrimSpace(sc.Text())
		d.Query(last)
	}
	if err := sc.Err(); err != nil {
		return sysError(fmt.Errorf("reading input: %w", err))
	}

	wait := time.NewTimer(a.settings.SearchDebounce + settleTimeout)
	defer wait.Stop()
	for {
		select {
		case r := <-results:
			if r.err != nil {
				return r.err
			}
			if err := a.printSearch(out, r); err != nil {
				return err
			}
			if r.Term == last {
				return nil
			}
		case <-wait.C:
			return sysError(fmt.Errorf("search for %q did not complete", last))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (a *app) printSearch(w io.Writer, r searchResult) error {
	return a.print(w, r, func(w io.Writer) {
		if len(r.Users) == 0 {
			fmt.Fprintf(w, "%s: no users found\n", r.Term)
			return
		}
		for _, u := range r.Users {
			fmt.Fprintf(w, "%s\t%s\t%s\n", u.ID, u.Email, u.FullName)
		}
	})
}

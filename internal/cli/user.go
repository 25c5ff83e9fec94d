package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cypress/internal/dashboard"
	"github.com/mesh-intelligence/cypress/internal/membership"
	"github.com/mesh-intelligence/cypress/internal/state"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

// actor is a user acting through the dashboard service, with their
// memberships seeded into a fresh store.
type actor struct {
	user    types.User
	store   *state.Store
	service *dashboard.Service
	member  membership.Memberships
}

func (a *app) actorFor(ctx context.Context, g types.Gateway, email string) (*actor, error) {
	if strings.TrimSpace(email) == "" {
		return nil, userError(fmt.Errorf("--user is required"))
	}
	u, err := g.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	m, err := membership.Resolve(ctx, g, u.ID)
	if err != nil {
		return nil, err
	}
	store := state.NewStore(a.logger)
	membership.Seed(store, m)
	return &actor{
		user:    *u,
		store:   store,
		service: dashboard.NewService(g, store, a.logger),
		member:  m,
	}, nil
}

// visible reports ErrNotFound for a workspace the actor neither owns nor
// collaborates on.
func (act *actor) visible(workspaceID string) error {
	if _, ok := act.member.Find(workspaceID); !ok {
		return fmt.Errorf("workspace %s: %w", workspaceID, types.ErrNotFound)
	}
	return nil
}

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users and subscriptions",
	}
	cmd.AddCommand(newUserCreateCmd(a), newUserGetCmd(a), newUserSubscribeCmd(a))
	return cmd
}

func newUserCreateCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Register a user",
		Args:  argsRule(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBackend()
			if err != nil {
				return err
			}
			defer b.Detach()

			now := time.Now().UTC()
			u := types.User{ID: types.NewID(), Email: strings.ToLower(strings.TrimSpace(args[0])), FullName: name, CreatedAt: &now}
			if err := b.CreateUser(contextOf(cmd), u); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), u, func(w io.Writer) {
				fmt.Fprintf(w, "Created user %s (%s)\n", u.Email, u.ID)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	return cmd
}

func newUserGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <email>",
		Short: "Show a user and their subscription",
		Args:  argsRule(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBackend()
			if err != nil {
				return err
			}
			defer b.Detach()

			ctx := contextOf(cmd)
			u, err := b.GetUserByEmail(ctx, args[0])
			if err != nil {
				return err
			}
			sub, err := b.GetUserSubscriptionStatus(ctx, u.ID)
			if err != nil {
				return sysError(err)
			}
			out := struct {
				User         types.User          `json:"user"`
				Subscription *types.Subscription `json:"subscription"`
			}{*u, sub}
			return a.print(cmd.OutOrStdout(), out, func(w io.Writer) {
				plan := "free"
				if sub.Paid() {
					plan = "paid"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Email, u.FullName, plan)
			})
		},
	}
}

func newUserSubscribeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe <email> <status>",
		Short: "Set a user's subscription status (active, trialing, canceled, ...)",
		Args:  argsRule(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := strings.ToLower(args[1])
			switch status {
			case types.SubscriptionActive, types.SubscriptionTrialing, types.SubscriptionCanceled,
				types.SubscriptionIncomplete, types.SubscriptionPastDue, types.SubscriptionUnpaid:
			default:
				return userError(fmt.Errorf("unknown subscription status %q", args[1]))
			}

			b, err := a.openBackend()
			if err != nil {
				return err
			}
			defer b.Detach()

			ctx := contextOf(cmd)
			u, err := b.GetUserByEmail(ctx, args[0])
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			sub := types.Subscription{ID: types.NewID(), UserID: u.ID, Status: status, CreatedAt: &now}
			if err := b.UpsertSubscription(ctx, sub); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), sub, func(w io.Writer) {
				fmt.Fprintf(w, "%s is now %s\n", u.Email, status)
			})
		},
	}
}

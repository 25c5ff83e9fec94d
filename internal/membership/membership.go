// Package membership partitions the workspaces a user can see into the
// private, shared and collaborating sets.
package membership

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/cypress/internal/state"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

// Source is the slice of the gateway the resolver needs.
type Source interface {
	GetPrivateWorkspaces(ctx context.Context, userID string) ([]types.Workspace, error)
	GetSharedWorkspaces(ctx context.Context, userID string) ([]types.Workspace, error)
	GetCollaboratingWorkspaces(ctx context.Context, userID string) ([]types.Workspace, error)
}

// Memberships holds the three disjoint views of one user's workspaces.
type Memberships struct {
	Private       []types.Workspace `json:"private"`
	Shared        []types.Workspace `json:"shared"`
	Collaborating []types.Workspace `json:"collaborating"`
}

// Resolve runs the three membership queries concurrently and returns once
// all have succeeded. The first failure cancels the others and is returned.
// An empty userID yields empty sets without querying.
func Resolve(ctx context.Context, src Source, userID string) (Memberships, error) {
	m := Memberships{
		Private:       []types.Workspace{},
		Shared:        []types.Workspace{},
		Collaborating: []types.Workspace{},
	}
	if userID == "" {
		return m, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ws, err := src.GetPrivateWorkspaces(gctx, userID)
		if err != nil {
			return fmt.Errorf("private workspaces: %w", err)
		}
		m.Private = nonNil(ws)
		return nil
	})
	g.Go(func() error {
		ws, err := src.GetSharedWorkspaces(gctx, userID)
		if err != nil {
			return fmt.Errorf("shared workspaces: %w", err)
		}
		m.Shared = nonNil(ws)
		return nil
	})
	g.Go(func() error {
		ws, err := src.GetCollaboratingWorkspaces(gctx, userID)
		if err != nil {
			return fmt.Errorf("collaborating workspaces: %w", err)
		}
		m.Collaborating = nonNil(ws)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Memberships{}, err
	}
	return m, nil
}

// All returns private, then shared, then collaborating workspaces.
func (m Memberships) All() []types.Workspace {
	out := make([]types.Workspace, 0, len(m.Private)+len(m.Shared)+len(m.Collaborating))
	out = append(out, m.Private...)
	out = append(out, m.Shared...)
	return append(out, m.Collaborating...)
}

// Find returns the workspace with the given id from any set.
func (m Memberships) Find(id string) (types.Workspace, bool) {
	for _, w := range m.All() {
		if w.ID == id {
			return w, true
		}
	}
	return types.Workspace{}, false
}

// Len is the total number of workspaces across all sets.
func (m Memberships) Len() int {
	return len(m.Private) + len(m.Shared) + len(m.Collaborating)
}

// Seed loads every membership into an empty store as workspaces with no
// folders. It reports whether it dispatched; a store that already holds
// workspaces is left alone.
func Seed(store *state.Store, m Memberships) bool {
	if len(store.State().Workspaces) > 0 {
		return false
	}
	all := m.All()
	ws := make([]state.Workspace, 0, len(all))
	for _, w := range all {
		ws = append(ws, state.NewWorkspace(w))
	}
	store.Dispatch(state.SetWorkspaces{Workspaces: ws})
	return true
}

func nonNil(ws []types.Workspace) []types.Workspace {
	if ws == nil {
		return []types.Workspace{}
	}
	return ws
}

package membership

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cypress/internal/state"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

type stubSource struct {
	private, shared, collaborating []types.Workspace
	err                            error
	calls                          atomic.Int32
}

func (s *stubSource) GetPrivateWorkspaces(context.Context, string) ([]types.Workspace, error) {
	s.calls.Add(1)
	return s.private, nil
}

func (s *stubSource) GetSharedWorkspaces(context.Context, string) ([]types.Workspace, error) {
	s.calls.Add(1)
	return s.shared, s.err
}

func (s *stubSource) GetCollaboratingWorkspaces(context.Context, string) ([]types.Workspace, error) {
	s.calls.Add(1)
	return s.collaborating, nil
}

func TestResolve(t *testing.T) {
	src := &stubSource{
		private:       []types.Workspace{{ID: "p1"}},
		shared:        []types.Workspace{{ID: "s1"}},
		collaborating: []types.Workspace{{ID: "c1"}, {ID: "c2"}},
	}

	m, err := Resolve(context.Background(), src, "u1")

	require.NoError(t, err)
	assert.Equal(t, int32(3), src.calls.Load())
	assert.Equal(t, 4, m.Len())

	ids := make([]string, 0, 4)
	for _, w := range m.All() {
		ids = append(ids, w.ID)
	}
	assert.Equal(t, []string{"p1", "s1", "c1", "c2"}, ids)

	w, ok := m.Find("c2")
	assert.True(t, ok)
	assert.Equal(t, "c2", w.ID)
	_, ok = m.Find("zz")
	assert.False(t, ok)
}

func TestResolveEmptyUser(t *testing.T) {
	src := &stubSource{}

	m, err := Resolve(context.Background(), src, "")

	require.NoError(t, err)
	assert.Equal(t, int32(0), src.calls.Load())
	assert.NotNil(t, m.Private)
	assert.Empty(t, m.All())
}

func TestResolveNilResultsBecomeEmpty(t *testing.T) {
	m, err := Resolve(context.Background(), &stubSource{}, "u1")

	require.NoError(t, err)
	assert.NotNil(t, m.Private)
	assert.NotNil(t, m.Shared)
	assert.NotNil(t, m.Collaborating)
}

func TestResolveError(t *testing.T) {
	boom := errors.New("boom")

	_, err := Resolve(context.Background(), &stubSource{err: boom}, "u1")

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "shared workspaces")
}

func TestSeed(t *testing.T) {
	store := state.NewStore(nil)
	m := Memberships{
		Private:       []types.Workspace{{ID: "p1"}},
		Collaborating: []types.Workspace{{ID: "c1"}},
	}

	assert.True(t, Seed(store, m))
	ws := store.State().Workspaces
	require.Len(t, ws, 2)
	assert.Equal(t, "p1", ws[0].ID)
	assert.Equal(t, "c1", ws[1].ID)
	assert.NotNil(t, ws[0].Folders)

	assert.False(t, Seed(store, Memberships{Private: []types.Workspace{{ID: "other"}}}), "a populated store is not reseeded")
	assert.Len(t, store.State().Workspaces, 2)
}

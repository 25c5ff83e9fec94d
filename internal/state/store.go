package state

import (
	"io"
	"log/slog"
	"sync"

	"github.com/mesh-intelligence/cypress/pkg/types"
)

// Store serializes dispatches through Reduce and fans the resulting state
// out to subscribers. Subscribers run outside the store lock, in
// subscription order, on the dispatching goroutine.
type Store struct {
	mu     sync.RWMutex
	state  State
	subs   map[int]func(State)
	nextID int
	logger *slog.Logger
}

// NewStore returns a store holding the empty state. A nil logger discards.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		state:  State{Workspaces: []Workspace{}},
		subs:   make(map[int]func(State)),
		logger: logger,
	}
}

// Dispatch applies a and notifies subscribers with the new state.
func (s *Store) Dispatch(a Action) {
	s.DispatchIf(func() bool { return true }, a)
}

// DispatchIf applies a only if ok reports true. ok runs under the store's
// write lock, so no other dispatch lands between the check and the apply;
// it must not call back into the store. Subscribers are notified only when
// a was applied.
func (s *Store) DispatchIf(ok func() bool, a Action) bool {
	s.mu.Lock()
	if !ok() {
		s.mu.Unlock()
		return false
	}
	s.state = Reduce(s.state, a)
	next := s.state
	subs := s.subscribers()
	s.mu.Unlock()

	s.logger.Debug("dispatch", "action", a.Kind(), "workspaces", len(next.Workspaces))
	for _, fn := range subs {
		fn(next)
	}
	return true
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn to receive every state after a dispatch. The
// returned func removes the subscription; calling it twice is harmless.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) subscribers() []func(State) {
	out := make([]func(State), 0, len(s.subs))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.subs[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

// FindWorkspace looks up a workspace in the current state.
func (s *Store) FindWorkspace(id string) (Workspace, bool) {
	return s.State().Workspace(id)
}

// FindFolder looks up a folder in the current state.
func (s *Store) FindFolder(workspaceID, folderID string) (Folder, bool) {
	return s.State().Folder(workspaceID, folderID)
}

// FindFile looks up a file in the current state.
func (s *Store) FindFile(workspaceID, folderID, fileID string) (types.File, bool) {
	return s.State().File(workspaceID, folderID, fileID)
}

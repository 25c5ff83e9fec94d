// Package session binds one user's tree store to the route they are viewing
// and hydrates folder contents as the route changes.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/mesh-intelligence/cypress/internal/route"
	"github.com/mesh-intelligence/cypress/internal/state"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

// FileSource loads the files of one folder.
type FileSource interface {
	GetFiles(ctx context.Context, folderID string) ([]types.File, error)
}

// Session owns a Store and the identity resolved from the current route.
// A fetch started for one folder is dropped if the session has moved to a
// different workspace or folder by the time it returns.
type Session struct {
	store    *state.Store
	resolver route.Resolver
	source   FileSource
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	current    route.Descriptor
	generation uint64
}

// New returns a session over store that hydrates folders from source. A nil
// store gets a fresh one; a nil logger discards.
func New(source FileSource, store *state.Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if store == nil {
		store = state.NewStore(logger)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		store:  store,
		source: source,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Store returns the session's tree store.
func (s *Session) Store() *state.Store { return s.store }

// Route returns the identity resolved by the last Navigate.
func (s *Session) Route() route.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Navigate resolves path and, when it selects a workspace and folder that
// differ from the previous route, loads that folder's files in the
// background. The fetch is cancelled when ctx or the session is done.
func (s *Session) Navigate(ctx context.Context, path string) route.Descriptor {
	d := s.resolver.Resolve(path)

	s.mu.Lock()
	prev := s.current
	s.current = d
	changed := prev.WorkspaceID != d.WorkspaceID || prev.FolderID != d.FolderID
	if changed {
		s.generation++
	}
	gen := s.generation
	s.mu.Unlock()

	if changed && d.HasFolder() && s.source != nil {
		s.fetch(ctx, gen, d.WorkspaceID, d.FolderID)
	}
	return d
}

// Refresh reloads the files of the current folder, if any.
func (s *Session) Refresh(ctx context.Context) {
	s.mu.Lock()
	d := s.current
	gen := s.generation
	s.mu.Unlock()

	if d.HasFolder() && s.source != nil {
		s.fetch(ctx, gen, d.WorkspaceID, d.FolderID)
	}
}

func (s *Session) fetch(ctx context.Context, gen uint64, workspaceID, folderID string) {
	fctx, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer stop()

		files, err := s.source.GetFiles(fctx, folderID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				s.logger.Debug("folder fetch cancelled", "workspace", workspaceID, "folder", folderID)
				return
			}
			s.logger.Warn("loading folder files", "workspace", workspaceID, "folder", folderID, "error", err)
			return
		}
		// The route check and the write are one store step: once Navigate
		// returns, a fetch for the route it replaced can no longer land.
		current := func() bool { return s.isCurrent(gen, workspaceID, folderID) }
		if !s.store.DispatchIf(current, state.SetFiles{WorkspaceID: workspaceID, FolderID: folderID, Files: files}) {
			s.logger.Debug("discarding stale folder fetch", "workspace", workspaceID, "folder", folderID)
		}
	}()
}

// isCurrent runs under the store lock. s.mu is never held while calling into
// the store, so the lock order is store then session.
func (s *Session) isCurrent(gen uint64, workspaceID, folderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation && s.current.WorkspaceID == workspaceID && s.current.FolderID == folderID
}

// Wait blocks until every in-flight fetch has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close cancels in-flight fetches and waits for them to return.
func (s *Session) Close() {
	s.cancel()
	s.wg.Wait()
}

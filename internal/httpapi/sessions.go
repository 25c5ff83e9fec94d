package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mesh-intelligence/cypress/internal/dashboard"
	"github.com/mesh-intelligence/cypress/internal/membership"
	"github.com/mesh-intelligence/cypress/internal/session"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

// SessionCookie names the cookie carrying the session token.
const SessionCookie = "cypress-session"

// userSession is everything one signed-in browser owns: the user, their
// tree store bound to the route they are viewing, and the dashboard
// operations over that store.
type userSession struct {
	token   string
	user    types.User
	session *session.Session
	service *dashboard.Service

	seedMu sync.Mutex
	seeded bool
}

// seed loads the user's workspace memberships into the store once.
func (u *userSession) seed(ctx context.Context, src membership.Source) error {
	u.seedMu.Lock()
	defer u.seedMu.Unlock()
	if u.seeded {
		return nil
	}
	m, err := membership.Resolve(ctx, src, u.user.ID)
	if err != nil {
		return err
	}
	membership.Seed(u.session.Store(), m)
	u.seeded = true
	return nil
}

// sessionTable maps opaque tokens to signed-in sessions and one-time
// confirmation codes to the users they confirm. Everything lives in memory
// and is lost on restart.
type sessionTable struct {
	gateway types.Gateway
	logger  *slog.Logger

	mu      sync.Mutex
	byToken map[string]*userSession
	codes   map[string]string
}

func newSessionTable(gateway types.Gateway, logger *slog.Logger) *sessionTable {
	return &sessionTable{
		gateway: gateway,
		logger:  logger,
		byToken: map[string]*userSession{},
		codes:   map[string]string{},
	}
}

// open starts a session for user and returns it with its token.
func (t *sessionTable) open(user types.User) (*userSession, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	sess := session.New(t.gateway, nil, t.logger.With("user", user.ID))
	us := &userSession{
		token:   token,
		user:    user,
		session: sess,
		service: dashboard.NewService(t.gateway, sess.Store(), t.logger),
	}
	t.mu.Lock()
	t.byToken[token] = us
	t.mu.Unlock()
	return us, nil
}

func (t *sessionTable) lookup(token string) (*userSession, bool) {
	if token == "" {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	us, ok := t.byToken[token]
	return us, ok
}

// close ends the session for token. Unknown tokens are ignored.
func (t *sessionTable) close(token string) {
	t.mu.Lock()
	us, ok := t.byToken[token]
	delete(t.byToken, token)
	t.mu.Unlock()
	if ok {
		us.session.Close()
	}
}

// issueCode records a one-time code that signs userID in when redeemed.
func (t *sessionTable) issueCode(userID string) (string, error) {
	code, err := newToken()
	if err != nil {
		return "", err
	}
	t.mu.Lock()
	t.codes[code] = userID
	t.mu.Unlock()
	return code, nil
}

// redeem consumes code and returns the user id it was issued for.
func (t *sessionTable) redeem(code string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	userID, ok := t.codes[code]
	delete(t.codes, code)
	return userID, ok
}

// closeAll ends every session.
func (t *sessionTable) closeAll() {
	t.mu.Lock()
	all := t.byToken
	t.byToken = map[string]*userSession{}
	t.mu.Unlock()
	for _, us := range all {
		us.session.Close()
	}
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/cypress/pkg/types"
)

func scanUser(r rowScanner) (types.User, error) {
	var (
		u       types.User
		created sql.NullString
	)
	if err := r.Scan(&u.ID, &u.Email, &u.FullName, &u.AvatarURL, &created); err != nil {
		return types.User{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return types.User{}, err
	}
	u.CreatedAt = t
	return u, nil
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...any) ([]types.User, error) {
	db, ctx, cancel, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	rows, err := db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CreateUser inserts u. Emails are unique and compared case-insensitively.
func (s *Store) CreateUser(ctx context.Context, u types.User) error {
	if err := checkID(u.ID); err != nil {
		return err
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return fmt.Errorf("email %q: %w", u.Email, types.ErrInvalidData)
	}
	if u.CreatedAt == nil {
		t := now()
		u.CreatedAt = &t
	}

	db, ctx, cancel, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	dup, err := s.exists(ctx, tx, `SELECT 1 FROM users WHERE id = ? OR email = ?`, u.ID, u.Email)
	if err != nil {
		return fmt.Errorf("checking user: %w", err)
	}
	if dup {
		return fmt.Errorf("user %s: %w", u.Email, types.ErrDuplicate)
	}
	_, err = tx.ExecContext(ctx, s.q(`INSERT INTO users (`+columnList("", userColumns)+`) VALUES (?, ?, ?, ?, ?)`),
		u.ID, u.Email, u.FullName, u.AvatarURL, formatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return tx.Commit()
}

func (s *Store) GetUser(ctx context.Context, userID string) (*types.User, error) {
	if err := checkID(userID); err != nil {
		return nil, err
	}
	us, err := s.queryUsers(ctx, `SELECT `+columnList("", userColumns)+` FROM users WHERE id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	if len(us) == 0 {
		return nil, fmt.Errorf("user %s: %w", userID, types.ErrNotFound)
	}
	return &us[0], nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("email: %w", types.ErrInvalidData)
	}
	us, err := s.queryUsers(ctx, `SELECT `+columnList("", userColumns)+` FROM users WHERE email = ?`, email)
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	if len(us) == 0 {
		return nil, fmt.Errorf("user %s: %w", email, types.ErrNotFound)
	}
	return &us[0], nil
}

// GetUsersFromSearch returns users whose email starts with prefix, ordered
// by email. An empty prefix matches nobody.
func (s *Store) GetUsersFromSearch(ctx context.Context, prefix string) ([]types.User, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return []types.User{}, nil
	}
	us, err := s.queryUsers(ctx, `SELECT `+columnList("", userColumns)+` FROM users
WHERE email LIKE ? ESCAPE '\' ORDER BY email`, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	return us, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// AddCollaborators links users to the workspace. Existing links are kept.
func (s *Store) AddCollaborators(ctx context.Context, users []types.User, workspaceID string) error {
	if err := checkID(workspaceID); err != nil {
		return err
	}
	for _, u := range users {
		if err := checkID(u.ID); err != nil {
			return fmt.Errorf("collaborator: %w", err)
		}
	}
	db, ctx, cancel, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	found, err := s.exists(ctx, tx, `SELECT 1 FROM workspaces WHERE id = ?`, workspaceID)
	if err != nil {
		return fmt.Errorf("checking workspace: %w", err)
	}
	if !found {
		return fmt.Errorf("workspace %s: %w", workspaceID, types.ErrNotFound)
	}
	created := formatTime(ptrTime(now()))
	for _, u := range users {
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO collaborators (workspace_id, user_id, created_at)
VALUES (?, ?, ?) ON CONFLICT (workspace_id, user_id) DO NOTHING`), workspaceID, u.ID, created)
		if err != nil {
			return fmt.Errorf("adding collaborator %s: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) RemoveCollaborators(ctx context.Context, users []types.User, workspaceID string) error {
	if err := checkID(workspaceID); err != nil {
		return err
	}
	db, ctx, cancel, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, u := range users {
		_, err := tx.ExecContext(ctx, s.q(`DELETE FROM collaborators WHERE workspace_id = ? AND user_id = ?`), workspaceID, u.ID)
		if err != nil {
			return fmt.Errorf("removing collaborator %s: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

// GetCollaborators returns the users linked to the workspace, by email.
func (s *Store) GetCollaborators(ctx context.Context, workspaceID string) ([]types.User, error) {
	if err := checkID(workspaceID); err != nil {
		return nil, err
	}
	us, err := s.queryUsers(ctx, `SELECT `+columnList("u", userColumns)+` FROM users u
JOIN collaborators c ON c.user_id = u.id
WHERE c.workspace_id = ? ORDER BY u.email`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("querying collaborators: %w", err)
	}
	return us, nil
}

// GetUserSubscriptionStatus returns the user's subscription, or nil when the
// user has none.
func (s *Store) GetUserSubscriptionStatus(ctx context.Context, userID string) (*types.Subscription, error) {
	if err := checkID(userID); err != nil {
		return nil, err
	}
	db, ctx, cancel, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var (
		sub     types.Subscription
		created sql.NullString
	)
	err = db.QueryRowContext(ctx, s.q(`SELECT `+columnList("", subscriptionColumns)+` FROM subscriptions WHERE user_id = ?`), userID).
		Scan(&sub.ID, &sub.UserID, &sub.Status, &created)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying subscription: %w", err)
	}
	if sub.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertSubscription stores sub as the user's only subscription.
func (s *Store) UpsertSubscription(ctx context.Context, sub types.Subscription) error {
	if err := checkID(sub.ID); err != nil {
		return err
	}
	if err := checkID(sub.UserID); err != nil {
		return fmt.Errorf("subscription user: %w", err)
	}
	if sub.Status == "" {
		return fmt.Errorf("subscription status: %w", types.ErrInvalidData)
	}
	if sub.CreatedAt == nil {
		sub.CreatedAt = ptrTime(now())
	}
	db, ctx, cancel, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	_, err = db.ExecContext(ctx, s.q(`INSERT INTO subscriptions (id, user_id, status, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET id = excluded.id, status = excluded.status, created_at = excluded.created_at`),
		sub.ID, sub.UserID, sub.Status, formatTime(sub.CreatedAt))
	if err != nil {
		return fmt.Errorf("upserting subscription: %w", err)
	}
	return nil
}

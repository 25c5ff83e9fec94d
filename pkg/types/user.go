// User, collaborator and subscription entities.
package types

import "time"

// User is an account known to the authentication provider.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"fullName"`
	AvatarURL string     `json:"avatarUrl"`
	CreatedAt *time.Time `json:"createdAt"`
}

// Collaborator links a user to a workspace they do not own.
type Collaborator struct {
	WorkspaceID string     `json:"workspaceId"`
	UserID      string     `json:"userId"`
	CreatedAt   *time.Time `json:"createdAt"`
}

// Subscription status values. Only active counts as paid.
const (
	SubscriptionActive     = "active"
	SubscriptionTrialing   = "trialing"
	SubscriptionCanceled   = "canceled"
	SubscriptionIncomplete = "incomplete"
	SubscriptionPastDue    = "past_due"
	SubscriptionUnpaid     = "unpaid"
)

// MaxFoldersFreePlan is the folder limit per workspace on the free tier.
const MaxFoldersFreePlan = 3

// Subscription is a user's billing status.
type Subscription struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Status    string     `json:"status"`
	CreatedAt *time.Time `json:"createdAt"`
}

// Paid reports whether s grants the paid tier. A nil subscription is the
// free tier.
func (s *Subscription) Paid() bool {
	if s == nil {
		return false
	}
	return s.Status == SubscriptionActive
}

package session

import (
	"context"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
)

// IdentityProvider authenticates visitors and notifies listeners of identity
// changes in emission order.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (*models.AuthSession, error)
	SignUp(ctx context.Context, email, password, displayName string) (*models.AuthSession, error)
	SignOut(ctx context.Context) error
	// CurrentSession returns the stored session, or nil if there is none.
	CurrentSession(ctx context.Context) (*models.AuthSession, error)
	// Subscribe registers fn for every identity change and returns its cancel func.
	Subscribe(fn func(models.IdentityEvent)) (unsubscribe func())
}

// Client is the identity provider bound to one browser session.
type Client interface {
	IdentityProvider
	// RefreshToken is persisted in the browser cookie between requests.
	RefreshToken() string
	// RefreshIfNeeded rotates tokens close to expiry.
	RefreshIfNeeded(ctx context.Context) error
}

// RoleResolver looks up the role of a user. A user without a row resolves to
// models.RoleNone and a nil error.
type RoleResolver interface {
	SelectRoleByUser(ctx context.Context, userID string) (models.Role, error)
}

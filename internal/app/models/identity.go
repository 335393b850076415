package models

import "time"

// Identity is the read-only view of the signed in user handed out by the
// identity provider.
type Identity struct {
	UserID string
	Email  string
}

// AuthSession is an authenticated session issued by the identity provider.
type AuthSession struct {
	Identity     Identity
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// IdentityEventKind names the provider notifications.
type IdentityEventKind int

const (
	IdentitySignedIn IdentityEventKind = iota
	IdentitySignedOut
	IdentityTokenRefreshed
	IdentityInitialSession
)

func (k IdentityEventKind) String() string {
	switch k {
	case IdentitySignedIn:
		return "SIGNED_IN"
	case IdentitySignedOut:
		return "SIGNED_OUT"
	case IdentityTokenRefreshed:
		return "TOKEN_REFRESHED"
	case IdentityInitialSession:
		return "INITIAL_SESSION"
	}
	return "UNKNOWN"
}

// IdentityEvent is delivered to provider listeners. Session is nil when the
// visitor is signed out.
type IdentityEvent struct {
	Kind    IdentityEventKind
	Session *AuthSession
}

// Identity returns a copy of the event's identity, or nil if absent.
func (e IdentityEvent) Identity() *Identity {
	if e.Session == nil {
		return nil
	}
	id := e.Session.Identity
	return &id
}

// UserAuth is the credential row of a user.
type UserAuth struct {
	ID        string
	Email     string
	Password  string
	CreatedAt time.Time
}

// Profile is the public face of a user.
type Profile struct {
	UserID      string
	DisplayName string
	CreatedAt   time.Time
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
	"github.com/FACorreiaa/citcs-portal/internal/app/session"
)

var _ session.Client = (*Client)(nil)

// defaultRefreshWindow is how long before access token expiry RefreshIfNeeded rotates.
const defaultRefreshWindow = 2 * time.Minute

// Client is the identity provider as seen by one browser session. It holds the
// session tokens and notifies listeners synchronously and in order.
type Client struct {
	svc    AuthService
	logger *zap.Logger
	now    func() time.Time
	window time.Duration

	mu           sync.Mutex
	current      *models.AuthSession
	refreshToken string
	listeners    map[uint64]func(models.IdentityEvent)
	nextID       uint64
}

// NewClient binds svc to a browser session that may already carry a refresh token.
func NewClient(svc AuthService, refreshToken string, logger *zap.Logger) *Client {
	return &Client{
		svc:          svc,
		logger:       logger,
		now:          time.Now,
		window:       defaultRefreshWindow,
		refreshToken: refreshToken,
		listeners:    make(map[uint64]func(models.IdentityEvent)),
	}
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*models.AuthSession, error) {
	sess, err := c.svc.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	previous := c.refreshToken
	c.current = sess
	c.refreshToken = sess.RefreshToken
	c.emitLocked(models.IdentitySignedIn, sess)
	c.mu.Unlock()

	if previous != "" && previous != sess.RefreshToken {
		if err := c.svc.Logout(ctx, previous); err != nil {
			c.logger.Warn("Failed to revoke replaced refresh token", zap.Error(err))
		}
	}
	return copySession(sess), nil
}

// SignUp registers the account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (*models.AuthSession, error) {
	if _, err := c.svc.Register(ctx, email, password, displayName); err != nil {
		return nil, err
	}
	return c.SignIn(ctx, email, password)
}

// SignOut clears the local session first so listeners see the sign-out even
// when revoking the refresh token fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := c.refreshToken
	c.current = nil
	c.refreshToken = ""
	c.emitLocked(models.IdentitySignedOut, nil)
	c.mu.Unlock()

	if token == "" {
		return nil
	}
	if err := c.svc.Logout(ctx, token); err != nil {
		c.logger.Warn("Refresh token revocation failed during sign out", zap.Error(err))
	}
	return nil
}

func (c *Client) CurrentSession(ctx context.Context) (*models.AuthSession, error) {
	c.mu.Lock()
	if c.current != nil {
		sess := copySession(c.current)
		c.mu.Unlock()
		return sess, nil
	}
	token := c.refreshToken
	c.mu.Unlock()

	if token == "" {
		return nil, nil
	}

	sess, err := c.svc.ResumeSession(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrUnauthenticated) {
			c.mu.Lock()
			if c.refreshToken == token {
				c.refreshToken = ""
			}
			c.mu.Unlock()
			return nil, nil
		}
		return nil, fmt.Errorf("resume session: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refreshToken != token {
		// a sign-in or sign-out won the race; report what is current now
		return copySession(c.current), nil
	}
	c.current = sess
	return copySession(sess), nil
}

func (c *Client) RefreshIfNeeded(ctx context.Context) error {
	c.mu.Lock()
	cur := c.current
	token := c.refreshToken
	c.mu.Unlock()

	if cur == nil || token == "" || c.now().Add(c.window).Before(cur.ExpiresAt) {
		return nil
	}

	sess, err := c.svc.RefreshSession(ctx, token)
	if err != nil {
		if !errors.Is(err, models.ErrUnauthenticated) {
			return fmt.Errorf("refresh session: %w", err)
		}
		c.mu.Lock()
		if c.refreshToken == token {
			c.current = nil
			c.refreshToken = ""
			c.emitLocked(models.IdentitySignedOut, nil)
		}
		c.mu.Unlock()
		return nil
	}

	c.mu.Lock()
	if c.refreshToken == token {
		c.current = sess
		c.refreshToken = sess.RefreshToken
		c.emitLocked(models.IdentityTokenRefreshed, sess)
	}
	c.mu.Unlock()
	return nil
}

func (c *Client) RefreshToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshToken
}

func (c *Client) Subscribe(fn func(models.IdentityEvent)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// emitLocked must be called with mu held so notifications keep emission order.
func (c *Client) emitLocked(kind models.IdentityEventKind, sess *models.AuthSession) {
	for _, fn := range c.listeners {
		fn(models.IdentityEvent{Kind: kind, Session: copySession(sess)})
	}
}

func copySession(sess *models.AuthSession) *models.AuthSession {
	if sess == nil {
		return nil
	}
	cp := *sess
	return &cp
}

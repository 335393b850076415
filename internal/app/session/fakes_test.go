package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
)

// fakeProvider emits synchronously, like the real client.
type fakeProvider struct {
	mu        sync.Mutex
	listeners map[int]func(models.IdentityEvent)
	next      int

	initial    *models.AuthSession
	initialErr error
	gate       chan struct{}
	token      string
	signOutErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{listeners: make(map[int]func(models.IdentityEvent))}
}

func authSession(userID string) *models.AuthSession {
	return &models.AuthSession{
		Identity:     models.Identity{UserID: userID, Email: userID + "@citcs.edu"},
		RefreshToken: "rt-" + userID,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func (p *fakeProvider) SignIn(_ context.Context, email, _ string) (*models.AuthSession, error) {
	s := authSession(strings.Split(email, "@")[0])
	p.mu.Lock()
	p.token = s.RefreshToken
	p.mu.Unlock()
	p.emit(models.IdentityEvent{Kind: models.IdentitySignedIn, Session: s})
	return s, nil
}

func (p *fakeProvider) SignUp(ctx context.Context, email, password, _ string) (*models.AuthSession, error) {
	return p.SignIn(ctx, email, password)
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
	p.emit(models.IdentityEvent{Kind: models.IdentitySignedOut})
	return p.signOutErr
}

func (p *fakeProvider) CurrentSession(ctx context.Context) (*models.AuthSession, error) {
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.initial, p.initialErr
}

func (p *fakeProvider) Subscribe(fn func(models.IdentityEvent)) func() {
	p.mu.Lock()
	id := p.next
	p.next++
	p.listeners[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *fakeProvider) RefreshToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

func (p *fakeProvider) RefreshIfNeeded(context.Context) error { return nil }

func (p *fakeProvider) emit(ev models.IdentityEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, fn := range p.listeners {
		fn(ev)
	}
}

func (p *fakeProvider) signIn(userID string) {
	p.emit(models.IdentityEvent{Kind: models.IdentitySignedIn, Session: authSession(userID)})
}

func (p *fakeProvider) signOut() {
	p.emit(models.IdentityEvent{Kind: models.IdentitySignedOut})
}

type roleReply struct {
	role models.Role
	err  error
}

type lookupCall struct {
	userID string
	reply  chan roleReply
}

func (c lookupCall) answer(role models.Role, err error) {
	c.reply <- roleReply{role: role, err: err}
}

// gatedRoles hands every lookup to the test, which answers in any order.
type gatedRoles struct {
	calls chan lookupCall
}

func newGatedRoles() *gatedRoles {
	return &gatedRoles{calls: make(chan lookupCall, 16)}
}

func (g *gatedRoles) SelectRoleByUser(ctx context.Context, userID string) (models.Role, error) {
	call := lookupCall{userID: userID, reply: make(chan roleReply, 1)}
	select {
	case g.calls <- call:
	case <-ctx.Done():
		return models.RoleNone, ctx.Err()
	}
	select {
	case r := <-call.reply:
		return r.role, r.err
	case <-ctx.Done():
		return models.RoleNone, ctx.Err()
	}
}

func (g *gatedRoles) next(t *testing.T) lookupCall {
	t.Helper()
	select {
	case call := <-g.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("no role lookup was issued")
		return lookupCall{}
	}
}

// staticRoles answers immediately from a mutable table.
type staticRoles struct {
	mu    sync.Mutex
	roles map[string]models.Role
}

func (s *staticRoles) set(userID string, role models.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roles == nil {
		s.roles = make(map[string]models.Role)
	}
	s.roles[userID] = role
}

func (s *staticRoles) SelectRoleByUser(_ context.Context, userID string) (models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roles[userID], nil
}

type history struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (h *history) record(s Snapshot) {
	h.mu.Lock()
	h.snaps = append(h.snaps, s)
	h.mu.Unlock()
}

func (h *history) sawRole(userID string, role models.Role) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.snaps {
		if s.User != nil && s.User.UserID == userID && s.Role == role && !s.Loading {
			return true
		}
	}
	return false
}

func awaitSnapshot(t *testing.T, m *Manager, pred func(Snapshot) bool) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := m.Await(ctx, pred)
	require.NoError(t, err, "last snapshot: %+v", s)
	return s
}

func settledAs(userID string, role models.Role) func(Snapshot) bool {
	return func(s Snapshot) bool {
		if s.Loading || s.Role != role {
			return false
		}
		if userID == "" {
			return s.User == nil
		}
		return s.User != nil && s.User.UserID == userID
	}
}

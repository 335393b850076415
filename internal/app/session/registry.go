package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/observability/metrics"
	"github.com/FACorreiaa/citcs-portal/internal/pkg/events"
)

var ErrUnknownSession = errors.New("unknown browser session")

// Entry is the server side state of one browser session.
type Entry struct {
	ID      string
	Client  Client
	Manager *Manager
}

// ClientFactory binds a new identity provider client to a browser session,
// seeded with the refresh token found in its cookie.
type ClientFactory func(refreshToken string) Client

// Registry keeps one Entry per browser session and stops idle ones. The cache
// drives idle expiry; live tracks every started entry until it is stopped,
// since the cache hides expired items before its janitor evicts them.
type Registry struct {
	entries     *cache.Cache
	mu          sync.Mutex
	live        map[string]*Entry
	newClient   ClientFactory
	roles       RoleResolver
	logger      *zap.Logger
	unsubscribe func()
}

func NewRegistry(newClient ClientFactory, roles RoleResolver, broadcaster events.Broadcaster, idleTTL time.Duration, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		entries:   cache.New(idleTTL, idleTTL/2),
		live:      make(map[string]*Entry),
		newClient: newClient,
		roles:     roles,
		logger:    logger,
	}
	r.entries.OnEvicted(func(id string, v interface{}) {
		if e, ok := v.(*Entry); ok {
			r.logger.Debug("Browser session evicted", zap.String("session_id", id))
			r.retire(id, e)
		}
	})

	unsubscribe, err := broadcaster.SubscribeRoleChanges(r.onRoleChange)
	if err != nil {
		return nil, fmt.Errorf("subscribe to role changes: %w", err)
	}
	r.unsubscribe = unsubscribe
	return r, nil
}

// Acquire returns the entry for id, creating and starting it on first use.
// Every call resets the idle timer.
func (r *Registry) Acquire(id, refreshToken string) (*Entry, error) {
	if v, ok := r.entries.Get(id); ok {
		e := v.(*Entry)
		r.entries.SetDefault(id, e)
		return e, nil
	}
	// expired but not yet swept; Add would overwrite it without eviction
	r.mu.Lock()
	stale := r.live[id]
	r.mu.Unlock()
	if stale != nil {
		r.retire(id, stale)
	}

	client := r.newClient(refreshToken)
	e := &Entry{
		ID:      id,
		Client:  client,
		Manager: NewManager(client, r.roles, r.logger.With(zap.String("session_id", id))),
	}

	if err := r.entries.Add(id, e, cache.DefaultExpiration); err != nil {
		// another request for the same browser session got there first
		e.Manager.Stop()
		if v, ok := r.entries.Get(id); ok {
			return v.(*Entry), nil
		}
		return nil, fmt.Errorf("register browser session: %w", err)
	}

	if err := e.Manager.Start(); err != nil {
		r.entries.Delete(id)
		return nil, fmt.Errorf("start session manager: %w", err)
	}
	r.mu.Lock()
	r.live[id] = e
	r.mu.Unlock()
	metrics.Get().ActiveSessionsGauge.Add(context.Background(), 1)
	return e, nil
}

// Rotate moves the entry for id to a freshly minted id and returns it. The
// old id no longer resolves, so a cookie captured before sign in cannot reach
// the signed in session.
func (r *Registry) Rotate(id string) (*Entry, error) {
	r.mu.Lock()
	old, ok := r.live[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("rotate %q: %w", id, ErrUnknownSession)
	}
	e := &Entry{ID: uuid.NewString(), Client: old.Client, Manager: old.Manager}
	delete(r.live, id)
	r.live[e.ID] = e
	r.mu.Unlock()

	// old is no longer live, so its eviction callback leaves the manager running
	r.entries.Delete(id)
	r.entries.SetDefault(e.ID, e)
	return e, nil
}

// Release drops the entry for id and stops its manager.
func (r *Registry) Release(id string) {
	r.entries.Delete(id)
}

// Len is the number of live browser sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// RefreshUser re-resolves the role on every live session of userID.
func (r *Registry) RefreshUser(userID string) int {
	refreshed := 0
	for _, e := range r.snapshotLive() {
		if s := e.Manager.Snapshot(); s.User != nil && s.User.UserID == userID {
			e.Manager.Refresh()
			refreshed++
		}
	}
	return refreshed
}

func (r *Registry) onRoleChange(change events.RoleChange) {
	n := r.RefreshUser(change.UserID)
	r.logger.Debug("Role change received",
		zap.String("userID", change.UserID),
		zap.Int("sessions_refreshed", n))
}

// Close stops every manager and the broadcast subscription.
func (r *Registry) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	for id, e := range r.snapshotLive() {
		r.retire(id, e)
	}
	r.entries.Flush()
}

func (r *Registry) snapshotLive() map[string]*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	live := make(map[string]*Entry, len(r.live))
	for id, e := range r.live {
		live[id] = e
	}
	return live
}

// retire stops e if it is still the live entry for id. It is safe to call
// more than once for the same entry.
func (r *Registry) retire(id string, e *Entry) {
	r.mu.Lock()
	if r.live[id] != e {
		r.mu.Unlock()
		return
	}
	delete(r.live, id)
	r.mu.Unlock()

	e.Manager.Stop()
	metrics.Get().ActiveSessionsGauge.Add(context.Background(), -1)
}

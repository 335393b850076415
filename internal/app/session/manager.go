// Package session keeps each visitor's identity and role consistent across
// requests. A Manager owns one snapshot per browser session; the Registry maps
// browser sessions to managers.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
	"github.com/FACorreiaa/citcs-portal/internal/app/observability/metrics"
)

var ErrAlreadyStarted = errors.New("session manager already started")

const (
	defaultLookupTimeout = 10 * time.Second
	eventBuffer          = 32
)

// Snapshot is an immutable view of who the visitor is and what role they hold.
// Loading is true while the initial session check or a role lookup is pending.
type Snapshot struct {
	User    *models.Identity
	Role    models.Role
	Loading bool
}

func (s Snapshot) Authenticated() bool {
	return s.User != nil
}

// IsAdmin is true iff the role is admin or super_admin.
func (s Snapshot) IsAdmin() bool {
	return s.User != nil && s.Role.HasAdminAccess()
}

func (s Snapshot) IsSuperAdmin() bool {
	return s.User != nil && s.Role == models.RoleSuperAdmin
}

func (s Snapshot) Email() string {
	if s.User == nil {
		return ""
	}
	return s.User.Email
}

type identityChange struct {
	identity *models.Identity
	initial  bool
	refresh  bool
	// applied is closed once every change queued before it has been handled
	applied chan struct{}
}

type roleResult struct {
	generation uint64
	userID     string
	role       models.Role
	err        error
	took       time.Duration
}

// Manager resolves the role of the current identity and publishes snapshots.
// All snapshot transitions happen on the manager's event loop goroutine.
type Manager struct {
	provider IdentityProvider
	roles    RoleResolver
	logger   *zap.Logger

	lookupTimeout time.Duration

	snap    atomic.Pointer[Snapshot]
	events  chan identityChange
	results chan roleResult

	obsMu     sync.Mutex
	observers map[uint64]func(Snapshot)
	nextObs   uint64

	started     atomic.Bool
	stopOnce    sync.Once
	cancel      context.CancelFunc
	ctx         context.Context
	done        chan struct{}
	unsubscribe func()

	// owned by the event loop
	generation uint64
	current    *models.Identity
}

func NewManager(provider IdentityProvider, roles RoleResolver, logger *zap.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		provider:      provider,
		roles:         roles,
		logger:        logger,
		lookupTimeout: defaultLookupTimeout,
		events:        make(chan identityChange, eventBuffer),
		results:       make(chan roleResult, eventBuffer),
		observers:     make(map[uint64]func(Snapshot)),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	m.snap.Store(&Snapshot{Loading: true})
	return m
}

// Start subscribes to the provider and then checks for a stored session. Both
// paths feed the same ordered event loop, so a notification that lands while
// the initial check is in flight supersedes it.
func (m *Manager) Start() error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	m.unsubscribe = m.provider.Subscribe(func(ev models.IdentityEvent) {
		m.enqueue(identityChange{identity: ev.Identity()})
	})

	go m.run()
	go m.loadInitial()
	return nil
}

func (m *Manager) loadInitial() {
	sess, err := m.provider.CurrentSession(m.ctx)
	if err != nil {
		m.logger.Warn("Initial session check failed, treating visitor as signed out", zap.Error(err))
		sess = nil
	}
	change := identityChange{initial: true}
	if sess != nil {
		id := sess.Identity
		change.identity = &id
	}
	m.enqueue(change)
}

func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	_, err := m.provider.SignIn(ctx, email, password)
	return err
}

func (m *Manager) SignUp(ctx context.Context, email, password, displayName string) error {
	_, err := m.provider.SignUp(ctx, email, password, displayName)
	return err
}

func (m *Manager) SignOut(ctx context.Context) error {
	return m.provider.SignOut(ctx)
}

// Settle waits until every identity change queued so far has been applied and
// the resulting role lookup has finished. On timeout it returns the latest
// snapshot with ctx's error.
func (m *Manager) Settle(ctx context.Context) (Snapshot, error) {
	applied := make(chan struct{})
	select {
	case m.events <- identityChange{applied: applied}:
	case <-ctx.Done():
		return m.Snapshot(), ctx.Err()
	case <-m.ctx.Done():
		return m.Snapshot(), m.ctx.Err()
	}
	select {
	case <-applied:
	case <-ctx.Done():
		return m.Snapshot(), ctx.Err()
	case <-m.ctx.Done():
		return m.Snapshot(), m.ctx.Err()
	}
	return m.Await(ctx, func(s Snapshot) bool { return !s.Loading })
}

// Refresh re-resolves the role of the current identity. It is a no-op when
// nobody is signed in.
func (m *Manager) Refresh() {
	m.enqueue(identityChange{refresh: true})
}

// Snapshot returns the latest published snapshot.
func (m *Manager) Snapshot() Snapshot {
	return *m.snap.Load()
}

// Subscribe registers fn for every published snapshot. fn runs on the event
// loop and must not block.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.obsMu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	m.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.obsMu.Lock()
			delete(m.observers, id)
			m.obsMu.Unlock()
		})
	}
}

// Await blocks until pred holds for the current snapshot or ctx ends. On
// timeout it returns the latest snapshot with ctx's error.
func (m *Manager) Await(ctx context.Context, pred func(Snapshot) bool) (Snapshot, error) {
	latest := make(chan Snapshot, 1)
	cancel := m.Subscribe(func(s Snapshot) {
		select {
		case <-latest:
		default:
		}
		latest <- s
	})
	defer cancel()

	if s := m.Snapshot(); pred(s) {
		return s, nil
	}
	for {
		select {
		case s := <-latest:
			if pred(s) {
				return s, nil
			}
		case <-ctx.Done():
			return m.Snapshot(), ctx.Err()
		}
	}
}

// Stop unsubscribes from the provider and ends the event loop. In-flight
// lookups are abandoned.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		m.cancel()
		if m.started.Load() {
			<-m.done
		}
	})
}

func (m *Manager) enqueue(c identityChange) {
	select {
	case m.events <- c:
	case <-m.ctx.Done():
	}
}

func (m *Manager) run() {
	defer close(m.done)
	for {
		select {
		case <-m.ctx.Done():
			return
		case c := <-m.events:
			m.onIdentityChanged(c)
		case r := <-m.results:
			m.onRoleResolved(r)
		}
	}
}

func (m *Manager) onIdentityChanged(c identityChange) {
	if c.applied != nil {
		close(c.applied)
		return
	}
	if c.initial && m.generation > 0 {
		m.logger.Debug("Dropping initial session result superseded by a newer notification")
		return
	}
	if c.refresh {
		if m.current == nil {
			return
		}
		c.identity = m.current
	}

	m.generation++
	if c.identity == nil {
		m.current = nil
		m.publish(Snapshot{Role: models.RoleNone})
		return
	}

	id := *c.identity
	m.current = &id
	m.publish(Snapshot{User: &id, Role: models.RoleNone, Loading: true})
	go m.lookup(m.generation, id.UserID)
}

func (m *Manager) lookup(generation uint64, userID string) {
	ctx, cancel := context.WithTimeout(m.ctx, m.lookupTimeout)
	defer cancel()

	start := time.Now()
	role, err := m.roles.SelectRoleByUser(ctx, userID)
	r := roleResult{generation: generation, userID: userID, role: role, err: err, took: time.Since(start)}

	select {
	case m.results <- r:
	case <-m.ctx.Done():
	}
}

func (m *Manager) onRoleResolved(r roleResult) {
	appMetrics := metrics.Get()
	if r.generation != m.generation || m.current == nil || m.current.UserID != r.userID {
		appMetrics.StaleRoleResultsTotal.Add(m.ctx, 1)
		m.logger.Debug("Discarding stale role lookup",
			zap.Uint64("generation", r.generation),
			zap.Uint64("current_generation", m.generation))
		return
	}

	outcome := "found"
	role := r.role
	switch {
	case r.err != nil:
		outcome = "error"
		m.logger.Warn("Role lookup failed, treating user as having no role",
			zap.String("userID", r.userID), zap.Error(r.err))
		role = models.RoleNone
	case !role.Valid():
		outcome = "none"
		role = models.RoleNone
	}
	appMetrics.RoleLookupsTotal.Add(m.ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	appMetrics.RoleLookupDuration.Record(m.ctx, r.took.Seconds())

	id := *m.current
	m.publish(Snapshot{User: &id, Role: role, Loading: false})
}

func (m *Manager) publish(s Snapshot) {
	m.snap.Store(&s)

	m.obsMu.Lock()
	fns := make([]func(Snapshot), 0, len(m.observers))
	for _, fn := range m.observers {
		fns = append(fns, fn)
	}
	m.obsMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

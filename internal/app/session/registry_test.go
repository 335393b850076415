package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
	"github.com/FACorreiaa/citcs-portal/internal/pkg/events"
)

type registryFixture struct {
	reg         *Registry
	roles       *staticRoles
	broadcaster *events.LocalBroadcaster
	seeded      []string
}

func newRegistryFixture(t *testing.T, idleTTL time.Duration) *registryFixture {
	t.Helper()
	f := &registryFixture{roles: &staticRoles{}, broadcaster: events.NewLocalBroadcaster()}
	reg, err := NewRegistry(func(refreshToken string) Client {
		f.seeded = append(f.seeded, refreshToken)
		return newFakeProvider()
	}, f.roles, f.broadcaster, idleTTL, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(reg.Close)
	f.reg = reg
	return f
}

func TestAcquireReusesEntry(t *testing.T) {
	f := newRegistryFixture(t, time.Minute)

	a, err := f.reg.Acquire("s1", "rt-1")
	require.NoError(t, err)
	again, err := f.reg.Acquire("s1", "ignored")
	require.NoError(t, err)
	other, err := f.reg.Acquire("s2", "")
	require.NoError(t, err)

	assert.Same(t, a, again)
	assert.NotSame(t, a, other)
	assert.Equal(t, 2, f.reg.Len())
	assert.Equal(t, []string{"rt-1", ""}, f.seeded)
}

func TestReleaseStopsEntry(t *testing.T) {
	f := newRegistryFixture(t, time.Minute)

	e, err := f.reg.Acquire("s1", "")
	require.NoError(t, err)
	f.reg.Release("s1")
	assert.Equal(t, 0, f.reg.Len())

	fresh, err := f.reg.Acquire("s1", "")
	require.NoError(t, err)
	assert.NotSame(t, e, fresh)
}

func TestIdleEntriesExpire(t *testing.T) {
	f := newRegistryFixture(t, 50*time.Millisecond)

	_, err := f.reg.Acquire("s1", "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.reg.Len() == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestRoleChangeRefreshesOnlyAffectedSessions(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t, time.Minute)
	f.roles.set("u1", models.RoleEditor)
	f.roles.set("u2", models.RoleEditor)

	// two tabs of u1 on different browser sessions, one session of u2
	var u1Sessions []*Entry
	for _, id := range []string{"a", "b"} {
		e, err := f.reg.Acquire(id, "")
		require.NoError(t, err)
		require.NoError(t, e.Manager.SignIn(ctx, "u1@citcs.edu", "pw"))
		awaitSnapshot(t, e.Manager, settledAs("u1", models.RoleEditor))
		u1Sessions = append(u1Sessions, e)
	}
	u2, err := f.reg.Acquire("c", "")
	require.NoError(t, err)
	require.NoError(t, u2.Manager.SignIn(ctx, "u2@citcs.edu", "pw"))
	awaitSnapshot(t, u2.Manager, settledAs("u2", models.RoleEditor))

	f.roles.set("u1", models.RoleAdmin)
	f.roles.set("u2", models.RoleAdmin)
	require.NoError(t, f.broadcaster.PublishRoleChange(ctx, "u1"))

	for _, e := range u1Sessions {
		s := awaitSnapshot(t, e.Manager, settledAs("u1", models.RoleAdmin))
		assert.True(t, s.IsAdmin())
	}
	assert.Equal(t, models.RoleEditor, u2.Manager.Snapshot().Role)
}

func TestRevokedRoleReachesLiveSession(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t, time.Minute)
	f.roles.set("u1", models.RoleAdmin)

	e, err := f.reg.Acquire("a", "")
	require.NoError(t, err)
	require.NoError(t, e.Manager.SignIn(ctx, "u1@citcs.edu", "pw"))
	awaitSnapshot(t, e.Manager, settledAs("u1", models.RoleAdmin))

	f.roles.set("u1", models.RoleNone)
	assert.Equal(t, 1, f.reg.RefreshUser("u1"))
	awaitSnapshot(t, e.Manager, settledAs("u1", models.RoleNone))
}

func TestExpiredEntryIsStoppedBeforeReplacement(t *testing.T) {
	f := newRegistryFixture(t, time.Minute)

	old, err := f.reg.Acquire("s1", "")
	require.NoError(t, err)
	// expire the item without waiting for the janitor
	f.reg.entries.Set("s1", old, time.Nanosecond)
	require.Eventually(t, func() bool {
		_, ok := f.reg.entries.Get("s1")
		return !ok
	}, time.Second, time.Millisecond)

	fresh, err := f.reg.Acquire("s1", "")
	require.NoError(t, err)
	assert.NotSame(t, old, fresh)
	select {
	case <-old.Manager.done:
	default:
		t.Fatal("the replaced manager is still running")
	}
	assert.Equal(t, 1, f.reg.Len())
}

func TestRotateMovesEntry(t *testing.T) {
	f := newRegistryFixture(t, time.Minute)

	e, err := f.reg.Acquire("s1", "")
	require.NoError(t, err)
	rotated, err := f.reg.Rotate("s1")
	require.NoError(t, err)

	assert.NotEqual(t, "s1", rotated.ID)
	assert.Same(t, e.Manager, rotated.Manager)
	assert.Equal(t, 1, f.reg.Len())
	select {
	case <-e.Manager.done:
		t.Fatal("rotation stopped the manager")
	default:
	}

	again, err := f.reg.Acquire(rotated.ID, "")
	require.NoError(t, err)
	assert.Same(t, rotated, again)

	fresh, err := f.reg.Acquire("s1", "")
	require.NoError(t, err)
	assert.NotSame(t, e.Manager, fresh.Manager)

	_, err = f.reg.Rotate("missing")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

package roleassign

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
	"github.com/FACorreiaa/citcs-portal/internal/pkg/events"
)

type MockRoleRepo struct {
	mock.Mock
}

func (m *MockRoleRepo) SelectRoleByUser(ctx context.Context, userID string) (models.Role, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.Role), args.Error(1)
}

func (m *MockRoleRepo) SelectAllRoles(ctx context.Context) ([]models.RoleAssignment, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RoleAssignment), args.Error(1)
}

func (m *MockRoleRepo) UpsertRole(ctx context.Context, actorID, userID string, role models.Role) (bool, error) {
	args := m.Called(ctx, actorID, userID, role)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoleRepo) DeleteRole(ctx context.Context, actorID, roleID string) (string, error) {
	args := m.Called(ctx, actorID, roleID)
	return args.String(0), args.Error(1)
}

type MockProfileRepo struct {
	mock.Mock
}

func (m *MockProfileRepo) SearchProfiles(ctx context.Context, pattern string) ([]models.Profile, error) {
	args := m.Called(ctx, pattern)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Profile), args.Error(1)
}

func (m *MockProfileRepo) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileRepo) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Profile), args.Error(1)
}

func (m *MockProfileRepo) Create(ctx context.Context, userID, displayName string) error {
	return m.Called(ctx, userID, displayName).Error(0)
}

// published records every role change broadcast.
type published struct {
	mu    sync.Mutex
	users []string
}

func (p *published) record(c events.RoleChange) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = append(p.users, c.UserID)
}

func (p *published) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.users...)
}

const (
	superAdminID = "00000000-0000-0000-0000-0000000000aa"
	janeID       = "11111111-2222-3333-4444-555555555555"
)

var jane = models.Profile{UserID: janeID, DisplayName: "Jane Cruz", CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}

func newService(t *testing.T) (*Service, *MockRoleRepo, *MockProfileRepo, *published) {
	t.Helper()
	roleRepo := new(MockRoleRepo)
	profileRepo := new(MockProfileRepo)
	b := events.NewLocalBroadcaster()
	pub := &published{}
	cancel, err := b.SubscribeRoleChanges(pub.record)
	require.NoError(t, err)
	t.Cleanup(cancel)
	return NewService(roleRepo, profileRepo, b, zap.NewNop()), roleRepo, profileRepo, pub
}

func TestAssignByDisplayName(t *testing.T) {
	svc, roleRepo, profileRepo, pub := newService(t)
	ctx := context.Background()

	profileRepo.On("SearchProfiles", ctx, "jane").Return([]models.Profile{jane}, nil)
	roleRepo.On("UpsertRole", ctx, superAdminID, janeID, models.RoleAdmin).Return(true, nil)

	res, err := svc.Assign(ctx, superAdminID, Request{Lookup: " jane ", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, jane, res.Profile)
	assert.True(t, res.Created)
	assert.Equal(t, []string{janeID}, pub.all())

	profileRepo.On("ListProfiles", mock.Anything).Return([]models.Profile{jane}, nil)
	roleRepo.On("SelectAllRoles", mock.Anything).Return([]models.RoleAssignment{{ID: "r1", UserID: janeID, Role: models.RoleAdmin}}, nil)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Jane Cruz", users[0].DisplayName)
	assert.Equal(t, models.RoleAdmin, users[0].Role)
	assert.Equal(t, "r1", users[0].RoleID)

	roleRepo.AssertExpectations(t)
	profileRepo.AssertExpectations(t)
}

func TestAssignUnknownUser(t *testing.T) {
	svc, roleRepo, profileRepo, pub := newService(t)
	ctx := context.Background()

	profileRepo.On("SearchProfiles", ctx, "nobody").Return([]models.Profile{}, nil)

	_, err := svc.Assign(ctx, superAdminID, Request{Lookup: "nobody", Role: models.RoleEditor})
	require.ErrorIs(t, err, models.ErrTargetNotFound)
	roleRepo.AssertNotCalled(t, "UpsertRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, pub.all())
}

func TestAssignByUserID(t *testing.T) {
	t.Run("it matches the exact user id", func(t *testing.T) {
		svc, roleRepo, profileRepo, _ := newService(t)
		ctx := context.Background()

		p := jane
		profileRepo.On("GetByUserID", ctx, janeID).Return(&p, nil)
		roleRepo.On("UpsertRole", ctx, superAdminID, janeID, models.RoleEditor).Return(false, nil)

		res, err := svc.Assign(ctx, superAdminID, Request{Lookup: janeID, Role: models.RoleEditor})
		require.NoError(t, err)
		assert.False(t, res.Created)
		profileRepo.AssertNotCalled(t, "SearchProfiles", mock.Anything, mock.Anything)
	})

	t.Run("it reports unknown ids as not found", func(t *testing.T) {
		svc, _, profileRepo, _ := newService(t)
		ctx := context.Background()

		profileRepo.On("GetByUserID", ctx, janeID).Return(nil, models.ErrNotFound)

		_, err := svc.Assign(ctx, superAdminID, Request{Lookup: janeID, Role: models.RoleEditor})
		assert.ErrorIs(t, err, models.ErrTargetNotFound)
		profileRepo.AssertNotCalled(t, "SearchProfiles", mock.Anything, mock.Anything)
	})
}

func TestResolveTakesFirstOfSeveralMatches(t *testing.T) {
	svc, _, profileRepo, _ := newService(t)
	ctx := context.Background()

	newer := models.Profile{UserID: "u-new", DisplayName: "Jane Reyes"}
	profileRepo.On("SearchProfiles", ctx, "jane").Return([]models.Profile{newer, jane}, nil)

	got, err := svc.Resolve(ctx, "jane")
	require.NoError(t, err)
	assert.Equal(t, newer, got)
}

func TestAssignValidation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"missing role", Request{Lookup: "jane"}},
		{"unknown role", Request{Lookup: "jane", Role: "owner"}},
		{"blank lookup", Request{Lookup: "   ", Role: models.RoleAdmin}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, roleRepo, profileRepo, _ := newService(t)
			_, err := svc.Assign(context.Background(), superAdminID, tt.req)
			assert.ErrorIs(t, err, models.ErrValidation)
			profileRepo.AssertNotCalled(t, "SearchProfiles", mock.Anything, mock.Anything)
			roleRepo.AssertNotCalled(t, "UpsertRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestAssignRejectedByStore(t *testing.T) {
	svc, roleRepo, profileRepo, pub := newService(t)
	ctx := context.Background()

	profileRepo.On("SearchProfiles", ctx, "jane").Return([]models.Profile{jane}, nil)
	roleRepo.On("UpsertRole", ctx, "editor-id", janeID, models.RoleSuperAdmin).Return(false, models.ErrForbidden)

	_, err := svc.Assign(ctx, "editor-id", Request{Lookup: "jane", Role: models.RoleSuperAdmin})
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Empty(t, pub.all())
}

func TestRemoveRole(t *testing.T) {
	t.Run("it announces the affected user", func(t *testing.T) {
		svc, roleRepo, _, pub := newService(t)
		ctx := context.Background()

		roleRepo.On("DeleteRole", ctx, superAdminID, "r1").Return(janeID, nil)

		require.NoError(t, svc.RemoveRole(ctx, superAdminID, "r1"))
		assert.Equal(t, []string{janeID}, pub.all())
	})

	t.Run("it passes store errors through", func(t *testing.T) {
		svc, roleRepo, _, pub := newService(t)
		ctx := context.Background()

		roleRepo.On("DeleteRole", ctx, superAdminID, "gone").Return("", models.ErrNotFound)

		assert.ErrorIs(t, svc.RemoveRole(ctx, superAdminID, "gone"), models.ErrNotFound)
		assert.Empty(t, pub.all())
	})
}

func TestListUsers(t *testing.T) {
	t.Run("it merges roles into profiles", func(t *testing.T) {
		svc, roleRepo, profileRepo, _ := newService(t)

		ed := models.Profile{UserID: "u2", DisplayName: "Ed"}
		profileRepo.On("ListProfiles", mock.Anything).Return([]models.Profile{jane, ed}, nil)
		roleRepo.On("SelectAllRoles", mock.Anything).Return([]models.RoleAssignment{
			{ID: "r1", UserID: janeID, Role: models.RoleEditor},
			{ID: "r2", UserID: janeID, Role: models.RoleAdmin},
		}, nil)

		users, err := svc.ListUsers(context.Background())
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, models.RoleEditor, users[0].Role, "the oldest row wins")
		assert.Equal(t, "r1", users[0].RoleID)
		assert.Equal(t, models.RoleNone, users[1].Role)
		assert.Empty(t, users[1].RoleID)
	})

	t.Run("it fails when either query fails", func(t *testing.T) {
		svc, roleRepo, profileRepo, _ := newService(t)

		profileRepo.On("ListProfiles", mock.Anything).Return([]models.Profile{jane}, nil)
		roleRepo.On("SelectAllRoles", mock.Anything).Return(nil, errors.New("connection reset"))

		_, err := svc.ListUsers(context.Background())
		assert.Error(t, err)
	})
}

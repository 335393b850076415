// Package roleassign is the only UI write path into the role store: a super
// admin looks a user up by display name or id and grants, changes or removes
// their role.
package roleassign

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/citcs-portal/internal/app/domain/profiles"
	"github.com/FACorreiaa/citcs-portal/internal/app/domain/roles"
	"github.com/FACorreiaa/citcs-portal/internal/app/models"
	"github.com/FACorreiaa/citcs-portal/internal/app/observability/metrics"
	"github.com/FACorreiaa/citcs-portal/internal/pkg/events"
)

// Request is one submission of the assignment form.
type Request struct {
	Lookup string
	Role   models.Role
}

// Result describes a successful assignment.
type Result struct {
	Profile models.Profile
	Role    models.Role
	Created bool
}

type Service struct {
	roles       roles.Repo
	profiles    profiles.Repo
	broadcaster events.Broadcaster
	logger      *zap.Logger
}

func NewService(roleRepo roles.Repo, profileRepo profiles.Repo, broadcaster events.Broadcaster, logger *zap.Logger) *Service {
	return &Service{
		roles:       roleRepo,
		profiles:    profileRepo,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Resolve finds the target of lookup. A UUID is matched exactly against user
// ids; anything else is a case-insensitive partial match on display name, and
// the newest matching profile wins.
func (s *Service) Resolve(ctx context.Context, lookup string) (models.Profile, error) {
	l := s.logger.With(zap.String("method", "Resolve"))
	lookup = strings.TrimSpace(lookup)
	if lookup == "" {
		return models.Profile{}, fmt.Errorf("empty lookup: %w", models.ErrValidation)
	}

	if id, err := uuid.Parse(lookup); err == nil {
		p, err := s.profiles.GetByUserID(ctx, id.String())
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return models.Profile{}, fmt.Errorf("user id %s: %w", id, models.ErrTargetNotFound)
			}
			return models.Profile{}, err
		}
		return *p, nil
	}

	matches, err := s.profiles.SearchProfiles(ctx, lookup)
	if err != nil {
		return models.Profile{}, err
	}
	if len(matches) == 0 {
		return models.Profile{}, fmt.Errorf("display name %q: %w", lookup, models.ErrTargetNotFound)
	}
	if len(matches) > 1 {
		l.Warn("Lookup matched several users, taking the newest",
			zap.String("lookup", lookup),
			zap.Int("matches", len(matches)),
			zap.String("userID", matches[0].UserID))
	}
	return matches[0], nil
}

// Assign resolves the target and writes its role as actorID. The store
// rejects actors that are not super admins.
func (s *Service) Assign(ctx context.Context, actorID string, req Request) (Result, error) {
	l := s.logger.With(zap.String("method", "Assign"), zap.String("actorID", actorID))
	appMetrics := metrics.Get()

	if !req.Role.Valid() {
		return Result{}, fmt.Errorf("role %q: %w", req.Role, models.ErrValidation)
	}

	target, err := s.Resolve(ctx, req.Lookup)
	if err != nil {
		appMetrics.RoleAssignmentsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "not_found")))
		return Result{}, err
	}

	created, err := s.roles.UpsertRole(ctx, actorID, target.UserID, req.Role)
	if err != nil {
		outcome := "error"
		if errors.Is(err, models.ErrForbidden) {
			outcome = "forbidden"
		}
		appMetrics.RoleAssignmentsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		l.Warn("Role assignment failed", zap.String("userID", target.UserID), zap.Error(err))
		return Result{}, err
	}

	appMetrics.RoleAssignmentsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "assigned")))
	l.Info("Role assigned",
		zap.String("userID", target.UserID),
		zap.String("role", req.Role.String()),
		zap.Bool("created", created))
	s.announce(ctx, target.UserID)

	return Result{Profile: target, Role: req.Role, Created: created}, nil
}

// RemoveRole deletes a role row. The user and profile are kept.
func (s *Service) RemoveRole(ctx context.Context, actorID, roleID string) error {
	userID, err := s.roles.DeleteRole(ctx, actorID, roleID)
	if err != nil {
		s.logger.Warn("Role removal failed", zap.String("actorID", actorID), zap.String("roleID", roleID), zap.Error(err))
		return err
	}
	metrics.Get().RoleAssignmentsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "removed")))
	s.announce(ctx, userID)
	return nil
}

// ListUsers merges every profile with its role. Users holding several role
// rows show the oldest, which is the one role lookups resolve.
func (s *Service) ListUsers(ctx context.Context) ([]models.UserWithRole, error) {
	var (
		all         []models.Profile
		assignments []models.RoleAssignment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		all, err = s.profiles.ListProfiles(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		assignments, err = s.roles.SelectAllRoles(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	byUser := make(map[string]models.RoleAssignment, len(assignments))
	for _, a := range assignments {
		if _, seen := byUser[a.UserID]; !seen {
			byUser[a.UserID] = a
		}
	}

	out := make([]models.UserWithRole, 0, len(all))
	for _, p := range all {
		u := models.UserWithRole{UserID: p.UserID, DisplayName: p.DisplayName, CreatedAt: p.CreatedAt}
		if a, ok := byUser[p.UserID]; ok {
			u.RoleID = a.ID
			u.Role = a.Role
		}
		out = append(out, u)
	}
	return out, nil
}

// announce tells every live session of userID to re-resolve its role. A failed
// broadcast leaves those sessions stale until their next identity change.
func (s *Service) announce(ctx context.Context, userID string) {
	if err := s.broadcaster.PublishRoleChange(ctx, userID); err != nil {
		s.logger.Error("Failed to broadcast role change", zap.String("userID", userID), zap.Error(err))
	}
}

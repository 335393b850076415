// Package cli implements portalctl, the operator tool that migrates the
// database and seeds roles outside the admin console.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/FACorreiaa/citcs-portal/internal/app/domain/profiles"
	"github.com/FACorreiaa/citcs-portal/internal/app/domain/roleassign"
	"github.com/FACorreiaa/citcs-portal/internal/app/domain/roles"
	"github.com/FACorreiaa/citcs-portal/internal/app/models"
	database "github.com/FACorreiaa/citcs-portal/internal/db"
	"github.com/FACorreiaa/citcs-portal/internal/pkg/config"
	"github.com/FACorreiaa/citcs-portal/internal/pkg/events"
	"github.com/FACorreiaa/citcs-portal/internal/pkg/logger"
)

// RoleStore is the operator side of the role repository. None of its
// methods check an acting user.
type RoleStore interface {
	GrantRole(ctx context.Context, userID string, role models.Role) error
	RevokeUser(ctx context.Context, userID string) (int64, error)
	SelectAllRoles(ctx context.Context) ([]models.RoleAssignment, error)
}

// Resolver turns a display name or user id into a profile.
type Resolver interface {
	Resolve(ctx context.Context, lookup string) (models.Profile, error)
}

// Env is what a command runs against once the database is open.
type Env struct {
	Roles       RoleStore
	Resolver    Resolver
	Broadcaster events.Broadcaster
	Logger      *zap.Logger
	close       func()
}

func (e *Env) Close() {
	if e.close != nil {
		e.close()
	}
}

// Opener connects the command to its backing services.
type Opener func(ctx context.Context, migrateUp bool) (*Env, error)

var verbose bool

// ExecuteContext runs portalctl against the configured database.
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand(openDatabase).ExecuteContext(ctx)
}

func NewRootCommand(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "portalctl",
		Short:         "Operate the CITCS content hub",
		Long:          "portalctl applies migrations and manages user roles directly in the database.\nUse it to seed the first super admin.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(newMigrateCommand(open), newRolesCommand(open))
	return root
}

func openDatabase(ctx context.Context, migrateUp bool) (*Env, error) {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	if err := logger.Init(level, zap.String("service", "portalctl")); err != nil {
		return nil, err
	}
	log := logger.Log

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	pool, err := database.Connect(ctx, cfg, log, migrateUp)
	if err != nil {
		return nil, err
	}

	// Live servers only hear about operator changes through Redis.
	var broadcaster events.Broadcaster = events.NewLocalBroadcaster()
	if cfg.Repositories.Redis.URL != "" {
		client, err := events.NewRedisClient(cfg.Repositories.Redis.URL)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		broadcaster = events.NewRedisBroadcaster(client, log)
	}

	roleRepo := roles.NewPostgresRoleRepo(pool, log)
	profileRepo := profiles.NewPostgresProfileRepo(pool, log)

	return &Env{
		Roles:       roleRepo,
		Resolver:    roleassign.NewService(roleRepo, profileRepo, broadcaster, log),
		Broadcaster: broadcaster,
		Logger:      log,
		close: func() {
			_ = broadcaster.Close()
			pool.Close()
			_ = log.Sync()
		},
	}, nil
}

package roles

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
	database "github.com/FACorreiaa/citcs-portal/internal/db"
)

var _ Repo = (*PostgresRoleRepo)(nil)

// Repo is the role store. Writes take the acting user from the verified
// session and reject actors that are not super admins.
type Repo interface {
	SelectRoleByUser(ctx context.Context, userID string) (models.Role, error)
	SelectAllRoles(ctx context.Context) ([]models.RoleAssignment, error)
	// UpsertRole leaves exactly one row for userID holding role. created
	// reports whether a row was inserted rather than updated.
	UpsertRole(ctx context.Context, actorID, userID string, role models.Role) (created bool, err error)
	// DeleteRole removes a role row and returns the user it belonged to.
	DeleteRole(ctx context.Context, actorID, roleID string) (userID string, err error)
}

type PostgresRoleRepo struct {
	logger *zap.Logger
	pgpool database.Pool
}

func NewPostgresRoleRepo(pgpool database.Pool, logger *zap.Logger) *PostgresRoleRepo {
	return &PostgresRoleRepo{logger: logger, pgpool: pgpool}
}

const selectRoleByUser = `SELECT role::text FROM user_roles WHERE user_id = $1 ORDER BY created_at, id LIMIT 1`

// SelectRoleByUser returns RoleNone without error when the user has no row.
func (r *PostgresRoleRepo) SelectRoleByUser(ctx context.Context, userID string) (models.Role, error) {
	return selectRole(ctx, r.pgpool, userID)
}

func selectRole(ctx context.Context, q database.Querier, userID string) (models.Role, error) {
	var role string
	err := q.QueryRow(ctx, selectRoleByUser, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RoleNone, nil
		}
		return models.RoleNone, fmt.Errorf("database error fetching role: %w", err)
	}
	return models.Role(role), nil
}

func (r *PostgresRoleRepo) SelectAllRoles(ctx context.Context) ([]models.RoleAssignment, error) {
	rows, err := r.pgpool.Query(ctx,
		`SELECT id::text, user_id::text, role::text, created_at FROM user_roles ORDER BY created_at, id`)
	if err != nil {
		r.logger.Error("Error listing roles", zap.Error(err))
		return nil, fmt.Errorf("database error listing roles: %w", err)
	}
	defer rows.Close()

	var out []models.RoleAssignment
	for rows.Next() {
		var (
			a    models.RoleAssignment
			role string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &role, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan role row: %w", err)
		}
		a.Role = models.Role(role)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role rows: %w", err)
	}
	return out, nil
}

func (r *PostgresRoleRepo) UpsertRole(ctx context.Context, actorID, userID string, role models.Role) (created bool, err error) {
	l := r.logger.With(zap.String("method", "UpsertRole"), zap.String("actorID", actorID), zap.String("userID", userID))

	ctx, span := otel.Tracer("citcs-portal/roles").Start(ctx, "PostgresRoleRepo.UpsertRole", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("user.id", userID),
		attribute.String("role", role.String()),
	))
	defer span.End()

	if !role.Valid() {
		return false, fmt.Errorf("unknown role %q: %w", role, models.ErrValidation)
	}

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err = Authorize(ctx, tx, actorID, models.RoleSuperAdmin); err != nil {
		l.Warn("Rejected role write", zap.Error(err))
		return false, err
	}

	// serialises concurrent writes for the same user
	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return false, fmt.Errorf("lock user roles: %w", err)
	}

	ids, err := roleRowIDs(ctx, tx, userID)
	if err != nil {
		return false, err
	}

	if len(ids) == 0 {
		if _, err = tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, role) VALUES ($1, $2::app_role)`,
			userID, role.String(),
		); err != nil {
			return false, fmt.Errorf("insert role: %w", err)
		}
		created = true
	} else {
		if _, err = tx.Exec(ctx,
			`UPDATE user_roles SET role = $1::app_role WHERE id = $2`,
			role.String(), ids[0],
		); err != nil {
			return false, fmt.Errorf("update role: %w", err)
		}
		if len(ids) > 1 {
			l.Warn("Collapsing duplicate role rows", zap.Int("rows", len(ids)))
			if _, err = tx.Exec(ctx,
				`DELETE FROM user_roles WHERE user_id = $1 AND id <> $2`,
				userID, ids[0],
			); err != nil {
				return false, fmt.Errorf("collapse duplicate roles: %w", err)
			}
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit role write: %w", err)
	}

	l.Info("Role written", zap.String("role", role.String()), zap.Bool("created", created))
	span.SetStatus(codes.Ok, "role written")
	return created, nil
}

func (r *PostgresRoleRepo) DeleteRole(ctx context.Context, actorID, roleID string) (userID string, err error) {
	l := r.logger.With(zap.String("method", "DeleteRole"), zap.String("actorID", actorID), zap.String("roleID", roleID))

	ctx, span := otel.Tracer("citcs-portal/roles").Start(ctx, "PostgresRoleRepo.DeleteRole")
	defer span.End()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err = Authorize(ctx, tx, actorID, models.RoleSuperAdmin); err != nil {
		l.Warn("Rejected role removal", zap.Error(err))
		return "", err
	}

	err = tx.QueryRow(ctx, `DELETE FROM user_roles WHERE id = $1 RETURNING user_id::text`, roleID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("role %s: %w", roleID, models.ErrNotFound)
		}
		return "", fmt.Errorf("delete role: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit role removal: %w", err)
	}

	l.Info("Role removed", zap.String("userID", userID))
	return userID, nil
}

// GrantRole writes a role without an acting user. It is reserved for operator
// tooling that seeds the first super admin.
func (r *PostgresRoleRepo) GrantRole(ctx context.Context, userID string, role models.Role) (err error) {
	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return fmt.Errorf("lock user roles: %w", err)
	}
	if _, err = tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear roles: %w", err)
	}
	if _, err = tx.Exec(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1, $2::app_role)`,
		userID, role.String(),
	); err != nil {
		return fmt.Errorf("insert role: %w", err)
	}
	return tx.Commit(ctx)
}

// RevokeUser deletes every role row of userID without an acting user.
func (r *PostgresRoleRepo) RevokeUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.pgpool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke roles: %w", err)
	}
	return tag.RowsAffected(), nil
}

func roleRowIDs(ctx context.Context, tx pgx.Tx, userID string) ([]string, error) {
	rows, err := tx.Query(ctx,
		`SELECT id::text FROM user_roles WHERE user_id = $1 ORDER BY created_at, id FOR UPDATE`, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup existing roles: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan role id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Authorize fails with models.ErrForbidden unless actorID currently holds one
// of allowed. It reads inside q so the check and the write share a snapshot.
func Authorize(ctx context.Context, q database.Querier, actorID string, allowed ...models.Role) error {
	if actorID == "" {
		return fmt.Errorf("no acting user: %w", models.ErrForbidden)
	}
	role, err := selectRole(ctx, q, actorID)
	if err != nil {
		return err
	}
	if !slices.Contains(allowed, role) {
		return fmt.Errorf("actor role %q may not write: %w", role.Label(), models.ErrForbidden)
	}
	return nil
}

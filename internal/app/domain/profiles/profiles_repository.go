package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
	database "github.com/FACorreiaa/citcs-portal/internal/db"
)

var _ Repo = (*PostgresProfileRepo)(nil)

// Repo reads and creates profiles. Results are ordered newest first, ties
// broken by user id, so "first match" is deterministic.
type Repo interface {
	// SearchProfiles matches display names containing pattern, case-insensitively.
	SearchProfiles(ctx context.Context, pattern string) ([]models.Profile, error)
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)
	ListProfiles(ctx context.Context) ([]models.Profile, error)
	Create(ctx context.Context, userID, displayName string) error
}

// Execer is satisfied by pools and transactions.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresProfileRepo struct {
	logger *zap.Logger
	pgpool database.Pool
}

func NewPostgresProfileRepo(pgpool database.Pool, logger *zap.Logger) *PostgresProfileRepo {
	return &PostgresProfileRepo{logger: logger, pgpool: pgpool}
}

const profileColumns = `user_id::text, display_name, created_at`

func (r *PostgresProfileRepo) SearchProfiles(ctx context.Context, pattern string) ([]models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles
		WHERE display_name ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY created_at DESC, user_id`
	return r.query(ctx, "SearchProfiles", query, escapeLike(strings.TrimSpace(pattern)))
}

func (r *PostgresProfileRepo) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := r.pgpool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.DisplayName, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("profile for user %s: %w", userID, models.ErrNotFound)
		}
		r.logger.Error("Error fetching profile", zap.Error(err), zap.String("userID", userID))
		return nil, fmt.Errorf("database error fetching profile: %w", err)
	}
	return &p, nil
}

func (r *PostgresProfileRepo) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	return r.query(ctx, "ListProfiles", `SELECT `+profileColumns+` FROM profiles ORDER BY created_at DESC, user_id`)
}

func (r *PostgresProfileRepo) Create(ctx context.Context, userID, displayName string) error {
	return Insert(ctx, r.pgpool, userID, displayName)
}

// Insert creates a profile through e, which may be a transaction.
func Insert(ctx context.Context, e Execer, userID, displayName string) error {
	if strings.TrimSpace(displayName) == "" {
		return fmt.Errorf("display name is required: %w", models.ErrValidation)
	}
	_, err := e.Exec(ctx, `INSERT INTO profiles (user_id, display_name) VALUES ($1, $2)`, userID, displayName)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("profile for user %s: %w", userID, models.ErrConflict)
		}
		return fmt.Errorf("database error creating profile: %w", err)
	}
	return nil
}

func (r *PostgresProfileRepo) query(ctx context.Context, method, sql string, args ...any) ([]models.Profile, error) {
	rows, err := r.pgpool.Query(ctx, sql, args...)
	if err != nil {
		r.logger.Error("Error querying profiles", zap.String("method", method), zap.Error(err))
		return nil, fmt.Errorf("database error querying profiles: %w", err)
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.UserID, &p.DisplayName, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes pattern match literally inside ILIKE.
func escapeLike(pattern string) string {
	return likeEscaper.Replace(pattern)
}

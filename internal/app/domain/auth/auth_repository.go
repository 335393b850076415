package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/domain/profiles"
	"github.com/FACorreiaa/citcs-portal/internal/app/models"
	database "github.com/FACorreiaa/citcs-portal/internal/db"
)

var _ AuthRepo = (*PostgresAuthRepo)(nil)

type AuthRepo interface {
	// GetUserByEmail fetches the credential row of an active user.
	GetUserByEmail(ctx context.Context, email string) (*models.UserAuth, error)
	// GetUserByID fetches the credential row of an active user by ID.
	GetUserByID(ctx context.Context, userID string) (*models.UserAuth, error)
	// Register stores a new user with a HASHED password and its profile. Returns new user ID.
	Register(ctx context.Context, email, hashedPassword, displayName string) (string, error)

	// StoreRefreshToken saves a new refresh token for a user.
	StoreRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	// ValidateRefreshTokenAndGetUserID checks if a refresh token is live and returns the user ID.
	ValidateRefreshTokenAndGetUserID(ctx context.Context, refreshToken string) (string, error)
	// InvalidateRefreshToken marks a specific refresh token as revoked.
	InvalidateRefreshToken(ctx context.Context, refreshToken string) error
	// InvalidateAllUserRefreshTokens marks all tokens for a user as revoked.
	InvalidateAllUserRefreshTokens(ctx context.Context, userID string) error
}

type PostgresAuthRepo struct {
	logger *zap.Logger
	pgpool database.Pool
}

func NewPostgresAuthRepo(pgpool database.Pool, logger *zap.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*models.UserAuth, error) {
	var user models.UserAuth
	query := `SELECT id::text, email, password_hash, created_at FROM users WHERE lower(email) = lower($1) AND is_active = TRUE`
	err := r.pgpool.QueryRow(ctx, query, email).Scan(&user.ID, &user.Email, &user.Password, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user with email %s not found: %w", email, models.ErrNotFound)
		}
		r.logger.Error("Error fetching user by email", zap.Error(err))
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}
	return &user, nil
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID string) (*models.UserAuth, error) {
	var user models.UserAuth
	query := `SELECT id::text, email, password_hash, created_at FROM users WHERE id = $1 AND is_active = TRUE`
	err := r.pgpool.QueryRow(ctx, query, userID).Scan(&user.ID, &user.Email, &user.Password, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user with ID %s not found: %w", userID, models.ErrNotFound)
		}
		r.logger.Error("Error fetching user by ID", zap.Error(err), zap.String("userID", userID))
		return nil, fmt.Errorf("database error fetching user by ID: %w", err)
	}
	return &user, nil
}

// Register inserts the user and its profile in one transaction.
func (r *PostgresAuthRepo) Register(ctx context.Context, email, hashedPassword, displayName string) (userID string, err error) {
	ctx, span := otel.Tracer("citcs-portal/auth").Start(ctx, "PostgresAuthRepo.Register", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.statement", "INSERT INTO users ..."),
	))
	defer span.End()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin failed")
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	err = tx.QueryRow(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id::text`,
		email, hashedPassword,
	).Scan(&userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database error")
		if database.IsUniqueViolation(err) {
			return "", fmt.Errorf("email %s already registered: %w", email, models.ErrConflict)
		}
		r.logger.Error("Error inserting user", zap.Error(err))
		return "", fmt.Errorf("database error registering user: %w", err)
	}

	if err = profiles.Insert(ctx, tx, userID, displayName); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database error")
		r.logger.Error("Error inserting profile", zap.Error(err), zap.String("userID", userID))
		return "", fmt.Errorf("database error creating profile: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to commit registration: %w", err)
	}

	span.SetAttributes(attribute.String("user.id", userID))
	span.SetStatus(codes.Ok, "User registered")
	return userID, nil
}

func (r *PostgresAuthRepo) StoreRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	query := `INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES ($1, $2, $3)`
	if _, err := r.pgpool.Exec(ctx, query, userID, token, expiresAt); err != nil {
		r.logger.Error("Error storing refresh token", zap.Error(err), zap.String("userID", userID))
		return fmt.Errorf("database error storing refresh token: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) ValidateRefreshTokenAndGetUserID(ctx context.Context, refreshToken string) (string, error) {
	var userID string
	query := `SELECT user_id::text FROM refresh_tokens WHERE token = $1 AND revoked_at IS NULL AND expires_at > now()`
	err := r.pgpool.QueryRow(ctx, query, refreshToken).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("refresh token not found or expired: %w", models.ErrUnauthenticated)
		}
		r.logger.Error("Error validating refresh token", zap.Error(err))
		return "", fmt.Errorf("database error validating refresh token: %w", err)
	}
	return userID, nil
}

func (r *PostgresAuthRepo) InvalidateRefreshToken(ctx context.Context, refreshToken string) error {
	query := `UPDATE refresh_tokens SET revoked_at = now() WHERE token = $1 AND revoked_at IS NULL`
	if _, err := r.pgpool.Exec(ctx, query, refreshToken); err != nil {
		r.logger.Error("Error invalidating refresh token", zap.Error(err))
		return fmt.Errorf("database error invalidating refresh token: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) InvalidateAllUserRefreshTokens(ctx context.Context, userID string) error {
	query := `UPDATE refresh_tokens SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`
	if _, err := r.pgpool.Exec(ctx, query, userID); err != nil {
		r.logger.Error("Error invalidating refresh tokens", zap.Error(err), zap.String("userID", userID))
		return fmt.Errorf("database error invalidating refresh tokens: %w", err)
	}
	return nil
}

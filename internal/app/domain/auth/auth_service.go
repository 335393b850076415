package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
	"github.com/FACorreiaa/citcs-portal/internal/pkg/config"
)

// MinPasswordLength is the shortest password accepted at sign-up.
const MinPasswordLength = 6

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService defines the identity provider contract.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.AuthSession, error)
	Register(ctx context.Context, email, password, displayName string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
	// RefreshSession issues new tokens and rotates the refresh token.
	RefreshSession(ctx context.Context, refreshToken string) (*models.AuthSession, error)
	// ResumeSession issues a fresh access token for a live refresh token without rotating it.
	ResumeSession(ctx context.Context, refreshToken string) (*models.AuthSession, error)
	ValidateAccessToken(token string) (*Claims, error)
}

// AuthServiceImpl provides the implementation for AuthService.
type AuthServiceImpl struct {
	logger *zap.Logger
	repo   AuthRepo
	tokens *TokenIssuer
	cfg    *config.Config
}

func NewAuthService(repo AuthRepo, cfg *config.Config, logger *zap.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger: logger,
		repo:   repo,
		tokens: NewTokenIssuer(cfg.JWT),
		cfg:    cfg,
	}
}

// Login validates credentials and opens a new session.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*models.AuthSession, error) {
	l := s.logger.With(zap.String("method", "Login"), zap.String("email", email))
	l.Debug("Attempting login")

	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		l.Warn("GetUserByEmail failed", zap.Error(err))
		// Don't reveal whether the user exists
		return nil, fmt.Errorf("invalid credentials: %w", models.ErrUnauthenticated)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		l.Warn("Password comparison failed", zap.String("userID", user.ID))
		return nil, fmt.Errorf("invalid credentials: %w", models.ErrUnauthenticated)
	}

	sess, err := s.openSession(ctx, user)
	if err != nil {
		l.Error("Failed to open session", zap.String("userID", user.ID), zap.Error(err))
		return nil, err
	}

	l.Info("Login successful", zap.String("userID", user.ID))
	return sess, nil
}

// Register creates the user and its profile. It does not sign the user in.
func (s *AuthServiceImpl) Register(ctx context.Context, email, password, displayName string) (string, error) {
	l := s.logger.With(zap.String("method", "Register"), zap.String("email", email))
	l.Debug("Attempting registration")

	ctx, span := otel.Tracer("citcs-portal/auth").Start(ctx, "AuthService.Register", trace.WithAttributes(
		attribute.String("email", email),
	))
	defer span.End()

	email = strings.TrimSpace(email)
	displayName = NormalizeDisplayName(displayName)
	if err := validateRegistration(email, password, displayName); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return "", err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		l.Error("Failed to hash password", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Password hashing failed")
		return "", fmt.Errorf("could not process password")
	}

	userID, err := s.repo.Register(ctx, email, string(hashed), displayName)
	if err != nil {
		l.Error("Repository registration failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Repository registration failed")
		return "", fmt.Errorf("registration failed: %w", err)
	}

	l.Info("Registration successful", zap.String("userID", userID))
	span.SetStatus(codes.Ok, "User registered")
	return userID, nil
}

// Logout invalidates the provided refresh token.
func (s *AuthServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	l := s.logger.With(zap.String("method", "Logout"))
	if err := s.repo.InvalidateRefreshToken(ctx, refreshToken); err != nil {
		l.Error("Failed to invalidate refresh token", zap.Error(err))
		return fmt.Errorf("logout failed: %w", err)
	}
	l.Info("Logout successful (token invalidated)")
	return nil
}

// RefreshSession validates the refresh token, issues new tokens and revokes the old one.
func (s *AuthServiceImpl) RefreshSession(ctx context.Context, refreshToken string) (*models.AuthSession, error) {
	l := s.logger.With(zap.String("method", "RefreshSession"))
	l.Debug("Attempting token refresh")

	user, err := s.userForRefreshToken(ctx, refreshToken)
	if err != nil {
		l.Warn("Refresh token rejected", zap.Error(err))
		return nil, err
	}

	sess, err := s.openSession(ctx, user)
	if err != nil {
		l.Error("Failed to open rotated session", zap.String("userID", user.ID), zap.Error(err))
		return nil, err
	}

	if err = s.repo.InvalidateRefreshToken(ctx, refreshToken); err != nil {
		l.Warn("Failed to invalidate old refresh token during rotation", zap.String("userID", user.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to invalidate old refresh token: %w", err)
	}

	l.Info("Token refresh successful", zap.String("userID", user.ID))
	return sess, nil
}

func (s *AuthServiceImpl) ResumeSession(ctx context.Context, refreshToken string) (*models.AuthSession, error) {
	user, err := s.userForRefreshToken(ctx, refreshToken)
	if err != nil {
		s.logger.Debug("Stored session not resumable", zap.Error(err))
		return nil, err
	}

	accessToken, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("app error generating tokens: %w", err)
	}

	return &models.AuthSession{
		Identity:     models.Identity{UserID: user.ID, Email: user.Email},
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *AuthServiceImpl) ValidateAccessToken(token string) (*Claims, error) {
	return s.tokens.Validate(token)
}

func (s *AuthServiceImpl) userForRefreshToken(ctx context.Context, refreshToken string) (*models.UserAuth, error) {
	userID, err := s.repo.ValidateRefreshTokenAndGetUserID(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid or expired refresh token: %w", err)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			_ = s.repo.InvalidateRefreshToken(ctx, refreshToken)
			return nil, fmt.Errorf("user behind refresh token is gone: %w", models.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("app error retrieving user during refresh: %w", err)
	}
	return user, nil
}

// openSession issues an access token and stores a fresh refresh token.
func (s *AuthServiceImpl) openSession(ctx context.Context, user *models.UserAuth) (*models.AuthSession, error) {
	accessToken, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("app error generating tokens: %w", err)
	}

	refreshToken := uuid.NewString()
	if err = s.repo.StoreRefreshToken(ctx, user.ID, refreshToken, time.Now().Add(s.getRefreshTTL())); err != nil {
		return nil, fmt.Errorf("app error storing session: %w", err)
	}

	return &models.AuthSession{
		Identity:     models.Identity{UserID: user.ID, Email: user.Email},
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *AuthServiceImpl) getRefreshTTL() time.Duration {
	if s.cfg != nil && s.cfg.JWT.RefreshTokenTTL > 0 {
		return s.cfg.JWT.RefreshTokenTTL
	}
	return 7 * 24 * time.Hour
}

// NormalizeDisplayName NFC-normalizes name and collapses inner whitespace.
func NormalizeDisplayName(name string) string {
	return strings.Join(strings.Fields(norm.NFC.String(name)), " ")
}

func validateRegistration(email, password, displayName string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email address: %w", models.ErrValidation)
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters: %w", MinPasswordLength, models.ErrValidation)
	}
	if displayName == "" {
		return fmt.Errorf("display name is required: %w", models.ErrValidation)
	}
	return nil
}

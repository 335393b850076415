package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/domain/content"
	"github.com/FACorreiaa/citcs-portal/internal/app/session"
	database "github.com/FACorreiaa/citcs-portal/internal/db"
	"github.com/FACorreiaa/citcs-portal/internal/pkg/config"
	"github.com/FACorreiaa/citcs-portal/internal/pkg/events"
)

// Server holds the dependencies for the HTTP server
type Server struct {
	cfg         *config.Config
	logger      *zap.Logger
	dbPool      *pgxpool.Pool
	broadcaster events.Broadcaster
	uploader    *content.S3Uploader
	registry    *session.Registry
	router      http.Handler
}

// New connects to Postgres, runs migrations and prepares the role change
// broadcaster and image storage.
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
	}

	ctx := context.Background()
	dbPool, err := s.setupDatabase(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}
	s.dbPool = dbPool

	broadcaster, err := s.setupBroadcaster()
	if err != nil {
		dbPool.Close()
		return nil, err
	}
	s.broadcaster = broadcaster

	uploader, err := content.NewS3Uploader(ctx, cfg.Storage, logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}
	if !uploader.Enabled() {
		logger.Info("STORAGE_BUCKET not set, image uploads are disabled")
	}
	s.uploader = uploader

	return s, nil
}

func (s *Server) setupDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	s.logger.Info("Setting up database connection and migrations")

	pool, err := database.Connect(ctx, s.cfg, s.logger, true)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Connected to Postgres",
		zap.String("host", s.cfg.Repositories.Postgres.Host),
		zap.String("port", s.cfg.Repositories.Postgres.Port),
		zap.String("database", s.cfg.Repositories.Postgres.DB))
	return pool, nil
}

// setupBroadcaster fans role changes out over Redis when REDIS_URL is set so
// that every replica refreshes its sessions. A single instance stays local.
func (s *Server) setupBroadcaster() (events.Broadcaster, error) {
	if s.cfg.Repositories.Redis.URL == "" {
		s.logger.Info("REDIS_URL not set, broadcasting role changes in process")
		return events.NewLocalBroadcaster(), nil
	}

	client, err := events.NewRedisClient(s.cfg.Repositories.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	s.logger.Info("Broadcasting role changes over Redis")
	return events.NewRedisBroadcaster(client, s.logger), nil
}

// HTTPServer creates and configures the HTTP server
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              ":" + s.cfg.ServerPort,
		Handler:           s.router,
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}

// SetRouter sets the HTTP router/handler
func (s *Server) SetRouter(router http.Handler) {
	s.router = router
}

// SetRegistry hands the session registry to the server so Close can stop it.
func (s *Server) SetRegistry(reg *session.Registry) {
	s.registry = reg
}

func (s *Server) GetDBPool() *pgxpool.Pool {
	return s.dbPool
}

func (s *Server) GetBroadcaster() events.Broadcaster {
	return s.broadcaster
}

func (s *Server) GetUploader() *content.S3Uploader {
	return s.uploader
}

func (s *Server) GetLogger() *zap.Logger {
	return s.logger
}

func (s *Server) GetConfig() *config.Config {
	return s.cfg
}

// Close releases resources in reverse order of creation.
func (s *Server) Close() {
	if s.registry != nil {
		s.registry.Close()
	}
	if s.broadcaster != nil {
		if err := s.broadcaster.Close(); err != nil {
			s.logger.Warn("Failed to close broadcaster", zap.Error(err))
		}
	}
	if s.dbPool != nil {
		s.dbPool.Close()
	}
}

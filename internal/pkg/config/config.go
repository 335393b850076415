package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type PostgresConfig struct {
	Host     string
	Port     string
	DB       string
	Username string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RedisConfig struct {
	// URL is optional. When empty, role changes are broadcast in process only.
	URL string
}

type RepositoriesConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

type JWTConfig struct {
	SecretKey       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
	Audience        string
}

type SessionConfig struct {
	Secret       string
	SecureCookie bool
	IdleTTL      time.Duration
	// SettleWait bounds how long the admin shell waits for a pending role
	// lookup before answering with the loading placeholder.
	SettleWait time.Duration
}

// AuthLimitConfig throttles sign-in and sign-up attempts per client.
type AuthLimitConfig struct {
	Attempts int
	Window   time.Duration
}

type StorageConfig struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	UsePathStyle  bool
}

// Enabled reports whether uploads can be served.
func (s StorageConfig) Enabled() bool {
	return s.Bucket != ""
}

type ObservabilityConfig struct {
	ServiceName  string
	MetricsAddr  string
	OTLPEndpoint string
	PprofAddr    string
}

type Config struct {
	Repositories  RepositoriesConfig
	JWT           JWTConfig
	Session       SessionConfig
	AuthLimit     AuthLimitConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
	ServerPort    string
	// TrustedProxies may set the client address through X-Forwarded-For.
	// Empty means the peer address is always used.
	TrustedProxies []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Repositories: RepositoriesConfig{
			Postgres: PostgresConfig{
				Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
				DB:       getEnvOrDefault("POSTGRES_DB", "citcs_portal"),
				Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password: getEnvOrDefault("POSTGRES_PASSWORD", ""),
				SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
				MaxConns: 30,
				MinConns: 5,
			},
			Redis: RedisConfig{
				URL: os.Getenv("REDIS_URL"),
			},
		},
		JWT: JWTConfig{
			SecretKey:       getEnvOrDefault("JWT_SECRET_KEY", ""),
			AccessTokenTTL:  getDurationOrDefault("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTokenTTL: getDurationOrDefault("JWT_REFRESH_TTL", 7*24*time.Hour),
			Issuer:          getEnvOrDefault("JWT_ISSUER", "citcs-portal"),
			Audience:        getEnvOrDefault("JWT_AUDIENCE", "citcs-portal-admin"),
		},
		Session: SessionConfig{
			Secret:       getEnvOrDefault("SESSION_SECRET", ""),
			SecureCookie: getBoolOrDefault("SESSION_SECURE_COOKIE", false),
			IdleTTL:      getDurationOrDefault("SESSION_IDLE_TTL", 30*time.Minute),
			SettleWait:   getDurationOrDefault("SESSION_SETTLE_WAIT", 1500*time.Millisecond),
		},
		AuthLimit: AuthLimitConfig{
			Attempts: getIntOrDefault("AUTH_RATE_LIMIT", 10),
			Window:   getDurationOrDefault("AUTH_RATE_WINDOW", time.Minute),
		},
		Storage: StorageConfig{
			Bucket:        os.Getenv("STORAGE_BUCKET"),
			Region:        getEnvOrDefault("STORAGE_REGION", "us-east-1"),
			Endpoint:      os.Getenv("STORAGE_ENDPOINT"),
			AccessKey:     os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey:     os.Getenv("STORAGE_SECRET_KEY"),
			PublicBaseURL: os.Getenv("STORAGE_PUBLIC_BASE_URL"),
			UsePathStyle:  getBoolOrDefault("STORAGE_USE_PATH_STYLE", false),
		},
		Observability: ObservabilityConfig{
			ServiceName:  getEnvOrDefault("OTEL_SERVICE_NAME", "citcs-portal"),
			MetricsAddr:  getEnvOrDefault("METRICS_ADDR", ":9092"),
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4318"),
			PprofAddr:    getEnvOrDefault("PPROF_ADDR", ":6060"),
		},
		ServerPort:     getEnvOrDefault("SERVER_PORT", "8091"),
		TrustedProxies: getListOrDefault("TRUSTED_PROXIES", nil),
	}

	if cfg.Repositories.Postgres.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD environment variable is required")
	}
	if len(cfg.JWT.SecretKey) < 32 {
		return nil, fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters")
	}
	if len(cfg.Session.Secret) < 32 {
		return nil, fmt.Errorf("SESSION_SECRET must be at least 32 characters")
	}
	if cfg.Storage.Enabled() && cfg.Storage.PublicBaseURL == "" {
		return nil, fmt.Errorf("STORAGE_PUBLIC_BASE_URL is required when STORAGE_BUCKET is set")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getListOrDefault splits a comma separated value, dropping blanks.
func getListOrDefault(key string, defaultValue []string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Engine        EngineConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuthConfig holds JWT claims verification configuration. The engine never
// issues tokens; it only verifies bearer tokens minted by the platform's
// identity provider.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
}

// EngineConfig holds the governance engine's tunables
type EngineConfig struct {
	PolicyCacheSize       int
	PolicyCacheTTL        time.Duration
	ReservationTTL        time.Duration
	ReservationSweepEvery time.Duration
	ApprovalSweepEvery    time.Duration
	ComplianceWindowDays  int
	AuditBufferSize       int
	AuditWorkerCount      int
	AuditRetentionDays    int
	PublicOperations      []string
	StandardApprovers     []uuid.UUID
	PrivilegedApprovers   []uuid.UUID
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", ""),
			Audience:  getEnv("JWT_AUDIENCE", ""),
		},
		Engine: EngineConfig{
			PolicyCacheSize:       getEnvAsInt("POLICY_CACHE_SIZE", 1000),
			PolicyCacheTTL:        getEnvAsDuration("POLICY_CACHE_TTL", 30*time.Second),
			ReservationTTL:        getEnvAsDuration("RESERVATION_TTL", 15*time.Minute),
			ReservationSweepEvery: getEnvAsDuration("RESERVATION_SWEEP_INTERVAL", time.Minute),
			ApprovalSweepEvery:    getEnvAsDuration("APPROVAL_SWEEP_INTERVAL", 5*time.Minute),
			ComplianceWindowDays:  getEnvAsInt("COMPLIANCE_WINDOW_DAYS", 30),
			AuditBufferSize:       getEnvAsInt("AUDIT_BUFFER_SIZE", 10000),
			AuditWorkerCount:      getEnvAsInt("AUDIT_WORKER_COUNT", 5),
			AuditRetentionDays:    getEnvAsInt("AUDIT_RETENTION_DAYS", 365),
			PublicOperations:      getEnvAsList("PUBLIC_OPERATIONS", nil),
			StandardApprovers:     getEnvAsUUIDs("STANDARD_APPROVERS"),
			PrivilegedApprovers:   getEnvAsUUIDs("PRIVILEGED_APPROVERS"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	// Auth validation (required in production)
	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required in production")
	}

	// Approver pools: cases cannot be opened without at least one approver
	if len(c.Engine.StandardApprovers) == 0 && len(c.Engine.PrivilegedApprovers) == 0 {
		return fmt.Errorf("at least one approver must be configured: set STANDARD_APPROVERS or PRIVILEGED_APPROVERS")
	}

	if c.Engine.ComplianceWindowDays <= 0 {
		return fmt.Errorf("compliance window must be positive")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "dev"),
		Password:        getEnv("DB_PASSWORD", "governance_password"),
		Database:        getEnv("DB_NAME", "governance"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList parses a comma-separated env var
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

// getEnvAsUUIDs parses a comma-separated list of UUIDs, skipping invalid
// entries
func getEnvAsUUIDs(key string) []uuid.UUID {
	var ids []uuid.UUID
	for _, raw := range getEnvAsList(key, nil) {
		if id, err := uuid.Parse(raw); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

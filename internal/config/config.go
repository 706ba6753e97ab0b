package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Server     ServerConfig
	Tenancy    TenancyConfig
	SelfHosted bool
}

// DatabaseConfig holds PostgreSQL connection settings. Tenant pools log in
// as User, which must not bypass row-level security. The platform pool logs
// in as PlatformUser and serves tenant metadata, the audit log and
// cross-tenant analytics.
type DatabaseConfig struct {
	Host             string
	Port             int
	User             string
	Password         string //nolint:gosec // G117: DB connection config
	PlatformUser     string
	PlatformPassword string //nolint:gosec // G117: DB connection config
	DBName           string
	SSLMode          string
	MaxConns         int
}

// RedisConfig holds Redis connection settings. An empty Addr disables the
// shared strategy cache and live audit alerts.
type RedisConfig struct {
	Addr        string
	Password    string //nolint:gosec // G117: Redis connection config
	DB          int
	StrategyTTL time.Duration
}

// JWTConfig holds JWT authentication settings.
type JWTConfig struct {
	Secret     string //nolint:gosec // G117: JWT signing secret config
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	RateLimit    float64 // requests per second per tenant
	RateBurst    int
}

// TenancyConfig tunes the isolation layer.
type TenancyConfig struct {
	SweepInterval     time.Duration
	ValidationTimeout time.Duration
	ConnectTimeout    time.Duration
	PoolMaxConns      int
	PoolMaxConnIdle   time.Duration
	AuditQueueSize    int
	AuditWriteTimeout time.Duration
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	var dbPort, dbMaxConns, redisDB, rateBurst, poolMaxConns, auditQueueSize int
	for key, opt := range map[string]struct {
		dst      *int
		fallback int
	}{
		"TRAINHUB_DB_PORT":               {&dbPort, 5432},
		"TRAINHUB_DB_MAX_CONNS":          {&dbMaxConns, 10},
		"TRAINHUB_REDIS_DB":              {&redisDB, 0},
		"TRAINHUB_RATE_BURST":            {&rateBurst, 40},
		"TRAINHUB_TENANT_POOL_MAX_CONNS": {&poolMaxConns, 5},
		"TRAINHUB_AUDIT_QUEUE_SIZE":      {&auditQueueSize, 1024},
	} {
		n, err := getEnvInt(key, opt.fallback)
		if err != nil {
			return nil, fmt.Errorf("config.Load: %w", err)
		}
		*opt.dst = n
	}

	var (
		accessTTL, refreshTTL, readTimeout, writeTimeout, strategyTTL time.Duration
		sweepInterval, validationTimeout, connectTimeout             time.Duration
		poolMaxConnIdle, auditWriteTimeout                           time.Duration
	)
	for key, opt := range map[string]struct {
		dst      *time.Duration
		fallback time.Duration
	}{
		"TRAINHUB_JWT_ACCESS_TTL":            {&accessTTL, 15 * time.Minute},
		"TRAINHUB_JWT_REFRESH_TTL":           {&refreshTTL, 7 * 24 * time.Hour},
		"TRAINHUB_SERVER_READ_TIMEOUT":       {&readTimeout, 10 * time.Second},
		"TRAINHUB_SERVER_WRITE_TIMEOUT":      {&writeTimeout, 30 * time.Second},
		"TRAINHUB_REDIS_STRATEGY_TTL":        {&strategyTTL, 10 * time.Minute},
		"TRAINHUB_POOL_SWEEP_INTERVAL":       {&sweepInterval, time.Hour},
		"TRAINHUB_VALIDATION_TIMEOUT":        {&validationTimeout, 2 * time.Second},
		"TRAINHUB_TENANT_CONNECT_TIMEOUT":    {&connectTimeout, 10 * time.Second},
		"TRAINHUB_TENANT_POOL_MAX_CONN_IDLE": {&poolMaxConnIdle, 5 * time.Minute},
		"TRAINHUB_AUDIT_WRITE_TIMEOUT":       {&auditWriteTimeout, 5 * time.Second},
	} {
		d, err := getEnvDuration(key, opt.fallback)
		if err != nil {
			return nil, fmt.Errorf("config.Load: %w", err)
		}
		*opt.dst = d
	}

	rateLimit, err := getEnvFloat("TRAINHUB_RATE_LIMIT", 20)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	selfHosted, err := getEnvBool("TRAINHUB_SELF_HOSTED", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("TRAINHUB_CORS_ORIGINS", []string{"http://localhost:5173"})

	dbUser := getEnv("TRAINHUB_DB_USER", "trainhub_app")
	dbPassword := getEnv("TRAINHUB_DB_PASSWORD", "")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:             getEnv("TRAINHUB_DB_HOST", "localhost"),
			Port:             dbPort,
			User:             dbUser,
			Password:         dbPassword,
			PlatformUser:     getEnv("TRAINHUB_DB_PLATFORM_USER", dbUser),
			PlatformPassword: getEnv("TRAINHUB_DB_PLATFORM_PASSWORD", dbPassword),
			DBName:           getEnv("TRAINHUB_DB_NAME", "trainhub_dev"),
			SSLMode:          getEnv("TRAINHUB_DB_SSLMODE", "disable"),
			MaxConns:         dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:        getEnv("TRAINHUB_REDIS_ADDR", "localhost:6379"),
			Password:    getEnv("TRAINHUB_REDIS_PASSWORD", ""),
			DB:          redisDB,
			StrategyTTL: strategyTTL,
		},
		JWT: JWTConfig{
			Secret:     getEnv("TRAINHUB_JWT_SECRET", ""),
			AccessTTL:  accessTTL,
			RefreshTTL: refreshTTL,
		},
		Server: ServerConfig{
			Addr:         getEnv("TRAINHUB_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
			RateLimit:    rateLimit,
			RateBurst:    rateBurst,
		},
		Tenancy: TenancyConfig{
			SweepInterval:     sweepInterval,
			ValidationTimeout: validationTimeout,
			ConnectTimeout:    connectTimeout,
			PoolMaxConns:      poolMaxConns,
			PoolMaxConnIdle:   poolMaxConnIdle,
			AuditQueueSize:    auditQueueSize,
			AuditWriteTimeout: auditWriteTimeout,
		},
		SelfHosted: selfHosted,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("TRAINHUB_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("TRAINHUB_JWT_SECRET must be at least 32 characters")
	}

	if c.Database.SSLMode == "disable" && !c.SelfHosted {
		log.Warn().Msg("TRAINHUB_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}
	if c.Database.User == c.Database.PlatformUser && !c.SelfHosted {
		log.Warn().Msg("tenant and platform pools share a database role; row-level security cannot tell them apart")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("TRAINHUB_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("TRAINHUB_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("TRAINHUB_JWT_ACCESS_TTL must be positive, got %s", c.JWT.AccessTTL)
	}
	if c.JWT.RefreshTTL <= 0 {
		return fmt.Errorf("TRAINHUB_JWT_REFRESH_TTL must be positive, got %s", c.JWT.RefreshTTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("TRAINHUB_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("TRAINHUB_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RateLimit <= 0 {
		return fmt.Errorf("TRAINHUB_RATE_LIMIT must be positive, got %g", c.Server.RateLimit)
	}
	if c.Server.RateBurst < 1 {
		return fmt.Errorf("TRAINHUB_RATE_BURST must be >= 1, got %d", c.Server.RateBurst)
	}
	if c.Redis.StrategyTTL <= 0 {
		return fmt.Errorf("TRAINHUB_REDIS_STRATEGY_TTL must be positive, got %s", c.Redis.StrategyTTL)
	}

	t := c.Tenancy
	if t.SweepInterval < time.Minute {
		return fmt.Errorf("TRAINHUB_POOL_SWEEP_INTERVAL must be at least 1m, got %s", t.SweepInterval)
	}
	if t.ValidationTimeout <= 0 {
		return fmt.Errorf("TRAINHUB_VALIDATION_TIMEOUT must be positive, got %s", t.ValidationTimeout)
	}
	if t.ConnectTimeout <= 0 {
		return fmt.Errorf("TRAINHUB_TENANT_CONNECT_TIMEOUT must be positive, got %s", t.ConnectTimeout)
	}
	if t.PoolMaxConns < 1 {
		return fmt.Errorf("TRAINHUB_TENANT_POOL_MAX_CONNS must be >= 1, got %d", t.PoolMaxConns)
	}
	if t.PoolMaxConnIdle < 0 {
		return fmt.Errorf("TRAINHUB_TENANT_POOL_MAX_CONN_IDLE must not be negative, got %s", t.PoolMaxConnIdle)
	}
	if t.AuditQueueSize < 1 {
		return fmt.Errorf("TRAINHUB_AUDIT_QUEUE_SIZE must be >= 1, got %d", t.AuditQueueSize)
	}
	if t.AuditWriteTimeout <= 0 {
		return fmt.Errorf("TRAINHUB_AUDIT_WRITE_TIMEOUT must be positive, got %s", t.AuditWriteTimeout)
	}

	return nil
}

// DSN returns the connection string tenant pools are derived from.
func (c *DatabaseConfig) DSN() string {
	return c.dsn(c.User, c.Password)
}

// PlatformDSN returns the connection string of the platform pool.
func (c *DatabaseConfig) PlatformDSN() string {
	return c.dsn(c.PlatformUser, c.PlatformPassword)
}

func (c *DatabaseConfig) dsn(user, password string) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, user, password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Stats        StatsConfig
	RateLimit    RateLimitConfig
	AMQP         AMQPConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	// SeedFile is loaded into the in-memory store when Postgres is not configured.
	SeedFile string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Development bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// StatsConfig tunes the statistics endpoints.
type StatsConfig struct {
	DataPointLimit         int
	DefaultIntervalSeconds int
	DashboardWindowMinutes int
	DashboardBucketSeconds int
	CacheTTLSeconds        int
	RefreshSchedule        string
}

// RateLimitConfig configures the Redis token bucket applied to write endpoints.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
}

// AMQPConfig points event forwarding at a RabbitMQ broker. Empty URL disables it.
type AMQPConfig struct {
	URL         string
	Queue       string
	DialTimeout time.Duration
}

// NotificationConfig holds notification toggles.
type NotificationConfig struct {
	LogEvents bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			SeedFile:              os.Getenv("SEED_FILE"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnv("APP_ENV", "development") == "development",
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Stats: StatsConfig{
			DataPointLimit:         getEnvAsInt("STATS_DATA_POINT_LIMIT", 30),
			DefaultIntervalSeconds: getEnvAsInt("STATS_DEFAULT_INTERVAL_SECONDS", 30),
			DashboardWindowMinutes: getEnvAsInt("STATS_DASHBOARD_WINDOW_MINUTES", 180),
			DashboardBucketSeconds: getEnvAsInt("STATS_DASHBOARD_BUCKET_SECONDS", 60),
			CacheTTLSeconds:        getEnvAsInt("STATS_CACHE_TTL_SECONDS", 120),
			RefreshSchedule:        getEnv("STATS_REFRESH_SCHEDULE", "@every 1m"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvAsBool("RATE_LIMIT_ENABLED", true),
			Capacity:       getEnvAsInt("RATE_LIMIT_CAPACITY", 20),
			RefillTokens:   getEnvAsInt("RATE_LIMIT_REFILL_TOKENS", 1),
			RefillInterval: time.Duration(getEnvAsInt("RATE_LIMIT_REFILL_INTERVAL_MS", 3000)) * time.Millisecond,
			TTL:            time.Duration(getEnvAsInt("RATE_LIMIT_TTL_SECONDS", 600)) * time.Second,
			Prefix:         getEnv("RATE_LIMIT_PREFIX", "helpdesk:rl"),
		},
		AMQP: AMQPConfig{
			URL:         os.Getenv("AMQP_URL"),
			Queue:       getEnv("AMQP_QUEUE", "helpdesk.events"),
			DialTimeout: time.Duration(getEnvAsInt("AMQP_DIAL_TIMEOUT_MS", 3000)) * time.Millisecond,
		},
		Notification: NotificationConfig{
			LogEvents: getEnvAsBool("NOTIFY_LOG_EVENTS", true),
		},
	}

	if cfg.Stats.DataPointLimit <= 0 {
		return nil, fmt.Errorf("invalid STATS_DATA_POINT_LIMIT: %d", cfg.Stats.DataPointLimit)
	}
	if cfg.Stats.DashboardBucketSeconds <= 0 {
		return nil, fmt.Errorf("invalid STATS_DASHBOARD_BUCKET_SECONDS: %d", cfg.Stats.DashboardBucketSeconds)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// DashboardWindow is the span covered by the dashboard graph.
func (s StatsConfig) DashboardWindow() time.Duration {
	return time.Duration(s.DashboardWindowMinutes) * time.Minute
}

// DashboardBucket is the width of one dashboard graph point.
func (s StatsConfig) DashboardBucket() time.Duration {
	return time.Duration(s.DashboardBucketSeconds) * time.Second
}

// CacheTTL is how long a cached dashboard series stays valid.
func (s StatsConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

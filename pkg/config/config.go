package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Store     StoreConfig
	Ledger    LedgerConfig
	Analytics AnalyticsConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig configures verification of access tokens issued by the identity provider.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StoreConfig selects the ledger backend.
type StoreConfig struct {
	Driver      string
	AutoMigrate bool
	SeedDemo    bool
}

// LedgerConfig holds the engagement rules.
type LedgerConfig struct {
	SubmissionCooldown  time.Duration
	PointsPerSubmission int64
}

// AnalyticsConfig governs caching and windowing for class analytics.
type AnalyticsConfig struct {
	CacheEnabled      bool
	CacheTTL          time.Duration
	DefaultWindowDays int
	MaxWindowDays     int
	ReportingTimezone string
}

// RateLimitConfig throttles submission attempts per client.
type RateLimitConfig struct {
	SubmitPerMinute int
	SubmitBurst     int
}

// JobsConfig tunes the background job queue.
type JobsConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// ReportingLocation resolves the configured reporting timezone, falling back to UTC.
func (c AnalyticsConfig) ReportingLocation() *time.Location {
	if c.ReportingTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.ReportingTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Store = StoreConfig{
		Driver:      strings.ToLower(v.GetString("STORE_DRIVER")),
		AutoMigrate: v.GetBool("STORE_AUTO_MIGRATE"),
		SeedDemo:    v.GetBool("STORE_SEED_DEMO"),
	}

	points := v.GetInt64("POINTS_PER_SUBMISSION")
	if points <= 0 {
		points = 10
	}
	cfg.Ledger = LedgerConfig{
		SubmissionCooldown:  parseDuration(v.GetString("SUBMISSION_COOLDOWN"), 24*time.Hour),
		PointsPerSubmission: points,
	}

	cfg.Analytics = AnalyticsConfig{
		CacheEnabled:      v.GetBool("ENABLE_ANALYTICS_CACHE"),
		CacheTTL:          parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 10*time.Minute),
		DefaultWindowDays: positiveOr(v.GetInt("ANALYTICS_DEFAULT_WINDOW_DAYS"), 7),
		MaxWindowDays:     positiveOr(v.GetInt("ANALYTICS_MAX_WINDOW_DAYS"), 90),
		ReportingTimezone: v.GetString("REPORTING_TIMEZONE"),
	}

	cfg.RateLimit = RateLimitConfig{
		SubmitPerMinute: v.GetInt("SUBMIT_RATE_LIMIT_PER_MINUTE"),
		SubmitBurst:     v.GetInt("SUBMIT_RATE_LIMIT_BURST"),
	}

	cfg.Jobs = JobsConfig{
		Workers:    positiveOr(v.GetInt("JOBS_WORKERS"), 1),
		MaxRetries: positiveOr(v.GetInt("JOBS_MAX_RETRIES"), 3),
		RetryDelay: parseDuration(v.GetString("JOBS_RETRY_DELAY"), time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "moodpoints")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("STORE_AUTO_MIGRATE", false)
	v.SetDefault("STORE_SEED_DEMO", false)

	v.SetDefault("SUBMISSION_COOLDOWN", "24h")
	v.SetDefault("POINTS_PER_SUBMISSION", 10)

	v.SetDefault("ENABLE_ANALYTICS_CACHE", true)
	v.SetDefault("ANALYTICS_CACHE_TTL", "10m")
	v.SetDefault("ANALYTICS_DEFAULT_WINDOW_DAYS", 7)
	v.SetDefault("ANALYTICS_MAX_WINDOW_DAYS", 90)
	v.SetDefault("REPORTING_TIMEZONE", "UTC")

	v.SetDefault("SUBMIT_RATE_LIMIT_PER_MINUTE", 30)
	v.SetDefault("SUBMIT_RATE_LIMIT_BURST", 10)

	v.SetDefault("JOBS_WORKERS", 1)
	v.SetDefault("JOBS_MAX_RETRIES", 3)
	v.SetDefault("JOBS_RETRY_DELAY", "1s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

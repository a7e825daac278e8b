package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/tasktrack/pkg/httpx"
	"github.com/aussiebroadwan/tasktrack/pkg/tokenx"
)

// Revocation backends.
const (
	RevocationMemory = "memory"
	RevocationRedis  = "redis"
)

// ErrMissingSecret is returned by Validate when TASKS_SECRET_KEY is unset.
var ErrMissingSecret = errors.New("TASKS_SECRET_KEY must be set")

type Config struct {
	SecretKey string // Required: HS256 signing secret
	Issuer    string // Optional: iss claim (default: tasktrack)

	AccessTokenTTL  time.Duration // default: 15m
	RefreshTokenTTL time.Duration // default: 168h
	PublicPaths     []string      // gate bypass prefixes (default: httpx.DefaultPublicPaths)
	AllowedOrigins  []string      // CORS origins (default: httpx.DefaultCORSConfig)

	RevocationBackend string // memory or redis (default: memory)
	RedisAddr         string // required for the redis backend
	RedisPassword     string
	RedisDB           int

	DatabaseFile   string // Optional: path to SQLite database file (default: tasks.db)
	PasswordPepper string // Optional: secret mixed into every password hash
	PepperFile     string // Optional: file holding the pepper, created on first start

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Revocation sweep interval (default: 5m)

	StrictLimit   httpx.RateLimitConfig // register, login
	ModerateLimit httpx.RateLimitConfig // refresh, logout
	LenientLimit  httpx.RateLimitConfig // tasks, profile, health
}

func LoadConfig() Config {
	return Config{
		SecretKey: os.Getenv("TASKS_SECRET_KEY"),
		Issuer:    getEnvOrDefault("TASKS_ISSUER", "tasktrack"),

		AccessTokenTTL:  getEnvDurationOrDefault("ACCESS_TOKEN_TTL", tokenx.DefaultAccessTokenTTL),
		RefreshTokenTTL: getEnvDurationOrDefault("REFRESH_TOKEN_TTL", tokenx.DefaultRefreshTokenTTL),
		PublicPaths:     getEnvListOrDefault("PUBLIC_PATHS", httpx.DefaultPublicPaths),
		AllowedOrigins:  getEnvListOrDefault("ALLOWED_ORIGINS", nil),

		RevocationBackend: strings.ToLower(getEnvOrDefault("REVOCATION_BACKEND", RevocationMemory)),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvIntOrDefault("REDIS_DB", 0),

		DatabaseFile:   getEnvOrDefault("DATABASE_FILE", "tasks.db"),
		PasswordPepper: os.Getenv("PASSWORD_PEPPER"),
		PepperFile:     os.Getenv("PEPPER_FILE"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 5*time.Minute),

		StrictLimit:   getEnvRateLimitOrDefault("STRICT", httpx.StrictLimit),
		ModerateLimit: getEnvRateLimitOrDefault("MODERATE", httpx.ModerateLimit),
		LenientLimit:  getEnvRateLimitOrDefault("LENIENT", httpx.LenientLimit),
	}
}

// Validate reports every problem with the configuration at once. The
// service refuses to start without a signing secret.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.SecretKey) == "" {
		errs = append(errs, ErrMissingSecret)
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL must be positive"))
	}

	switch c.RevocationBackend {
	case RevocationMemory:
	case RevocationRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR must be set for the redis revocation backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("REVOCATION_BACKEND %q is not one of memory, redis", c.RevocationBackend))
	}

	if c.PasswordPepper != "" && c.PepperFile != "" {
		errs = append(errs, errors.New("set only one of PASSWORD_PEPPER and PEPPER_FILE"))
	}

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}

	for name, limit := range map[string]httpx.RateLimitConfig{
		"STRICT":   c.StrictLimit,
		"MODERATE": c.ModerateLimit,
		"LENIENT":  c.LenientLimit,
	} {
		if limit.RequestsPerWindow <= 0 || limit.Window <= 0 || limit.Burst <= 0 {
			errs = append(errs, fmt.Errorf("RATELIMIT_%s_* values must be positive", name))
		}
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

// getEnvListOrDefault splits a comma-separated value, dropping blanks.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvRateLimitOrDefault reads RATELIMIT_<PROFILE>_REQUESTS, _WINDOW and
// _BURST, each falling back to the built-in profile.
func getEnvRateLimitOrDefault(profile string, defaultValue httpx.RateLimitConfig) httpx.RateLimitConfig {
	prefix := "RATELIMIT_" + profile + "_"
	return httpx.RateLimitConfig{
		RequestsPerWindow: getEnvIntOrDefault(prefix+"REQUESTS", defaultValue.RequestsPerWindow),
		Window:            getEnvDurationOrDefault(prefix+"WINDOW", defaultValue.Window),
		Burst:             getEnvIntOrDefault(prefix+"BURST", defaultValue.Burst),
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Debug    DebugConfig
	Session  SessionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string
	Seed bool
}

// DebugConfig holds the instrumentation pipeline tunables. The slow thresholds
// are deliberately configuration, not constants; nothing fixes 10ms/50ms as laws.
type DebugConfig struct {
	TruncateLimit   int
	SlowCall        time.Duration
	SlowQuery       time.Duration
	HistoryCapacity int
}

// SessionConfig holds console session settings.
type SessionConfig struct {
	CookieName string
	IdleTTL    time.Duration
}

// Load reads configuration from environment variables. Defaults are suitable
// for local development; every value can be overridden via GLASSBOX_*.
func Load() (*Config, error) {
	readTimeout, err := getEnvDuration("GLASSBOX_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("GLASSBOX_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateRPS, err := getEnvFloat("GLASSBOX_RATE_LIMIT_RPS", 50)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateBurst, err := getEnvInt("GLASSBOX_RATE_LIMIT_BURST", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	seed, err := getEnvBool("GLASSBOX_DB_SEED", true)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	truncateLimit, err := getEnvInt("GLASSBOX_DEBUG_TRUNCATE_LIMIT", 1000)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	slowCall, err := getEnvDuration("GLASSBOX_DEBUG_SLOW_CALL", 10*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	slowQuery, err := getEnvDuration("GLASSBOX_DEBUG_SLOW_QUERY", 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	historyCap, err := getEnvInt("GLASSBOX_DEBUG_HISTORY_CAPACITY", 20)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	sessionTTL, err := getEnvDuration("GLASSBOX_SESSION_IDLE_TTL", 12*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:           getEnv("GLASSBOX_SERVER_ADDR", ":8080"),
			ReadTimeout:    readTimeout,
			WriteTimeout:   writeTimeout,
			CORSOrigins:    getEnvList("GLASSBOX_CORS_ORIGINS", []string{"*"}),
			RateLimitRPS:   rateRPS,
			RateLimitBurst: rateBurst,
		},
		Database: DatabaseConfig{
			Path: getEnv("GLASSBOX_DB_PATH", "glassbox.db"),
			Seed: seed,
		},
		Debug: DebugConfig{
			TruncateLimit:   truncateLimit,
			SlowCall:        slowCall,
			SlowQuery:       slowQuery,
			HistoryCapacity: historyCap,
		},
		Session: SessionConfig{
			CookieName: getEnv("GLASSBOX_SESSION_COOKIE", "glassbox_session"),
			IdleTTL:    sessionTTL,
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("GLASSBOX_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("GLASSBOX_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RateLimitRPS <= 0 {
		return fmt.Errorf("GLASSBOX_RATE_LIMIT_RPS must be positive, got %v", c.Server.RateLimitRPS)
	}
	if c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("GLASSBOX_RATE_LIMIT_BURST must be >= 1, got %d", c.Server.RateLimitBurst)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("GLASSBOX_DB_PATH must not be empty")
	}
	if c.Debug.TruncateLimit < 1 {
		return fmt.Errorf("GLASSBOX_DEBUG_TRUNCATE_LIMIT must be >= 1, got %d", c.Debug.TruncateLimit)
	}
	if c.Debug.SlowCall <= 0 {
		return fmt.Errorf("GLASSBOX_DEBUG_SLOW_CALL must be positive, got %s", c.Debug.SlowCall)
	}
	if c.Debug.SlowQuery <= 0 {
		return fmt.Errorf("GLASSBOX_DEBUG_SLOW_QUERY must be positive, got %s", c.Debug.SlowQuery)
	}
	if c.Debug.HistoryCapacity < 1 {
		return fmt.Errorf("GLASSBOX_DEBUG_HISTORY_CAPACITY must be >= 1, got %d", c.Debug.HistoryCapacity)
	}
	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("GLASSBOX_SESSION_IDLE_TTL must be positive, got %s", c.Session.IdleTTL)
	}

	return nil
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

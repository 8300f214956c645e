package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Addr       string
	LogMode    string
	CORSOrigin string

	// DatabaseURL enables the annotation log. Empty disables it.
	DatabaseURL string
	// RedisURL selects the Redis draft store. Empty keeps drafts in memory.
	RedisURL string
	DraftTTL time.Duration

	GenerationURL     string
	GenerationToken   string
	GenerationTimeout time.Duration
	GenerationRPS     float64
	LessonsURL        string

	RetryMaxAttempts int
	RetryDelay       time.Duration
}

// fileConfig mirrors Config in the optional TOML overlay. Durations are
// given in seconds or milliseconds to match the environment variables.
type fileConfig struct {
	Addr                     *string  `toml:"addr"`
	LogMode                  *string  `toml:"log_mode"`
	CORSOrigin               *string  `toml:"cors_origin"`
	DatabaseURL              *string  `toml:"database_url"`
	RedisURL                 *string  `toml:"redis_url"`
	DraftTTLSeconds          *int     `toml:"draft_ttl_seconds"`
	GenerationURL            *string  `toml:"generation_url"`
	GenerationToken          *string  `toml:"generation_token"`
	GenerationTimeoutSeconds *int     `toml:"generation_timeout_seconds"`
	GenerationRPS            *float64 `toml:"generation_rps"`
	LessonsURL               *string  `toml:"lessons_url"`
	RetryMaxAttempts         *int     `toml:"retry_max_attempts"`
	RetryDelayMS             *int     `toml:"retry_delay_ms"`
}

func Defaults() Config {
	return Config{
		Addr:              ":8787",
		LogMode:           "dev",
		CORSOrigin:        "*",
		DraftTTL:          7 * 24 * time.Hour,
		GenerationURL:     "http://localhost:8000",
		GenerationTimeout: 60 * time.Second,
		GenerationRPS:     2,
		RetryMaxAttempts:  5,
		RetryDelay:        500 * time.Millisecond,
	}
}

// Load applies, in increasing precedence: defaults, the TOML file named by
// ANNOTATOR_CONFIG_FILE, environment variables.
func Load() (Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("ANNOTATOR_CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	if cfg.LessonsURL == "" {
		cfg.LessonsURL = cfg.GenerationURL
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	setString(&c.Addr, fc.Addr)
	setString(&c.LogMode, fc.LogMode)
	setString(&c.CORSOrigin, fc.CORSOrigin)
	setString(&c.DatabaseURL, fc.DatabaseURL)
	setString(&c.RedisURL, fc.RedisURL)
	setString(&c.GenerationURL, fc.GenerationURL)
	setString(&c.GenerationToken, fc.GenerationToken)
	setString(&c.LessonsURL, fc.LessonsURL)
	if fc.DraftTTLSeconds != nil {
		c.DraftTTL = time.Duration(*fc.DraftTTLSeconds) * time.Second
	}
	if fc.GenerationTimeoutSeconds != nil {
		c.GenerationTimeout = time.Duration(*fc.GenerationTimeoutSeconds) * time.Second
	}
	if fc.GenerationRPS != nil {
		c.GenerationRPS = *fc.GenerationRPS
	}
	if fc.RetryMaxAttempts != nil {
		c.RetryMaxAttempts = *fc.RetryMaxAttempts
	}
	if fc.RetryDelayMS != nil {
		c.RetryDelay = time.Duration(*fc.RetryDelayMS) * time.Millisecond
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Addr = getenv("API_ADDR", c.Addr)
	c.LogMode = getenv("ANNOTATOR_LOG_MODE", c.LogMode)
	c.CORSOrigin = getenv("ANNOTATOR_CORS_ORIGIN", c.CORSOrigin)
	c.DatabaseURL = getenv("DATABASE_URL", c.DatabaseURL)
	c.RedisURL = getenv("REDIS_URL", c.RedisURL)
	c.DraftTTL = time.Duration(getenvInt("ANNOTATOR_DRAFT_TTL_SECONDS", int(c.DraftTTL/time.Second))) * time.Second
	c.GenerationURL = getenv("GENERATION_API_URL", c.GenerationURL)
	c.GenerationToken = getenv("GENERATION_API_TOKEN", c.GenerationToken)
	c.GenerationTimeout = time.Duration(getenvInt("GENERATION_TIMEOUT_SECONDS", int(c.GenerationTimeout/time.Second))) * time.Second
	c.GenerationRPS = getenvFloat("GENERATION_RPS", c.GenerationRPS)
	c.LessonsURL = getenv("LESSONS_API_URL", c.LessonsURL)
	c.RetryMaxAttempts = getenvInt("ANNOTATOR_RETRY_MAX_ATTEMPTS", c.RetryMaxAttempts)
	c.RetryDelay = time.Duration(getenvInt("ANNOTATOR_RETRY_DELAY_MS", int(c.RetryDelay/time.Millisecond))) * time.Millisecond
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

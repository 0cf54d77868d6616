package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"quotewizard/internal/observability"
	"quotewizard/internal/wizard"
)

// Submission modes.
const (
	SubmissionStore = "store"
	SubmissionREST  = "rest"
)

// Config holds the server configuration.
type Config struct {
	Addr         string        `yaml:"addr"`
	DatabaseURL  string        `yaml:"database_url"`
	SQLiteDSN    string        `yaml:"sqlite_dsn"`
	CatalogPath  string        `yaml:"catalog_path"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	SweepEvery   time.Duration `yaml:"sweep_interval"`
	SummaryDelay time.Duration `yaml:"summary_delay"`
	DashboardURL string        `yaml:"dashboard_url"`

	// Submission selects where finished quotes go: the service's own store
	// or a PostgREST-style endpoint.
	Submission     string        `yaml:"submission"`
	RESTURL        string        `yaml:"rest_url"`
	RESTKey        string        `yaml:"rest_key"`
	RESTTimeout    time.Duration `yaml:"rest_timeout"`
	AdminTokenHash string        `yaml:"admin_token_hash"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
	TrustedProxies string  `yaml:"trusted_proxies"`

	// SubmitRateLimitRPS and SubmitRateLimitBurst bound quote submissions
	// per client, separately from the general limit.
	SubmitRateLimitRPS   float64 `yaml:"submit_rate_limit_rps"`
	SubmitRateLimitBurst int     `yaml:"submit_rate_limit_burst"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	StrictContact bool `yaml:"strict_contact_validation"`
}

func defaultConfig() *Config {
	return &Config{
		Addr:           ":8080",
		SessionTTL:     wizard.DefaultSessionTTL,
		SweepEvery:     5 * time.Minute,
		SummaryDelay:   1500 * time.Millisecond,
		Submission:     SubmissionStore,
		RESTTimeout:    10 * time.Second,
		RateLimitRPS:   100,
		RateLimitBurst: 200,

		SubmitRateLimitRPS:   0.2,
		SubmitRateLimitBurst: 3,

		LogLevel:  "info",
		LogFormat: "json",
	}
}

// LoadConfig loads configuration from an optional .env file, an optional
// YAML file and environment variables. Environment variables override YAML.
func LoadConfig(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"QUOTEWIZARD_ADDR":             &c.Addr,
		"DATABASE_URL":                 &c.DatabaseURL,
		"SQLITE_DSN":                   &c.SQLiteDSN,
		"QUOTEWIZARD_CATALOG":          &c.CatalogPath,
		"QUOTEWIZARD_DASHBOARD_URL":    &c.DashboardURL,
		"QUOTEWIZARD_SUBMISSION":       &c.Submission,
		"QUOTEWIZARD_REST_URL":         &c.RESTURL,
		"QUOTEWIZARD_REST_KEY":         &c.RESTKey,
		"QUOTEWIZARD_ADMIN_TOKEN_HASH": &c.AdminTokenHash,
		"QUOTEWIZARD_TRUSTED_PROXIES":  &c.TrustedProxies,
		"QUOTEWIZARD_LOG_LEVEL":        &c.LogLevel,
		"QUOTEWIZARD_LOG_FORMAT":       &c.LogFormat,
	}
	for k, dst := range str {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			*dst = v
		}
	}
	if p := os.Getenv("PORT"); p != "" {
		c.Addr = ":" + p
	}

	dur := map[string]*time.Duration{
		"QUOTEWIZARD_SESSION_TTL":    &c.SessionTTL,
		"QUOTEWIZARD_SWEEP_INTERVAL": &c.SweepEvery,
		"QUOTEWIZARD_SUMMARY_DELAY":  &c.SummaryDelay,
		"QUOTEWIZARD_REST_TIMEOUT":   &c.RESTTimeout,
	}
	for k, dst := range dur {
		v := strings.TrimSpace(os.Getenv(k))
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		*dst = d
	}

	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		c.RateLimitRPS = f
	}
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_BURST: %w", err)
		}
		c.RateLimitBurst = n
	}
	if v := strings.TrimSpace(os.Getenv("SUBMIT_RATE_LIMIT_RPS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SUBMIT_RATE_LIMIT_RPS: %w", err)
		}
		c.SubmitRateLimitRPS = f
	}
	if v := strings.TrimSpace(os.Getenv("SUBMIT_RATE_LIMIT_BURST")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SUBMIT_RATE_LIMIT_BURST: %w", err)
		}
		c.SubmitRateLimitBurst = n
	}
	if v := strings.TrimSpace(os.Getenv("QUOTEWIZARD_STRICT_CONTACT")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("QUOTEWIZARD_STRICT_CONTACT: %w", err)
		}
		c.StrictContact = b
	}
	return nil
}

// Validate checks the loaded configuration for contradictions.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required (set QUOTEWIZARD_ADDR, PORT or yaml)")
	}
	if c.SessionTTL < time.Minute {
		return errors.New("session_ttl must be at least 1 minute")
	}
	if c.SweepEvery <= 0 {
		return errors.New("sweep_interval must be positive")
	}
	if c.SummaryDelay < 0 {
		return errors.New("summary_delay must not be negative")
	}
	switch c.Submission {
	case SubmissionStore:
	case SubmissionREST:
		if c.RESTURL == "" || c.RESTKey == "" {
			return errors.New("rest submission needs rest_url and rest_key (QUOTEWIZARD_REST_URL, QUOTEWIZARD_REST_KEY)")
		}
		if u, err := url.Parse(c.RESTURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("rest_url %q is not an absolute URL", c.RESTURL)
		}
		if c.RESTTimeout <= 0 {
			return errors.New("rest_timeout must be positive")
		}
	default:
		return fmt.Errorf("submission must be %q or %q, got %q", SubmissionStore, SubmissionREST, c.Submission)
	}
	if c.DashboardURL != "" {
		if u, err := url.Parse(c.DashboardURL); err != nil || u.Scheme == "" {
			return fmt.Errorf("dashboard_url %q is not an absolute URL", c.DashboardURL)
		}
	}
	if c.AdminTokenHash != "" && !strings.HasPrefix(c.AdminTokenHash, "$2") {
		return errors.New("admin_token_hash must be a bcrypt hash (generate one with quotectl admin hash-token)")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 || c.SubmitRateLimitRPS < 0 || c.SubmitRateLimitBurst < 0 {
		return errors.New("rate limit values must not be negative")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be json or text, got %q", c.LogFormat)
	}
	return nil
}

// LoggerConfig returns the logger settings, read after the .env file and
// the YAML file have been applied.
func (c *Config) LoggerConfig() observability.Config {
	lc := observability.ConfigFromEnv()
	lc.Level = c.LogLevel
	lc.Format = c.LogFormat
	return lc
}

// redactedKey keeps enough of a secret to tell keys apart in logs.
func redactedKey(k string) string {
	if len(k) <= 8 {
		return strings.Repeat("*", len(k))
	}
	return k[:4] + "..." + k[len(k)-4:]
}

package config

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Config holds all configuration for the pushgate application.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	DatabaseURL     string `json:"database_url"`
	RedisAddr       string `json:"redis_addr,omitempty"`
	HTTPAddr        string `json:"http_addr"`
	ProviderBaseURL string `json:"provider_base_url"`
	ExecutionAPIURL string `json:"execution_api_url"`
	TokenAPIURL     string `json:"token_api_url"`

	DBOpTimeout    time.Duration `json:"-"`
	DBOpTimeoutStr string        `json:"db_op_timeout"`

	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBConnMaxLifetime    time.Duration `json:"-"`
	DBConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`
	DBConnMaxIdleTime    time.Duration `json:"-"`
	DBConnMaxIdleTimeStr string        `json:"db_conn_max_idle_time"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	// FetchTimeout bounds a single provider resource fetch.
	FetchTimeout    time.Duration `json:"-"`
	FetchTimeoutStr string        `json:"fetch_timeout"`

	// DispatchTimeout bounds a single execution API call.
	DispatchTimeout    time.Duration `json:"-"`
	DispatchTimeoutStr string        `json:"dispatch_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    string `json:"metrics_port"`

	JanitorEnabled  bool   `json:"janitor_enabled"`
	JanitorSchedule string `json:"janitor_schedule"`

	// DedupRetention is how long processed-notification keys are kept before
	// the janitor prunes them. Must exceed the provider's redelivery window.
	DedupRetention    time.Duration `json:"-"`
	DedupRetentionStr string        `json:"dedup_retention"`

	// TestSessionTTL is how long a test session may stay listening before the
	// janitor marks it failed.
	TestSessionTTL    time.Duration `json:"-"`
	TestSessionTTLStr string        `json:"test_session_ttl"`

	JanitorBatchSize int `json:"janitor_batch_size"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		HTTPAddr:               os.Getenv("HTTP_ADDR"),
		ProviderBaseURL:        os.Getenv("PROVIDER_BASE_URL"),
		ExecutionAPIURL:        os.Getenv("EXECUTION_API_URL"),
		TokenAPIURL:            os.Getenv("TOKEN_API_URL"),
		DBOpTimeoutStr:         os.Getenv("DB_OP_TIMEOUT"),
		DBConnMaxLifetimeStr:   os.Getenv("DB_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTimeStr:   os.Getenv("DB_CONN_MAX_IDLE_TIME"),
		HTTPShutdownTimeoutStr: os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		FetchTimeoutStr:        os.Getenv("FETCH_TIMEOUT"),
		DispatchTimeoutStr:     os.Getenv("DISPATCH_TIMEOUT"),
		MetricsEnabled:         os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:            os.Getenv("METRICS_PATH"),
		MetricsPort:            os.Getenv("METRICS_PORT"),
		JanitorEnabled:         os.Getenv("JANITOR_ENABLED") == "true",
		JanitorSchedule:        os.Getenv("JANITOR_SCHEDULE"),
		DedupRetentionStr:      os.Getenv("DEDUP_RETENTION"),
		TestSessionTTLStr:      os.Getenv("TEST_SESSION_TTL"),
	}

	if batchStr := os.Getenv("JANITOR_BATCH_SIZE"); batchStr != "" {
		if batch, err := parseInt(batchStr); err == nil && batch > 0 {
			cfg.JanitorBatchSize = batch
		} else {
			log.Printf("config: invalid JANITOR_BATCH_SIZE %q (must be a positive integer), using default 500", batchStr)
		}
	}
	if cfg.JanitorBatchSize == 0 {
		cfg.JanitorBatchSize = 500
	}

	if maxOpenStr := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpenStr != "" {
		if n, err := parseInt(maxOpenStr); err == nil && n > 0 {
			cfg.DBMaxOpenConns = n
		}
	}
	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = 25
	}

	if maxIdleStr := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdleStr != "" {
		if n, err := parseInt(maxIdleStr); err == nil && n > 0 {
			cfg.DBMaxIdleConns = n
		}
	}
	if cfg.DBMaxIdleConns == 0 {
		cfg.DBMaxIdleConns = 5
	}

	// Support Railway's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.ProviderBaseURL == "" {
		cfg.ProviderBaseURL = "https://graph.microsoft.com/v1.0"
	}
	if cfg.DBOpTimeoutStr == "" {
		cfg.DBOpTimeoutStr = "5s"
	}
	if cfg.DBConnMaxLifetimeStr == "" {
		cfg.DBConnMaxLifetimeStr = "30m"
	}
	if cfg.DBConnMaxIdleTimeStr == "" {
		cfg.DBConnMaxIdleTimeStr = "5m"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.FetchTimeoutStr == "" {
		cfg.FetchTimeoutStr = "10s"
	}
	if cfg.DispatchTimeoutStr == "" {
		cfg.DispatchTimeoutStr = "30s"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9090"
	}
	if cfg.JanitorSchedule == "" {
		cfg.JanitorSchedule = "0 * * * *"
	}
	if cfg.DedupRetentionStr == "" {
		cfg.DedupRetentionStr = "720h"
	}
	if cfg.TestSessionTTLStr == "" {
		cfg.TestSessionTTLStr = "10m"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.DBOpTimeoutStr); err == nil {
		cfg.DBOpTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxLifetimeStr); err == nil {
		cfg.DBConnMaxLifetime = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxIdleTimeStr); err == nil {
		cfg.DBConnMaxIdleTime = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.FetchTimeoutStr); err == nil {
		cfg.FetchTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DispatchTimeoutStr); err == nil {
		cfg.DispatchTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DedupRetentionStr); err == nil {
		cfg.DedupRetention = d
	}
	if d, err := time.ParseDuration(cfg.TestSessionTTLStr); err == nil {
		cfg.TestSessionTTL = d
	}

	return cfg
}

// parseInt parses a string as a non-negative integer.
func parseInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		DatabaseURL         string `json:"database_url"`
		RedisAddr           string `json:"redis_addr,omitempty"`
		HTTPAddr            string `json:"http_addr"`
		ProviderBaseURL     string `json:"provider_base_url"`
		ExecutionAPIURL     string `json:"execution_api_url"`
		TokenAPIURL         string `json:"token_api_url"`
		DBOpTimeout         string `json:"db_op_timeout"`
		DBMaxOpenConns      int    `json:"db_max_open_conns"`
		DBMaxIdleConns      int    `json:"db_max_idle_conns"`
		DBConnMaxLifetime   string `json:"db_conn_max_lifetime"`
		DBConnMaxIdleTime   string `json:"db_conn_max_idle_time"`
		HTTPShutdownTimeout string `json:"http_shutdown_timeout"`
		FetchTimeout        string `json:"fetch_timeout"`
		DispatchTimeout     string `json:"dispatch_timeout"`
		MetricsEnabled      bool   `json:"metrics_enabled"`
		MetricsPath         string `json:"metrics_path"`
		MetricsPort         string `json:"metrics_port"`
		JanitorEnabled      bool   `json:"janitor_enabled"`
		JanitorSchedule     string `json:"janitor_schedule"`
		DedupRetention      string `json:"dedup_retention"`
		TestSessionTTL      string `json:"test_session_ttl"`
		JanitorBatchSize    int    `json:"janitor_batch_size"`
	}{
		DatabaseURL:         maskSecret(c.DatabaseURL),
		RedisAddr:           c.RedisAddr,
		HTTPAddr:            c.HTTPAddr,
		ProviderBaseURL:     c.ProviderBaseURL,
		ExecutionAPIURL:     c.ExecutionAPIURL,
		TokenAPIURL:         c.TokenAPIURL,
		DBOpTimeout:         c.DBOpTimeoutStr,
		DBMaxOpenConns:      c.DBMaxOpenConns,
		DBMaxIdleConns:      c.DBMaxIdleConns,
		DBConnMaxLifetime:   c.DBConnMaxLifetimeStr,
		DBConnMaxIdleTime:   c.DBConnMaxIdleTimeStr,
		HTTPShutdownTimeout: c.HTTPShutdownTimeoutStr,
		FetchTimeout:        c.FetchTimeoutStr,
		DispatchTimeout:     c.DispatchTimeoutStr,
		MetricsEnabled:      c.MetricsEnabled,
		MetricsPath:         c.MetricsPath,
		MetricsPort:         c.MetricsPort,
		JanitorEnabled:      c.JanitorEnabled,
		JanitorSchedule:     c.JanitorSchedule,
		DedupRetention:      c.DedupRetentionStr,
		TestSessionTTL:      c.TestSessionTTLStr,
		JanitorBatchSize:    c.JanitorBatchSize,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return scheme + "***"
		}
	}
	return "***"
}

// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Pipeline PipelineConfig
	Engine   EngineConfig
	Notify   NotifyConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8000)
	Port int `env:"SERVER_PORT" default:"8000"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// MaxUploadSize caps multipart uploads in bytes (default: 100MB)
	MaxUploadSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility.
	// Optional here: dry runs work without a database. See RequireDatabase.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// PipelineConfig holds run orchestration settings.
type PipelineConfig struct {
	InputDir      string `env:"INPUT_DIR" default:"data/input"`
	QuarantineDir string `env:"QUARANTINE_DIR" default:"data/quarantine"`

	// FilePrefix names auto-detected files: <prefix>YYYYMMDD.csv
	FilePrefix string `env:"AUTO_FILE_PREFIX" default:"sales_"`

	// Schedule is a cron spec for automatic runs in the server. Empty disables it.
	Schedule string `env:"AUTO_SCHEDULE"`

	// MaxConcurrent is the maximum number of runs in flight (default: 2)
	MaxConcurrent int `env:"PIPELINE_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long a run waits for a slot (default: 30s)
	MaxWaitTime time.Duration `env:"PIPELINE_MAX_WAIT_TIME" default:"30s"`

	// RunTimeout bounds a single run (default: 10m)
	RunTimeout time.Duration `env:"PIPELINE_RUN_TIMEOUT" default:"10m"`
}

// EngineConfig holds the schema inference thresholds.
type EngineConfig struct {
	SampleSize       int     `env:"ENGINE_SAMPLE_SIZE" default:"100"`
	NumericThreshold float64 `env:"ENGINE_NUMERIC_THRESHOLD" default:"0.7"`
	DateThreshold    float64 `env:"ENGINE_DATE_THRESHOLD" default:"0.7"`
	MostlyEmptyRatio float64 `env:"ENGINE_MOSTLY_EMPTY_RATIO" default:"0.7"`
}

// NotifyConfig holds run report settings.
type NotifyConfig struct {
	Enabled bool `env:"ENABLE_NOTIFICATIONS" default:"false"`

	SMTPServer    string `env:"SMTP_SERVER" default:"smtp.gmail.com"`
	SMTPPort      int    `env:"SMTP_PORT" default:"587"`
	SMTPUser      string `env:"SMTP_USER"`
	SMTPPassword  string `env:"SMTP_PASSWORD"`
	SMTPRecipient string `env:"SMTP_RECIPIENT"` // Defaults to SMTPUser

	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// AllowedOrigins extends the CORS allow list (comma-separated)
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`

	// RequireAPIKey protects mutating routes with X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// TrustedProxies lists proxy CIDRs whose X-Real-IP / X-Forwarded-For
	// headers are honored (comma-separated)
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RateLimit is the per-IP request budget per minute (default: 300)
	RateLimit int `env:"RATE_LIMIT_PER_MINUTE" default:"300"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File additionally appends JSON records to this path when set
	File string `env:"LOG_FILE"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// EmailConfigured reports whether SMTP credentials are set.
func (c *NotifyConfig) EmailConfigured() bool {
	return c.SMTPUser != "" && c.SMTPPassword != ""
}

// Recipient returns the report recipient, falling back to the SMTP user.
func (c *NotifyConfig) Recipient() string {
	if c.SMTPRecipient != "" {
		return c.SMTPRecipient
	}
	return c.SMTPUser
}

// SlackConfigured reports whether a Slack webhook is set.
func (c *NotifyConfig) SlackConfigured() bool {
	return c.SlackWebhookURL != ""
}

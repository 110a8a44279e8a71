// Package config provides configuration loading and management for the
// shift sync service.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shiftsync/shiftsync/internal/payroll"
)

// Defaults for the sync engine tuning knobs.
const (
	// DefaultCycleInterval is the pause between full sync cycles.
	DefaultCycleInterval = time.Hour
	// DefaultSubjectDelay is the pacing delay between consecutive subjects
	// within a cycle.
	DefaultSubjectDelay = 5 * time.Second
	// DefaultErrorCooldown is the pause after a cycle-level failure.
	DefaultErrorCooldown = 5 * time.Minute
	// DefaultMaxRetries is the attempt ceiling for a single roster fetch.
	DefaultMaxRetries = 5
	// DefaultRetryDelay is the fixed delay between fetch attempts.
	DefaultRetryDelay = 30 * time.Second
	// DefaultHTTPTimeout bounds each roster HTTP request.
	DefaultHTTPTimeout = 30 * time.Second
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Database      *DatabaseConfig      `yaml:"database,omitempty"`
	Sync          SyncConfig           `yaml:"sync,omitempty"`
	Roster        RosterConfig         `yaml:"roster"`
	Calendar      *CalendarConfig      `yaml:"calendar,omitempty"`
	Notifications *NotificationsConfig `yaml:"notifications,omitempty"`
	Encryption    EncryptionConfig     `yaml:"encryption,omitempty"`
	Server        ServerConfig         `yaml:"server,omitempty"`
	Payroll       *PayrollConfig       `yaml:"payroll,omitempty"`
}

// PayrollConfig holds the pay rate table and the holiday calendar used for
// the holiday plus. When absent, payroll queries are disabled.
type PayrollConfig struct {
	Rates payroll.Rates `yaml:"rates"`

	// Holidays lists public holidays as ISO dates ("2026-12-25").
	Holidays []string `yaml:"holidays,omitempty"`
}

// IsHoliday reports whether the ISO date is in the holiday calendar.
func (p *PayrollConfig) IsHoliday(date string) bool {
	for _, h := range p.Holidays {
		if h == date {
			return true
		}
	}
	return false
}

// SyncConfig holds the tuning knobs of the sync engine. All durations are
// Go duration strings ("1h", "30s"); zero values fall back to defaults.
type SyncConfig struct {
	// CycleInterval is the pause between full sync cycles.
	CycleInterval string `yaml:"cycleInterval,omitempty"`

	// SubjectDelay is the pacing delay between subjects within a cycle.
	SubjectDelay string `yaml:"subjectDelay,omitempty"`

	// ErrorCooldown is the pause after a cycle-level failure before the
	// next cycle starts.
	ErrorCooldown string `yaml:"errorCooldown,omitempty"`

	// MaxRetries is the attempt ceiling for a single roster fetch.
	MaxRetries int `yaml:"maxRetries,omitempty"`

	// RetryDelay is the fixed delay between fetch attempts.
	RetryDelay string `yaml:"retryDelay,omitempty"`
}

// RosterConfig defines the upstream roster service endpoints.
type RosterConfig struct {
	// AuthURL is the token endpoint.
	AuthURL string `yaml:"authUrl"`

	// RosterURL is the roster endpoint. The subject's username is appended
	// as a path segment when not already present.
	RosterURL string `yaml:"rosterUrl"`

	// HTTPTimeout bounds each roster HTTP request.
	HTTPTimeout string `yaml:"httpTimeout,omitempty"`
}

// CalendarConfig defines the calendar service used for shift events.
// When absent, calendar side effects are disabled.
type CalendarConfig struct {
	// BaseURL is the calendar API base, e.g.
	// "https://www.googleapis.com/calendar/v3".
	BaseURL string `yaml:"baseUrl"`

	// CalendarID is the target calendar.
	CalendarID string `yaml:"calendarId"`

	// Timezone is the IANA zone events are created in.
	Timezone string `yaml:"timezone,omitempty"`

	// TokenURL is the OAuth2 token endpoint.
	TokenURL string `yaml:"tokenUrl"`

	// ClientID and ClientSecretFile identify the OAuth2 client. The secret
	// lives in a file, never in the config itself.
	ClientID         string `yaml:"clientId"`
	ClientSecretFile string `yaml:"clientSecretFile"`
}

// NotificationsConfig defines the push notification publisher.
// When absent, notifications are disabled.
type NotificationsConfig struct {
	// URL is the publish endpoint, e.g. "https://ntfy.sh".
	URL string `yaml:"url"`

	// Topic is the channel shift change notices are published to.
	Topic string `yaml:"topic"`
}

// EncryptionConfig locates the Fernet key protecting stored credentials.
type EncryptionConfig struct {
	// KeyFile is the path to a file containing the base64 Fernet key.
	KeyFile string `yaml:"keyFile,omitempty"`
}

// ServerConfig defines the HTTP status surface.
type ServerConfig struct {
	// Address is the listen address, defaulting to ":8080".
	Address string `yaml:"address,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password.
	// The file should contain only the password with optional trailing
	// whitespace.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxConns is the maximum size of the connection pool
	MaxConns int32 `yaml:"maxConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from SHIFTSYNC_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv("SHIFTSYNC_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or SHIFTSYNC_DATABASE_PASSWORD environment variable",
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	escapedPassword := url.QueryEscape(password)

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		escapedPassword,
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// GetMigrationConnectionString builds the connection string in the scheme
// the migration tooling's pgx driver registers under.
func (d *DatabaseConfig) GetMigrationConnectionString() (string, error) {
	connString, err := d.GetConnectionString()
	if err != nil {
		return "", err
	}
	return "pgx5://" + strings.TrimPrefix(connString, "postgres://"), nil
}

// GetKey returns the Fernet key using the following priority:
// 1. Read from KeyFile if specified
// 2. Read from SHIFTSYNC_ENCRYPTION_KEY environment variable
func (e *EncryptionConfig) GetKey() (string, error) {
	if e.KeyFile != "" {
		cleanPath := filepath.Clean(e.KeyFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read encryption key from file %s: %w", e.KeyFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envKey := os.Getenv("SHIFTSYNC_ENCRYPTION_KEY"); envKey != "" {
		return envKey, nil
	}

	return "", fmt.Errorf(
		"no encryption key configured: set keyFile or SHIFTSYNC_ENCRYPTION_KEY environment variable",
	)
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetAddress returns the HTTP listen address, using ":8080" if not specified.
func (s ServerConfig) GetAddress() string {
	if s.Address == "" {
		return ":8080"
	}
	return s.Address
}

// GetCycleInterval returns the configured cycle interval or the default.
func (s SyncConfig) GetCycleInterval() time.Duration {
	return durationOrDefault(s.CycleInterval, DefaultCycleInterval)
}

// GetSubjectDelay returns the configured per-subject delay or the default.
func (s SyncConfig) GetSubjectDelay() time.Duration {
	return durationOrDefault(s.SubjectDelay, DefaultSubjectDelay)
}

// GetErrorCooldown returns the configured error cooldown or the default.
func (s SyncConfig) GetErrorCooldown() time.Duration {
	return durationOrDefault(s.ErrorCooldown, DefaultErrorCooldown)
}

// GetMaxRetries returns the configured retry ceiling or the default.
func (s SyncConfig) GetMaxRetries() int {
	if s.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return s.MaxRetries
}

// GetRetryDelay returns the configured retry delay or the default.
func (s SyncConfig) GetRetryDelay() time.Duration {
	return durationOrDefault(s.RetryDelay, DefaultRetryDelay)
}

// GetHTTPTimeout returns the configured roster HTTP timeout or the default.
func (r RosterConfig) GetHTTPTimeout() time.Duration {
	return durationOrDefault(r.HTTPTimeout, DefaultHTTPTimeout)
}

func durationOrDefault(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if c.Roster.AuthURL == "" {
		return fmt.Errorf("roster: authUrl is required")
	}
	if c.Roster.RosterURL == "" {
		return fmt.Errorf("roster: rosterUrl is required")
	}

	if c.Calendar != nil {
		if c.Calendar.BaseURL == "" {
			return fmt.Errorf("calendar: baseUrl is required")
		}
		if c.Calendar.CalendarID == "" {
			return fmt.Errorf("calendar: calendarId is required")
		}
	}

	if c.Notifications != nil {
		if c.Notifications.URL == "" {
			return fmt.Errorf("notifications: url is required")
		}
		if c.Notifications.Topic == "" {
			return fmt.Errorf("notifications: topic is required")
		}
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"sync.cycleInterval", c.Sync.CycleInterval},
		{"sync.subjectDelay", c.Sync.SubjectDelay},
		{"sync.errorCooldown", c.Sync.ErrorCooldown},
		{"sync.retryDelay", c.Sync.RetryDelay},
		{"roster.httpTimeout", c.Roster.HTTPTimeout},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", field.name, field.value, err)
		}
	}

	c.warnSuspiciousTuning()

	return nil
}

// warnSuspiciousTuning flags legal but almost certainly unintended values.
func (c *Config) warnSuspiciousTuning() {
	if d := c.Sync.GetCycleInterval(); d < time.Minute {
		slog.Warn("sync cycle interval is very short", "interval", d)
	}
	if c.Sync.MaxRetries > 10 {
		slog.Warn("sync retry ceiling is very high", "maxRetries", c.Sync.MaxRetries)
	}
	if d := c.Sync.GetSubjectDelay(); d > time.Minute {
		slog.Warn("per-subject delay is very long", "delay", d)
	}
}

// Package config provides configuration loading and management for grain-shell.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/grain-editor/grain-shell/internal/save"
	"github.com/grain-editor/grain-shell/internal/telemetry"
)

const (
	// StorageTypeMemory keeps documents in process memory only
	StorageTypeMemory = "memory"

	// StorageTypeFile keeps one file per document below the data directory
	StorageTypeFile = "file"

	// StorageTypeSQLite keeps documents in an embedded SQLite database
	StorageTypeSQLite = "sqlite"

	// StorageTypeDatabase keeps documents in a PostgreSQL database
	StorageTypeDatabase = "database"
)

const (
	// AppName names the data directory below the XDG data home
	AppName = "grain-shell"

	// EnvPrefix is the prefix of environment variables read by the CLI
	EnvPrefix = "GRAIN"

	// DefaultListenAddress is where the local API listens
	DefaultListenAddress = "127.0.0.1:8765"

	// PasswordEnvVar is consulted when no password file is configured
	PasswordEnvVar = "GRAIN_DATABASE_PASSWORD"

	defaultSSLMode = "require"
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

		// Validate the path to prevent path traversal attacks
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
	Save      SaveConfig        `yaml:"save,omitempty"`
	Storage   StorageConfig     `yaml:"storage,omitempty"`
	Journal   JournalConfig     `yaml:"journal,omitempty"`
	Server    ServerConfig      `yaml:"server,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// SaveConfig defines the save policy applied to every open document
type SaveConfig struct {
	// DebounceInterval is the quiet period before an automatic write (e.g. "2s").
	// "0" disables automatic writes.
	DebounceInterval string `yaml:"debounceInterval,omitempty"`

	// StatusThrottle is the minimum spacing between "unsaved" status updates
	StatusThrottle string `yaml:"statusThrottle,omitempty"`

	// AutoSave enables automatic writes after the debounce interval.
	// Defaults to true.
	AutoSave *bool `yaml:"autoSave,omitempty"`

	// WriteTimeout bounds a single store write attempt
	WriteTimeout string `yaml:"writeTimeout,omitempty"`

	// MaxWriteAttempts is the number of store calls per write, 1 disables retries
	MaxWriteAttempts int `yaml:"maxWriteAttempts,omitempty"`
}

// StorageConfig defines where document content is persisted
type StorageConfig struct {
	// Type is one of memory, file, sqlite or database. Defaults to sqlite.
	Type string `yaml:"type,omitempty"`

	// DataDir holds the file store, the SQLite database and the journal.
	// Defaults to $XDG_DATA_HOME/grain-shell.
	DataDir string `yaml:"dataDir,omitempty"`

	// Database configures the PostgreSQL connection for the database type
	Database *DatabaseConfig `yaml:"database,omitempty"`
}

// JournalConfig controls the recovery journal for failed final flushes
type JournalConfig struct {
	// Enabled defaults to true
	Enabled *bool `yaml:"enabled,omitempty"`
}

// ServerConfig configures the local API
type ServerConfig struct {
	// Address must be a loopback address. Defaults to 127.0.0.1:8765.
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

	// PasswordFile is the path to a file containing the database password
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from GRAIN_DATABASE_PASSWORD environment variable
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

	if envPassword := os.Getenv(PasswordEnvVar); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s environment variable", PasswordEnvVar,
	)
}

// GetSSLMode returns the SSL mode, using "require" if not specified
func (d *DatabaseConfig) GetSSLMode() string {
	if d.SSLMode == "" {
		return defaultSSLMode
	}
	return d.SSLMode
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		d.GetSSLMode(),
	)

	return connString, nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{}
}

// LoadConfig loads and parses configuration from a YAML file. Without
// WithConfigPath it returns the defaults.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error
	if err := c.Save.validate(); err != nil {
		errs = append(errs, fmt.Errorf("save: %w", err))
	}
	if err := c.Storage.validate(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}
	if err := c.Server.validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}
	return errors.Join(errs...)
}

func (s *SaveConfig) validate() error {
	durations := map[string]string{
		"debounceInterval": s.DebounceInterval,
		"statusThrottle":   s.StatusThrottle,
		"writeTimeout":     s.WriteTimeout,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s must be a valid duration (e.g., '2s', '500ms'): %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if s.MaxWriteAttempts < 0 {
		return fmt.Errorf("maxWriteAttempts must not be negative, got %d", s.MaxWriteAttempts)
	}
	return nil
}

func (s *StorageConfig) validate() error {
	switch s.GetType() {
	case StorageTypeMemory, StorageTypeFile, StorageTypeSQLite:
		return nil
	case StorageTypeDatabase:
		return s.Database.validate()
	default:
		return fmt.Errorf("unknown storage type '%s'", s.Type)
	}
}

func (d *DatabaseConfig) validate() error {
	if d == nil {
		return fmt.Errorf("database configuration is required for storage type %s", StorageTypeDatabase)
	}
	if d.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if d.Port == 0 {
		return fmt.Errorf("database port is required")
	}
	if d.User == "" {
		return fmt.Errorf("database user is required")
	}
	if d.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if d.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(d.ConnMaxLifetime); err != nil {
			return fmt.Errorf("invalid connection max lifetime: %w", err)
		}
	}
	return nil
}

func (s *ServerConfig) validate() error {
	if s.Address == "" {
		return nil
	}
	host, _, err := splitHostPort(s.Address)
	if err != nil {
		return err
	}
	if !isLoopback(host) {
		return fmt.Errorf("address must be a loopback address, got %s", s.Address)
	}
	return nil
}

// GetType returns the storage type, using sqlite if not specified
func (s *StorageConfig) GetType() string {
	if s.Type == "" {
		return StorageTypeSQLite
	}
	return s.Type
}

// GetDataDir returns the data directory, using the XDG data home if not specified
func (s *StorageConfig) GetDataDir() string {
	if s.DataDir == "" {
		return filepath.Join(xdg.DataHome, AppName)
	}
	return s.DataDir
}

// GetDocumentsDir returns the directory of the file store
func (s *StorageConfig) GetDocumentsDir() string {
	return filepath.Join(s.GetDataDir(), "documents")
}

// GetSQLitePath returns the path of the SQLite database
func (s *StorageConfig) GetSQLitePath() string {
	return filepath.Join(s.GetDataDir(), "grain.db")
}

// GetJournalDir returns the directory of the recovery journal
func (s *StorageConfig) GetJournalDir() string {
	return filepath.Join(s.GetDataDir(), "journal")
}

// GetStatusDir returns the directory where document statuses are kept across restarts
func (s *StorageConfig) GetStatusDir() string {
	return filepath.Join(s.GetDataDir(), "status")
}

// IsEnabled reports whether the recovery journal is enabled, defaulting to true
func (j *JournalConfig) IsEnabled() bool {
	return j.Enabled == nil || *j.Enabled
}

// GetAddress returns the listen address of the local API
func (s *ServerConfig) GetAddress() string {
	if s.Address == "" {
		return DefaultListenAddress
	}
	return s.Address
}

// IsAutoSave reports whether automatic writes are enabled
func (s *SaveConfig) IsAutoSave() bool {
	if s.AutoSave != nil && !*s.AutoSave {
		return false
	}
	return s.DebounceInterval == "" || parseDuration(s.DebounceInterval) > 0
}

// CoordinatorConfig converts the save section into the coordinator policy.
// Unset values fall back to the coordinator defaults.
func (s *SaveConfig) CoordinatorConfig() save.Config {
	return save.Config{
		DebounceInterval: parseDuration(s.DebounceInterval),
		StatusThrottle:   parseDuration(s.StatusThrottle),
		DisableAutoSave:  !s.IsAutoSave(),
		WriteTimeout:     parseDuration(s.WriteTimeout),
		MaxWriteAttempts: s.MaxWriteAttempts,
	}
}

// parseDuration parses a validated duration, treating invalid values as unset
func parseDuration(value string) time.Duration {
	if value == "" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

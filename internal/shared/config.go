package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix is the prefix for environment overrides, e.g. PLSYNC_SYNC_RETRY_COUNT.
const EnvPrefix = "PLSYNC"

// Append modes
const (
	AppendPerItem = "item"
	AppendBatch   = "batch"
)

// Failure policies
const (
	OnFailureSkip  = "skip"
	OnFailureAbort = "abort"
)

// Backoff strategies
const (
	BackoffConstant    = "constant"
	BackoffExponential = "exponential"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Sync     SyncConfig     `toml:"sync"`
	Audio    AudioConfig    `toml:"audio"`
	YouTube  YouTubeConfig  `toml:"youtube"`
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
}

// SyncConfig controls the ledger-synced batch processor.
type SyncConfig struct {
	RetryCount    int           `toml:"retry_count" split_words:"true"`
	RetryDelay    time.Duration `toml:"retry_delay" split_words:"true"`
	Backoff       string        `toml:"backoff" split_words:"true"`
	MaxRetryDelay time.Duration `toml:"max_retry_delay" split_words:"true"`
	ItemDelay     time.Duration `toml:"item_delay" split_words:"true"`
	AppendMode    string        `toml:"append_mode" split_words:"true"`
	OnFailure     string        `toml:"on_failure" split_words:"true"`
	LedgerHeader  bool          `toml:"ledger_header" split_words:"true"`
}

// AudioConfig contains transcoding settings.
type AudioConfig struct {
	Encoder      string `toml:"ffmpeg_path" split_words:"true"`
	Bitrate      string `toml:"bitrate" split_words:"true"`
	FolderLayout string `toml:"folder_layout" split_words:"true"`
}

// YouTubeConfig contains settings for the playlist client.
type YouTubeConfig struct {
	Timeout time.Duration `toml:"timeout" split_words:"true"`
}

// DatabaseConfig contains run history database settings.
type DatabaseConfig struct {
	Enabled      bool   `toml:"enabled" split_words:"true"`
	Path         string `toml:"path" split_words:"true"`
	MaxOpenConns int    `toml:"max_open_conns" split_words:"true"`
	MaxIdleConns int    `toml:"max_idle_conns" split_words:"true"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level string `toml:"level" split_words:"true"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ResolveConfig loads path when it exists (defaults otherwise), then applies .env and environment overrides.
func ResolveConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadDotEnv loads variables from a .env file into the process environment.
//
// A missing file is not an error. Variables already set are not overwritten.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides config fields from PLSYNC_* environment variables.
func ApplyEnv(config *Config) error {
	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return config.Validate()
}

// Validate checks enumerated and numeric settings.
func (c *Config) Validate() error {
	if c.Sync.RetryCount < 1 {
		return fmt.Errorf("%w: sync.retry_count must be at least 1, got %d", ErrInvalidConfig, c.Sync.RetryCount)
	}
	if c.Sync.RetryDelay < 0 || c.Sync.ItemDelay < 0 {
		return fmt.Errorf("%w: delays must not be negative", ErrInvalidConfig)
	}
	switch c.Sync.AppendMode {
	case AppendPerItem, AppendBatch:
	default:
		return fmt.Errorf("%w: sync.append_mode must be %q or %q, got %q", ErrInvalidConfig, AppendPerItem, AppendBatch, c.Sync.AppendMode)
	}
	switch c.Sync.OnFailure {
	case OnFailureSkip, OnFailureAbort:
	default:
		return fmt.Errorf("%w: sync.on_failure must be %q or %q, got %q", ErrInvalidConfig, OnFailureSkip, OnFailureAbort, c.Sync.OnFailure)
	}
	switch c.Sync.Backoff {
	case BackoffConstant, BackoffExponential:
	default:
		return fmt.Errorf("%w: sync.backoff must be %q or %q, got %q", ErrInvalidConfig, BackoffConstant, BackoffExponential, c.Sync.Backoff)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

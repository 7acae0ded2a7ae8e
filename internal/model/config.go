package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// PlatformConfig holds the connection settings for the hosted data
// platform. The access token is not part of the file; it lives in the
// system keyring (see internal/credential).
type PlatformConfig struct {
	// BaseURL is the root URL of the platform's REST API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`

	// APIKey is the per-project key sent alongside the user token.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
}

// CaptureConfig holds settings for the email-to-task capture job.
type CaptureConfig struct {
	// Enabled controls whether the capture schedule runs at all.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Host and Port locate the IMAP server.
	Host string `mapstructure:"host" yaml:"host" validate:"omitempty,hostname|ip"`
	Port int    `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`

	// Username is the IMAP login; the password lives in the keyring.
	Username string `mapstructure:"username" yaml:"username"`

	// TLS selects implicit TLS; when false the client upgrades with
	// STARTTLS.
	TLS bool `mapstructure:"tls" yaml:"tls"`

	// Mailbox is the folder to capture from.
	Mailbox string `mapstructure:"mailbox" yaml:"mailbox"`

	// Schedule is a cron expression for the capture job.
	Schedule string `mapstructure:"schedule" yaml:"schedule"`

	// LookbackDays bounds how far back the unseen-message search goes.
	LookbackDays int `mapstructure:"lookback_days" yaml:"lookback_days" validate:"min=1,max=90"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`

	// RefreshIntervalSec is how often the board re-fetches from the
	// platform. Refreshes also reconcile optimistic local updates that
	// failed remotely.
	RefreshIntervalSec int `mapstructure:"refresh_interval_sec" yaml:"refresh_interval_sec" validate:"min=30"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Platform PlatformConfig `mapstructure:"platform" yaml:"platform"`
	Capture  CaptureConfig  `mapstructure:"capture" yaml:"capture"`
	Display  DisplayConfig  `mapstructure:"display" yaml:"display"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints after unmarshaling.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/taskboard/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "taskboard", "config.yaml")
}

// DefaultStateDir returns the directory for mutable state (log file,
// snapshot database), located at ~/.local/state/taskboard.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "state")
	}
	return filepath.Join(home, ".local", "state", "taskboard")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Capture: CaptureConfig{
			Port:         993,
			TLS:          true,
			Mailbox:      "INBOX",
			Schedule:     "@every 5m",
			LookbackDays: 7,
		},
		Display: DisplayConfig{
			Theme:              "default",
			RefreshIntervalSec: 300,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. Missing files resolve to defaults; environment variables with
// the TASKBOARD_ prefix override file values.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TASKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("capture.port", 993)
	v.SetDefault("capture.tls", true)
	v.SetDefault("capture.mailbox", "INBOX")
	v.SetDefault("capture.schedule", "@every 5m")
	v.SetDefault("capture.lookback_days", 7)
	v.SetDefault("display.theme", "default")
	v.SetDefault("display.refresh_interval_sec", 300)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("platform", cfg.Platform)
	v.Set("capture", cfg.Capture)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

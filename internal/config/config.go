package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const appName = "aleph"

type Config struct {
	AgentName   string            `mapstructure:"agent_name"`
	Models      []Model           `mapstructure:"models"`
	Modes       map[string]string `mapstructure:"modes"`
	DefaultMode string            `mapstructure:"default_mode"`
	History     HistoryConfig     `mapstructure:"history"`
	Input       InputConfig       `mapstructure:"input"`
	Retry       RetryConfig       `mapstructure:"retry"`
	Analysis    AnalysisConfig    `mapstructure:"analysis"`
	Log         LogConfig         `mapstructure:"log"`
	Theme       ThemeConfig       `mapstructure:"theme"`
}

// HistoryConfig controls /save and /load.
type HistoryConfig struct {
	DefaultFile string `mapstructure:"default_file"` // used when /save or /load get no argument
}

// InputConfig controls the line editor.
type InputConfig struct {
	HistoryFile string `mapstructure:"history_file"` // recall history for the prompt, empty disables persistence
}

// RetryConfig controls backoff for transient provider failures.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

// AnalysisConfig tunes /dir_analyze.
type AnalysisConfig struct {
	Ignore []string `mapstructure:"ignore"` // extra doublestar globs, matched against paths relative to the analyzed root
}

// LogConfig configures the structured log file.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"` // empty disables logging
}

// ThemeConfig allows customization of UI colors
// Colors can be ANSI color numbers (0-255) or hex codes (#RRGGBB)
type ThemeConfig struct {
	Primary   string `mapstructure:"primary"`
	Secondary string `mapstructure:"secondary"`
	Success   string `mapstructure:"success"`
	Error     string `mapstructure:"error"`
	Warning   string `mapstructure:"warning"`
	Muted     string `mapstructure:"muted"`
	Text      string `mapstructure:"text"`
}

// Load reads config.yaml from the XDG config dir or the working directory.
// A missing file is not an error; every key has a default.
func Load() (*Config, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return nil, &ConfigError{Msg: "failed to get config dir", Err: err}
	}
	return LoadFrom(configDir, ".")
}

// LoadFrom is Load with explicit search paths.
func LoadFrom(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &ConfigError{Msg: "failed to read config", Err: err}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Msg: "failed to unmarshal config", Err: err}
	}

	cfg.History.DefaultFile = expandPath(cfg.History.DefaultFile)
	cfg.Input.HistoryFile = expandPath(cfg.Input.HistoryFile)
	cfg.Log.File = expandPath(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("agent_name", "Aleph")
	v.SetDefault("default_mode", "core")
	v.SetDefault("history.default_file", "chat_history.json")
	v.SetDefault("input.history_file", filepath.Join(GetDataDir(), "command_history"))
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "2s")
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(GetStateDir(), appName+".log"))
	// models and modes are merged with the built-in catalog in Catalog()
}

// Validate checks values viper cannot check for us.
func (c *Config) Validate() error {
	for i, m := range c.Models {
		if strings.TrimSpace(m.ID) == "" {
			return &ConfigError{Msg: fmt.Sprintf("models[%d] has an empty id", i)}
		}
	}
	if c.Retry.MaxAttempts < 1 {
		return &ConfigError{Msg: fmt.Sprintf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)}
	}
	if c.Retry.BaseDelay < 0 {
		return &ConfigError{Msg: "retry.base_delay must not be negative"}
	}
	if c.Retry.Multiplier < 1 {
		return &ConfigError{Msg: fmt.Sprintf("retry.multiplier must be at least 1, got %g", c.Retry.Multiplier)}
	}
	return nil
}

// Catalog builds the immutable model and mode catalog from the config.
// Configured models replace the built-in list; configured modes are merged over the built-in ones.
func (c *Config) Catalog() (Catalog, error) {
	models := c.Models
	if len(models) == 0 {
		models = DefaultModels()
	}
	modes := DefaultModes()
	for name, instruction := range c.Modes {
		modes[strings.ToLower(strings.TrimSpace(name))] = instruction
	}
	return NewCatalog(c.AgentName, models, modes, c.DefaultMode)
}

// expandPath expands a leading ~ and ${VAR} references.
func expandPath(path string) string {
	path = os.ExpandEnv(path)
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// GetConfigDir returns the XDG config directory for aleph.
// Uses $XDG_CONFIG_HOME if set, otherwise ~/.config
func GetConfigDir() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, appName), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", appName), nil
}

// GetDataDir returns the XDG data directory for aleph.
// Uses $XDG_DATA_HOME if set, otherwise ~/.local/share
func GetDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, appName)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+appName)
	}
	return filepath.Join(homeDir, ".local", "share", appName)
}

// GetStateDir returns the XDG state directory (logs).
func GetStateDir() string {
	if xdgState := os.Getenv("XDG_STATE_HOME"); xdgState != "" {
		return filepath.Join(xdgState, appName)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+appName)
	}
	return filepath.Join(homeDir, ".local", "state", appName)
}

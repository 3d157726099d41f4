// Package config provides the configuration structure for the read-aloud service.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/book-expert/read-aloud/internal/tts/text"
	"github.com/pelletier/go-toml/v2"
)

// Preference backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendNATS   = "nats"
)

// Environment overrides, typically provided through a .env file.
const (
	envNATSURL            = "READ_ALOUD_NATS_URL"
	envPreferencesBackend = "READ_ALOUD_PREFERENCES_BACKEND"
	envPreferencesPath    = "READ_ALOUD_PREFERENCES_PATH"
	envSpeechBinary       = "READ_ALOUD_SPEECH_BINARY"
	envSpeechRate         = "READ_ALOUD_SPEECH_RATE"
)

// Default values applied to empty fields.
const (
	defaultRate            = 1.0
	defaultPitch           = 1.0
	defaultVolume          = 1.0
	defaultBackend         = BackendFile
	defaultPreferencesFile = "preferences.toml"
	defaultPreferencesDB   = "preferences.db"
	defaultPrefsBucket     = "READ_ALOUD_PREFERENCES"
	maxRate                = 10.0
)

var (
	// ErrRateRange indicates a speaking rate outside (0, 10].
	ErrRateRange = errors.New("speech rate must be greater than 0 and at most 10")
	// ErrVolumeRange indicates a volume outside [0, 1].
	ErrVolumeRange = errors.New("speech volume must be between 0.0 and 1.0")
	// ErrUnknownBackend indicates an unsupported preference backend.
	ErrUnknownBackend = errors.New("unknown preference backend")
	// ErrNATSURLEmpty indicates that a NATS-backed component has no server URL.
	ErrNATSURLEmpty = errors.New("nats url cannot be empty")
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                      string `toml:"url"`
	TextProcessedSubject     string `toml:"text_processed_subject"`
	ArticleObjectStoreBucket string `toml:"article_object_store_bucket"`
	PreferencesBucket        string `toml:"preferences_bucket"`
}

// SpeechConfig holds the playback defaults and the speech binary to drive.
type SpeechConfig struct {
	Binary       string  `toml:"binary"`
	Rate         float64 `toml:"rate"`
	Pitch        float64 `toml:"pitch"`
	Volume       float64 `toml:"volume"`
	DefaultVoice string  `toml:"default_voice"`
}

// PreferencesConfig selects where voice and pitch preferences are persisted.
// Path is a file path for the file and sqlite backends.
type PreferencesConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// NormalizerConfig holds extra phonetic replacement rules.
type NormalizerConfig struct {
	Rules []text.ReplacementRule `toml:"rules"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS        NATSConfig        `toml:"nats"`
	Speech      SpeechConfig      `toml:"speech"`
	Preferences PreferencesConfig `toml:"preferences"`
	Normalizer  NormalizerConfig  `toml:"normalizer"`
	Paths       PathsConfig       `toml:"paths"`
}

// Load loads the configuration through the central configurator.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finalize(&cfg)
}

// LoadFile loads the configuration from an explicit TOML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file '%s': %w", path, err)
	}

	return Parse(data)
}

// Parse decodes TOML data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	err := toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	return finalize(&cfg)
}

// ApplyEnv overrides configuration fields from READ_ALOUD_* variables.
func ApplyEnv(cfg *Config) error {
	if value := os.Getenv(envNATSURL); value != "" {
		cfg.NATS.URL = value
	}

	if value := os.Getenv(envPreferencesBackend); value != "" {
		cfg.Preferences.Backend = value
	}

	if value := os.Getenv(envPreferencesPath); value != "" {
		cfg.Preferences.Path = value
	}

	if value := os.Getenv(envSpeechBinary); value != "" {
		cfg.Speech.Binary = value
	}

	if value := os.Getenv(envSpeechRate); value != "" {
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envSpeechRate, err)
		}

		cfg.Speech.Rate = rate
	}

	applyDefaults(cfg)

	return cfg.Validate()
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.Speech.Rate <= 0 || c.Speech.Rate > maxRate {
		return fmt.Errorf("%w: got %f", ErrRateRange, c.Speech.Rate)
	}

	if c.Speech.Volume < 0 || c.Speech.Volume > 1 {
		return fmt.Errorf("%w: got %f", ErrVolumeRange, c.Speech.Volume)
	}

	switch c.Preferences.Backend {
	case BackendMemory, BackendFile, BackendSQLite:
	case BackendNATS:
		if c.NATS.URL == "" {
			return fmt.Errorf("%w: required by the %s preference backend", ErrNATSURLEmpty, BackendNATS)
		}
	default:
		return fmt.Errorf("%w: '%s'", ErrUnknownBackend, c.Preferences.Backend)
	}

	err := text.ValidateRules(text.MergeRules(text.DefaultRules(), c.Normalizer.Rules))
	if err != nil {
		return fmt.Errorf("invalid normalizer rules: %w", err)
	}

	return nil
}

func finalize(cfg *Config) (*Config, error) {
	applyDefaults(cfg)

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Speech.Rate == 0 {
		cfg.Speech.Rate = defaultRate
	}

	if cfg.Speech.Pitch == 0 {
		cfg.Speech.Pitch = defaultPitch
	}

	if cfg.Speech.Volume == 0 {
		cfg.Speech.Volume = defaultVolume
	}

	if cfg.Preferences.Backend == "" {
		cfg.Preferences.Backend = defaultBackend
	}

	if cfg.Preferences.Path == "" {
		switch cfg.Preferences.Backend {
		case BackendFile:
			cfg.Preferences.Path = defaultPreferencesPath(defaultPreferencesFile)
		case BackendSQLite:
			cfg.Preferences.Path = defaultPreferencesPath(defaultPreferencesDB)
		}
	}

	if cfg.NATS.PreferencesBucket == "" {
		cfg.NATS.PreferencesBucket = defaultPrefsBucket
	}

	if cfg.Paths.BaseLogsDir == "" {
		cfg.Paths.BaseLogsDir = os.TempDir()
	}
}

func defaultPreferencesPath(name string) string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	return filepath.Join(configDir, "read-aloud", name)
}

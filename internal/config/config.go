// Package config provides the configuration structure for the tts-editor.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/book-expert/tts-editor/internal/backend"
	"github.com/pelletier/go-toml/v2"
)

// Defaults applied to zero values. Endpoint defaults are the backend client's own.
const (
	DefaultTimeoutSeconds      = 60
	DefaultVoicesPath          = backend.DefaultVoicesPath
	DefaultPreviewPath         = backend.DefaultPreviewPath
	DefaultListDirectoryPath   = backend.DefaultListDirectoryPath
	DefaultExportPath          = backend.DefaultExportPath
	DefaultRecommendPath       = backend.DefaultRecommendPath
	DefaultStorageBucket       = backend.DefaultStorageBucket
	DefaultDebounceMillis      = 500
	DefaultExportExtension     = ".mp3"
	DefaultCanonicalLocale     = "en-US"
	DefaultCanonicalStyle      = "Conversational"
	DefaultNATSURL             = "nats://127.0.0.1:4222"
	DefaultPreviewBucket       = "TTS_EDITOR_PREVIEWS"
	DefaultNotificationSubject = "tts.editor.notifications"
	DefaultIntakeSubject       = "tts.editor.intake"
	DefaultPreviewDir          = "previews"
)

// ErrBaseURLRequired is returned when the backend base URL is missing.
var ErrBaseURLRequired = errors.New("backend.base_url is required")

// BackendConfig holds the remote backend endpoints.
type BackendConfig struct {
	BaseURL           string `toml:"base_url"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	VoicesPath        string `toml:"voices_path"`
	PreviewPath       string `toml:"preview_path"`
	ListDirectoryPath string `toml:"list_directory_path"`
	ExportPath        string `toml:"export_path"`
	RecommendPath     string `toml:"recommend_path"`
	StorageBucket     string `toml:"storage_bucket"`
}

// Timeout returns the request timeout.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// EditorConfig holds the editing behaviour.
type EditorConfig struct {
	DebounceMillis  int    `toml:"debounce_millis"`
	ExportExtension string `toml:"export_extension"`
	CanonicalLocale string `toml:"canonical_locale"`
	CanonicalStyle  string `toml:"canonical_style"`
}

// Debounce returns the settle time of the export name check.
func (e EditorConfig) Debounce() time.Duration {
	return time.Duration(e.DebounceMillis) * time.Millisecond
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                 string `toml:"url"`
	PreviewBucket       string `toml:"preview_bucket"`
	NotificationSubject string `toml:"notification_subject"`
	IntakeSubject       string `toml:"intake_subject"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	PreviewDir  string `toml:"preview_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Backend BackendConfig `toml:"backend"`
	Editor  EditorConfig  `toml:"editor"`
	NATS    NATSConfig    `toml:"nats"`
	Paths   PathsConfig   `toml:"paths"`
}

// Load loads the configuration through the configurator.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finish(&cfg)
}

// LoadFile loads the configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes TOML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	err := toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyDefaults()

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	setDefault(&c.Backend.VoicesPath, DefaultVoicesPath)
	setDefault(&c.Backend.PreviewPath, DefaultPreviewPath)
	setDefault(&c.Backend.ListDirectoryPath, DefaultListDirectoryPath)
	setDefault(&c.Backend.ExportPath, DefaultExportPath)
	setDefault(&c.Backend.RecommendPath, DefaultRecommendPath)
	setDefault(&c.Backend.StorageBucket, DefaultStorageBucket)

	if c.Backend.TimeoutSeconds <= 0 {
		c.Backend.TimeoutSeconds = DefaultTimeoutSeconds
	}

	if c.Editor.DebounceMillis <= 0 {
		c.Editor.DebounceMillis = DefaultDebounceMillis
	}

	setDefault(&c.Editor.ExportExtension, DefaultExportExtension)
	setDefault(&c.Editor.CanonicalLocale, DefaultCanonicalLocale)
	setDefault(&c.Editor.CanonicalStyle, DefaultCanonicalStyle)

	setDefault(&c.NATS.URL, DefaultNATSURL)
	setDefault(&c.NATS.PreviewBucket, DefaultPreviewBucket)
	setDefault(&c.NATS.NotificationSubject, DefaultNotificationSubject)
	setDefault(&c.NATS.IntakeSubject, DefaultIntakeSubject)

	setDefault(&c.Paths.BaseLogsDir, os.TempDir())
	setDefault(&c.Paths.PreviewDir, DefaultPreviewDir)
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return ErrBaseURLRequired
	}

	return nil
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

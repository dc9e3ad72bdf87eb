package editor

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/google/renameio/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	SettingsVersion         = 0.1
	DefaultSound            = "ding"
	DefaultAutoSaveInterval = 10000

	envPrefix = "FLOWSTORE"
)

// Notifications is kept for compatibility with stored settings files.
type Notifications struct {
	Enabled bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Sound   *string `mapstructure:"sound"   yaml:"sound"   json:"sound"`
}

// Settings are the persisted editor preferences.
type Settings struct {
	Version       float64       `mapstructure:"version"            yaml:"version"            json:"version"`
	Notifications Notifications `mapstructure:"notifications"      yaml:"notifications"      json:"notifications"`
	AutoSave      bool          `mapstructure:"auto_save"          yaml:"auto_save"          json:"autoSave"`

	// AutoSaveInterval is expressed in milliseconds.
	AutoSaveInterval int `mapstructure:"auto_save_interval" yaml:"auto_save_interval" json:"autoSaveInterval" validate:"min=1000"`
}

func DefaultSettings() Settings {
	sound := DefaultSound

	return Settings{
		Version: SettingsVersion,
		Notifications: Notifications{
			Enabled: true,
			Sound:   &sound,
		},
		AutoSave:         true,
		AutoSaveInterval: DefaultAutoSaveInterval,
	}
}

// Interval returns the auto-save period, never shorter than MinInterval.
func (s Settings) Interval() time.Duration {
	interval := time.Duration(s.AutoSaveInterval) * time.Millisecond

	return max(interval, MinInterval)
}

// SettingsStore persists Settings as a YAML file merged over defaults.
// Environment variables prefixed with FLOWSTORE_ override stored values.
type SettingsStore struct {
	path     string
	logger   *slog.Logger
	validate *validator.Validate

	mu sync.Mutex
	v  *viper.Viper
}

func NewSettingsStore(path string, logger *slog.Logger) *SettingsStore {
	v := viper.New()

	defaults := DefaultSettings()
	v.SetDefault("version", defaults.Version)
	v.SetDefault("notifications.enabled", defaults.Notifications.Enabled)
	v.SetDefault("notifications.sound", *defaults.Notifications.Sound)
	v.SetDefault("auto_save", defaults.AutoSave)
	v.SetDefault("auto_save_interval", defaults.AutoSaveInterval)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &SettingsStore{
		path:     path,
		logger:   logger.With("module", "settings_store"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		v:        v,
	}
}

func (s *SettingsStore) Path() string {
	return s.path
}

// Load reads the stored settings. A missing file yields the defaults.
func (s *SettingsStore) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("failed to read settings %s: %w", s.path, err)
		}
	}

	return s.decode()
}

// decode must be called with mu held.
func (s *SettingsStore) decode() (Settings, error) {
	var settings Settings

	err := s.v.Unmarshal(&settings)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}

	// A null sound falls back to the default in viper, so look at the raw file.
	if s.soundDisabled() {
		settings.Notifications.Sound = nil
	}

	return settings, nil
}

func (s *SettingsStore) soundDisabled() bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}

	var raw struct {
		Notifications map[string]any `yaml:"notifications"`
	}

	if err := yaml.Unmarshal(data, &raw); err != nil {
		return false
	}

	sound, ok := raw.Notifications["sound"]

	return ok && sound == nil
}

// Save validates and atomically writes settings.
func (s *SettingsStore) Save(settings Settings) error {
	err := s.validate.Struct(settings)
	if err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = os.MkdirAll(filepath.Dir(s.path), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	err = renameio.WriteFile(s.path, data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write settings %s: %w", s.path, err)
	}

	return nil
}

// Watch calls onChange with the reloaded settings every time the file
// changes. The file is created with the current settings if missing.
func (s *SettingsStore) Watch(onChange func(Settings)) error {
	_, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		current, err := s.Load()
		if err != nil {
			return err
		}

		if err := s.Save(current); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.v.ReadInConfig()
	if err != nil {
		return fmt.Errorf("failed to read settings %s: %w", s.path, err)
	}

	s.v.OnConfigChange(func(event fsnotify.Event) {
		s.mu.Lock()
		settings, err := s.decode()
		s.mu.Unlock()

		if err != nil {
			s.logger.Error("Failed to reload settings", "file", event.Name, "error", err)

			return
		}

		s.logger.Info("Settings changed", "file", event.Name, "auto_save", settings.AutoSave)
		onChange(settings)
	})
	s.v.WatchConfig()

	return nil
}

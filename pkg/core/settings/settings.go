// Package settings is the persisted game-settings store the discussion
// supervisor observes. Values live in a TOML file, can be overridden with
// SPY_* environment variables, and are reloaded when the file changes.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	envPrefix       = "SPY"
	fileMode        = 0o600
	dirMode         = 0o700
	tempFilePattern = ".settings-*.toml.tmp"
)

// Settings are the toggles and tuning values the AI seat reads.
type Settings struct {
	AIEnabled                bool   `mapstructure:"ai_enabled" toml:"ai_enabled"`
	AIVoiceInputEnabled      bool   `mapstructure:"ai_voice_input_enabled" toml:"ai_voice_input_enabled"`
	AIVoiceOutputEnabled     bool   `mapstructure:"ai_voice_output_enabled" toml:"ai_voice_output_enabled"`
	AIAutoFacilitatorEnabled bool   `mapstructure:"ai_auto_facilitator_enabled" toml:"ai_auto_facilitator_enabled"`
	SilenceThresholdMs       int    `mapstructure:"silence_threshold_ms" toml:"silence_threshold_ms"`
	InterventionRestMs       int    `mapstructure:"intervention_rest_ms" toml:"intervention_rest_ms"`
	AnswerWindowMs           int    `mapstructure:"answer_window_ms" toml:"answer_window_ms"`
	PreferredVoiceProvider   string `mapstructure:"preferred_voice_provider" toml:"preferred_voice_provider"`
	Voice                    string `mapstructure:"voice" toml:"voice,omitempty"`
	HumanSimulation          bool   `mapstructure:"human_simulation" toml:"human_simulation"`
	RefineTranscripts        bool   `mapstructure:"refine_transcripts" toml:"refine_transcripts"`
}

// Defaults returns the settings used when nothing is configured.
// InterventionRestMs of 0 means "derive from the silence threshold".
func Defaults() Settings {
	return Settings{
		AIEnabled:                true,
		AIVoiceInputEnabled:      true,
		AIVoiceOutputEnabled:     true,
		AIAutoFacilitatorEnabled: true,
		SilenceThresholdMs:       6000,
		InterventionRestMs:       0,
		AnswerWindowMs:           7000,
		PreferredVoiceProvider:   "cloud",
	}
}

var defaultValues = map[string]any{
	"ai_enabled":                  true,
	"ai_voice_input_enabled":      true,
	"ai_voice_output_enabled":     true,
	"ai_auto_facilitator_enabled": true,
	"silence_threshold_ms":        6000,
	"intervention_rest_ms":        0,
	"answer_window_ms":            7000,
	"preferred_voice_provider":    "cloud",
	"voice":                       "",
	"human_simulation":            false,
	"refine_transcripts":          false,
}

// Keys returns the settable keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaultValues))
	for k := range defaultValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Store reads and writes the settings file.
type Store struct {
	v    *viper.Viper
	path string

	mu        sync.RWMutex
	current   Settings
	listeners []func(Settings)
}

// Open loads the settings at path. A missing file yields defaults.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("settings path is empty")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	for k, val := range defaultValues {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	s := &Store{v: v, path: path}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Current returns the latest settings.
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// OnChange registers fn to run after every reload.
func (s *Store) OnChange(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Watch reloads the settings whenever the file changes on disk.
func (s *Store) Watch() {
	s.v.OnConfigChange(func(fsnotify.Event) {
		if err := s.reload(); err != nil {
			return
		}
		s.notify()
	})
	s.v.WatchConfig()
}

// Set validates and persists a single key.
func (s *Store) Set(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	def, ok := defaultValues[key]
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}

	var parsed any
	switch def.(type) {
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: expected true or false", key)
		}
		parsed = b
	case int:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%s: expected a non-negative integer", key)
		}
		parsed = n
	default:
		parsed = value
	}
	if key == "preferred_voice_provider" {
		switch value {
		case "cloud", "device", "browser":
		default:
			return fmt.Errorf("%s: expected cloud or device", key)
		}
	}

	next, err := withValue(s.Current(), key, parsed)
	if err != nil {
		return err
	}
	return s.Save(next)
}

// withValue round-trips st through its TOML form to replace one key.
func withValue(st Settings, key string, value any) (Settings, error) {
	data, err := toml.Marshal(st)
	if err != nil {
		return Settings{}, fmt.Errorf("encode settings: %w", err)
	}
	fields := map[string]any{}
	if err := toml.Unmarshal(data, &fields); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	fields[key] = value
	if data, err = toml.Marshal(fields); err != nil {
		return Settings{}, fmt.Errorf("encode settings: %w", err)
	}
	var out Settings
	if err := toml.Unmarshal(data, &out); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return out, nil
}

// Save writes the settings file atomically and applies it.
func (s *Store) Save(next Settings) error {
	if err := writeFile(s.path, next); err != nil {
		return err
	}
	if err := s.reload(); err != nil {
		return err
	}
	s.notify()
	return nil
}

func (s *Store) reload() error {
	if err := s.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read settings file: %w", err)
		}
	}
	next, err := s.decode()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return nil
}

func (s *Store) decode() (Settings, error) {
	var out Settings
	if err := s.v.Unmarshal(&out); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return out, nil
}

func (s *Store) notify() {
	s.mu.RLock()
	current := s.current
	listeners := append([]func(Settings){}, s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(current)
	}
}

func writeFile(path string, st Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	data, err := toml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode settings file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp settings file: %w", err)
	}
	if err := tempFile.Chmod(fileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp settings file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp settings file: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	cleanup = false
	return nil
}

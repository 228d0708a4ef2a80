// Package config handles loading and saving markon configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/markon/config.yaml
//   - Data:    ~/.local/share/markon/ (the content store)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const appName = "markon"

// RenderConfig tunes the preview scheduler.
type RenderConfig struct {
	Debounce       time.Duration `yaml:"debounce,omitempty"`
	FrameInterval  time.Duration `yaml:"frame_interval,omitempty"`
	HighlightStyle string        `yaml:"highlight_style,omitempty"` // chroma style name
}

// PersistConfig tunes the persistence pipeline.
type PersistConfig struct {
	Debounce      time.Duration `yaml:"debounce,omitempty"`
	IdleQuiet     time.Duration `yaml:"idle_quiet,omitempty"`   // Quiet period before a save is idle
	IdleTimeout   time.Duration `yaml:"idle_timeout,omitempty"` // Longest wait for an idle period
	Strategy      string        `yaml:"strategy,omitempty"`     // auto, worker, direct
	UnloadTimeout time.Duration `yaml:"unload_timeout,omitempty"`
	LogLevel      string        `yaml:"log_level,omitempty"` // none, error, warn, info, debug, trace
	// WorkerCommand runs the worker in a separate process (e.g. "markon-worker
	// -store-backend bolt"). Empty keeps it on a goroutine.
	WorkerCommand string `yaml:"worker_command,omitempty"`
}

// StoreConfig selects the durable store.
type StoreConfig struct {
	Backend string `yaml:"backend,omitempty"` // sqlite, bolt, memory
	Path    string `yaml:"path,omitempty"`
}

// Config is the top-level configuration for markon.
type Config struct {
	Render  RenderConfig  `yaml:"render,omitempty"`
	Persist PersistConfig `yaml:"persist,omitempty"`
	Store   StoreConfig   `yaml:"store,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Render: RenderConfig{
			Debounce:       50 * time.Millisecond,
			FrameInterval:  16 * time.Millisecond,
			HighlightStyle: "github",
		},
		Persist: PersistConfig{
			Debounce:      600 * time.Millisecond,
			IdleQuiet:     50 * time.Millisecond,
			IdleTimeout:   time.Second,
			Strategy:      "auto",
			UnloadTimeout: 2 * time.Second,
			LogLevel:      "warn",
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    defaultStorePath(),
		},
	}
}

func defaultStorePath() string {
	dir := DataDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "content.db")
}

// ConfigDir returns the XDG config directory for markon.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// DataDir returns the XDG data directory for markon.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory and applies
// environment overrides. Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		cfg.ApplyEnv()
		return cfg, cfg.Validate()
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Store.Path = expandHome(cfg.Store.Path)
	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from MARKON_* environment variables.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("MARKON_PERSIST_STRATEGY")); v != "" {
		c.Persist.Strategy = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("MARKON_STORE_BACKEND")); v != "" {
		c.Store.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("MARKON_STORE_PATH")); v != "" {
		c.Store.Path = expandHome(v)
	}
	if v := strings.TrimSpace(os.Getenv("MARKON_WORKER_LOG")); v != "" {
		c.Persist.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("MARKON_WORKER_COMMAND")); v != "" {
		c.Persist.WorkerCommand = v
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Render.Debounce < 0 || c.Persist.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative")
	}
	if c.Persist.IdleTimeout > 0 && c.Persist.IdleTimeout < c.Persist.IdleQuiet {
		return fmt.Errorf("persist.idle_timeout (%s) is shorter than persist.idle_quiet (%s)",
			c.Persist.IdleTimeout, c.Persist.IdleQuiet)
	}
	switch c.Persist.Strategy {
	case "", "auto", "worker", "direct":
	default:
		return fmt.Errorf("unknown persist.strategy %q", c.Persist.Strategy)
	}
	switch c.Store.Backend {
	case "", "sqlite", "bolt":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %q backend", c.Store.Backend)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

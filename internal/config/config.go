package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/rafabd1/therminal/pkg/utils"
)

// Package config handles loading, validation, and access to application configuration.

// EnvPrefix prefixes every environment override, e.g. THERMINAL_LOG_LEVEL.
const EnvPrefix = "THERMINAL"

const (
	defaultConfigDirName  = ".therminal"
	defaultConfigFileName = "config.yaml"
	localConfigFileName   = "therminal.yaml"
	defaultLogFileName    = "therminal.log"
)

// UI modes.
const (
	UIModeTUI = "tui"
	UIModeRaw = "raw"
)

// Config holds the application configuration.
type Config struct {
	Terminal TerminalConfig `yaml:"terminal"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	UI       UIConfig       `yaml:"ui"`

	// Source is the file the configuration was read from, empty for
	// built-in defaults.
	Source string `yaml:"-" ignored:"true"`
}

// TerminalConfig configures the PTY session.
type TerminalConfig struct {
	Shell          string        `yaml:"shell,omitempty"` // empty: zsh, then $SHELL, then /bin/sh
	Login          bool          `yaml:"login"`
	InputCapacity  int           `yaml:"input_capacity" split_words:"true"`
	OutputCapacity int           `yaml:"output_capacity" split_words:"true"`
	PollTimeout    time.Duration `yaml:"poll_timeout" split_words:"true"`
	ShutdownSignal string        `yaml:"shutdown_signal" split_words:"true"` // "" sends nothing
	Term           string        `yaml:"term"`                               // TERM for the child
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	File        string `yaml:"file"` // "stderr" or a path
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Address string `yaml:"address,omitempty"` // empty disables the endpoint
}

// UIConfig configures the host front end.
type UIConfig struct {
	Mode          string        `yaml:"mode"`
	FrameInterval time.Duration `yaml:"frame_interval" split_words:"true"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Terminal: TerminalConfig{
			Login:          true,
			InputCapacity:  256,
			OutputCapacity: 0x1000,
			PollTimeout:    10 * time.Millisecond,
			ShutdownSignal: "SIGHUP",
			Term:           "xterm-256color",
		},
		Log: LogConfig{
			Level: "info",
			File:  defaultLogPath(),
		},
		UI: UIConfig{
			Mode:          UIModeTUI,
			FrameInterval: 16 * time.Millisecond,
		},
	}
}

func defaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "stderr"
	}
	return filepath.Join(home, defaultConfigDirName, defaultLogFileName)
}

// Load reads configuration and applies environment overrides.
//
// An explicit path must exist. Otherwise the first of ./therminal.yaml and
// ~/.therminal/config.yaml that exists is used, and built-in defaults when
// neither does. Values missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	var cfg *Config
	var err error

	if path != "" {
		cfg, err = loadFromFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "error reading config from %s", path)
		}
	} else {
		cfg, err = loadFirst(searchPaths())
		if err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to apply environment overrides")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func searchPaths() []string {
	paths := []string{localConfigFileName}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, defaultConfigDirName, defaultConfigFileName))
	}
	return paths
}

func loadFirst(paths []string) (*Config, error) {
	for _, p := range paths {
		cfg, err := loadFromFile(p)
		if err == nil {
			return cfg, nil
		}
		if !os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(err, "error reading config from %s", p)
		}
	}
	return Default(), nil
}

func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err // os.IsNotExist must still see it
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config yaml %s", filePath)
	}
	cfg.Source = filePath
	return cfg, nil
}

// Validate rejects values the session cannot run with.
func (c *Config) Validate() error {
	t := c.Terminal
	if t.InputCapacity <= 0 {
		return errors.Errorf("terminal.input_capacity must be positive, got %d", t.InputCapacity)
	}
	if t.OutputCapacity <= 0 {
		return errors.Errorf("terminal.output_capacity must be positive, got %d", t.OutputCapacity)
	}
	if t.PollTimeout < time.Millisecond {
		return errors.Errorf("terminal.poll_timeout must be at least 1ms, got %s", t.PollTimeout)
	}
	if t.ShutdownSignal != "" && utils.MapSignal(t.ShutdownSignal) == nil {
		return errors.Errorf("terminal.shutdown_signal %q is not a known signal", t.ShutdownSignal)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	switch c.UI.Mode {
	case UIModeTUI, UIModeRaw:
	default:
		return errors.Errorf("ui.mode must be %q or %q, got %q", UIModeTUI, UIModeRaw, c.UI.Mode)
	}
	if c.UI.FrameInterval <= 0 {
		return errors.Errorf("ui.frame_interval must be positive, got %s", c.UI.FrameInterval)
	}
	return nil
}

// ChildEnv returns the environment for the shell: the current one with
// TERM replaced.
func (c *Config) ChildEnv() []string {
	env := os.Environ()
	if c.Terminal.Term == "" {
		return env
	}
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if len(kv) >= 5 && kv[:5] == "TERM=" {
			continue
		}
		out = append(out, kv)
	}
	return append(out, "TERM="+c.Terminal.Term)
}

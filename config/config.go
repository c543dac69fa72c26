// Package config loads host settings from TOML.
//
// Every key is optional; missing keys keep the values from Default.
//
//	root             = "/var/lib/scripthost"
//	bundle           = "bundle"
//	bundle_version   = 0                      # 0 derives it from file times
//	interpreter      = "bin/interpreter.wasm"
//	interpreter_name = "node"
//	module_path_env  = "NODE_PATH"
//	redirect_output  = true
//
//	[env]
//	NODE_ENV = "production"
//
//	[store]
//	backend = "sqlite"                        # file | sqlite | memory
//	path    = "prefs.db"
//
//	[log]
//	level       = "info"
//	development = false
//	output      = ""                         # file path, stderr when empty
//
//	[service]
//	notifications = "prompt"                  # granted | denied | prompt
//	title         = "Script host"
//	content       = "Runtime is running"
//
//	[metrics]
//	addr = "127.0.0.1:9464"
//
// Relative paths are resolved against root.
package config

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/wippyai/script-host/errors"
)

var validate = validator.New()

// Config is the full host configuration.
type Config struct {
	Root            string            `toml:"root" validate:"required"`
	Bundle          string            `toml:"bundle" validate:"required"`
	BundleVersion   int64             `toml:"bundle_version" validate:"gte=0"`
	Interpreter     string            `toml:"interpreter" validate:"required"`
	InterpreterName string            `toml:"interpreter_name" validate:"required"`
	ModulePathEnv   string            `toml:"module_path_env" validate:"required"`
	RedirectOutput  bool              `toml:"redirect_output"`
	Env             map[string]string `toml:"env"`

	Store   StoreConfig   `toml:"store"`
	Log     LogConfig     `toml:"log"`
	Service ServiceConfig `toml:"service"`
	Metrics MetricsConfig `toml:"metrics"`
}

// StoreConfig selects the key-value backend.
type StoreConfig struct {
	Backend string `toml:"backend" validate:"oneof=file sqlite memory"`
	Path    string `toml:"path"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `toml:"level" validate:"oneof=debug info warn error"`
	Development bool   `toml:"development"`
	// Output is a log file path. Empty logs to stderr.
	Output string `toml:"output"`
}

// ServiceConfig configures the service variant.
type ServiceConfig struct {
	Notifications string `toml:"notifications" validate:"oneof=granted denied prompt"`
	Title         string `toml:"title"`
	Content       string `toml:"content"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr      string `toml:"addr" validate:"omitempty,hostname_port"`
	Namespace string `toml:"namespace"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Root:            ".scripthost",
		Bundle:          "bundle",
		Interpreter:     "bin/interpreter.wasm",
		InterpreterName: "node",
		ModulePathEnv:   "NODE_PATH",
		RedirectOutput:  true,
		Store: StoreConfig{
			Backend: "file",
		},
		Log: LogConfig{
			Level: "info",
		},
		Service: ServiceConfig{
			Notifications: "prompt",
			Title:         "Script host",
			Content:       "Runtime is running",
		},
		Metrics: MetricsConfig{
			Namespace: "scripthost",
		},
	}
}

// Load reads path over the defaults and validates the result. Unknown keys
// are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindIO, err, "load "+path)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, errors.InvalidInput(errors.PhaseConfig, "unknown keys: "+strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "invalid configuration")
	}
	return nil
}

// Resolve makes p absolute against Root unless it already is.
func (c Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// BundlePath returns the resolved bundle directory.
func (c Config) BundlePath() string {
	return c.Resolve(c.Bundle)
}

// InterpreterPath returns the resolved interpreter module.
func (c Config) InterpreterPath() string {
	return c.Resolve(c.Interpreter)
}

// StorePath returns the resolved store file, defaulting per backend.
func (c Config) StorePath() string {
	p := c.Store.Path
	if p == "" {
		switch c.Store.Backend {
		case "sqlite":
			p = "prefs.db"
		default:
			p = "prefs.yaml"
		}
	}
	return c.Resolve(p)
}

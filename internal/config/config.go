// Package config loads installer settings from defaults, an optional config
// file, OPENCODE_* environment variables, and CLI flags, in that order.
package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	tomlparser "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/sst/opencode-install/internal/xdg"
)

// envPrefix is the namespace for environment overrides, e.g.
// OPENCODE_VERSION and OPENCODE_INSTALL_DIR.
const envPrefix = "OPENCODE_"

// Config holds every knob the installer accepts.
type Config struct {
	// Version is the explicit version to install; empty means latest.
	Version string `koanf:"version"`

	// InstallDir is where the binary is placed.
	InstallDir string `koanf:"install_dir"`

	// NoIntegrate skips the shell-config mutation.
	NoIntegrate bool `koanf:"no_integrate"`

	// Debug enables the debug log file.
	Debug bool `koanf:"debug"`

	// NoColor disables styled output.
	NoColor bool `koanf:"no_color"`
}

// Loader assembles a Config from all sources with precedence.
type Loader struct {
	k          *koanf.Koanf
	configFile string
}

// NewLoader creates a Loader reading the default config file location.
func NewLoader() *Loader {
	return NewLoaderWithFile(xdg.ConfigFile())
}

// NewLoaderWithFile creates a Loader with a custom config file (for testing).
func NewLoaderWithFile(configFile string) *Loader {
	return &Loader{
		k:          koanf.New("."),
		configFile: configFile,
	}
}

// Load merges defaults, the optional TOML file, OPENCODE_* env vars, and CLI
// flags (highest precedence) into a Config.
func (l *Loader) Load(flags map[string]any) (*Config, error) {
	defaults := map[string]any{
		"version":      "",
		"install_dir":  xdg.DefaultInstallDir(),
		"no_integrate": false,
		"debug":        false,
		"no_color":     false,
	}

	if err := l.k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	if l.configFile != "" {
		err := l.k.Load(file.Provider(l.configFile), tomlparser.Parser())
		if err != nil && !os.IsNotExist(errors.UnwrapAll(err)) &&
			!strings.Contains(err.Error(), "no such file") {
			return nil, errors.Wrapf(err, "failed to load %s", l.configFile)
		}
	}

	envOpt := env.Opt{
		Prefix:        envPrefix,
		TransformFunc: envTransform,
	}

	if err := l.k.Load(env.Provider(".", envOpt), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load env vars")
	}

	if len(flags) > 0 {
		if err := l.k.Load(confmap.Provider(flags, "."), nil); err != nil {
			return nil, errors.Wrap(err, "failed to load flags")
		}
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	return &cfg, nil
}

// envTransform maps environment variable names to config keys.
// OPENCODE_INSTALL_DIR → install_dir (keys are flat, not nested).
func envTransform(key, value string) (string, any) {
	key = strings.TrimPrefix(key, envPrefix)
	key = strings.ToLower(key)

	return key, value
}

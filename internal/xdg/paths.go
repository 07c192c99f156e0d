// Package xdg provides path lookup following XDG Base Directory conventions.
// All user-level paths the installer touches on disk are defined here.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "opencode"

func userHome() (string, error) {
	return os.UserHomeDir()
}

// ConfigHome returns $XDG_CONFIG_HOME or ~/.config.
func ConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}

	home, err := userHome()
	if err != nil {
		return filepath.Join("~", ".config")
	}

	return filepath.Join(home, ".config")
}

// StateHome returns $XDG_STATE_HOME or ~/.local/state.
func StateHome() string {
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return v
	}

	home, err := userHome()
	if err != nil {
		return filepath.Join("~", ".local", "state")
	}

	return filepath.Join(home, ".local", "state")
}

// ConfigDir returns ConfigHome()/opencode.
func ConfigDir() string {
	return filepath.Join(ConfigHome(), appName)
}

// ConfigFile returns the installer's optional config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "install.toml")
}

// StateDir returns StateHome()/opencode.
func StateDir() string {
	return filepath.Join(StateHome(), appName)
}

// LogFile returns the installer's debug log path.
func LogFile() string {
	return filepath.Join(StateDir(), "install.log")
}

// DefaultInstallDir returns ~/.opencode/bin, the directory the binary is
// placed in when OPENCODE_INSTALL_DIR is not set.
func DefaultInstallDir() string {
	home, err := userHome()
	if err != nil {
		return filepath.Join("~", "."+appName, "bin")
	}

	return filepath.Join(home, "."+appName, "bin")
}

// Zdotdir returns $ZDOTDIR or the home directory, where zsh looks for .zshrc.
func Zdotdir() string {
	if v := os.Getenv("ZDOTDIR"); v != "" {
		return v
	}

	home, err := userHome()
	if err != nil {
		return "~"
	}

	return home
}

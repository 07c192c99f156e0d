// Package shellenv wires the install directory into the user's shell startup
// file, idempotently, across shell dialects.
package shellenv

import (
	"path/filepath"
)

// Kind identifies the user's interactive shell dialect.
type Kind int

const (
	// KindUnknown is any shell we have no dedicated handling for.
	KindUnknown Kind = iota
	// KindFish is the fish shell.
	KindFish
	// KindZsh is zsh.
	KindZsh
	// KindBash is bash.
	KindBash
	// KindPosix covers plain POSIX shells (sh, dash, ash, ksh).
	KindPosix
)

// String returns a human-readable name for the shell kind.
func (k Kind) String() string {
	switch k {
	case KindFish:
		return "fish"
	case KindZsh:
		return "zsh"
	case KindBash:
		return "bash"
	case KindPosix:
		return "sh"
	default:
		return "unknown"
	}
}

// Detect maps a $SHELL value to a Kind. Termux environments are forced to
// bash, their default shell, because $SHELL is unreliable there.
func Detect(shellPath string, android bool) Kind {
	if android {
		return KindBash
	}

	switch filepath.Base(shellPath) {
	case "fish":
		return KindFish
	case "zsh":
		return KindZsh
	case "bash":
		return KindBash
	case "sh", "dash", "ash", "ksh":
		return KindPosix
	default:
		return KindUnknown
	}
}

// Profile is the resolved shell integration target.
type Profile struct {
	Kind       Kind
	Candidates []string
	Chosen     string
}

// candidates returns the ordered config-file candidates for a shell kind.
// The first entry is also the fallback used for manual instructions.
func candidates(kind Kind, home, configHome, zdotdir string) []string {
	switch kind {
	case KindFish:
		paths := []string{filepath.Join(configHome, "fish", "config.fish")}

		if fallback := filepath.Join(home, ".config", "fish", "config.fish"); fallback != paths[0] {
			paths = append(paths, fallback)
		}

		return paths
	case KindZsh:
		paths := []string{filepath.Join(zdotdir, ".zshrc")}

		if fallback := filepath.Join(home, ".zshrc"); fallback != paths[0] {
			paths = append(paths, fallback)
		}

		return paths
	case KindBash:
		return []string{
			filepath.Join(home, ".bashrc"),
			filepath.Join(home, ".bash_profile"),
			filepath.Join(home, ".profile"),
		}
	default:
		return []string{filepath.Join(home, ".profile")}
	}
}

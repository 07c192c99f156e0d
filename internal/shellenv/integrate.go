package shellenv

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"mvdan.cc/sh/v3/syntax"

	"github.com/sst/opencode-install/internal/xdg"
	"github.com/sst/opencode-install/pkg/logger"
)

// ErrPathIntegration is returned when no shell config file could be updated.
// It is recoverable: the binary is installed, only the PATH wiring is missing.
var ErrPathIntegration = errors.New("shell PATH integration failed")

// commentMarker precedes the appended PATH line in the config file.
const commentMarker = "# opencode"

const configFileMode = 0o644

// Options carries the ambient inputs the integrator needs. Defaults are
// filled from the environment; tests construct Options directly.
type Options struct {
	Home       string
	ConfigHome string
	Zdotdir    string
	Shell      string // $SHELL value
	PathEnv    string // $PATH value
	Android    bool
	Log        logger.Logger
}

// DefaultOptions reads the integrator inputs from the environment.
func DefaultOptions(android bool) Options {
	home, _ := os.UserHomeDir()

	return Options{
		Home:       home,
		ConfigHome: xdg.ConfigHome(),
		Zdotdir:    xdg.Zdotdir(),
		Shell:      os.Getenv("SHELL"),
		PathEnv:    os.Getenv("PATH"),
		Android:    android,
	}
}

// Result describes what the integration did.
type Result struct {
	Profile       Profile
	Changed       bool
	AlreadyOnPath bool
	// ManualLine is the exact statement the user must add themselves when
	// automatic integration failed.
	ManualLine string
}

// Integrator appends a PATH-extension snippet to the user's shell config.
type Integrator struct {
	opts Options
	log  logger.Logger
}

// NewIntegrator creates an Integrator.
func NewIntegrator(opts Options) *Integrator {
	log := opts.Log
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Integrator{opts: opts, log: log}
}

// Integrate ensures installDir is on PATH for future shells and for the rest
// of this process. Running it twice leaves the config file byte-identical.
// A failure to update any config file returns ErrPathIntegration alongside a
// Result carrying the manual instructions; callers degrade, not abort.
func (i *Integrator) Integrate(installDir string) (*Result, error) {
	kind := Detect(i.opts.Shell, i.opts.Android)

	profile := Profile{
		Kind:       kind,
		Candidates: candidates(kind, i.opts.Home, i.opts.ConfigHome, i.opts.Zdotdir),
	}

	result := &Result{
		Profile:    profile,
		ManualLine: pathLine(kind, installDir),
	}

	if pathContains(i.opts.PathEnv, installDir) {
		i.log.Debug("install dir already on PATH", "dir", installDir)

		result.AlreadyOnPath = true

		return result, nil
	}

	// The rest of this run must see the new directory regardless of how the
	// config-file mutation goes.
	i.exportProcessPath(installDir)

	chosen, err := i.chooseConfigFile(profile.Candidates)
	if err != nil {
		result.Profile.Chosen = profile.Candidates[0]

		return result, errors.Mark(err, ErrPathIntegration)
	}

	result.Profile.Chosen = chosen

	changed, err := appendOnce(chosen, installDir, result.ManualLine)
	if err != nil {
		return result, errors.Mark(err, ErrPathIntegration)
	}

	result.Changed = changed

	if changed {
		i.log.Info("shell config updated", "file", chosen, "shell", kind.String())
	} else {
		i.log.Debug("shell config already references install dir", "file", chosen)
	}

	return result, nil
}

// chooseConfigFile returns the first candidate that exists and is writable.
// When none exists, it attempts to create the first candidate (with parent
// directories); only when that fails too is integration reported failed.
func (i *Integrator) chooseConfigFile(paths []string) (string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}

		if isWritable(path) {
			return path, nil
		}
	}

	first := paths[0]

	if err := os.MkdirAll(filepath.Dir(first), 0o755); err != nil {
		return "", errors.Wrap(err, "creating config directory")
	}

	file, err := os.OpenFile(first, os.O_CREATE|os.O_WRONLY|os.O_APPEND, configFileMode)
	if err != nil {
		return "", errors.Wrap(err, "creating config file")
	}

	_ = file.Close()

	return first, nil
}

// exportProcessPath prepends installDir to this process's PATH.
func (i *Integrator) exportProcessPath(installDir string) {
	_ = os.Setenv("PATH", installDir+string(os.PathListSeparator)+i.opts.PathEnv)
}

// appendOnce appends the marker and line to path unless the file already
// mentions installDir.
//
//nolint:gosec // G304: path comes from the candidate table, not user input
func appendOnce(path, installDir, line string) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, errors.Wrap(err, "reading config file")
	}

	if strings.Contains(string(content), installDir) {
		return false, nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, configFileMode)
	if err != nil {
		return false, errors.Wrap(err, "opening config file")
	}

	snippet := "\n" + commentMarker + "\n" + line + "\n"

	_, writeErr := file.WriteString(snippet)

	if closeErr := file.Close(); closeErr != nil && writeErr == nil {
		writeErr = closeErr
	}

	if writeErr != nil {
		return false, errors.Wrap(writeErr, "appending to config file")
	}

	return true, nil
}

// pathLine builds the shell-appropriate PATH-extension statement.
func pathLine(kind Kind, installDir string) string {
	if kind == KindFish {
		return "fish_add_path " + fishQuote(installDir)
	}

	quoted, err := syntax.Quote(installDir, syntax.LangPOSIX)
	if err != nil {
		// Quote only fails on non-printable input; fall back to the raw path.
		quoted = installDir
	}

	return fmt.Sprintf("export PATH=%s:$PATH", quoted)
}

// fishQuote single-quotes a path when it carries characters fish would
// interpret. Inside fish single quotes only backslash and the quote itself
// need escaping.
func fishQuote(path string) string {
	if !strings.ContainsAny(path, " \t'\"\\$*?~#(){}<>;&|") {
		return path
	}

	escaped := strings.ReplaceAll(path, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)

	return "'" + escaped + "'"
}

// pathContains reports whether dir is already a PATH element.
func pathContains(pathEnv, dir string) bool {
	for _, element := range filepath.SplitList(pathEnv) {
		if element == dir {
			return true
		}
	}

	return false
}

// isWritable reports whether the file at path can be opened for appending.
func isWritable(path string) bool {
	//nolint:gosec // G304: path comes from the candidate table
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return false
	}

	_ = file.Close()

	return true
}

// RegisterCIPath appends installDir to the CI-provided PATH-registration
// file. A no-op outside GitHub Actions.
func RegisterCIPath(installDir string) error {
	if os.Getenv("GITHUB_ACTIONS") != "true" {
		return nil
	}

	pathFile := os.Getenv("GITHUB_PATH")
	if pathFile == "" {
		return nil
	}

	//nolint:gosec // G304: path is provided by the CI runner
	file, err := os.OpenFile(pathFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, configFileMode)
	if err != nil {
		return errors.Wrap(err, "opening GITHUB_PATH file")
	}

	_, writeErr := file.WriteString(installDir + "\n")

	if closeErr := file.Close(); closeErr != nil && writeErr == nil {
		writeErr = closeErr
	}

	if writeErr != nil {
		return errors.Wrap(writeErr, "appending to GITHUB_PATH file")
	}

	return nil
}

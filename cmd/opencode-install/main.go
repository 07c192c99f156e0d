// Package main provides the CLI entry point for opencode-install.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/sst/opencode-install/internal/artifact"
	"github.com/sst/opencode-install/internal/color"
	"github.com/sst/opencode-install/internal/config"
	"github.com/sst/opencode-install/internal/installer"
	"github.com/sst/opencode-install/internal/platform"
	"github.com/sst/opencode-install/internal/xdg"
	"github.com/sst/opencode-install/pkg/logger"
)

const (
	// ExitCodeOK covers a completed install, including the case where only
	// the shell PATH wiring failed and manual instructions were printed.
	ExitCodeOK = 0

	// ExitCodeError is the generic failure code.
	ExitCodeError = 1

	// ExitCodeUnsupported indicates the host platform has no published build.
	ExitCodeUnsupported = 2

	// ExitCodeVersionLookup indicates no installable version could be determined.
	ExitCodeVersionLookup = 3

	// ExitCodeInterrupted follows the shell convention of 128+SIGINT.
	ExitCodeInterrupted = 130
)

var (
	versionTag  string
	installDir  string
	noIntegrate bool
	debugMode   bool
	noColorFlag bool
)

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetContext(ctx)

	if err := rootCmd.Execute(); err != nil {
		return exitCodeFor(ctx, err)
	}

	return ExitCodeOK
}

// exitCodeFor maps a pipeline failure to the documented exit code.
func exitCodeFor(ctx context.Context, err error) int {
	theme := color.NewTheme(color.Profile(noColorFlag))

	// A cancelled context means the user interrupted us; the underlying
	// error is often "signal: killed" rather than context.Canceled.
	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, theme.Warning.Render("Interrupted."))

		return ExitCodeInterrupted
	}

	fmt.Fprintln(os.Stderr, theme.Error.Render("Error: ")+err.Error())

	switch {
	case errors.Is(err, platform.ErrUnsupportedPlatform),
		errors.Is(err, platform.ErrUnsupportedArch),
		errors.Is(err, platform.ErrUnsupportedCombination):
		return ExitCodeUnsupported
	case errors.Is(err, artifact.ErrVersionLookup):
		return ExitCodeVersionLookup
	default:
		return ExitCodeError
	}
}

var rootCmd = &cobra.Command{
	Use:   "opencode-install",
	Short: "Install the opencode binary",
	Long: `Downloads the opencode release matching this machine, unpacks it into the
install directory, and wires the directory into the shell PATH.`,
	RunE:              run,
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func init() {
	rootCmd.Flags().StringVar(
		&versionTag,
		"version-tag",
		"",
		"Version to install (default: latest release)",
	)
	rootCmd.Flags().StringVar(
		&installDir,
		"install-dir",
		"",
		"Directory to place the binary in (default: ~/.opencode/bin)",
	)
	rootCmd.Flags().BoolVar(
		&noIntegrate,
		"no-integrate",
		false,
		"Skip shell config integration",
	)
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output")
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := setupLogger(cfg)
	if err != nil {
		return err
	}

	theme := color.NewTheme(color.Profile(cfg.NoColor))

	log.Info("install started",
		"version", cfg.Version,
		"installDir", cfg.InstallDir,
		"noIntegrate", cfg.NoIntegrate,
	)

	result, err := installer.New(cfg, log, theme, os.Stderr).Run(cmd.Context())
	if err != nil {
		log.Error("install failed", "error", err.Error())

		return err
	}

	report(theme, cfg, result)

	return nil
}

// loadConfig merges defaults, the config file, environment, and the flags the
// user actually set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := map[string]any{}

	if cmd.Flags().Changed("version-tag") {
		flags["version"] = versionTag
	}

	if cmd.Flags().Changed("install-dir") {
		flags["install_dir"] = installDir
	}

	if cmd.Flags().Changed("no-integrate") {
		flags["no_integrate"] = noIntegrate
	}

	if cmd.Flags().Changed("debug") {
		flags["debug"] = debugMode
	}

	if cmd.Flags().Changed("no-color") {
		flags["no_color"] = noColorFlag
	}

	return config.NewLoader().Load(flags)
}

// setupLogger writes a debug log under the XDG state dir when requested and
// stays silent otherwise.
func setupLogger(cfg *config.Config) (logger.Logger, error) {
	if !cfg.Debug {
		return logger.NewNoOpLogger(), nil
	}

	if err := os.MkdirAll(xdg.StateDir(), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create state directory")
	}

	log, err := logger.NewFileLogger(xdg.LogFile(), true)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create debug logger")
	}

	return log, nil
}

// report prints the final outcome. Shell-integration failure degrades to
// manual instructions; the install itself still succeeded.
func report(theme color.Theme, cfg *config.Config, result *installer.Result) {
	fmt.Fprintln(os.Stderr, theme.Success.Render(
		fmt.Sprintf("opencode v%s installed to %s", result.Version, result.BinaryPath)))

	switch {
	case result.IntegrationErr != nil:
		fmt.Fprintln(os.Stderr, theme.Warning.Render(
			"Could not update your shell configuration."))
		printManualInstructions(theme, result.Integration.ManualLine)
	case result.Integration == nil:
		if cfg.NoIntegrate {
			fmt.Fprintln(os.Stderr, theme.Muted.Render(
				"Shell integration skipped (--no-integrate)."))
		}
	case result.Integration.AlreadyOnPath:
		fmt.Fprintln(os.Stderr, theme.Muted.Render(
			"Install directory already on PATH."))
	case result.Integration.Changed:
		fmt.Fprintln(os.Stderr, theme.Info.Render(
			"Added "+cfg.InstallDir+" to PATH via "+result.Integration.Profile.Chosen))
		fmt.Fprintln(os.Stderr, theme.Muted.Render(
			"Restart your shell (or source the file above) to pick it up."))
	}
}

// printManualInstructions tells the user how to finish PATH setup themselves.
func printManualInstructions(theme color.Theme, line string) {
	fmt.Fprintln(os.Stderr, theme.Info.Render(
		"Add the following line to your shell configuration:"))
	fmt.Fprintln(os.Stderr, "  "+line)
}

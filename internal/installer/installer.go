// Package installer sequences the install pipeline: resolve the platform,
// locate the release asset, download it, unpack it, and wire up the shell.
package installer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/sst/opencode-install/internal/artifact"
	"github.com/sst/opencode-install/internal/color"
	"github.com/sst/opencode-install/internal/config"
	"github.com/sst/opencode-install/internal/exec"
	"github.com/sst/opencode-install/internal/extract"
	"github.com/sst/opencode-install/internal/github"
	"github.com/sst/opencode-install/internal/platform"
	"github.com/sst/opencode-install/internal/shellenv"
	"github.com/sst/opencode-install/internal/transfer"
	"github.com/sst/opencode-install/pkg/logger"
)

// Result is the outcome of a completed install.
type Result struct {
	Version    string
	BinaryPath string
	Profile    platform.Profile
	// Integration is nil when shell integration was skipped.
	Integration *shellenv.Result
	// IntegrationErr carries the recoverable shell-integration failure, if
	// any. The install itself still succeeded.
	IntegrationErr error
}

// Installer owns the pipeline and its collaborators.
type Installer struct {
	cfg    *config.Config
	log    logger.Logger
	theme  color.Theme
	out    io.Writer
	gh     github.Client
	runner exec.CommandRunner
	tools  exec.ToolChecker
}

// Option customizes an Installer.
type Option func(*Installer)

// WithGitHubClient overrides the release-index client.
func WithGitHubClient(client github.Client) Option {
	return func(i *Installer) { i.gh = client }
}

// WithRunner overrides the command runner.
func WithRunner(runner exec.CommandRunner) Option {
	return func(i *Installer) { i.runner = runner }
}

// WithTools overrides the tool checker.
func WithTools(tools exec.ToolChecker) Option {
	return func(i *Installer) { i.tools = tools }
}

// New creates an Installer. Messages go to out (normally stderr).
func New(cfg *config.Config, log logger.Logger, theme color.Theme, out io.Writer, opts ...Option) *Installer {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	inst := &Installer{
		cfg:    cfg,
		log:    log,
		theme:  theme,
		out:    out,
		gh:     github.NewClient(),
		runner: exec.NewCommandRunner(),
		tools:  exec.NewToolChecker(),
	}

	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

// Run executes the pipeline. The temporary working directory is removed on
// every exit path, including cancellation.
func (i *Installer) Run(ctx context.Context) (*Result, error) {
	profile, err := i.resolvePlatform(ctx)
	if err != nil {
		return nil, err
	}

	spec := artifact.BuildSpec(profile)

	version, err := artifact.ResolveVersion(ctx, i.gh, i.cfg.Version)
	if err != nil {
		return nil, err
	}

	target := artifact.ResolveTarget(spec, version)

	i.log.Info("resolved release",
		"version", target.Version, "filename", spec.Filename, "url", target.URL)

	workDir, err := os.MkdirTemp("", "opencode-install-*")
	if err != nil {
		return nil, errors.Wrap(err, "creating work directory")
	}

	defer func() {
		_ = os.RemoveAll(workDir)
	}()

	archivePath := filepath.Join(workDir, spec.Filename)

	if err := i.download(ctx, profile, target, archivePath); err != nil {
		return nil, err
	}

	extracted, err := extract.Unpack(archivePath, artifact.BinaryName, workDir)
	if err != nil {
		return nil, err
	}

	binaryPath, err := extract.Place(extracted, i.cfg.InstallDir, artifact.BinaryName)
	if err != nil {
		return nil, err
	}

	i.log.Info("binary installed", "path", binaryPath)

	result := &Result{
		Version:    version,
		BinaryPath: binaryPath,
		Profile:    profile,
	}

	i.integrate(result)

	return result, nil
}

// resolvePlatform gathers system facts and resolves them into a profile.
func (i *Installer) resolvePlatform(ctx context.Context) (platform.Profile, error) {
	facts := platform.Gather(ctx, i.runner)

	profile, err := platform.NewResolver(i.log).Resolve(facts)
	if err != nil {
		return platform.Profile{}, err
	}

	if profile.IsAndroid() {
		fmt.Fprintln(i.out, i.theme.Warning.Render(
			"Termux detected: installing the Linux "+profile.Arch+" build (untested platform)"))
	}

	return profile, nil
}

// download fetches the asset. The traced path drives the progress bar; on
// Termux progress rendering is skipped entirely. A failed traced transfer is
// retried once via the plain blocking fetch.
func (i *Installer) download(
	ctx context.Context,
	profile platform.Profile,
	target artifact.Target,
	archivePath string,
) error {
	engine := transfer.NewEngine(i.runner, i.tools, i.log)

	fmt.Fprintln(i.out, i.theme.Info.Render(
		fmt.Sprintf("Downloading opencode v%s (%s)", target.Version, profile.Target())))

	if profile.IsAndroid() {
		return engine.FetchPlain(ctx, target.URL, archivePath)
	}

	err := i.tracedFetch(ctx, engine, target.URL, archivePath)
	if err == nil {
		return nil
	}

	// Cancellation and a missing curl are not worth a retry.
	if ctx.Err() != nil || errors.Is(err, transfer.ErrMissingDependency) {
		return err
	}

	i.log.Error("traced download failed, retrying plain", "error", err.Error())
	fmt.Fprintln(i.out, i.theme.Muted.Render("Retrying without progress display..."))

	return engine.FetchPlain(ctx, target.URL, archivePath)
}

// tracedFetch runs the instrumented download with the progress renderer,
// guaranteeing cursor restoration on every exit path.
func (i *Installer) tracedFetch(ctx context.Context, engine *transfer.Engine, url, dest string) error {
	renderer := i.newRenderer()
	defer renderer.Close()

	return engine.Fetch(ctx, url, dest, renderer)
}

// newRenderer builds the progress renderer on stderr when out is stderr-like;
// otherwise progress is discarded.
func (i *Installer) newRenderer() *transfer.Renderer {
	if file, ok := i.out.(*os.File); ok {
		return transfer.NewRenderer(file, i.theme)
	}

	return transfer.NewRenderer(os.Stderr, i.theme)
}

// integrate performs the shell wiring. Failures are recorded on the result
// rather than returned: the binary is installed either way.
func (i *Installer) integrate(result *Result) {
	if err := shellenv.RegisterCIPath(i.cfg.InstallDir); err != nil {
		i.log.Error("CI PATH registration failed", "error", err.Error())
	}

	if i.cfg.NoIntegrate {
		i.log.Debug("shell integration disabled")

		return
	}

	opts := shellenv.DefaultOptions(result.Profile.IsAndroid())
	opts.Log = i.log

	integration, err := shellenv.NewIntegrator(opts).Integrate(i.cfg.InstallDir)
	result.Integration = integration
	result.IntegrationErr = err
}

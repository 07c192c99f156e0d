package transfer

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/sst/opencode-install/internal/exec"
	"github.com/sst/opencode-install/pkg/logger"
)

var (
	// ErrDownloadFailed is returned when the transfer process fails.
	ErrDownloadFailed = errors.New("download failed")

	// ErrMissingDependency is returned when a required external tool is absent.
	ErrMissingDependency = errors.New("missing required tool")
)

// curlTool is the transfer process. Its --trace-ascii side channel is what
// progress is derived from.
const curlTool = "curl"

// Engine downloads release assets. The primary path runs curl with a trace
// side file and follows it concurrently; the plain path is a silent blocking
// fetch for environments where progress rendering misbehaves.
type Engine struct {
	runner exec.CommandRunner
	tools  exec.ToolChecker
	log    logger.Logger
}

// NewEngine creates an Engine.
func NewEngine(runner exec.CommandRunner, tools exec.ToolChecker, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Engine{runner: runner, tools: tools, log: log}
}

// Fetch downloads url into dest, feeding progress to obs from the transfer's
// trace stream. The transfer and the trace follower are awaited jointly; a
// dead follower only costs the progress display, while a failed transfer is
// always fatal. On any failure neither dest nor the trace file remain.
func (e *Engine) Fetch(ctx context.Context, url, dest string, obs Observer) error {
	if err := e.tools.RequireTool(curlTool); err != nil {
		return errors.Mark(err, ErrMissingDependency)
	}

	if obs == nil {
		obs = NopObserver{}
	}

	tracePath := dest + ".trace"

	removeFile(tracePath)
	defer removeFile(tracePath)

	done := make(chan struct{})

	var result *exec.CommandResult

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer close(done)

		result = e.runner.Run(gctx, curlTool,
			"--fail", "--location", "--silent", "--show-error",
			"--trace-ascii", tracePath,
			"--output", dest,
			url,
		)

		if result.Failed() {
			return errors.Mark(
				errors.Errorf("curl exited %d: %s", result.ExitCode, result.Stderr),
				ErrDownloadFailed,
			)
		}

		return nil
	})

	group.Go(func() error {
		// Follower failures are tolerated; only the transfer decides.
		followTrace(gctx, done, tracePath, obs)

		return nil
	})

	if err := group.Wait(); err != nil {
		removeFile(dest)

		return err
	}

	e.log.Debug("download complete", "url", url, "dest", dest)

	return nil
}

// FetchPlain downloads url into dest with no progress instrumentation.
func (e *Engine) FetchPlain(ctx context.Context, url, dest string) error {
	if err := e.tools.RequireTool(curlTool); err != nil {
		return errors.Mark(err, ErrMissingDependency)
	}

	result := e.runner.Run(ctx, curlTool,
		"--fail", "--location", "--silent", "--show-error",
		"--output", dest,
		url,
	)

	if result.Failed() {
		removeFile(dest)

		return errors.Mark(
			errors.Errorf("curl exited %d: %s", result.ExitCode, result.Stderr),
			ErrDownloadFailed,
		)
	}

	e.log.Debug("plain download complete", "url", url, "dest", dest)

	return nil
}

// removeFile removes a file, ignoring errors.
//
//nolint:gosec // paths are within our own temp directory
func removeFile(path string) {
	_ = os.Remove(path)
}

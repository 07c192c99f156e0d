package installer_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/sst/opencode-install/internal/artifact"
	"github.com/sst/opencode-install/internal/color"
	"github.com/sst/opencode-install/internal/config"
	"github.com/sst/opencode-install/internal/exec"
	"github.com/sst/opencode-install/internal/github"
	"github.com/sst/opencode-install/internal/installer"
)

// fakeClient serves a fixed latest release.
type fakeClient struct {
	tag string
	err error
}

func (f *fakeClient) GetLatestRelease(context.Context, string, string) (*github.Release, error) {
	if f.err != nil {
		return nil, f.err
	}

	return &github.Release{TagName: f.tag}, nil
}

func (f *fakeClient) GetReleaseByTag(_ context.Context, _, _, tag string) (*github.Release, error) {
	return &github.Release{TagName: tag}, nil
}

// fakeRunner answers the platform probes and simulates curl by writing a
// tarball containing the binary to the requested output path.
type fakeRunner struct {
	archive    []byte
	failTraced bool
	curlCalls  int
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) *exec.CommandResult {
	switch name {
	case "uname":
		out := "Linux"
		if slices.Contains(args, "-m") {
			out = "x86_64"
		}

		return &exec.CommandResult{Stdout: out + "\n"}
	case "ldd":
		return &exec.CommandResult{Stdout: "ldd (GNU libc) 2.39\n"}
	case "sysctl":
		return &exec.CommandResult{ExitCode: 1, Err: errors.New("unknown oid")}
	case "curl":
		f.curlCalls++

		traced := slices.Contains(args, "--trace-ascii")
		if traced && f.failTraced {
			return &exec.CommandResult{ExitCode: 22, Err: errors.New("exit status 22")}
		}

		if idx := slices.Index(args, "--trace-ascii"); idx >= 0 {
			_ = os.WriteFile(args[idx+1], []byte("0000: Content-Length: 1\n<= Recv data, 1 bytes (0x1)\n"), 0o644)
		}

		if idx := slices.Index(args, "--output"); idx >= 0 {
			_ = os.WriteFile(args[idx+1], f.archive, 0o644)
		}

		return &exec.CommandResult{}
	default:
		return &exec.CommandResult{ExitCode: 127, Err: errors.New("not found")}
	}
}

// allTools reports every tool as available.
type allTools struct{}

func (allTools) IsAvailable(string) bool { return true }
func (allTools) RequireTool(string) error {
	return nil
}

// binaryTarGz builds a gzipped tarball holding the opencode binary.
func binaryTarGz(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	content := []byte("#!/bin/sh\necho opencode\n")
	hdr := &tar.Header{
		Name: artifact.BinaryName,
		Mode: 0o755,
		Size: int64(len(content)),
	}

	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}

	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}

	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

func newTestInstaller(t *testing.T, cfg *config.Config, runner *fakeRunner, client github.Client) (*installer.Installer, *bytes.Buffer) {
	t.Helper()

	out := &bytes.Buffer{}
	inst := installer.New(cfg, nil, color.NewTheme(false), out,
		installer.WithGitHubClient(client),
		installer.WithRunner(runner),
		installer.WithTools(allTools{}),
	)

	return inst, out
}

func TestRunInstallsBinary(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("platform probes assume a linux host")
	}

	installDir := filepath.Join(t.TempDir(), "bin")
	cfg := &config.Config{InstallDir: installDir, NoIntegrate: true}
	runner := &fakeRunner{archive: binaryTarGz(t)}
	inst, _ := newTestInstaller(t, cfg, runner, &fakeClient{tag: "v1.2.3"})

	result, err := inst.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Version != "1.2.3" {
		t.Errorf("Version = %q, want %q", result.Version, "1.2.3")
	}

	wantPath := filepath.Join(installDir, artifact.BinaryName)
	if result.BinaryPath != wantPath {
		t.Errorf("BinaryPath = %q, want %q", result.BinaryPath, wantPath)
	}

	info, err := os.Stat(wantPath)
	if err != nil {
		t.Fatalf("installed binary missing: %v", err)
	}

	if info.Mode().Perm()&0o111 == 0 {
		t.Error("installed binary is not executable")
	}

	if result.Integration != nil {
		t.Error("Integration set despite NoIntegrate")
	}
}

func TestRunRetriesPlainAfterTracedFailure(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("platform probes assume a linux host")
	}

	cfg := &config.Config{InstallDir: filepath.Join(t.TempDir(), "bin"), NoIntegrate: true}
	runner := &fakeRunner{archive: binaryTarGz(t), failTraced: true}
	inst, out := newTestInstaller(t, cfg, runner, &fakeClient{tag: "v1.2.3"})

	if _, err := inst.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if runner.curlCalls != 2 {
		t.Errorf("curl invocations = %d, want 2 (traced then plain)", runner.curlCalls)
	}

	if !strings.Contains(out.String(), "Retrying") {
		t.Error("retry notice not printed")
	}
}

func TestRunExplicitVersionSkipsLookup(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("platform probes assume a linux host")
	}

	cfg := &config.Config{
		Version:     "0.5.0",
		InstallDir:  filepath.Join(t.TempDir(), "bin"),
		NoIntegrate: true,
	}
	runner := &fakeRunner{archive: binaryTarGz(t)}
	inst, _ := newTestInstaller(t, cfg, runner, &fakeClient{err: errors.New("index down")})

	result, err := inst.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Version != "0.5.0" {
		t.Errorf("Version = %q, want %q", result.Version, "0.5.0")
	}
}

func TestRunVersionLookupFailure(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("platform probes assume a linux host")
	}

	cfg := &config.Config{InstallDir: filepath.Join(t.TempDir(), "bin"), NoIntegrate: true}
	runner := &fakeRunner{archive: binaryTarGz(t)}
	inst, _ := newTestInstaller(t, cfg, runner, &fakeClient{err: errors.New("index down")})

	_, err := inst.Run(context.Background())
	if !errors.Is(err, artifact.ErrVersionLookup) {
		t.Errorf("error = %v, want ErrVersionLookup", err)
	}
}

func TestRunIntegratesShell(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("platform probes assume a linux host")
	}

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SHELL", "/bin/bash")
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("PATH", "/usr/bin:/bin")
	t.Setenv("GITHUB_ACTIONS", "")
	t.Setenv("ZDOTDIR", "")

	installDir := filepath.Join(t.TempDir(), "bin")
	cfg := &config.Config{InstallDir: installDir}
	runner := &fakeRunner{archive: binaryTarGz(t)}
	inst, _ := newTestInstaller(t, cfg, runner, &fakeClient{tag: "v1.2.3"})

	result, err := inst.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.IntegrationErr != nil {
		t.Fatalf("IntegrationErr = %v", result.IntegrationErr)
	}

	if result.Integration == nil || !result.Integration.Changed {
		t.Fatalf("Integration = %+v, want a changed profile", result.Integration)
	}

	data, err := os.ReadFile(result.Integration.Profile.Chosen)
	if err != nil {
		t.Fatalf("reading shell config: %v", err)
	}

	if !strings.Contains(string(data), installDir) {
		t.Errorf("shell config does not reference %q:\n%s", installDir, data)
	}
}

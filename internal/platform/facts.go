// Package platform resolves the ambient environment into the single build
// target the rest of the installer consumes. Raw system signals are gathered
// into Facts once; Resolve turns Facts into a Profile deterministically.
package platform

import (
	"context"
	"os"
	"runtime"
	"strings"

	"github.com/sst/opencode-install/internal/exec"
)

// termuxRoot is the environment root that identifies a Termux install.
// Termux reports itself as plain Linux via uname, so the directory check is
// the only reliable signal.
const termuxRoot = "/data/data/com.termux/files/usr"

// muslMarkerFile identifies musl-based distributions without running ldd.
const muslMarkerFile = "/etc/alpine-release"

// Facts captures every ambient signal the resolver consumes. Gather fills it
// from the running system; tests construct it directly.
type Facts struct {
	// OSName is the kernel-reported OS name (uname -s), or runtime.GOOS
	// where uname is unavailable.
	OSName string

	// Machine is the raw machine hardware name (uname -m), or runtime.GOARCH.
	Machine string

	// TermuxRoot reports whether the Termux environment root exists.
	TermuxRoot bool

	// MuslMarker reports whether a musl-identifying marker file exists.
	MuslMarker bool

	// LinkerReport is the combined output of "ldd --version". musl's ldd
	// identifies itself there; glibc's does not.
	LinkerReport string

	// CPUFlags is the flags section of /proc/cpuinfo (linux only).
	CPUFlags string

	// RosettaSysctl is the value of sysctl.proc_translated (darwin only).
	RosettaSysctl string

	// AVX2Sysctl is the value of hw.optional.avx2 (darwin only).
	AVX2Sysctl string
}

// Gather reads the ambient environment into a Facts value. It never fails:
// signals that cannot be read are left zero and the resolver decides what
// that means.
func Gather(ctx context.Context, runner exec.CommandRunner) Facts {
	facts := Facts{
		OSName:  runtime.GOOS,
		Machine: runtime.GOARCH,
	}

	if runtime.GOOS != "windows" {
		if result := runner.Run(ctx, "uname", "-s"); result.Success() {
			facts.OSName = strings.TrimSpace(result.Stdout)
		}

		if result := runner.Run(ctx, "uname", "-m"); result.Success() {
			facts.Machine = strings.TrimSpace(result.Stdout)
		}
	}

	if info, err := os.Stat(termuxRoot); err == nil && info.IsDir() {
		facts.TermuxRoot = true
	}

	if _, err := os.Stat(muslMarkerFile); err == nil {
		facts.MuslMarker = true
	}

	switch runtime.GOOS {
	case "linux", "android":
		// musl's ldd prints its banner to stderr with exit code 1.
		result := runner.Run(ctx, "ldd", "--version")
		facts.LinkerReport = result.Stdout + result.Stderr

		if data, err := os.ReadFile("/proc/cpuinfo"); err == nil {
			facts.CPUFlags = string(data)
		}
	case "darwin":
		if result := runner.Run(ctx, "sysctl", "-n", "sysctl.proc_translated"); result.Success() {
			facts.RosettaSysctl = strings.TrimSpace(result.Stdout)
		}

		if result := runner.Run(ctx, "sysctl", "-n", "hw.optional.avx2"); result.Success() {
			facts.AVX2Sysctl = strings.TrimSpace(result.Stdout)
		}
	}

	return facts
}

// Package artifact turns a resolved platform profile and a version into the
// concrete release asset to download.
package artifact

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"

	"github.com/sst/opencode-install/internal/platform"
)

const (
	// GitHubOwner is the repository owner on GitHub.
	GitHubOwner = "sst"
	// GitHubRepo is the repository name on GitHub.
	GitHubRepo = "opencode"
	// BinaryName is the name of the binary inside release archives.
	BinaryName = "opencode"
)

// Format identifies the archive format of a release asset.
type Format string

const (
	// FormatTarGz is the gzip-compressed tarball format used by tar-capable targets.
	FormatTarGz Format = "tar.gz"
	// FormatZip is the zip format used by everything else.
	FormatZip Format = "zip"
)

// Spec names the release asset for one platform profile.
type Spec struct {
	Filename string
	Format   Format
}

// Target is a fully resolved download: a version plus the asset URL.
type Target struct {
	Version string
	URL     string
}

// FormatFor returns the archive format for an OS family. Android collapses to
// the Linux artifacts, so it shares their format.
func FormatFor(osFamily string) Format {
	switch osFamily {
	case platform.OSLinux, platform.OSDarwin, platform.OSAndroid:
		return FormatTarGz
	default:
		return FormatZip
	}
}

// BuildSpec constructs the asset filename for a profile. Suffix order is
// fixed: baseline before musl. Android discards both suffixes and overrides
// the whole target with the matching Linux one.
func BuildSpec(profile platform.Profile) Spec {
	target := profile.Target()

	if profile.IsAndroid() {
		// No Android builds are published; the Linux arm builds are known
		// to work under Termux.
		target = platform.OSLinux + "-" + profile.Arch
	} else {
		if profile.Baseline {
			target += "-baseline"
		}

		if profile.Libc == platform.LibcMusl {
			target += "-musl"
		}
	}

	format := FormatFor(profile.OS)

	return Spec{
		Filename: fmt.Sprintf("%s-%s.%s", BinaryName, target, format),
		Format:   format,
	}
}

// DownloadURL returns the release asset URL for a version and filename.
// Version is bare (no "v" prefix); the release tag carries it.
func DownloadURL(version, filename string) string {
	return fmt.Sprintf(
		"https://github.com/%s/%s/releases/download/v%s/%s",
		GitHubOwner, GitHubRepo, version, filename,
	)
}

// ResolveTarget combines a spec and a version into a Target.
func ResolveTarget(spec Spec, version string) Target {
	return Target{
		Version: version,
		URL:     DownloadURL(version, spec.Filename),
	}
}

// NormalizeVersion validates a user-supplied version and strips any "v"
// prefix. Accepts "v1.2.3" and "1.2.3".
func NormalizeVersion(requested string) (string, error) {
	stripped := strings.TrimPrefix(requested, "v")

	if _, err := semver.NewVersion(stripped); err != nil {
		return "", errors.Errorf("invalid version %q: must be valid semver (e.g. 1.2.3)", requested)
	}

	return stripped, nil
}

// VersionFromTag extracts the bare version from a release tag like "v9.9.9".
func VersionFromTag(tag string) (string, error) {
	stripped := strings.TrimPrefix(tag, "v")

	if _, err := semver.NewVersion(stripped); err != nil {
		return "", errors.Wrapf(err, "parsing release tag %q", tag)
	}

	return stripped, nil
}

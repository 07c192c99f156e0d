package artifact

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/sst/opencode-install/internal/github"
)

// ErrVersionLookup is returned when no installable version can be determined.
var ErrVersionLookup = errors.New("version lookup failed")

// ResolveVersion returns the bare version to install. An explicit request
// always wins and skips the network; otherwise the newest published release
// is queried.
func ResolveVersion(ctx context.Context, client github.Client, requested string) (string, error) {
	if requested != "" {
		version, err := NormalizeVersion(requested)
		if err != nil {
			return "", err
		}

		return version, nil
	}

	release, err := client.GetLatestRelease(ctx, GitHubOwner, GitHubRepo)
	if err != nil {
		return "", errors.WithSecondaryError(ErrVersionLookup, err)
	}

	version, err := VersionFromTag(release.TagName)
	if err != nil {
		return "", errors.WithSecondaryError(ErrVersionLookup, err)
	}

	return version, nil
}

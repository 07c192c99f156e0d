// Package github provides the release-index client used to resolve versions.
package github

import (
	"context"
	"net/http"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/google/go-github/v84/github"
)

var (
	// ErrRateLimitExceeded is returned when the GitHub API rate limit is exceeded.
	ErrRateLimitExceeded = errors.New("github API rate limit exceeded")

	// ErrReleaseNotFound is returned when the requested release does not exist.
	ErrReleaseNotFound = errors.New("release not found")
)

// Release represents a published release.
type Release struct {
	TagName string
	Name    string
	HTMLURL string
}

// Client defines the release-index operations the installer needs.
type Client interface {
	// GetLatestRelease retrieves the newest published release for a repository.
	GetLatestRelease(ctx context.Context, owner, repo string) (*Release, error)

	// GetReleaseByTag retrieves a release by its tag.
	GetReleaseByTag(ctx context.Context, owner, repo, tag string) (*Release, error)
}

// SDKClient implements Client using the go-github SDK.
type SDKClient struct {
	client *github.Client
}

// NewClient creates a GitHub client. A token from GH_TOKEN or GITHUB_TOKEN is
// used when present; anonymous access works but is rate limited.
func NewClient() *SDKClient {
	var httpClient *http.Client

	if token := getToken(); token != "" {
		httpClient = &http.Client{
			Transport: &authTransport{token: token},
		}
	}

	return &SDKClient{client: github.NewClient(httpClient)}
}

// NewClientWithHTTP creates a client on a custom http.Client (for tests).
func NewClientWithHTTP(httpClient *http.Client) *SDKClient {
	return &SDKClient{client: github.NewClient(httpClient)}
}

// getToken retrieves a GitHub token from the environment.
func getToken() string {
	if token := os.Getenv("GH_TOKEN"); token != "" {
		return token
	}

	return os.Getenv("GITHUB_TOKEN")
}

// authTransport adds the authentication header to requests.
type authTransport struct {
	token string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+t.token)

	return http.DefaultTransport.RoundTrip(req)
}

// GetLatestRelease retrieves the newest published release for a repository.
func (c *SDKClient) GetLatestRelease(ctx context.Context, owner, repo string) (*Release, error) {
	release, resp, err := c.client.Repositories.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		return nil, handleError(resp, err)
	}

	return &Release{
		TagName: release.GetTagName(),
		Name:    release.GetName(),
		HTMLURL: release.GetHTMLURL(),
	}, nil
}

// GetReleaseByTag retrieves a release by its tag.
func (c *SDKClient) GetReleaseByTag(ctx context.Context, owner, repo, tag string) (*Release, error) {
	release, resp, err := c.client.Repositories.GetReleaseByTag(ctx, owner, repo, tag)
	if err != nil {
		return nil, handleError(resp, err)
	}

	return &Release{
		TagName: release.GetTagName(),
		Name:    release.GetName(),
		HTMLURL: release.GetHTMLURL(),
	}, nil
}

// handleError converts GitHub API errors to our error types.
func handleError(resp *github.Response, err error) error {
	if resp == nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return ErrReleaseNotFound
	case http.StatusForbidden:
		if resp.Rate.Remaining == 0 {
			return ErrRateLimitExceeded
		}

		return err
	default:
		return err
	}
}

// Package catalog discovers the releases published by the Python
// distributor and selects the newest one matching the host platform.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v4"
	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/pyautoupdate/pyautoupdate/client/internal/pyver"
	"github.com/pyautoupdate/pyautoupdate/version"
)

const (
	// DefaultIndexURL is the distributor's published release index
	DefaultIndexURL = "https://www.python.org/ftp/python/index.json"

	userAgent = "PythonAutoUpdate/%s"

	// indexSizeLimit bounds the index response body
	indexSizeLimit = 4 << 20

	fetchTimeout    = 30 * time.Second
	fetchMaxRetries = 2
)

// ChecksumAlgorithm names the digest used to verify a release artifact
type ChecksumAlgorithm string

// ChecksumSHA256 is the only algorithm the distributor publishes
const ChecksumSHA256 ChecksumAlgorithm = "sha256"

// ReleaseInfo describes one downloadable release for the host platform.
// Immutable once constructed, discarded after the cycle completes.
type ReleaseInfo struct {
	Version           *goversion.Version
	DownloadURL       string
	Checksum          string
	ChecksumAlgorithm ChecksumAlgorithm
}

// releaseIndex is the wire shape of the index. Unknown fields are ignored
// so additive schema changes don't break the parser.
type releaseIndex struct {
	Releases []releaseEntry `json:"releases"`
}

type releaseEntry struct {
	Version string      `json:"version"`
	Files   []fileEntry `json:"files"`
}

type fileEntry struct {
	OS     string `json:"os"`
	Arch   string `json:"arch"`
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
}

// Client fetches and filters the distributor's release index
type Client struct {
	indexURL          string
	httpClient        *http.Client
	goos              string
	goarch            string
	includePrerelease bool
}

// Option customizes a catalog Client
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, mainly for tests
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithPlatform overrides the host platform used for file matching
func WithPlatform(goos, goarch string) Option {
	return func(cl *Client) {
		cl.goos = goos
		cl.goarch = goarch
	}
}

// WithPrerelease includes pre-release versions in candidate selection
func WithPrerelease(include bool) Option {
	return func(cl *Client) { cl.includePrerelease = include }
}

// NewClient creates a catalog client for the given index URL. An empty URL
// selects the distributor default.
func NewClient(indexURL string, opts ...Option) *Client {
	if indexURL == "" {
		indexURL = DefaultIndexURL
	}
	c := &Client{
		indexURL:   indexURL,
		httpClient: &http.Client{Timeout: fetchTimeout},
		goos:       runtime.GOOS,
		goarch:     runtime.GOARCH,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchLatest downloads the release index and returns the highest version
// with an artifact for the host platform
func (c *Client) FetchLatest(ctx context.Context) (*ReleaseInfo, error) {
	body, err := c.fetchIndex(ctx)
	if err != nil {
		return nil, err
	}

	var index releaseIndex
	if err := json.Unmarshal(body, &index); err != nil {
		return nil, &FetchError{Kind: ErrKindParse, Err: fmt.Errorf("decode release index: %w", err)}
	}

	latest := c.selectLatest(index)
	if latest == nil {
		return nil, &FetchError{
			Kind: ErrKindNoMatchingPlatform,
			Err:  fmt.Errorf("no release for %s/%s in index", c.goos, c.goarch),
		}
	}
	return latest, nil
}

// fetchIndex GETs the index with a bounded transient-failure retry
func (c *Client) fetchIndex(ctx context.Context) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.indexURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", fmt.Sprintf(userAgent, version.Version()))
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := resp.Body.Close(); cerr != nil {
				log.Warnf("error closing response body: %v", cerr)
			}
		}()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("index returned status %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("index returned status %d", resp.StatusCode))
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, indexSizeLimit))
		return err
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), fetchMaxRetries), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, &FetchError{Kind: ErrKindNetwork, Err: err}
	}
	return body, nil
}

// selectLatest walks the index, skipping malformed entries, and keeps the
// highest version with a matching platform artifact
func (c *Client) selectLatest(index releaseIndex) *ReleaseInfo {
	var latest *ReleaseInfo

	for _, entry := range index.Releases {
		v, err := pyver.Parse(entry.Version)
		if err != nil {
			log.Debugf("skipping release with bad version %q: %v", entry.Version, err)
			continue
		}
		if pyver.IsPrerelease(v) && !c.includePrerelease {
			continue
		}

		file, ok := c.matchFile(entry.Files)
		if !ok {
			continue
		}

		if latest == nil || pyver.Compare(v, latest.Version) > 0 {
			latest = &ReleaseInfo{
				Version:           v,
				DownloadURL:       file.URL,
				Checksum:          file.SHA256,
				ChecksumAlgorithm: ChecksumSHA256,
			}
		}
	}

	return latest
}

func (c *Client) matchFile(files []fileEntry) (fileEntry, bool) {
	for _, f := range files {
		if f.OS != c.goos || f.Arch != c.goarch {
			continue
		}
		if f.URL == "" || f.SHA256 == "" {
			log.Debugf("skipping malformed file entry for %s/%s", f.OS, f.Arch)
			continue
		}
		return f, true
	}
	return fileEntry{}, false
}

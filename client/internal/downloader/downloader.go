// Package downloader retrieves a release artifact to a cycle-owned
// temporary file, verifying its checksum and supporting cooperative
// cancellation between chunks.
package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"github.com/pyautoupdate/pyautoupdate/client/internal/catalog"
	"github.com/pyautoupdate/pyautoupdate/version"
)

const (
	userAgent = "PythonAutoUpdate/%s"

	chunkSize = 64 * 1024

	// progressInterval rate-limits progress callbacks so observers are not
	// flooded on fast links
	defaultProgressInterval = 500 * time.Millisecond

	defaultMaxRetries = 3

	downloadTimeout = 30 * time.Minute
)

// ProgressFunc receives download progress. totalBytes is -1 when the server
// does not announce a length.
type ProgressFunc func(bytesSoFar, totalBytes int64)

// Result describes a completed, verified download. The artifact at
// LocalPath is owned by the caller from here on.
type Result struct {
	LocalPath        string
	BytesTransferred int64
	Verified         bool
}

// Downloader streams release artifacts to disk
type Downloader struct {
	httpClient       *http.Client
	tempDir          string
	maxRetries       uint64
	progressInterval time.Duration
	backoffFn        func() backoff.BackOff
}

// Option customizes a Downloader
type Option func(*Downloader)

// WithHTTPClient overrides the HTTP client, mainly for tests
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) { d.httpClient = c }
}

// WithTempDir overrides the directory holding in-flight artifacts
func WithTempDir(dir string) Option {
	return func(d *Downloader) { d.tempDir = dir }
}

// WithMaxRetries bounds the transient-failure retries per download
func WithMaxRetries(n uint64) Option {
	return func(d *Downloader) { d.maxRetries = n }
}

// WithProgressInterval overrides the progress callback rate limit
func WithProgressInterval(interval time.Duration) Option {
	return func(d *Downloader) { d.progressInterval = interval }
}

// New creates a Downloader writing into the system temp directory
func New(opts ...Option) *Downloader {
	d := &Downloader{
		httpClient:       &http.Client{Timeout: downloadTimeout},
		tempDir:          os.TempDir(),
		maxRetries:       defaultMaxRetries,
		progressInterval: defaultProgressInterval,
	}
	d.backoffFn = func() backoff.BackOff {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = time.Second
		bo.MaxInterval = 10 * time.Second
		return bo
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download streams the release artifact to a temporary file and verifies
// its checksum. On any non-success outcome the partial file is removed.
// Transient network failures are retried with exponential backoff up to the
// configured bound; checksum mismatches and cancellation are terminal.
func (d *Downloader) Download(ctx context.Context, release *catalog.ReleaseInfo, onProgress ProgressFunc) (*Result, error) {
	dstFile, err := d.destinationPath(release)
	if err != nil {
		return nil, &Error{Kind: ErrKindIO, Err: err}
	}

	log.Debugf("starting download from %s to %s", release.DownloadURL, dstFile)

	out, err := os.Create(dstFile)
	if err != nil {
		return nil, &Error{Kind: ErrKindIO, Err: fmt.Errorf("create destination file %q: %w", dstFile, err)}
	}

	result, err := d.downloadWithRetry(ctx, release, out, onProgress)

	if cerr := out.Close(); cerr != nil && err == nil {
		err = &Error{Kind: ErrKindIO, Err: fmt.Errorf("close %q: %w", dstFile, cerr)}
	}

	if err != nil {
		if rmErr := os.Remove(dstFile); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warnf("failed to remove partial download %q: %v", dstFile, rmErr)
		}
		return nil, err
	}

	log.Infof("successfully downloaded and verified %s", dstFile)
	result.LocalPath = dstFile
	result.Verified = true
	return result, nil
}

// Cleanup removes a downloaded artifact. Used by the orchestrator once the
// cycle finishes, regardless of outcome.
func Cleanup(localPath string) {
	if localPath == "" {
		return
	}
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		log.Warnf("failed to remove downloaded artifact %q: %v", localPath, err)
	}
}

func (d *Downloader) downloadWithRetry(ctx context.Context, release *catalog.ReleaseInfo, out *os.File, onProgress ProgressFunc) (*Result, error) {
	var result *Result

	operation := func() error {
		// restart from scratch: truncate whatever a failed attempt left
		if err := out.Truncate(0); err != nil {
			return backoff.Permanent(&Error{Kind: ErrKindIO, Err: fmt.Errorf("truncate on retry: %w", err)})
		}
		if _, err := out.Seek(0, io.SeekStart); err != nil {
			return backoff.Permanent(&Error{Kind: ErrKindIO, Err: fmt.Errorf("seek on retry: %w", err)})
		}

		res, err := d.downloadOnce(ctx, release, out, onProgress)
		if err != nil {
			var dErr *Error
			if errors.As(err, &dErr) && dErr.Kind != ErrKindNetworkExhausted {
				// cancelled and checksum-mismatch are not retryable
				return backoff.Permanent(err)
			}
			log.Warnf("download attempt failed, will retry: %v", err)
			return err
		}
		result = res
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(d.backoffFn(), d.maxRetries), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		var dErr *Error
		if errors.As(err, &dErr) {
			return nil, dErr
		}
		if ctx.Err() != nil {
			return nil, &Error{Kind: ErrKindCancelled, Err: ctx.Err()}
		}
		return nil, &Error{Kind: ErrKindNetworkExhausted, Err: err}
	}
	return result, nil
}

// downloadOnce performs a single transfer attempt, hashing while writing.
// Network errors come back as ErrKindNetworkExhausted so the retry layer
// can distinguish them from terminal failures.
func (d *Downloader) downloadOnce(ctx context.Context, release *catalog.ReleaseInfo, out *os.File, onProgress ProgressFunc) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, release.DownloadURL, nil)
	if err != nil {
		return nil, &Error{Kind: ErrKindIO, Err: fmt.Errorf("create download request: %w", err)}
	}
	req.Header.Set("User-Agent", fmt.Sprintf(userAgent, version.Version()))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Kind: ErrKindCancelled, Err: ctx.Err()}
		}
		return nil, &Error{Kind: ErrKindNetworkExhausted, Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warnf("error closing response body: %v", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: ErrKindNetworkExhausted, Err: fmt.Errorf("unexpected HTTP status: %d", resp.StatusCode)}
	}

	digest := sha256.New()
	transferred, err := d.copyChunks(ctx, out, resp.Body, digest, resp.ContentLength, onProgress)
	if err != nil {
		return nil, err
	}

	if err := verifyChecksum(digest, release.Checksum); err != nil {
		return nil, err
	}

	return &Result{BytesTransferred: transferred}, nil
}

// copyChunks streams the body in bounded chunks, checking for cancellation
// between chunks and rate-limiting progress callbacks
func (d *Downloader) copyChunks(ctx context.Context, out io.Writer, body io.Reader, digest hash.Hash, totalBytes int64, onProgress ProgressFunc) (int64, error) {
	buf := make([]byte, chunkSize)
	dst := io.MultiWriter(out, digest)

	var transferred int64
	lastReport := time.Time{}

	for {
		select {
		case <-ctx.Done():
			return transferred, &Error{Kind: ErrKindCancelled, Err: ctx.Err()}
		default:
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return transferred, &Error{Kind: ErrKindIO, Err: fmt.Errorf("write artifact: %w", err)}
			}
			transferred += int64(n)

			if onProgress != nil && time.Since(lastReport) >= d.progressInterval {
				onProgress(transferred, totalBytes)
				lastReport = time.Now()
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return transferred, &Error{Kind: ErrKindCancelled, Err: ctx.Err()}
			}
			return transferred, &Error{Kind: ErrKindNetworkExhausted, Err: fmt.Errorf("read response body: %w", readErr)}
		}
	}

	if onProgress != nil {
		onProgress(transferred, totalBytes)
	}
	return transferred, nil
}

func verifyChecksum(digest hash.Hash, expected string) error {
	actual := hex.EncodeToString(digest.Sum(nil))
	if !strings.EqualFold(actual, expected) {
		return &Error{
			Kind: ErrKindChecksumMismatch,
			Err:  fmt.Errorf("checksum mismatch: expected %s, got %s", expected, actual),
		}
	}
	return nil
}

// destinationPath derives the artifact file name from the download URL,
// e.g. python-3.12.1-amd64.exe
func (d *Downloader) destinationPath(release *catalog.ReleaseInfo) (string, error) {
	fileName := path.Base(release.DownloadURL)
	if fileName == "." || fileName == "/" || fileName == "" {
		return "", fmt.Errorf("invalid download URL: %s", release.DownloadURL)
	}
	if err := os.MkdirAll(d.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	return filepath.Join(d.tempDir, fileName), nil
}

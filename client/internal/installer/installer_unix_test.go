//go:build !windows

package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInstaller writes an executable script standing in for the installer
func fakeInstaller(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "python-3.12.1-amd64.exe")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestRunSuccess(t *testing.T) {
	r := NewRunner(DefaultOptions())
	result, err := r.Run(context.Background(), fakeInstaller(t, "exit 0"))
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, 0, result.ExitCode)
	assert.False(t, result.RebootRequired)
}

func TestRunNonZeroExit(t *testing.T) {
	r := NewRunner(DefaultOptions())
	result, err := r.Run(context.Background(), fakeInstaller(t, "exit 7"))
	require.NoError(t, err)
	assert.Equal(t, StatusUnknownFailure, result.Status)
	assert.Equal(t, 7, result.ExitCode)
}

func TestRunAdvisoryTimeout(t *testing.T) {
	opts := DefaultOptions()
	opts.WaitTimeout = 50 * time.Millisecond

	r := NewRunner(opts)
	_, err := r.Run(context.Background(), fakeInstaller(t, "sleep 2"))

	var iErr *Error
	require.ErrorAs(t, err, &iErr)
	assert.Equal(t, ErrKindTimeout, iErr.Kind)
}

func TestRunMissingInstaller(t *testing.T) {
	r := NewRunner(DefaultOptions())
	_, err := r.Run(context.Background(), filepath.Join(t.TempDir(), "nope.exe"))

	var iErr *Error
	require.ErrorAs(t, err, &iErr)
	assert.Equal(t, ErrKindLaunch, iErr.Kind)
}

func TestRunCancelledBeforeLaunch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(DefaultOptions())
	_, err := r.Run(ctx, fakeInstaller(t, "exit 0"))

	var iErr *Error
	require.ErrorAs(t, err, &iErr)
	assert.Equal(t, ErrKindCancelled, iErr.Kind)
}

func TestCleanUpInstallerFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "python-3.12.1-amd64.exe"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0o644))

	require.NoError(t, CleanUpInstallerFiles(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep.txt", entries[0].Name())

	// missing dir is fine
	assert.NoError(t, CleanUpInstallerFiles(filepath.Join(dir, "gone")))
}

// Package installer launches the downloaded runtime installer unattended
// and maps its exit status to a result.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// python.org installer exit codes
const (
	exitSuccess           = 0
	exitElevationRequired = 740
	exitUserCancelled     = 1602
	exitRebootRequired    = 3010
)

// defaultWaitTimeout bounds how long Run waits for the installer. The
// timeout is advisory: a legitimate install may take longer, so the process
// is reported as timed out but never killed.
const defaultWaitTimeout = 30 * time.Minute

// Status is the mapped outcome of an installer process
type Status int

const (
	// StatusSuccess includes the reboot-required exit code
	StatusSuccess Status = iota
	// StatusRequiresElevation means the installer needed admin rights
	StatusRequiresElevation
	// StatusUserCancelled means the install was aborted interactively
	StatusUserCancelled
	// StatusUnknownFailure carries any other non-zero exit code
	StatusUnknownFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusRequiresElevation:
		return "requires elevation"
	case StatusUserCancelled:
		return "user cancelled"
	case StatusUnknownFailure:
		return "unknown failure"
	default:
		return "invalid"
	}
}

// Result describes a finished installer run
type Result struct {
	Status         Status
	ExitCode       int
	RebootRequired bool
	Duration       time.Duration
}

// Options controls how the installer is invoked. The defaults mirror an
// unattended per-user install.
type Options struct {
	// Silent runs with no UI at all; otherwise a progress-bar-only mode
	Silent bool
	// PrependPath adds the runtime to the user PATH
	PrependPath bool
	// AllUsers installs machine-wide, which needs elevation
	AllUsers bool
	// WaitTimeout overrides the advisory completion wait bound
	WaitTimeout time.Duration
}

// DefaultOptions is the unattended per-user install used by scheduled cycles
func DefaultOptions() Options {
	return Options{
		Silent:      true,
		PrependPath: true,
		WaitTimeout: defaultWaitTimeout,
	}
}

// Runner invokes installers. newCommand is pluggable for tests.
type Runner struct {
	opts       Options
	newCommand func(path string, args []string) *exec.Cmd
}

// NewRunner creates a Runner with the given invocation options
func NewRunner(opts Options) *Runner {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = defaultWaitTimeout
	}
	return &Runner{
		opts: opts,
		newCommand: func(path string, args []string) *exec.Cmd {
			cmd := exec.Command(path, args...)
			setInstallerProcAttr(cmd)
			return cmd
		},
	}
}

// Run launches installerPath unattended and waits for completion. The
// context is only honored before launch: once the external process writes
// to the system it cannot be safely interrupted.
func (r *Runner) Run(ctx context.Context, installerPath string) (*Result, error) {
	if _, err := os.Stat(installerPath); err != nil {
		return nil, &Error{Kind: ErrKindLaunch, Err: fmt.Errorf("installer not found: %w", err)}
	}

	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: ErrKindCancelled, Err: err}
	}

	args := r.arguments()
	cmd := r.newCommand(installerPath, args)

	log.Infof("starting installer: %s %v", filepath.Base(installerPath), args)
	started := time.Now()

	if err := cmd.Start(); err != nil {
		return nil, &Error{Kind: ErrKindLaunch, Err: fmt.Errorf("start installer: %w", err)}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(r.opts.WaitTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return mapResult(err, time.Since(started))
	case <-timer.C:
		// advisory only: the installer keeps running
		log.Warnf("installer still running after %s, giving up the wait", r.opts.WaitTimeout)
		return nil, &Error{
			Kind: ErrKindTimeout,
			Err:  fmt.Errorf("installer did not finish within %s", r.opts.WaitTimeout),
		}
	}
}

// arguments builds the unattended python.org installer command line
func (r *Runner) arguments() []string {
	var args []string

	if r.opts.Silent {
		args = append(args, "/quiet")
	} else {
		// progress bar only, no prompts
		args = append(args, "/passive")
	}

	if r.opts.PrependPath {
		args = append(args, "PrependPath=1")
	}

	if r.opts.AllUsers {
		args = append(args, "InstallAllUsers=1")
	} else {
		args = append(args, "InstallAllUsers=0")
	}

	args = append(args,
		"Include_test=0",
		"Include_doc=0",
		"Include_launcher=1",
		"InstallLauncherAllUsers=1",
	)

	return args
}

func mapResult(waitErr error, duration time.Duration) (*Result, error) {
	exitCode := exitSuccess
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, &Error{Kind: ErrKindLaunch, Err: fmt.Errorf("wait for installer: %w", waitErr)}
		}
		exitCode = exitErr.ExitCode()
	}

	result := &Result{ExitCode: exitCode, Duration: duration}
	result.Status, result.RebootRequired = mapExitCode(exitCode)

	log.Infof("installer finished: %s (exit code %d, took %s)", result.Status, exitCode, duration.Round(time.Second))
	return result, nil
}

// mapExitCode maps a python.org installer exit code to a status and
// whether a reboot is pending
func mapExitCode(code int) (Status, bool) {
	switch code {
	case exitSuccess:
		return StatusSuccess, false
	case exitRebootRequired:
		return StatusSuccess, true
	case exitElevationRequired:
		return StatusRequiresElevation, false
	case exitUserCancelled:
		return StatusUserCancelled, false
	default:
		return StatusUnknownFailure, false
	}
}

// CleanUpInstallerFiles removes leftover installer artifacts from dir
func CleanUpInstallerFiles(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var merr *multierror.Error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		for _, ext := range installerExtensions {
			if filepath.Ext(name) == ext {
				if err := os.Remove(filepath.Join(dir, name)); err != nil {
					merr = multierror.Append(merr, fmt.Errorf("failed to remove %s: %w", name, err))
				}
				break
			}
		}
	}

	return merr.ErrorOrNil()
}

var installerExtensions = []string{".exe", ".msi", ".pkg"}

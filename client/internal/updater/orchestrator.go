// Package updater sequences the update cycle: probe the installed runtime,
// discover the latest release, decide, download, verify and install.
package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/pyautoupdate/pyautoupdate/client/internal/catalog"
	"github.com/pyautoupdate/pyautoupdate/client/internal/downloader"
	"github.com/pyautoupdate/pyautoupdate/client/internal/installer"
	"github.com/pyautoupdate/pyautoupdate/client/internal/probe"
	"github.com/pyautoupdate/pyautoupdate/client/internal/pyver"
)

// ErrCycleInProgress is returned when a trigger arrives while a cycle is
// active. Triggers are coalesced, never queued.
var ErrCycleInProgress = errors.New("update cycle already in progress")

// ErrNoPendingUpdate is returned by Confirm when no cycle is waiting at the
// update-available state
var ErrNoPendingUpdate = errors.New("no update awaiting confirmation")

// defaultConfirmTimeout bounds how long an unattended cycle waits at
// update-available for a Confirm. Expiry is not a failure: the cycle ends
// with the update-available status and the next trigger starts fresh.
const defaultConfirmTimeout = 15 * time.Minute

// Config is the engine's read-only snapshot of the caller-owned settings
type Config struct {
	AutoInstall bool
}

// Decision classifies the outcome of the check half of a cycle
type Decision int

const (
	DecisionUpToDate Decision = iota
	DecisionUpdateAvailable
	DecisionCheckFailed
)

// UpdateDecision is recomputed fresh on every cycle and never cached
// across cycles
type UpdateDecision struct {
	Decision  Decision
	Installed *goversion.Version // nil when no runtime was found
	Release   *catalog.ReleaseInfo
	Reason    string
}

// Orchestrator drives the cycle state machine. One cycle may be active at a
// time process-wide; the probe/fetch/download/install function fields are
// pluggable for tests.
type Orchestrator struct {
	mu          sync.Mutex
	busy        bool
	confirm     chan struct{}
	cancelCycle context.CancelFunc
	wg          sync.WaitGroup

	autoInstall    bool
	confirmTimeout time.Duration

	status *StatusRecorder

	probeFn    func(ctx context.Context) (*goversion.Version, error)
	fetchFn    func(ctx context.Context) (*catalog.ReleaseInfo, error)
	downloadFn func(ctx context.Context, release *catalog.ReleaseInfo, onProgress downloader.ProgressFunc) (*downloader.Result, error)
	installFn  func(ctx context.Context, installerPath string) (*installer.Result, error)
}

// New wires an orchestrator from its collaborators and the initial config
// snapshot
func New(cat *catalog.Client, dl *downloader.Downloader, runner *installer.Runner, status *StatusRecorder, cfg Config) *Orchestrator {
	return &Orchestrator{
		autoInstall:    cfg.AutoInstall,
		confirmTimeout: defaultConfirmTimeout,
		status:         status,
		probeFn:        probe.Detect,
		fetchFn:        cat.FetchLatest,
		downloadFn:     dl.Download,
		installFn:      runner.Run,
	}
}

// Status exposes the recorder so callers can subscribe to cycle events
func (o *Orchestrator) Status() *StatusRecorder {
	return o.status
}

// UpdateConfig replaces the settings snapshot. Takes effect on the next
// cycle; the active cycle keeps the snapshot it started with.
func (o *Orchestrator) UpdateConfig(cfg Config) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.autoInstall = cfg.AutoInstall
}

// RunCheckCycle triggers a cycle that pauses at update-available until
// Confirm, unless auto-install is configured. Returns ErrCycleInProgress
// when a cycle is already active; the active cycle is unaffected.
func (o *Orchestrator) RunCheckCycle() error {
	o.mu.Lock()
	autoInstall := o.autoInstall
	o.mu.Unlock()
	return o.trigger(autoInstall)
}

// RunUpdateCycle triggers a cycle that proceeds straight to install when an
// update is found, regardless of the configured auto-install flag
func (o *Orchestrator) RunUpdateCycle() error {
	return o.trigger(true)
}

// Confirm releases a cycle paused at update-available into the download
func (o *Orchestrator) Confirm() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.busy || o.status.Status().Phase != PhaseUpdateAvailable {
		return ErrNoPendingUpdate
	}

	select {
	case o.confirm <- struct{}{}:
	default:
	}
	return nil
}

// Cancel signals the active cycle to stop at its next checkpoint. No-op
// when idle. Once the installer process has launched, cancellation is not
// honored until it exits.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancelCycle != nil {
		o.cancelCycle()
	}
}

// Stop cancels any active cycle and waits for it to finish
func (o *Orchestrator) Stop() {
	o.Cancel()
	o.wg.Wait()
}

func (o *Orchestrator) trigger(autoInstall bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.busy {
		log.Debugf("trigger dropped: cycle already in progress")
		return ErrCycleInProgress
	}

	o.busy = true
	o.confirm = make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	o.cancelCycle = cancel

	cycleID := uuid.New().String()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()

		o.runCycle(ctx, cycleID, autoInstall)

		o.mu.Lock()
		o.busy = false
		o.cancelCycle = nil
		o.mu.Unlock()

		o.publish(cycleID, PhaseIdle, "", -1)
	}()

	return nil
}

func (o *Orchestrator) runCycle(ctx context.Context, cycleID string, autoInstall bool) {
	o.publish(cycleID, PhaseChecking, "checking for updates", -1)

	decision := o.check(ctx)
	switch decision.Decision {
	case DecisionCheckFailed:
		o.fail(cycleID, decision.Reason)
		return
	case DecisionUpToDate:
		o.publish(cycleID, PhaseUpToDate, fmt.Sprintf("Python %s is up to date", decision.Installed), -1)
		return
	}

	release := decision.Release
	o.publish(cycleID, PhaseUpdateAvailable, updateAvailableMessage(decision), -1)

	if !autoInstall {
		proceed, err := o.awaitConfirm(ctx)
		if err != nil {
			o.fail(cycleID, "cycle cancelled while awaiting confirmation")
			return
		}
		if !proceed {
			log.Infof("no confirmation for %s within %s, ending cycle", release.Version, o.confirmTimeout)
			return
		}
	}

	o.publish(cycleID, PhaseDownloading, fmt.Sprintf("downloading Python %s", release.Version), 0)

	result, err := o.downloadFn(ctx, release, func(soFar, total int64) {
		progress := -1.0
		if total > 0 {
			progress = float64(soFar) / float64(total)
		}
		o.publish(cycleID, PhaseDownloading, fmt.Sprintf("downloading Python %s", release.Version), progress)
	})
	if err != nil {
		o.fail(cycleID, fmt.Sprintf("download failed: %v", err))
		return
	}
	// the artifact is removed once the cycle is over, whatever the outcome
	defer downloader.Cleanup(result.LocalPath)

	o.publish(cycleID, PhaseVerified, "installer checksum verified", -1)
	o.publish(cycleID, PhaseInstalling, fmt.Sprintf("installing Python %s", release.Version), -1)

	installResult, err := o.installFn(ctx, result.LocalPath)
	if err != nil {
		o.fail(cycleID, fmt.Sprintf("install failed: %v", err))
		return
	}

	if installResult.Status != installer.StatusSuccess {
		o.fail(cycleID, fmt.Sprintf("installer reported: %s (exit code %d)", installResult.Status, installResult.ExitCode))
		return
	}

	message := fmt.Sprintf("Python %s installed", release.Version)
	if installResult.RebootRequired {
		message += ", reboot required"
	}
	o.publish(cycleID, PhaseCompleted, message, -1)
}

// check resolves the installed and latest versions into a fresh decision
func (o *Orchestrator) check(ctx context.Context) UpdateDecision {
	installed, err := o.probeFn(ctx)
	if err != nil && !errors.Is(err, probe.ErrNotFound) {
		return UpdateDecision{Decision: DecisionCheckFailed, Reason: fmt.Sprintf("version probe failed: %v", err)}
	}
	if installed == nil {
		log.Infof("no installed Python runtime found, any release counts as a first install")
	}

	release, err := o.fetchFn(ctx)
	if err != nil {
		return UpdateDecision{Decision: DecisionCheckFailed, Installed: installed, Reason: fmt.Sprintf("release discovery failed: %v", err)}
	}

	if !pyver.IsUpdateAvailable(installed, release.Version) {
		return UpdateDecision{Decision: DecisionUpToDate, Installed: installed, Release: release}
	}
	return UpdateDecision{Decision: DecisionUpdateAvailable, Installed: installed, Release: release}
}

// awaitConfirm blocks until Confirm, cancellation or the confirm timeout.
// Returns false with no error on timeout.
func (o *Orchestrator) awaitConfirm(ctx context.Context) (bool, error) {
	timer := time.NewTimer(o.confirmTimeout)
	defer timer.Stop()

	select {
	case <-o.confirm:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-timer.C:
		return false, nil
	}
}

func (o *Orchestrator) publish(cycleID string, phase Phase, message string, progress float64) {
	o.status.Publish(CycleStatus{
		CycleID:  cycleID,
		Phase:    phase,
		Message:  message,
		Progress: progress,
	})
}

func (o *Orchestrator) fail(cycleID, reason string) {
	log.Errorf("update cycle failed: %s", reason)
	o.publish(cycleID, PhaseFailed, reason, -1)
}

func updateAvailableMessage(d UpdateDecision) string {
	if d.Installed == nil {
		return fmt.Sprintf("Python %s available (no installed runtime found)", d.Release.Version)
	}
	return fmt.Sprintf("Python %s available, %s installed", d.Release.Version, d.Installed)
}

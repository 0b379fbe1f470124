package cmd

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pyautoupdate/pyautoupdate/client/internal"
	"github.com/pyautoupdate/pyautoupdate/client/internal/installer"
	"github.com/pyautoupdate/pyautoupdate/client/internal/scheduler"
	"github.com/pyautoupdate/pyautoupdate/client/internal/updater"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the update agent in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		SetupCloseHandler(ctx, cancel)

		if err := setupLog(); err != nil {
			return err
		}

		settings := internal.LoadSettings(configPath)
		engine := buildEngine(settings, installer.DefaultOptions())
		defer engine.Status().Close()

		id := engine.Status().Subscribe(logCycleStatus)
		defer engine.Status().Unsubscribe(id)

		sched := scheduler.New(func() {
			if err := engine.RunCheckCycle(); err != nil {
				if errors.Is(err, updater.ErrCycleInProgress) {
					log.Debug("scheduled check skipped, a cycle is already running")
					return
				}
				log.Warnf("scheduled check failed to start: %v", err)
				return
			}
			recordLastCheck(ctx)
		})
		sched.Start(settings.Schedule())
		defer sched.Stop()

		watcher, err := internal.WatchSettings(configPath, func(s internal.AppSettings) {
			engine.UpdateConfig(s.Engine())
			sched.UpdateConfig(s.Schedule())
			log.Infof("settings reloaded, next check at %s", sched.NextFireTime().Format(time.RFC3339))
		})
		if err != nil {
			log.Warnf("settings watcher unavailable, changes require a restart: %v", err)
		} else {
			defer func() {
				if err := watcher.Close(); err != nil {
					log.Warnf("failed to close settings watcher: %v", err)
				}
			}()
		}

		if settings.AutoUpdateEnabled {
			log.Infof("update agent started, next check at %s", sched.NextFireTime().Format(time.RFC3339))
		} else {
			log.Info("update agent started, automatic checks are disabled")
		}

		<-ctx.Done()
		engine.Stop()
		log.Info("update agent stopped")
		return nil
	},
}

// logCycleStatus mirrors cycle events into the agent log. Download progress
// stays at debug level to keep the log readable.
func logCycleStatus(s updater.CycleStatus) {
	switch s.Phase {
	case updater.PhaseIdle:
	case updater.PhaseDownloading:
		log.Debugf("cycle %s: %s", s.Phase, s.Message)
	case updater.PhaseFailed:
		log.Warnf("cycle %s: %s", s.Phase, s.Message)
	default:
		log.Infof("cycle %s: %s", s.Phase, s.Message)
	}
}

// recordLastCheck stamps today's date into the settings file so external
// tools can tell when the agent last looked for updates
func recordLastCheck(ctx context.Context) {
	settings := internal.LoadSettings(configPath)
	settings.LastCheckDate = time.Now().Format("2006-01-02")
	if err := internal.SaveSettings(ctx, configPath, settings); err != nil {
		log.Warnf("failed to record last check date: %v", err)
	}
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyautoupdate/pyautoupdate/client/internal"
	"github.com/pyautoupdate/pyautoupdate/client/internal/installer"
	"github.com/pyautoupdate/pyautoupdate/client/internal/updater"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether a newer Python release is available",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLog(); err != nil {
			return err
		}

		settings := internal.LoadSettings(configPath)
		engine := buildEngine(settings, installer.DefaultOptions())
		defer engine.Status().Close()

		// a check must stay read-only even when auto install is configured
		engine.UpdateConfig(updater.Config{AutoInstall: false})

		// check never installs, so the first decisive phase ends the command
		decided := make(chan updater.CycleStatus, 1)
		id := engine.Status().Subscribe(func(s updater.CycleStatus) {
			switch s.Phase {
			case updater.PhaseUpToDate, updater.PhaseUpdateAvailable, updater.PhaseFailed:
				select {
				case decided <- s:
				default:
				}
			}
		})
		defer engine.Status().Unsubscribe(id)

		if err := engine.RunCheckCycle(); err != nil {
			return err
		}

		status := <-decided
		engine.Stop()

		if status.Phase == updater.PhaseFailed {
			return fmt.Errorf("check failed: %s", status.Message)
		}

		cmd.Println(status.Message)
		return nil
	},
}

package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pyautoupdate/pyautoupdate/client/internal"
	"github.com/pyautoupdate/pyautoupdate/client/internal/installer"
	"github.com/pyautoupdate/pyautoupdate/client/internal/updater"
)

var (
	assumeYes      bool
	passiveInstall bool
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Download and install the latest Python release",
	RunE:  updateFunc,
}

func updateFunc(cmd *cobra.Command, args []string) error {
	if err := setupLog(); err != nil {
		return err
	}

	settings := internal.LoadSettings(configPath)

	installerOpts := installer.DefaultOptions()
	installerOpts.Silent = !passiveInstall

	engine := buildEngine(settings, installerOpts)
	defer engine.Status().Close()

	// confirmation is handled here at the prompt, never by the engine
	engine.UpdateConfig(updater.Config{AutoInstall: false})

	available := make(chan updater.CycleStatus, 1)
	terminal := make(chan updater.CycleStatus, 1)
	id := engine.Status().Subscribe(func(s updater.CycleStatus) {
		switch s.Phase {
		case updater.PhaseUpdateAvailable:
			select {
			case available <- s:
			default:
			}
		case updater.PhaseDownloading:
			if s.Progress >= 0 {
				cmd.Printf("\r%s: %3.0f%%", s.Message, s.Progress*100)
			}
		case updater.PhaseVerified:
			cmd.Printf("\n%s\n", s.Message)
		case updater.PhaseUpToDate, updater.PhaseCompleted, updater.PhaseFailed:
			select {
			case terminal <- s:
			default:
			}
		}
	})
	defer engine.Status().Unsubscribe(id)

	var err error
	if assumeYes {
		err = engine.RunUpdateCycle()
	} else {
		err = engine.RunCheckCycle()
	}
	if err != nil {
		return err
	}

	for {
		select {
		case s := <-available:
			if assumeYes {
				continue
			}
			cmd.Println(s.Message)
			if !promptYesNo(cmd) {
				engine.Cancel()
				engine.Stop()
				cmd.Println("installation declined")
				return nil
			}
			if err := engine.Confirm(); err != nil {
				return err
			}
		case s := <-terminal:
			engine.Stop()
			if s.Phase == updater.PhaseFailed {
				return fmt.Errorf("update failed: %s", s.Message)
			}
			cmd.Println(s.Message)
			return nil
		}
	}
}

func promptYesNo(cmd *cobra.Command) bool {
	cmd.Print("Proceed with installation? [y/N]: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pyautoupdate/pyautoupdate/client/internal"
	"github.com/pyautoupdate/pyautoupdate/client/internal/catalog"
	"github.com/pyautoupdate/pyautoupdate/client/internal/downloader"
	"github.com/pyautoupdate/pyautoupdate/client/internal/installer"
	"github.com/pyautoupdate/pyautoupdate/client/internal/updater"
	"github.com/pyautoupdate/pyautoupdate/util"
)

const (
	yesFlag     = "yes"
	passiveFlag = "passive"
)

var (
	configPath string
	logLevel   string
	logFile    string

	rootCmd = &cobra.Command{
		Use:          "pyautoupdate",
		Short:        "Keeps the local Python runtime up to date",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", internal.DefaultSettingsPath(), "settings file location")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "sets the log level")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "console", "sets the log path. If console is specified the log will be output to stdout")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)

	updateCmd.PersistentFlags().BoolVarP(&assumeYes, yesFlag, "y", false, "install without asking for confirmation")
	updateCmd.PersistentFlags().BoolVar(&passiveInstall, passiveFlag, false, "show the installer's progress UI instead of running fully silent")
}

// SetupCloseHandler handles SIGTERM signal and cancels the given context
func SetupCloseHandler(ctx context.Context, cancel context.CancelFunc) {
	termCh := make(chan os.Signal, 1)
	signal.Notify(termCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-ctx.Done():
		case <-termCh:
		}

		log.Info("shutdown signal received")
		cancel()
	}()
}

func setupLog() error {
	return util.InitLog(logLevel, logFile)
}

// buildEngine wires the catalog client, downloader and installer runner
// into an orchestrator configured from the settings snapshot
func buildEngine(settings internal.AppSettings, installerOpts installer.Options) *updater.Orchestrator {
	cat := catalog.NewClient(settings.ReleaseIndexURL,
		catalog.WithPrerelease(settings.IncludePrerelease))
	dl := downloader.New()
	runner := installer.NewRunner(installerOpts)

	return updater.New(cat, dl, runner, updater.NewStatusRecorder(), settings.Engine())
}

// Package internal holds the engine wiring shared by the CLI commands:
// the settings snapshot, its on-disk location and the change watcher.
package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/pyautoupdate/pyautoupdate/client/internal/scheduler"
	"github.com/pyautoupdate/pyautoupdate/client/internal/updater"
	"github.com/pyautoupdate/pyautoupdate/util"
)

const settingsFileName = "settings.json"

// AppSettings is the persisted configuration. The engine treats a loaded
// snapshot as read-only; changes flow in through UpdateConfig.
type AppSettings struct {
	AutoUpdateEnabled  bool   `json:"auto_update_enabled"`
	ScheduledTime      string `json:"scheduled_time"` // "HH:MM"
	AutoInstallEnabled bool   `json:"auto_install_enabled"`
	IncludePrerelease  bool   `json:"include_prerelease"`
	ReleaseIndexURL    string `json:"release_index_url,omitempty"`
	LastCheckDate      string `json:"last_check_date,omitempty"` // "YYYY-MM-DD"
}

// DefaultSettings returns the out-of-the-box configuration
func DefaultSettings() AppSettings {
	return AppSettings{
		AutoUpdateEnabled:  false,
		ScheduledTime:      "09:00",
		AutoInstallEnabled: false,
	}
}

// DefaultSettingsPath is %APPDATA%\PythonAutoUpdate\settings.json on
// Windows and ~/.config/pyautoupdate/settings.json elsewhere
func DefaultSettingsPath() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "PythonAutoUpdate", settingsFileName)
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return settingsFileName
	}
	return filepath.Join(home, ".config", "pyautoupdate", settingsFileName)
}

// LoadSettings reads the settings file. A missing or unreadable file yields
// the defaults: a broken settings file must never keep the updater from
// running.
func LoadSettings(path string) AppSettings {
	settings := DefaultSettings()
	if err := util.ReadJson(path, &settings); err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("failed to read settings from %s, using defaults: %v", path, err)
		}
		return DefaultSettings()
	}
	return settings
}

// SaveSettings writes the settings file atomically
func SaveSettings(ctx context.Context, path string, settings AppSettings) error {
	if err := util.WriteJson(ctx, path, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Schedule derives the scheduler's config snapshot
func (s AppSettings) Schedule() scheduler.Config {
	return scheduler.Config{
		Enabled:       s.AutoUpdateEnabled,
		TimeOfDay:     s.ScheduledTime,
		LastCheckDate: s.LastCheckDate,
	}
}

// Engine derives the orchestrator's config snapshot
func (s AppSettings) Engine() updater.Config {
	return updater.Config{
		AutoInstall: s.AutoInstallEnabled,
	}
}

// settleDelay lets editors finish their write-then-rename dance before the
// file is re-read
const settleDelay = 100 * time.Millisecond

// SettingsWatcher reloads the settings file when the external settings
// owner rewrites it and hands the fresh snapshot to onChange
type SettingsWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func(AppSettings)
	wg       sync.WaitGroup
}

// WatchSettings watches the directory holding path. Watching the directory
// instead of the file survives atomic replace-by-rename writes.
func WatchSettings(path string, onChange func(AppSettings)) (*SettingsWatcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		if cerr := watcher.Close(); cerr != nil {
			log.Warnf("failed to close watcher: %v", cerr)
		}
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &SettingsWatcher{
		watcher:  watcher,
		path:     absPath,
		onChange: onChange,
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Close stops the watcher and waits for in-flight callbacks
func (w *SettingsWatcher) Close() error {
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *SettingsWatcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				time.Sleep(settleDelay)
				log.Debugf("settings file changed, reloading")
				w.onChange(LoadSettings(w.path))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("settings watcher error: %v", err)
		}
	}
}

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// QuietHours is a daily window during which notifications are held.
type QuietHours struct {
	StartMinutes       int    `json:"startMinutes"`
	EndMinutes         int    `json:"endMinutes"`
	TimezoneIdentifier string `json:"timezoneIdentifier,omitempty"`
}

// Preferences mirrors the externally edited notification-preferences
// file. The daemon only reads it; a companion UI owns the writes.
type Preferences struct {
	QuietHours                         *QuietHours `json:"quietHours,omitempty"`
	AllowInterruptionsDuringQuietHours bool        `json:"allowInterruptionsDuringQuietHours"`
	LeakNotificationsEnabled           bool        `json:"leakNotificationsEnabled"`
	PressureNotificationsEnabled       bool        `json:"pressureNotificationsEnabled"`
	RetentionHours                     float64     `json:"retentionHours,omitempty"`
}

// DefaultPreferences returns the values in effect when no file exists.
func DefaultPreferences() Preferences {
	return Preferences{
		LeakNotificationsEnabled:     true,
		PressureNotificationsEnabled: true,
	}
}

// LoadPreferences reads the preferences file. A missing or unreadable
// file yields the defaults.
func LoadPreferences(path string) Preferences {
	prefs := DefaultPreferences()
	data, err := os.ReadFile(path)
	if err != nil {
		return prefs
	}
	if err := json.Unmarshal(data, &prefs); err != nil {
		return DefaultPreferences()
	}
	return prefs
}

// PreferenceWatcher keeps an up-to-date copy of the preferences file,
// reloading whenever the file changes on disk.
type PreferenceWatcher struct {
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	mu    sync.RWMutex
	prefs Preferences
}

// WatchPreferences loads the file and begins watching its directory
// for changes. Editors replace the file rather than rewriting it in
// place, so the directory is watched instead of the file itself.
func WatchPreferences(path string, logger *zap.Logger) (*PreferenceWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, err
	}

	pw := &PreferenceWatcher{
		path:    path,
		logger:  logger,
		watcher: w,
		prefs:   LoadPreferences(path),
	}
	go pw.run()
	return pw, nil
}

func (pw *PreferenceWatcher) run() {
	for {
		select {
		case ev, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != pw.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			prefs := LoadPreferences(pw.path)
			pw.mu.Lock()
			pw.prefs = prefs
			pw.mu.Unlock()
			pw.logger.Debug("preferences reloaded",
				zap.Float64("retention_hours", prefs.RetentionHours))
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			pw.logger.Warn("preference watcher error", zap.Error(err))
		}
	}
}

// Current returns the latest loaded preferences.
func (pw *PreferenceWatcher) Current() Preferences {
	pw.mu.RLock()
	defer pw.mu.RUnlock()
	return pw.prefs
}

// RetentionHours returns the configured retention window, or 0 when
// the preference is unset.
func (pw *PreferenceWatcher) RetentionHours() float64 {
	pw.mu.RLock()
	defer pw.mu.RUnlock()
	return pw.prefs.RetentionHours
}

// Close stops the watcher.
func (pw *PreferenceWatcher) Close() error {
	return pw.watcher.Close()
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLoadPreferencesMissingFileDefaults(t *testing.T) {
	prefs := LoadPreferences(filepath.Join(t.TempDir(), "nope.json"))

	assert.True(t, prefs.LeakNotificationsEnabled)
	assert.True(t, prefs.PressureNotificationsEnabled)
	assert.Nil(t, prefs.QuietHours)
	assert.Zero(t, prefs.RetentionHours)
}

func TestLoadPreferencesCorruptFileDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notification_preferences.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	prefs := LoadPreferences(path)
	assert.True(t, prefs.LeakNotificationsEnabled)
}

func TestLoadPreferencesParsesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notification_preferences.json")
	body := `{
		"quietHours": {"startMinutes": 1320, "endMinutes": 420, "timezoneIdentifier": "Europe/Berlin"},
		"allowInterruptionsDuringQuietHours": true,
		"leakNotificationsEnabled": false,
		"pressureNotificationsEnabled": true,
		"retentionHours": 168
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	prefs := LoadPreferences(path)
	require.NotNil(t, prefs.QuietHours)
	assert.Equal(t, 1320, prefs.QuietHours.StartMinutes)
	assert.Equal(t, 420, prefs.QuietHours.EndMinutes)
	assert.Equal(t, "Europe/Berlin", prefs.QuietHours.TimezoneIdentifier)
	assert.True(t, prefs.AllowInterruptionsDuringQuietHours)
	assert.False(t, prefs.LeakNotificationsEnabled)
	assert.Equal(t, 168.0, prefs.RetentionHours)
}

func TestWatcherReloadsOnRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notification_preferences.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"retentionHours": 336}`), 0o600))

	pw, err := WatchPreferences(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer pw.Close()
	require.Equal(t, 336.0, pw.RetentionHours())

	// Editors write a temp file and rename over the original.
	tmp := filepath.Join(dir, "prefs.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(`{"retentionHours": 168}`), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	require.Eventually(t, func() bool {
		return pw.RetentionHours() == 168.0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatcherStartsWithDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notification_preferences.json")

	pw, err := WatchPreferences(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer pw.Close()

	assert.Zero(t, pw.RetentionHours())
	assert.True(t, pw.Current().LeakNotificationsEnabled)

	require.NoError(t, os.WriteFile(path, []byte(`{"retentionHours": 48}`), 0o600))
	require.Eventually(t, func() bool {
		return pw.RetentionHours() == 48.0
	}, 3*time.Second, 10*time.Millisecond)
}

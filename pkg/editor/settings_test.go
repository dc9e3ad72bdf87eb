package editor

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSettingsStore(t *testing.T) *SettingsStore {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	return NewSettingsStore(filepath.Join(t.TempDir(), "settings.yaml"), logger)
}

func TestSettingsStore_MissingFileYieldsDefaults(t *testing.T) {
	store := newTestSettingsStore(t)

	settings, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)
	assert.Equal(t, 10*time.Second, settings.Interval())
}

func TestSettingsStore_SaveAndLoad(t *testing.T) {
	store := newTestSettingsStore(t)

	settings := DefaultSettings()
	settings.AutoSave = false
	settings.AutoSaveInterval = 2500
	settings.Notifications.Sound = nil

	require.NoError(t, store.Save(settings))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, settings, loaded)
}

func TestSettingsStore_MergesOverDefaults(t *testing.T) {
	store := newTestSettingsStore(t)

	require.NoError(t, os.WriteFile(store.Path(), []byte("auto_save_interval: 5000\n"), 0o644))

	settings, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, 5000, settings.AutoSaveInterval)
	assert.True(t, settings.AutoSave)
	assert.True(t, settings.Notifications.Enabled)
	require.NotNil(t, settings.Notifications.Sound)
	assert.Equal(t, DefaultSound, *settings.Notifications.Sound)
}

func TestSettingsStore_EnvironmentOverrides(t *testing.T) {
	t.Setenv("FLOWSTORE_AUTO_SAVE", "false")

	store := newTestSettingsStore(t)

	settings, err := store.Load()
	require.NoError(t, err)
	assert.False(t, settings.AutoSave)
}

func TestSettingsStore_RejectsShortInterval(t *testing.T) {
	store := newTestSettingsStore(t)

	settings := DefaultSettings()
	settings.AutoSaveInterval = 200

	require.Error(t, store.Save(settings))

	_, err := os.Stat(store.Path())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSettings_IntervalFloor(t *testing.T) {
	settings := DefaultSettings()

	settings.AutoSaveInterval = 0
	assert.Equal(t, MinInterval, settings.Interval())

	settings.AutoSaveInterval = 1500
	assert.Equal(t, 1500*time.Millisecond, settings.Interval())
}

func TestSettingsStore_Watch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file watch test in short mode")
	}

	store := newTestSettingsStore(t)

	changes := make(chan Settings, 4)
	require.NoError(t, store.Watch(func(settings Settings) {
		changes <- settings
	}))

	_, err := os.Stat(store.Path())
	require.NoError(t, err, "watching creates the file")

	updated := DefaultSettings()
	updated.AutoSaveInterval = 3000
	require.NoError(t, store.Save(updated))

	select {
	case settings := <-changes:
		assert.Equal(t, 3000, settings.AutoSaveInterval)
	case <-time.After(5 * time.Second):
		t.Fatal("settings change was not observed")
	}
}

package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/flowstore/pkg/persistence/file"
	"github.com/dukex/flowstore/pkg/persistence/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestParsePersistenceProvider(t *testing.T) {
	for url, want := range map[string]string{
		"postgres://localhost/flowstore":   "postgres",
		"postgresql://localhost/flowstore": "postgresql",
		"sqlite:///tmp/flowstore.db":       "sqlite",
		"file://./data":                    "file",
		"./data":                           "file",
	} {
		got, err := parsePersistenceProvider(url)
		require.NoError(t, err, url)
		assert.Equal(t, want, got, url)
	}

	_, err := parsePersistenceProvider("mongodb://localhost")

	var unsupported UnsupportedProviderError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "persistence", unsupported.Kind)
	assert.Equal(t, "mongodb", unsupported.Provider)
}

func TestNewPersistence(t *testing.T) {
	ctx := context.Background()

	store, err := NewPersistence(ctx, testLogger(), "sqlite://"+filepath.Join(t.TempDir(), "flowstore.db"))
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Persistence{}, store)
	require.NoError(t, store.Close(ctx))

	store, err = NewPersistence(ctx, testLogger(), t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, store)

	dir := t.TempDir()
	_, err = NewPersistence(ctx, testLogger(), "mysql://"+dir)
	assert.ErrorAs(t, err, &UnsupportedProviderError{})

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewEventBus(t *testing.T) {
	bus, err := NewEventBus("", "", testLogger())
	require.NoError(t, err)
	assert.Nil(t, bus)

	bus, err = NewEventBus("memory", "", testLogger())
	require.NoError(t, err)
	require.NotNil(t, bus)
	require.NoError(t, bus.Close())

	_, err = NewEventBus("kafka", " , ", testLogger())
	require.Error(t, err)

	_, err = NewEventBus("rabbitmq", "", testLogger())
	assert.ErrorAs(t, err, &UnsupportedProviderError{})
}

func TestNewEntitlements(t *testing.T) {
	ctx := context.Background()

	checker, closeFn, err := NewEntitlements("", "alice, bob")
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	ok, err := checker.IsPremium(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checker.IsPremium(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, ok)

	everyone, _, err := NewEntitlements("", "*")
	require.NoError(t, err)

	ok, err = everyone.IsPremium(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, ok)

	_, _, err = NewEntitlements("not a url", "")
	assert.Error(t, err)
}

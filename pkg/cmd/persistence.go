// Package cmd builds the infrastructure shared by the command line programs.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dukex/flowstore/pkg/persistence"
	"github.com/dukex/flowstore/pkg/persistence/file"
	"github.com/dukex/flowstore/pkg/persistence/postgresql"
	"github.com/dukex/flowstore/pkg/persistence/sqlite"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql", "sqlite"}

// NewPersistence opens the store selected by the scheme of databaseURL.
// Plain paths without a scheme are treated as file store directories.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider, err := parsePersistenceProvider(databaseURL)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Opening persistence", "provider", provider)

	var store persistence.Persistence

	switch provider {
	case "postgres", "postgresql":
		store, err = postgresql.NewPersistence(ctx, logger, databaseURL)
	case "sqlite":
		store, err = sqlite.NewPersistence(ctx, logger, databaseURL)
	default:
		store, err = file.NewPersistence(logger, databaseURL)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open %s persistence: %w", provider, err)
	}

	return store, nil
}

func parsePersistenceProvider(databaseURL string) (string, error) {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file", nil
	}

	if !slices.Contains(supportedPersistenceProviders, provider) {
		return "", UnsupportedProviderError{Kind: "persistence", Provider: provider}
	}

	return provider, nil
}

// UnsupportedProviderError is returned for an unknown provider name.
type UnsupportedProviderError struct {
	Kind     string
	Provider string
}

func (e UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported %s provider: %s", e.Kind, e.Provider)
}

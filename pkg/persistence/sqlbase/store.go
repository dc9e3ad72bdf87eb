package sqlbase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/flowstore/pkg/persistence"
	"github.com/jmoiron/sqlx"
)

// Store implements persistence.Persistence on top of a SQL database.
type Store struct {
	db              *sqlx.DB
	logger          *slog.Logger
	dialect         Dialect
	workflowRepo    *WorkflowRepository
	connectionsRepo *ConnectionRepository
}

// NewStore wires the repositories of a SQL backend. Call Migrate before use.
func NewStore(db *sqlx.DB, dialect Dialect, logger *slog.Logger) *Store {
	return &Store{
		db:              db,
		logger:          logger,
		dialect:         dialect,
		workflowRepo:    NewWorkflowRepository(db, dialect, logger),
		connectionsRepo: NewConnectionRepository(db, logger),
	}
}

// Migrate brings the schema up to date.
func (s *Store) Migrate(ctx context.Context) error {
	return NewMigrationManager(s.logger, s.db, s.dialect.Migrations).RunMigrations(ctx)
}

// DB exposes the underlying handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) WorkflowRepository() persistence.WorkflowRepository {
	return s.workflowRepo
}

func (s *Store) ConnectionRepository() persistence.ConnectionRepository {
	return s.connectionsRepo
}

// HealthCheck verifies the database connection is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close(_ context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

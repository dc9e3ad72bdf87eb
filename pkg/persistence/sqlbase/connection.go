package sqlbase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/flowstore/pkg/models"
	"github.com/jmoiron/sqlx"
)

// ConnectionRepository handles connection-related database operations.
type ConnectionRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewConnectionRepository creates a new connection repository.
func NewConnectionRepository(db *sqlx.DB, logger *slog.Logger) *ConnectionRepository {
	return &ConnectionRepository{db: db, logger: logger}
}

// GetByWorkflow returns every connection of a workflow in submission order.
func (r *ConnectionRepository) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.Connection, error) {
	return selectConnections(ctx, r.db, workflowID)
}

func selectConnections(ctx context.Context, db sqlx.ExtContext, workflowID string) ([]*models.Connection, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , from_node_id
		  , to_node_id
		  , from_output
		  , to_input
		  , ordinal
		  , created_at
		  , updated_at
		FROM connections
		WHERE workflow_id = ?
		ORDER BY created_at, ordinal, id
	`

	connections := make([]*models.Connection, 0)

	err := sqlx.SelectContext(ctx, db, &connections, db.Rebind(query), workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}

	return connections, nil
}

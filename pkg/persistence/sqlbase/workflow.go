package sqlbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/flowstore/pkg/models"
	"github.com/dukex/flowstore/pkg/persistence"
	"github.com/jmoiron/sqlx"
)

const (
	workflowColumns = `
			id
		  , name
		  , description
		  , owner_id
		  , created_at
		  , updated_at`

	nodeColumns = `
			id
		  , workflow_id
		  , name
		  , type
		  , position
		  , data
		  , ordinal
		  , created_at
		  , updated_at`
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sqlx.DB, dialect Dialect, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, dialect: dialect, logger: logger}
}

// Create inserts the workflow and its seed node in one transaction.
func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow, seed *models.Node) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer r.rollback(ctx, tx)

	query := `
		INSERT INTO workflows (id, name, description, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, tx.Rebind(query),
		workflow.ID,
		workflow.Name,
		workflow.Description,
		workflow.OwnerID,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return r.writeError("Create", workflow.ID, "failed to insert workflow", err)
	}

	if seed != nil {
		_, err = insertNode(ctx, tx, seed)
		if err != nil {
			return r.writeError("Create", workflow.ID, "failed to insert seed node", err)
		}

		workflow.Nodes = []*models.Node{seed}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// List returns one page of the owner's workflows, newest first.
func (r *WorkflowRepository) List(ctx context.Context, opts persistence.ListOptions) ([]*models.Workflow, error) {
	where, args := r.listFilter(opts.OwnerID, opts.Search)

	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE ` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`

	args = append(args, opts.Limit, opts.Offset)

	workflows := make([]*models.Workflow, 0, opts.Limit)

	err := r.db.SelectContext(ctx, &workflows, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	return workflows, nil
}

// Count returns how many of the owner's workflows match the search term.
func (r *WorkflowRepository) Count(ctx context.Context, ownerID, search string) (int, error) {
	where, args := r.listFilter(ownerID, search)

	var count int

	err := r.db.GetContext(ctx, &count, r.db.Rebind(`SELECT COUNT(*) FROM workflows WHERE `+where), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count workflows: %w", err)
	}

	return count, nil
}

func (r *WorkflowRepository) listFilter(ownerID, search string) (string, []any) {
	where := "owner_id = ?"
	args := []any{ownerID}

	if search != "" {
		where += " AND name " + r.dialect.LikeOperator + ` ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(search)+"%")
	}

	return where, args
}

// GetByID returns the owner's workflow with its nodes loaded.
func (r *WorkflowRepository) GetByID(ctx context.Context, id, ownerID string) (*models.Workflow, error) {
	return getWorkflowWithNodes(ctx, r.db, "GetByID", id, ownerID)
}

// GetGraph reads the workflow, its nodes and its connections inside one
// transaction so a concurrent replacement is never observed halfway.
func (r *WorkflowRepository) GetGraph(ctx context.Context, id, ownerID string) (*persistence.StoredGraph, error) {
	tx, err := r.db.BeginTxx(ctx, r.dialect.SnapshotTxOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer r.rollback(ctx, tx)

	workflow, err := getWorkflowWithNodes(ctx, tx, "GetGraph", id, ownerID)
	if err != nil {
		return nil, err
	}

	graph := &persistence.StoredGraph{Workflow: workflow}

	graph.Connections, err = selectConnections(ctx, tx, id)
	if err != nil {
		graph.Connections = []*models.Connection{}
		graph.ConnectionsErr = err
	}

	return graph, nil
}

func getWorkflowWithNodes(ctx context.Context, db sqlx.ExtContext, op, id, ownerID string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE id = ? AND owner_id = ?`

	workflow := &models.Workflow{}

	err := sqlx.GetContext(ctx, db, workflow, db.Rebind(query), id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to query workflow: %w", err)
	}

	nodes := make([]*models.Node, 0)

	err = sqlx.SelectContext(ctx, db, &nodes, db.Rebind(`SELECT `+nodeColumns+`
		FROM nodes
		WHERE workflow_id = ?
		ORDER BY created_at, ordinal, id`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}

	workflow.Nodes = nodes

	return workflow, nil
}

// UpdateName renames the owner's workflow and returns the updated record.
func (r *WorkflowRepository) UpdateName(ctx context.Context, id, ownerID, name string, at time.Time) (*models.Workflow, error) {
	query := `
		UPDATE workflows
		SET name = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
		RETURNING ` + workflowColumns

	workflow := &models.Workflow{}

	err := r.db.GetContext(ctx, workflow, r.db.Rebind(query), name, at, id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("UpdateName", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to update workflow name: %w", err)
	}

	return workflow, nil
}

// Delete removes the owner's workflow. Nodes and connections go with it
// through cascading foreign keys.
func (r *WorkflowRepository) Delete(ctx context.Context, id, ownerID string) (*models.Workflow, error) {
	query := `
		DELETE FROM workflows
		WHERE id = ? AND owner_id = ?
		RETURNING ` + workflowColumns

	workflow := &models.Workflow{}

	err := r.db.GetContext(ctx, workflow, r.db.Rebind(query), id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to delete workflow: %w", err)
	}

	return workflow, nil
}

// TouchUpdatedAt bumps the workflow's modification time.
func (r *WorkflowRepository) TouchUpdatedAt(ctx context.Context, id string, at time.Time) error {
	return touchUpdatedAt(ctx, r.db, id, at)
}

func touchUpdatedAt(ctx context.Context, db sqlx.ExtContext, id string, at time.Time) error {
	result, err := db.ExecContext(ctx, db.Rebind(`UPDATE workflows SET updated_at = ? WHERE id = ?`), at, id)
	if err != nil {
		return fmt.Errorf("failed to update workflow timestamp: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("TouchUpdatedAt", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func insertNode(ctx context.Context, db sqlx.ExtContext, node *models.Node) (string, error) {
	query := `
		INSERT INTO nodes (id, workflow_id, name, type, position, data, ordinal, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	var id string

	err := db.QueryRowxContext(ctx, db.Rebind(query),
		node.ID,
		node.WorkflowID,
		node.Name,
		string(node.Type),
		node.Position,
		node.Data,
		node.Ordinal,
		node.CreatedAt,
		node.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return "", err
	}

	return id, nil
}

func insertConnection(ctx context.Context, db sqlx.ExtContext, connection *models.Connection) error {
	query := `
		INSERT INTO connections (
			id, workflow_id, from_node_id, to_node_id, from_output, to_input, ordinal, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, db.Rebind(query),
		connection.ID,
		connection.WorkflowID,
		connection.FromNodeID,
		connection.ToNodeID,
		connection.FromOutput,
		connection.ToInput,
		connection.Ordinal,
		connection.CreatedAt,
		connection.UpdatedAt,
	)

	return err
}

func (r *WorkflowRepository) writeError(op, workflowID, message string, err error) error {
	if r.dialect.uniqueViolation(err) {
		return persistence.NewConflictError(op, workflowID, err)
	}

	return fmt.Errorf("%s: %w", message, err)
}

func (r *WorkflowRepository) rollback(ctx context.Context, tx *sqlx.Tx) {
	err := tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		r.logger.ErrorContext(ctx, "failed to rollback transaction", "error", err)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

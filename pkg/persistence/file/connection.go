package file

import (
	"context"

	"github.com/dukex/flowstore/pkg/models"
)

// ConnectionRepository reads connections out of workflow arenas.
type ConnectionRepository struct {
	persistence *Persistence
}

func (cr *ConnectionRepository) GetByWorkflow(_ context.Context, workflowID string) ([]*models.Connection, error) {
	fp := cr.persistence

	fp.mu.RLock()
	defer fp.mu.RUnlock()

	a, err := fp.readArena(workflowID)
	if err != nil {
		return nil, err
	}

	if a == nil {
		return []*models.Connection{}, nil
	}

	return a.Connections, nil
}

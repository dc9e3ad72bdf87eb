package mocks

import (
	"context"

	"github.com/dukex/flowstore/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockSaver is a mock implementation of editor.Saver interface.
type MockSaver struct {
	mock.Mock
}

func (m *MockSaver) SaveGraph(ctx context.Context, workflowID string, nodes []models.GraphNode, edges []models.GraphEdge) error {
	args := m.Called(ctx, workflowID, nodes, edges)

	return args.Error(0)
}

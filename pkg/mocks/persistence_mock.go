package mocks

import (
	"context"
	"time"

	"github.com/dukex/flowstore/pkg/models"
	"github.com/dukex/flowstore/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	Workflows   *MockWorkflowRepository
	Connections *MockConnectionRepository
}

// NewMockPersistence returns a MockPersistence whose repositories are mocks too.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Workflows:   &MockWorkflowRepository{},
		Connections: &MockConnectionRepository{},
	}
}

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return m.Workflows
}

func (m *MockPersistence) ConnectionRepository() persistence.ConnectionRepository {
	return m.Connections
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) Create(ctx context.Context, workflow *models.Workflow, seed *models.Node) error {
	args := m.Called(ctx, workflow, seed)

	return args.Error(0)
}

func (m *MockWorkflowRepository) List(ctx context.Context, opts persistence.ListOptions) ([]*models.Workflow, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Count(ctx context.Context, ownerID, search string) (int, error) {
	args := m.Called(ctx, ownerID, search)

	return args.Int(0), args.Error(1)
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id, ownerID string) (*models.Workflow, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) GetGraph(ctx context.Context, id, ownerID string) (*persistence.StoredGraph, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*persistence.StoredGraph), args.Error(1)
}

func (m *MockWorkflowRepository) ReplaceGraph(
	ctx context.Context,
	id, ownerID string,
	graph persistence.GraphReplacement,
) (*persistence.ReplaceResult, error) {
	args := m.Called(ctx, id, ownerID, graph)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*persistence.ReplaceResult), args.Error(1)
}

func (m *MockWorkflowRepository) UpdateName(
	ctx context.Context,
	id, ownerID, name string,
	at time.Time,
) (*models.Workflow, error) {
	args := m.Called(ctx, id, ownerID, name, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Delete(ctx context.Context, id, ownerID string) (*models.Workflow, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) TouchUpdatedAt(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)

	return args.Error(0)
}

// MockConnectionRepository is a mock implementation of persistence.ConnectionRepository interface.
type MockConnectionRepository struct {
	mock.Mock
}

func (m *MockConnectionRepository) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.Connection, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Connection), args.Error(1)
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockChecker is a mock implementation of entitlements.Checker interface.
type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) IsPremium(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)

	return args.Bool(0), args.Error(1)
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/persistence"
)

var _ persistence.Persistence = (*MockPersistence)(nil)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) DeploymentState(ctx context.Context, id string) (*models.DeploymentState, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.DeploymentState), args.Error(1)
}

func (m *MockPersistence) SaveDeploymentState(ctx context.Context, state *models.DeploymentState) error {
	args := m.Called(ctx, state)

	return args.Error(0)
}

func (m *MockPersistence) DeploymentStates(ctx context.Context, statuses ...models.DeploymentStatus) ([]*models.DeploymentState, error) {
	args := m.Called(ctx, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.DeploymentState), args.Error(1)
}

func (m *MockPersistence) RegisterDeployment(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockPersistence) RegisteredDeployments(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]string), args.Error(1)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

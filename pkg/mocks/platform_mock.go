package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dukex/flowforge/pkg/platform"
)

// MockPlatformAPI is a mock implementation of platform.API interface.
type MockPlatformAPI struct {
	mock.Mock
}

var _ platform.API = (*MockPlatformAPI)(nil)

func (m *MockPlatformAPI) ListKVNamespaces(ctx context.Context) ([]platform.KVNamespace, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]platform.KVNamespace), args.Error(1)
}

func (m *MockPlatformAPI) CreateKVNamespace(ctx context.Context, title string) (*platform.KVNamespace, error) {
	args := m.Called(ctx, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*platform.KVNamespace), args.Error(1)
}

func (m *MockPlatformAPI) ListD1Databases(ctx context.Context, name string) ([]platform.D1Database, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]platform.D1Database), args.Error(1)
}

func (m *MockPlatformAPI) CreateD1Database(ctx context.Context, name string) (*platform.D1Database, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*platform.D1Database), args.Error(1)
}

func (m *MockPlatformAPI) ListR2Buckets(ctx context.Context) ([]platform.R2Bucket, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]platform.R2Bucket), args.Error(1)
}

func (m *MockPlatformAPI) CreateR2Bucket(ctx context.Context, name string) (*platform.R2Bucket, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*platform.R2Bucket), args.Error(1)
}

func (m *MockPlatformAPI) GetFunction(ctx context.Context, name string) (*platform.Function, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*platform.Function), args.Error(1)
}

func (m *MockPlatformAPI) CreateFunction(ctx context.Context, name string) (*platform.Function, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*platform.Function), args.Error(1)
}

func (m *MockPlatformAPI) CreateVersion(ctx context.Context, functionID string, upload platform.VersionUpload) (*platform.Version, error) {
	args := m.Called(ctx, functionID, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*platform.Version), args.Error(1)
}

func (m *MockPlatformAPI) CreateDeployment(ctx context.Context, functionName, versionID string) (*platform.Deployment, error) {
	args := m.Called(ctx, functionName, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*platform.Deployment), args.Error(1)
}

func (m *MockPlatformAPI) UpdateWorkflow(ctx context.Context, reg platform.WorkflowRegistration) (*platform.Workflow, error) {
	args := m.Called(ctx, reg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*platform.Workflow), args.Error(1)
}

func (m *MockPlatformAPI) CreateInstance(ctx context.Context, workflowName string, params any) (*platform.Instance, error) {
	args := m.Called(ctx, workflowName, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*platform.Instance), args.Error(1)
}

func (m *MockPlatformAPI) InstanceStatus(ctx context.Context, workflowName, instanceID string) (*platform.InstanceStatus, error) {
	args := m.Called(ctx, workflowName, instanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*platform.InstanceStatus), args.Error(1)
}

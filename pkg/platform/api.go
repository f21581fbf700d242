// Package platform is the client of the remote management API that hosts
// compiled workflows.
package platform

import "context"

// API is the set of remote operations deployment needs. Implementations must
// be safe for concurrent use.
type API interface {
	ListKVNamespaces(ctx context.Context) ([]KVNamespace, error)
	CreateKVNamespace(ctx context.Context, title string) (*KVNamespace, error)
	ListD1Databases(ctx context.Context, name string) ([]D1Database, error)
	CreateD1Database(ctx context.Context, name string) (*D1Database, error)
	ListR2Buckets(ctx context.Context) ([]R2Bucket, error)
	CreateR2Bucket(ctx context.Context, name string) (*R2Bucket, error)

	GetFunction(ctx context.Context, name string) (*Function, error)
	CreateFunction(ctx context.Context, name string) (*Function, error)
	CreateVersion(ctx context.Context, functionID string, upload VersionUpload) (*Version, error)
	CreateDeployment(ctx context.Context, functionName, versionID string) (*Deployment, error)

	UpdateWorkflow(ctx context.Context, reg WorkflowRegistration) (*Workflow, error)
	CreateInstance(ctx context.Context, workflowName string, params any) (*Instance, error)
	InstanceStatus(ctx context.Context, workflowName, instanceID string) (*InstanceStatus, error)
}

// Package persistence provides the durable storage abstraction for deployment
// state and the deployment registry.
package persistence

import (
	"context"

	"github.com/dukex/flowforge/pkg/models"
)

type Persistence interface {
	// DeploymentState returns ErrDeploymentNotFound when id was never saved.
	DeploymentState(ctx context.Context, id string) (*models.DeploymentState, error)
	SaveDeploymentState(ctx context.Context, state *models.DeploymentState) error
	// DeploymentStates lists saved states, optionally only those in the given statuses.
	DeploymentStates(ctx context.Context, statuses ...models.DeploymentStatus) ([]*models.DeploymentState, error)

	// RegisterDeployment adds id to the registry. Registering twice is a no-op.
	RegisterDeployment(ctx context.Context, id string) error
	// RegisteredDeployments lists registered ids in registration order.
	RegisteredDeployments(ctx context.Context) ([]string, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

package deployment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/flowforge/pkg/persistence"
)

// Registry tracks known deployment ids for listing. Registration is best
// effort and never part of a deployment's own transitions.
type Registry struct {
	store  persistence.Persistence
	logger *slog.Logger
	mu     sync.Mutex
}

func NewRegistry(store persistence.Persistence, logger *slog.Logger) *Registry {
	return &Registry{store: store, logger: logger.With("module", "deployment_registry")}
}

// Register adds id once; repeated registrations are ignored.
func (r *Registry) Register(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: deployment id is required", ErrInvalidRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.store.RegisterDeployment(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to register deployment %s: %w", id, err)
	}

	r.logger.DebugContext(ctx, "Deployment registered", "deployment_id", id)

	return nil
}

// List returns registered ids in registration order.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.store.RegisteredDeployments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}

	return ids, nil
}

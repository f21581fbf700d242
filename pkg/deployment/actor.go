package deployment

import (
	"context"
	"sync"

	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/persistence"
)

// actor owns the state of one deployment id. refs is guarded by the
// orchestrator's mutex, every other field by mu.
type actor struct {
	mu sync.Mutex

	refs int

	id      string
	state   *models.DeploymentState
	loaded  bool
	running bool
	done    chan struct{}
}

// hydrate loads the persisted state the first time the actor is used.
func (a *actor) hydrate(ctx context.Context, store persistence.Persistence) error {
	if a.loaded {
		return nil
	}

	state, err := store.DeploymentState(ctx, a.id)
	if err != nil && !persistence.IsDeploymentNotFound(err) {
		return err
	}

	a.state = state
	a.loaded = true

	return nil
}

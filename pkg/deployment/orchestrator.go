// Package deployment provisions compiled workflows onto the remote platform.
//
// Each deployment id is owned by one actor: every state transition for that id
// happens under the actor's lock, is persisted, and only then broadcast to
// stream subscribers and the event bus.
package deployment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/flowforge/pkg/compiler"
	"github.com/dukex/flowforge/pkg/eventbus"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/otelhelper"
	"github.com/dukex/flowforge/pkg/persistence"
	"github.com/dukex/flowforge/pkg/platform"
	"github.com/dukex/flowforge/pkg/resolver"
	"github.com/dukex/flowforge/pkg/stream"
)

var ErrInvalidRequest = errors.New("invalid deployment request")

// BindingResolver turns binding configurations into platform bindings.
type BindingResolver interface {
	Resolve(ctx context.Context, configs []*models.BindingConfiguration, sourceCode string) ([]platform.Binding, []platform.Migration, error)
}

// DeployRequest starts a deployment of an already compiled workflow.
type DeployRequest struct {
	DeploymentID      string
	WorkflowID        string
	Compilation       *models.CompilationResult
	CompatibilityDate string
	// InstanceParams are passed to the first workflow instance.
	InstanceParams any
}

func (r DeployRequest) validate() error {
	switch {
	case r.DeploymentID == "":
		return fmt.Errorf("%w: deployment id is required", ErrInvalidRequest)
	case r.Compilation == nil:
		return fmt.Errorf("%w: compilation result is required", ErrInvalidRequest)
	case r.Compilation.Status != models.CompilationStatusSuccess:
		return fmt.Errorf("%w: compilation did not succeed", ErrInvalidRequest)
	case r.Compilation.SourceCode == "":
		return fmt.Errorf("%w: compiled module is empty", ErrInvalidRequest)
	case r.Compilation.ClassName == "" || r.Compilation.WorkflowName == "":
		return fmt.Errorf("%w: compiled module has no class or workflow name", ErrInvalidRequest)
	}

	return nil
}

type Orchestrator struct {
	store    persistence.Persistence
	api      platform.API
	resolver BindingResolver
	hub      *stream.Hub
	bus      eventbus.EventPublisher
	registry *Registry
	tracer   trace.Tracer
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	actors map[string]*actor
	runs   sync.WaitGroup
}

type Option func(*Orchestrator)

func WithResolver(r BindingResolver) Option {
	return func(o *Orchestrator) { o.resolver = r }
}

// WithEventBus publishes deployment lifecycle events on bus.
func WithEventBus(bus eventbus.EventPublisher) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = tracer }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(store persistence.Persistence, api platform.API, hub *stream.Hub, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:  store,
		api:    api,
		hub:    hub,
		tracer: otelhelper.NoopTracer(),
		logger: logger.With("module", "deployment_orchestrator"),
		now:    func() time.Time { return time.Now().UTC() },
		actors: make(map[string]*actor),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.resolver == nil {
		o.resolver = resolver.New(api, o.tracer, logger)
	}

	o.registry = NewRegistry(store, logger)

	return o
}

func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// acquire returns the actor for id, creating it when absent. Every acquire is
// paired with a release.
func (o *Orchestrator) acquire(id string) *actor {
	o.mu.Lock()
	defer o.mu.Unlock()

	a, ok := o.actors[id]
	if !ok {
		a = &actor{id: id}
		o.actors[id] = a
	}

	a.refs++

	return a
}

func (o *Orchestrator) retain(a *actor) {
	o.mu.Lock()
	a.refs++
	o.mu.Unlock()
}

// release drops the actor from memory once no call or run holds it. The next
// acquire reloads the state from the store.
func (o *Orchestrator) release(a *actor) {
	o.mu.Lock()
	defer o.mu.Unlock()

	a.refs--
	if a.refs == 0 && o.actors[a.id] == a {
		delete(o.actors, a.id)
	}
}

// Deploy starts provisioning in the background and returns the pending state.
// A deployment that is already pending or in progress is returned unchanged.
func (o *Orchestrator) Deploy(ctx context.Context, req DeployRequest) (*models.DeploymentState, error) {
	err := req.validate()
	if err != nil {
		return nil, err
	}

	a := o.acquire(req.DeploymentID)
	defer o.release(a)

	a.mu.Lock()
	defer a.mu.Unlock()

	err = a.hydrate(ctx, o.store)
	if err != nil {
		return nil, err
	}

	if a.state != nil && a.state.Status.Active() {
		o.logger.InfoContext(ctx, "Deployment already active", "deployment_id", a.id, "status", a.state.Status)

		return a.state.Clone(), nil
	}

	now := o.now()
	state := &models.DeploymentState{
		DeploymentID: req.DeploymentID,
		WorkflowID:   req.WorkflowID,
		Status:       models.DeploymentStatusPending,
		Progress: []models.ProgressEntry{
			{Step: models.StepInitializing, Message: "deployment initialized", Percent: 0, Timestamp: now},
		},
		StartedAt: now,
		UpdatedAt: now,
	}

	err = o.store.SaveDeploymentState(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("failed to persist deployment %s: %w", req.DeploymentID, err)
	}

	a.state = state
	o.hub.Publish(a.id, stream.StateEvent(state))

	err = o.registry.Register(ctx, a.id)
	if err != nil {
		o.logger.WarnContext(ctx, "Failed to register deployment", "deployment_id", a.id, "error", err)
	}

	a.done = make(chan struct{})
	a.running = true

	o.retain(a)

	o.runs.Add(1)

	go o.run(context.WithoutCancel(ctx), a, req)

	o.logger.InfoContext(ctx, "Deployment started", "deployment_id", a.id, "workflow", req.Compilation.WorkflowName)

	return state.Clone(), nil
}

// Status returns the current state, loading it from the store when the actor
// is not in memory.
func (o *Orchestrator) Status(ctx context.Context, id string) (*models.DeploymentState, error) {
	a := o.acquire(id)
	defer o.release(a)

	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.hydrate(ctx, o.store)
	if err != nil {
		return nil, err
	}

	if a.state == nil {
		return nil, persistence.NewDeploymentError("Status", id, persistence.ErrDeploymentNotFound)
	}

	return a.state.Clone(), nil
}

// Watch returns a subscriber that first receives the current state and then
// every later progress entry. For finished deployments the subscriber only
// holds the final state and is already closed.
func (o *Orchestrator) Watch(ctx context.Context, id string) (*stream.Subscriber, error) {
	a := o.acquire(id)
	defer o.release(a)

	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.hydrate(ctx, o.store)
	if err != nil {
		return nil, err
	}

	if a.state == nil {
		return nil, persistence.NewDeploymentError("Watch", id, persistence.ErrDeploymentNotFound)
	}

	snapshot := stream.StateEvent(a.state)

	if a.state.Status.Terminal() {
		return stream.Detached(snapshot), nil
	}

	return o.hub.Subscribe(id, snapshot), nil
}

// Evict reports whether id has no actor left in memory. Actors held by a run
// or an in-flight call are kept and false is returned.
func (o *Orchestrator) Evict(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	a, ok := o.actors[id]
	if !ok {
		return true
	}

	if a.refs > 0 {
		return false
	}

	delete(o.actors, id)

	return true
}

// Wait blocks until the run of id, if any, has finished.
func (o *Orchestrator) Wait(id string) {
	a := o.acquire(id)
	defer o.release(a)

	a.mu.Lock()
	done := a.done
	a.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Shutdown waits for in-flight runs or until ctx is done.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	finished := make(chan struct{})

	go func() {
		o.runs.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// entrypointBindings adds the binding the generated fetch handler uses to
// start instances of the module's own workflow class, when the compiler did
// not already declare one.
func entrypointBindings(result *models.CompilationResult) []*models.BindingConfiguration {
	configs := make([]*models.BindingConfiguration, 0, len(result.Bindings)+1)
	configs = append(configs, result.Bindings...)

	if compiler.EntrypointBinding(result.Bindings, result.ClassName) != compiler.WorkflowBindingName {
		return configs
	}

	for _, cfg := range result.Bindings {
		if cfg.Name == compiler.WorkflowBindingName {
			return configs
		}
	}

	return append(configs, &models.BindingConfiguration{
		Name:         compiler.WorkflowBindingName,
		Type:         models.BindingTypeWorkflow,
		ResourceName: result.WorkflowName,
		ClassName:    result.ClassName,
		ScriptName:   result.WorkflowName,
	})
}

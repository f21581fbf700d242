package deployment_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowforge/pkg/deployment"
	"github.com/dukex/flowforge/pkg/eventbus"
	"github.com/dukex/flowforge/pkg/events"
	"github.com/dukex/flowforge/pkg/mocks"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/persistence"
	"github.com/dukex/flowforge/pkg/persistence/file"
	"github.com/dukex/flowforge/pkg/platform"
	"github.com/dukex/flowforge/pkg/stream"
)

type recordingBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *recordingBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, event)

	return nil
}

func (b *recordingBus) types() []events.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]events.EventType, 0, len(b.events))
	for _, event := range b.events {
		out = append(out, event.GetType())
	}

	return out
}

type fixture struct {
	store persistence.Persistence
	api   *mocks.MockPlatformAPI
	hub   *stream.Hub
	bus   *recordingBus
	orch  *deployment.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		store: store,
		api:   &mocks.MockPlatformAPI{},
		hub:   stream.NewHub(slog.Default()),
		bus:   &recordingBus{},
	}
	f.orch = deployment.New(f.store, f.api, f.hub, slog.Default(), deployment.WithEventBus(f.bus))

	return f
}

func compiled() *models.CompilationResult {
	return &models.CompilationResult{
		SourceCode:   "export class OrderRouterWorkflow extends WorkflowEntrypoint {}",
		Bindings:     []*models.BindingConfiguration{},
		ClassName:    "OrderRouterWorkflow",
		WorkflowName: "order-router",
		Status:       models.CompilationStatusSuccess,
	}
}

func request(id string) deployment.DeployRequest {
	return deployment.DeployRequest{DeploymentID: id, WorkflowID: "wf-orders", Compilation: compiled()}
}

var notFound = &platform.APIError{Op: "get function", Status: 404, Kind: platform.ErrNotFound, Message: "script not found"}

// expectHappyPath stubs every remote call of a successful deployment.
func (f *fixture) expectHappyPath() {
	f.api.On("GetFunction", mock.Anything, "order-router").Return(nil, notFound)
	f.api.On("CreateFunction", mock.Anything, "order-router").Return(&platform.Function{ID: "fn-1", Name: "order-router"}, nil)
	f.api.On("CreateVersion", mock.Anything, "fn-1", mock.Anything).Return(&platform.Version{ID: "ver-1", Number: 1}, nil)
	f.api.On("CreateDeployment", mock.Anything, "order-router", "ver-1").Return(&platform.Deployment{ID: "dep-remote-1"}, nil)
	f.api.On("UpdateWorkflow", mock.Anything, platform.WorkflowRegistration{
		Name: "order-router", ClassName: "OrderRouterWorkflow", ScriptName: "order-router",
	}).Return(&platform.Workflow{ID: "wf-remote-1", Name: "order-router", ClassName: "OrderRouterWorkflow"}, nil)
	f.api.On("CreateInstance", mock.Anything, "order-router", map[string]any{}).Return(&platform.Instance{ID: "inst-1"}, nil)
}

func steps(state *models.DeploymentState) []models.DeploymentStep {
	out := make([]models.DeploymentStep, 0, len(state.Progress))
	for _, entry := range state.Progress {
		out = append(out, entry.Step)
	}

	return out
}

func TestOrchestrator_DeploySucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.expectHappyPath()

	state, err := f.orch.Deploy(ctx, request("dep-1"))
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentStatusPending, state.Status)
	assert.Equal(t, []models.DeploymentStep{models.StepInitializing}, steps(state))

	f.orch.Wait("dep-1")

	final, err := f.orch.Status(ctx, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentStatusSuccess, final.Status)
	assert.Equal(t, models.DeploymentSteps, steps(final))
	assert.Equal(t, 100, final.Progress[len(final.Progress)-1].Percent)
	assert.NotNil(t, final.CompletedAt)
	assert.Empty(t, final.Error)
	assert.Equal(t, &models.DeploymentResult{
		FunctionID:           "fn-1",
		VersionID:            "ver-1",
		PlatformDeploymentID: "dep-remote-1",
		WorkflowName:         "order-router",
		InstanceID:           "inst-1",
	}, final.Result)

	stored, err := f.store.DeploymentState(ctx, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, final.Status, stored.Status)
	assert.Equal(t, final.Result, stored.Result)
	assert.Equal(t, steps(final), steps(stored))

	ids, err := f.orch.Registry().List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dep-1"}, ids)

	f.api.AssertExpectations(t)
}

func TestOrchestrator_UploadsSelfWorkflowBinding(t *testing.T) {
	f := newFixture(t)
	f.expectHappyPath()

	_, err := f.orch.Deploy(context.Background(), request("dep-1"))
	require.NoError(t, err)
	f.orch.Wait("dep-1")

	var upload platform.VersionUpload

	for _, call := range f.api.Calls {
		if call.Method == "CreateVersion" {
			upload = call.Arguments.Get(2).(platform.VersionUpload)
		}
	}

	assert.Equal(t, "index.js", upload.MainModule)
	assert.Equal(t, compiled().SourceCode, upload.Source)
	assert.Equal(t, "2024-10-22", upload.CompatibilityDate)
	assert.Equal(t, []platform.Binding{{
		Type:         platform.BindingWorkflow,
		Name:         "WORKFLOW",
		ClassName:    "OrderRouterWorkflow",
		ScriptName:   "order-router",
		WorkflowName: "order-router",
	}}, upload.Bindings)
	assert.Empty(t, upload.Migrations)
}

func TestOrchestrator_ReusesExistingFunction(t *testing.T) {
	f := newFixture(t)

	f.api.On("GetFunction", mock.Anything, "order-router").Return(&platform.Function{ID: "fn-9", Name: "order-router"}, nil)
	f.api.On("CreateVersion", mock.Anything, "fn-9", mock.Anything).Return(nil, errors.New("stop here"))

	_, err := f.orch.Deploy(context.Background(), request("dep-1"))
	require.NoError(t, err)
	f.orch.Wait("dep-1")

	f.api.AssertNotCalled(t, "CreateFunction", mock.Anything, mock.Anything)
}

func TestOrchestrator_DeployWhileActiveIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	release := make(chan struct{})

	f.api.On("GetFunction", mock.Anything, "order-router").Return(nil, notFound).Once().Run(func(mock.Arguments) { <-release })
	f.api.On("CreateFunction", mock.Anything, "order-router").Return(nil, errors.New("quota exceeded"))

	first, err := f.orch.Deploy(ctx, request("dep-1"))
	require.NoError(t, err)

	second, err := f.orch.Deploy(ctx, request("dep-1"))
	require.NoError(t, err)
	assert.True(t, second.Status.Active())
	assert.Equal(t, first.StartedAt, second.StartedAt)

	close(release)
	f.orch.Wait("dep-1")

	f.api.AssertNumberOfCalls(t, "GetFunction", 1)
}

func TestOrchestrator_ConcurrentDeploysRunOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.expectHappyPath()

	release := make(chan struct{})
	f.api.ExpectedCalls[0].Run(func(mock.Arguments) { <-release })

	const callers = 16

	var wg sync.WaitGroup

	start := make(chan struct{})
	errs := make(chan error, callers)

	for range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()
			<-start

			_, err := f.orch.Deploy(ctx, request("dep-1"))
			errs <- err
		}()
	}

	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	close(release)
	f.orch.Wait("dep-1")

	state, err := f.orch.Status(ctx, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentStatusSuccess, state.Status)

	f.api.AssertNumberOfCalls(t, "GetFunction", 1)
	f.api.AssertNumberOfCalls(t, "CreateFunction", 1)
	f.api.AssertNumberOfCalls(t, "CreateInstance", 1)
}

func TestOrchestrator_CreateVersionFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.api.On("GetFunction", mock.Anything, "order-router").Return(&platform.Function{ID: "fn-1", Name: "order-router"}, nil)
	f.api.On("CreateVersion", mock.Anything, "fn-1", mock.Anything).Return(nil, &platform.APIError{
		Op: "create version", Status: 400, Code: 10021, Kind: platform.ErrValidation, Message: "Uncaught SyntaxError",
	})

	_, err := f.orch.Deploy(ctx, request("dep-1"))
	require.NoError(t, err)
	f.orch.Wait("dep-1")

	state, err := f.orch.Status(ctx, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentStatusFailed, state.Status)
	assert.Contains(t, state.Error, "creating-version")
	assert.Contains(t, state.Error, "Uncaught SyntaxError")
	assert.NotNil(t, state.CompletedAt)
	assert.Nil(t, state.Result)
	assert.Equal(t, []models.DeploymentStep{
		models.StepInitializing,
		models.StepCreatingFunction,
		models.StepFunctionCreated,
		models.StepTransformingBindings,
		models.StepBindingsTransformed,
		models.StepCreatingVersion,
		models.StepFailed,
	}, steps(state))
	assert.Equal(t, "creating-version", state.Progress[len(state.Progress)-1].Data["failed_step"])

	f.api.AssertNotCalled(t, "CreateDeployment", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, events.DeploymentFailedEvent, f.bus.types()[len(f.bus.types())-1])
}

func TestOrchestrator_RedeployAfterFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.api.On("GetFunction", mock.Anything, "order-router").Return(nil, errors.New("connection reset")).Once()

	_, err := f.orch.Deploy(ctx, request("dep-1"))
	require.NoError(t, err)
	f.orch.Wait("dep-1")

	failed, err := f.orch.Status(ctx, "dep-1")
	require.NoError(t, err)
	require.Equal(t, models.DeploymentStatusFailed, failed.Status)

	f.expectHappyPath()

	state, err := f.orch.Deploy(ctx, request("dep-1"))
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentStatusPending, state.Status)
	assert.Empty(t, state.Error)
	assert.Len(t, state.Progress, 1)

	f.orch.Wait("dep-1")

	state, err = f.orch.Status(ctx, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentStatusSuccess, state.Status)
}

func TestOrchestrator_PublishesLifecycleEvents(t *testing.T) {
	f := newFixture(t)
	f.expectHappyPath()

	_, err := f.orch.Deploy(context.Background(), request("dep-1"))
	require.NoError(t, err)
	f.orch.Wait("dep-1")

	types := f.bus.types()
	require.NotEmpty(t, types)
	assert.Equal(t, events.DeploymentStartedEvent, types[0])
	assert.Equal(t, events.DeploymentCompletedEvent, types[len(types)-1])

	for _, eventType := range types[1 : len(types)-1] {
		assert.Equal(t, events.DeploymentProgressedEvent, eventType)
	}
}

func TestOrchestrator_Watch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.expectHappyPath()

	release := make(chan struct{})
	f.api.ExpectedCalls[0].Run(func(mock.Arguments) { <-release })

	_, err := f.orch.Deploy(ctx, request("dep-1"))
	require.NoError(t, err)

	sub, err := f.orch.Watch(ctx, "dep-1")
	require.NoError(t, err)

	close(release)

	var received []stream.Event

	timeout := time.After(5 * time.Second)

	for done := false; !done; {
		select {
		case event, ok := <-sub.C():
			if !ok {
				done = true

				break
			}

			received = append(received, event)
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}

	require.GreaterOrEqual(t, len(received), 2)
	assert.Equal(t, stream.KindState, received[0].Kind)
	assert.True(t, received[0].State.Status.Active())

	last := received[len(received)-1]
	assert.Equal(t, stream.KindState, last.Kind)
	assert.Equal(t, models.DeploymentStatusSuccess, last.State.Status)

	var progressed []models.DeploymentStep

	for _, event := range received {
		if event.Kind == stream.KindProgress {
			progressed = append(progressed, event.Entry.Step)
		}
	}

	assert.Equal(t, models.DeploymentSteps[len(models.DeploymentSteps)-len(progressed):], progressed)
	assert.Equal(t, models.StepCompleted, progressed[len(progressed)-1])
}

func TestOrchestrator_WatchFinishedDeployment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.expectHappyPath()

	_, err := f.orch.Deploy(ctx, request("dep-1"))
	require.NoError(t, err)
	f.orch.Wait("dep-1")

	sub, err := f.orch.Watch(ctx, "dep-1")
	require.NoError(t, err)

	var received []stream.Event
	for event := range sub.C() {
		received = append(received, event)
	}

	require.Len(t, received, 1)
	assert.Equal(t, models.DeploymentStatusSuccess, received[0].State.Status)
}

func TestOrchestrator_UnknownDeployment(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Status(context.Background(), "ghost")
	assert.True(t, persistence.IsDeploymentNotFound(err))

	_, err = f.orch.Watch(context.Background(), "ghost")
	assert.True(t, persistence.IsDeploymentNotFound(err))
}

func TestOrchestrator_RecoversFromStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.expectHappyPath()

	_, err := f.orch.Deploy(ctx, request("dep-1"))
	require.NoError(t, err)
	f.orch.Wait("dep-1")

	assert.True(t, f.orch.Evict("dep-1"))

	state, err := f.orch.Status(ctx, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentStatusSuccess, state.Status)

	restarted := deployment.New(f.store, &mocks.MockPlatformAPI{}, stream.NewHub(slog.Default()), slog.Default())

	state, err = restarted.Status(ctx, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentSteps, steps(state))
}

func TestOrchestrator_EvictKeepsRunningActor(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})

	f.api.On("GetFunction", mock.Anything, "order-router").Return(nil, errors.New("down")).Run(func(mock.Arguments) { <-release })

	_, err := f.orch.Deploy(context.Background(), request("dep-1"))
	require.NoError(t, err)

	assert.False(t, f.orch.Evict("dep-1"))

	close(release)
	f.orch.Wait("dep-1")

	assert.True(t, f.orch.Evict("dep-1"))
}

func TestOrchestrator_InvalidRequests(t *testing.T) {
	f := newFixture(t)

	failed := compiled()
	failed.Status = models.CompilationStatusError

	empty := compiled()
	empty.SourceCode = ""

	tests := []struct {
		name string
		req  deployment.DeployRequest
	}{
		{name: "missing id", req: deployment.DeployRequest{Compilation: compiled()}},
		{name: "missing compilation", req: deployment.DeployRequest{DeploymentID: "dep-1"}},
		{name: "failed compilation", req: deployment.DeployRequest{DeploymentID: "dep-1", Compilation: failed}},
		{name: "empty module", req: deployment.DeployRequest{DeploymentID: "dep-1", Compilation: empty}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orch.Deploy(context.Background(), tt.req)
			assert.ErrorIs(t, err, deployment.ErrInvalidRequest)
		})
	}
}

func TestOrchestrator_PersistFailureRejectsDeploy(t *testing.T) {
	store := &mocks.MockPersistence{}
	store.On("DeploymentState", mock.Anything, "dep-1").Return(nil, persistence.NewDeploymentError("Get", "dep-1", persistence.ErrDeploymentNotFound))
	store.On("SaveDeploymentState", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	api := &mocks.MockPlatformAPI{}
	orch := deployment.New(store, api, stream.NewHub(slog.Default()), slog.Default())

	_, err := orch.Deploy(context.Background(), request("dep-1"))
	require.ErrorContains(t, err, "disk full")

	orch.Wait("dep-1")
	api.AssertNotCalled(t, "GetFunction", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "RegisterDeployment", mock.Anything, mock.Anything)
}

func TestOrchestrator_RegistryFailureDoesNotFailDeploy(t *testing.T) {
	store := &mocks.MockPersistence{}
	store.On("DeploymentState", mock.Anything, "dep-1").Return(nil, persistence.NewDeploymentError("Get", "dep-1", persistence.ErrDeploymentNotFound))
	store.On("SaveDeploymentState", mock.Anything, mock.Anything).Return(nil)
	store.On("RegisterDeployment", mock.Anything, "dep-1").Return(errors.New("registry offline"))

	api := &mocks.MockPlatformAPI{}
	api.On("GetFunction", mock.Anything, "order-router").Return(nil, errors.New("down"))

	orch := deployment.New(store, api, stream.NewHub(slog.Default()), slog.Default())

	state, err := orch.Deploy(context.Background(), request("dep-1"))
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentStatusPending, state.Status)

	orch.Wait("dep-1")

	final, err := orch.Status(context.Background(), "dep-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentStatusFailed, final.Status)
}

func TestOrchestrator_Shutdown(t *testing.T) {
	f := newFixture(t)
	f.expectHappyPath()

	_, err := f.orch.Deploy(context.Background(), request("dep-1"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, f.orch.Shutdown(ctx))
}

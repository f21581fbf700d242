package deployment

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dukex/flowforge/pkg/compiler"
	"github.com/dukex/flowforge/pkg/eventbus"
	"github.com/dukex/flowforge/pkg/events"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/otelhelper"
	"github.com/dukex/flowforge/pkg/platform"
	"github.com/dukex/flowforge/pkg/stream"
)

// stage is one remote operation bracketed by a begin and an end progress step.
type stage struct {
	begin   models.DeploymentStep
	message string
	end     models.DeploymentStep
	done    string
	run     func(ctx context.Context) (map[string]any, error)
}

// provisioning carries the results of earlier stages into later ones.
type provisioning struct {
	o   *Orchestrator
	req DeployRequest

	function   *platform.Function
	bindings   []platform.Binding
	migrations []platform.Migration
	version    *platform.Version
	result     models.DeploymentResult
}

func (o *Orchestrator) run(ctx context.Context, a *actor, req DeployRequest) {
	defer o.runs.Done()

	defer func() {
		a.mu.Lock()
		a.running = false
		o.release(a)
		close(a.done)
		a.mu.Unlock()
	}()

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "deployment.run",
		attribute.String(otelhelper.DeploymentIDKey, a.id),
		attribute.String(otelhelper.WorkflowNameKey, req.Compilation.WorkflowName))
	defer span.End()

	err := o.start(ctx, a, req.Compilation.WorkflowName)
	if err != nil {
		o.fail(ctx, a, err)
		otelhelper.SetError(span, err)

		return
	}

	p := &provisioning{o: o, req: req}
	p.result.WorkflowName = req.Compilation.WorkflowName

	for _, st := range p.stages() {
		err = o.runStage(ctx, a, st)
		if err != nil {
			o.fail(ctx, a, err)
			otelhelper.SetError(span, err)

			return
		}
	}

	o.complete(ctx, a, p.result)
}

func (o *Orchestrator) runStage(ctx context.Context, a *actor, st stage) error {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "deployment.step",
		attribute.String(otelhelper.DeploymentIDKey, a.id),
		attribute.String(otelhelper.DeploymentStepKey, string(st.begin)))
	defer span.End()

	err := o.record(ctx, a, st.begin, st.message, nil)
	if err != nil {
		return err
	}

	data, err := st.run(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("%s: %w", st.begin, err)
	}

	if st.end == "" {
		return nil
	}

	return o.record(ctx, a, st.end, st.done, data)
}

func (p *provisioning) stages() []stage {
	return []stage{
		{
			begin: models.StepCreatingFunction, message: "creating function",
			end: models.StepFunctionCreated, done: "function ready",
			run: p.ensureFunction,
		},
		{
			begin: models.StepTransformingBindings, message: "resolving bindings",
			end: models.StepBindingsTransformed, done: "bindings resolved",
			run: p.resolveBindings,
		},
		{
			begin: models.StepCreatingVersion, message: "uploading version",
			end: models.StepVersionCreated, done: "version created",
			run: p.createVersion,
		},
		{
			begin: models.StepDeploying, message: "routing traffic to version",
			end: models.StepDeploymentCreated, done: "deployment created",
			run: p.createDeployment,
		},
		{
			begin: models.StepUpdatingWorkflowRegistration, message: "updating workflow registration",
			end: models.StepRegistrationUpdated, done: "workflow registration updated",
			run: p.updateRegistration,
		},
		{
			begin: models.StepCreatingInstance, message: "creating workflow instance",
			run: p.createInstance,
		},
	}
}

func (p *provisioning) functionName() string {
	return p.req.Compilation.WorkflowName
}

func (p *provisioning) ensureFunction(ctx context.Context) (map[string]any, error) {
	function, err := p.o.api.GetFunction(ctx, p.functionName())
	if platform.IsNotFound(err) {
		function, err = p.o.api.CreateFunction(ctx, p.functionName())
	}

	if err != nil {
		return nil, err
	}

	p.function = function
	p.result.FunctionID = function.ID

	return map[string]any{"function_id": function.ID, "function_name": function.Name}, nil
}

func (p *provisioning) resolveBindings(ctx context.Context) (map[string]any, error) {
	bindings, migrations, err := p.o.resolver.Resolve(ctx, entrypointBindings(p.req.Compilation), p.req.Compilation.SourceCode)
	if err != nil {
		return nil, err
	}

	p.bindings = bindings
	p.migrations = migrations

	return map[string]any{"bindings": len(bindings), "migrations": len(migrations)}, nil
}

func (p *provisioning) createVersion(ctx context.Context) (map[string]any, error) {
	date := p.req.CompatibilityDate
	if date == "" && p.req.Compilation.PlatformConfig != nil {
		date = p.req.Compilation.PlatformConfig.CompatibilityDate
	}

	if date == "" {
		date = compiler.DefaultCompatibilityDate
	}

	version, err := p.o.api.CreateVersion(ctx, p.function.ID, platform.VersionUpload{
		MainModule:        compiler.MainModule,
		Source:            p.req.Compilation.SourceCode,
		CompatibilityDate: date,
		Bindings:          p.bindings,
		Migrations:        p.migrations,
	})
	if err != nil {
		return nil, err
	}

	p.version = version
	p.result.VersionID = version.ID

	return map[string]any{"version_id": version.ID}, nil
}

func (p *provisioning) createDeployment(ctx context.Context) (map[string]any, error) {
	deployment, err := p.o.api.CreateDeployment(ctx, p.functionName(), p.version.ID)
	if err != nil {
		return nil, err
	}

	p.result.PlatformDeploymentID = deployment.ID

	return map[string]any{"platform_deployment_id": deployment.ID}, nil
}

func (p *provisioning) updateRegistration(ctx context.Context) (map[string]any, error) {
	workflow, err := p.o.api.UpdateWorkflow(ctx, platform.WorkflowRegistration{
		Name:       p.req.Compilation.WorkflowName,
		ClassName:  p.req.Compilation.ClassName,
		ScriptName: p.functionName(),
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{"workflow_id": workflow.ID, "class_name": workflow.ClassName}, nil
}

func (p *provisioning) createInstance(ctx context.Context) (map[string]any, error) {
	params := p.req.InstanceParams
	if params == nil {
		params = map[string]any{}
	}

	instance, err := p.o.api.CreateInstance(ctx, p.req.Compilation.WorkflowName, params)
	if err != nil {
		return nil, err
	}

	p.result.InstanceID = instance.ID

	return map[string]any{"instance_id": instance.ID}, nil
}

// record appends a progress entry, persists and then broadcasts it.
func (o *Orchestrator) record(ctx context.Context, a *actor, step models.DeploymentStep, message string, data map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry := o.entry(step, message, data)

	next := a.state.Clone()
	next.Progress = append(next.Progress, entry)
	next.UpdatedAt = entry.Timestamp

	err := o.store.SaveDeploymentState(ctx, next)
	if err != nil {
		return fmt.Errorf("failed to persist progress: %w", err)
	}

	a.state = next

	o.hub.Publish(a.id, stream.ProgressEvent(entry))
	o.publish(ctx, a.id, events.DeploymentProgressed{
		BaseEvent: events.NewBaseEvent(events.DeploymentProgressedEvent, a.id, next.WorkflowID),
		Entry:     entry,
	})

	o.logger.DebugContext(ctx, "Deployment progressed", "deployment_id", a.id, "step", step)

	return nil
}

// start moves the deployment to in_progress.
func (o *Orchestrator) start(ctx context.Context, a *actor, workflowName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.state.Clone()
	next.Status = models.DeploymentStatusInProgress
	next.UpdatedAt = o.now()

	err := o.store.SaveDeploymentState(ctx, next)
	if err != nil {
		return fmt.Errorf("failed to persist status: %w", err)
	}

	a.state = next

	o.hub.Publish(a.id, stream.StateEvent(next))
	o.publish(ctx, a.id, events.DeploymentStarted{
		BaseEvent:    events.NewBaseEvent(events.DeploymentStartedEvent, a.id, next.WorkflowID),
		WorkflowName: workflowName,
	})

	return nil
}

func (o *Orchestrator) complete(ctx context.Context, a *actor, result models.DeploymentResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry := o.entry(models.StepCompleted, "deployment completed", map[string]any{"instance_id": result.InstanceID})

	next := a.state.Clone()
	next.Status = models.DeploymentStatusSuccess
	next.Progress = append(next.Progress, entry)
	next.Result = &result
	next.UpdatedAt = entry.Timestamp
	next.CompletedAt = &entry.Timestamp

	o.finish(ctx, a, next, entry)
	o.publish(ctx, a.id, events.DeploymentCompleted{
		BaseEvent: events.NewBaseEvent(events.DeploymentCompletedEvent, a.id, next.WorkflowID),
		Result:    result,
		Duration:  next.CompletedAt.Sub(next.StartedAt),
	})

	o.logger.InfoContext(ctx, "Deployment succeeded", "deployment_id", a.id, "version_id", result.VersionID)
}

func (o *Orchestrator) fail(ctx context.Context, a *actor, cause error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	o.failLocked(ctx, a, cause.Error())
}

// failLocked must be called with a.mu held.
func (o *Orchestrator) failLocked(ctx context.Context, a *actor, message string) {
	failedAt := a.state.LastStep()
	entry := o.entry(models.StepFailed, message, map[string]any{"failed_step": string(failedAt)})

	if n := len(a.state.Progress); n > 0 {
		entry.Percent = a.state.Progress[n-1].Percent
	}

	next := a.state.Clone()
	next.Status = models.DeploymentStatusFailed
	next.Error = message
	next.Progress = append(next.Progress, entry)
	next.UpdatedAt = entry.Timestamp
	next.CompletedAt = &entry.Timestamp

	o.finish(ctx, a, next, entry)
	o.publish(ctx, a.id, events.DeploymentFailed{
		BaseEvent: events.NewBaseEvent(events.DeploymentFailedEvent, a.id, next.WorkflowID),
		Step:      failedAt,
		Error:     message,
	})

	o.logger.ErrorContext(ctx, "Deployment failed", "deployment_id", a.id, "step", failedAt, "error", message)
}

// finish persists a terminal state, broadcasts the last entry and the final
// state, and closes the stream topic. A persistence failure is logged and the
// terminal state is still broadcast so readers are not left waiting.
func (o *Orchestrator) finish(ctx context.Context, a *actor, next *models.DeploymentState, entry models.ProgressEntry) {
	err := o.store.SaveDeploymentState(ctx, next)
	if err != nil {
		o.logger.ErrorContext(ctx, "Failed to persist terminal state", "deployment_id", a.id, "status", next.Status, "error", err)
	}

	a.state = next

	o.hub.Publish(a.id, stream.ProgressEvent(entry))
	o.hub.Publish(a.id, stream.StateEvent(next))
	o.hub.CloseTopic(a.id)
}

func (o *Orchestrator) entry(step models.DeploymentStep, message string, data map[string]any) models.ProgressEntry {
	return models.ProgressEntry{
		Step:      step,
		Message:   message,
		Percent:   step.Percent(),
		Timestamp: o.now(),
		Data:      data,
	}
}

func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event) {
	if o.bus == nil {
		return
	}

	err := o.bus.Publish(ctx, key, event)
	if err != nil {
		o.logger.WarnContext(ctx, "Failed to publish deployment event", "deployment_id", key, "event_type", event.GetType(), "error", err)
	}
}

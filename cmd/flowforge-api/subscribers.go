package main

import (
	"context"
	"log/slog"

	"github.com/dukex/flowforge/pkg/eventbus"
	"github.com/dukex/flowforge/pkg/events"
)

// registerEventLoggers logs deployment outcomes read back from the event bus,
// so every replica sharing a Kafka topic reports them.
func registerEventLoggers(bus eventbus.EventSubscriber, logger *slog.Logger) error {
	logger = logger.With("module", "deployment_events")

	err := bus.Handle(events.DeploymentStartedEvent, func(ctx context.Context, event any) error {
		if e, ok := event.(*events.DeploymentStarted); ok {
			logger.InfoContext(ctx, "Deployment started",
				"deployment_id", e.DeploymentID, "workflow_id", e.WorkflowID, "workflow_name", e.WorkflowName)
		}

		return nil
	})
	if err != nil {
		return err
	}

	err = bus.Handle(events.DeploymentCompletedEvent, func(ctx context.Context, event any) error {
		if e, ok := event.(*events.DeploymentCompleted); ok {
			logger.InfoContext(ctx, "Deployment completed",
				"deployment_id", e.DeploymentID,
				"workflow_name", e.Result.WorkflowName,
				"version_id", e.Result.VersionID,
				"instance_id", e.Result.InstanceID,
				"duration", e.Duration)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return bus.Handle(events.DeploymentFailedEvent, func(ctx context.Context, event any) error {
		if e, ok := event.(*events.DeploymentFailed); ok {
			logger.WarnContext(ctx, "Deployment failed",
				"deployment_id", e.DeploymentID, "step", e.Step, "error", e.Error)
		}

		return nil
	})
}

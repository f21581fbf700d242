// Package events defines the deployment lifecycle notifications published on the event bus.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/dukex/flowforge/pkg/models"
)

type EventType string

// Topic carries every deployment lifecycle event.
const Topic = "flowforge.deployments"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	DeploymentStartedEvent    EventType = "deployment.started"
	DeploymentProgressedEvent EventType = "deployment.progressed"
	DeploymentCompletedEvent  EventType = "deployment.completed"
	DeploymentFailedEvent     EventType = "deployment.failed"
)

type BaseEvent struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	DeploymentID string    `json:"deployment_id"`
	WorkflowID   string    `json:"workflow_id"`
}

// DeploymentStarted is published once the provisioning run leaves pending.
type DeploymentStarted struct {
	BaseEvent

	WorkflowName string `json:"workflow_name"`
}

func (e DeploymentStarted) GetType() EventType {
	return DeploymentStartedEvent
}

// DeploymentProgressed mirrors one appended progress entry.
type DeploymentProgressed struct {
	BaseEvent

	Entry models.ProgressEntry `json:"entry"`
}

func (e DeploymentProgressed) GetType() EventType {
	return DeploymentProgressedEvent
}

type DeploymentCompleted struct {
	BaseEvent

	Result   models.DeploymentResult `json:"result"`
	Duration time.Duration           `json:"duration"`
}

func (e DeploymentCompleted) GetType() EventType {
	return DeploymentCompletedEvent
}

type DeploymentFailed struct {
	BaseEvent

	Step  models.DeploymentStep `json:"step"`
	Error string                `json:"error"`
}

func (e DeploymentFailed) GetType() EventType {
	return DeploymentFailedEvent
}

func NewBaseEvent(eventType EventType, deploymentID, workflowID string) BaseEvent {
	return BaseEvent{
		ID:           uuid.New().String(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		DeploymentID: deploymentID,
		WorkflowID:   workflowID,
	}
}

// New returns an empty event of the given type to decode a payload into, or
// nil for unknown types.
func New(eventType EventType) any {
	switch eventType {
	case DeploymentStartedEvent:
		return &DeploymentStarted{}
	case DeploymentProgressedEvent:
		return &DeploymentProgressed{}
	case DeploymentCompletedEvent:
		return &DeploymentCompleted{}
	case DeploymentFailedEvent:
		return &DeploymentFailed{}
	default:
		return nil
	}
}

package models

import "time"

// DeploymentStatus is the lifecycle state of a deployment.
type DeploymentStatus string

const (
	DeploymentStatusPending    DeploymentStatus = "pending"
	DeploymentStatusInProgress DeploymentStatus = "in_progress"
	DeploymentStatusSuccess    DeploymentStatus = "success"
	DeploymentStatusFailed     DeploymentStatus = "failed"
)

// Active reports whether a provisioning run owns the deployment.
func (s DeploymentStatus) Active() bool {
	return s == DeploymentStatusPending || s == DeploymentStatusInProgress
}

// Terminal reports whether the deployment has finished.
func (s DeploymentStatus) Terminal() bool {
	return s == DeploymentStatusSuccess || s == DeploymentStatusFailed
}

// DeploymentStep identifies one stage of the provisioning sequence.
type DeploymentStep string

const (
	StepInitializing                 DeploymentStep = "initializing"
	StepCreatingFunction             DeploymentStep = "creating-function"
	StepFunctionCreated              DeploymentStep = "function-created"
	StepTransformingBindings         DeploymentStep = "transforming-bindings"
	StepBindingsTransformed          DeploymentStep = "bindings-transformed"
	StepCreatingVersion              DeploymentStep = "creating-version"
	StepVersionCreated               DeploymentStep = "version-created"
	StepDeploying                    DeploymentStep = "deploying"
	StepDeploymentCreated            DeploymentStep = "deployment-created"
	StepUpdatingWorkflowRegistration DeploymentStep = "updating-workflow-registration"
	StepRegistrationUpdated          DeploymentStep = "registration-updated"
	StepCreatingInstance             DeploymentStep = "creating-instance"
	StepCompleted                    DeploymentStep = "completed"
	StepFailed                       DeploymentStep = "failed"
)

// DeploymentSteps is the fixed order in which a successful deployment reports progress.
var DeploymentSteps = []DeploymentStep{
	StepInitializing,
	StepCreatingFunction,
	StepFunctionCreated,
	StepTransformingBindings,
	StepBindingsTransformed,
	StepCreatingVersion,
	StepVersionCreated,
	StepDeploying,
	StepDeploymentCreated,
	StepUpdatingWorkflowRegistration,
	StepRegistrationUpdated,
	StepCreatingInstance,
	StepCompleted,
}

// Order returns the position of the step in the sequence, or -1 for failed
// and unknown steps.
func (s DeploymentStep) Order() int {
	for i, step := range DeploymentSteps {
		if step == s {
			return i
		}
	}

	return -1
}

// Percent is the nominal completion reported with the step.
func (s DeploymentStep) Percent() int {
	order := s.Order()
	if order < 0 {
		return 0
	}

	return order * 100 / (len(DeploymentSteps) - 1)
}

// ProgressEntry is one append-only record of deployment progress.
type ProgressEntry struct {
	Step      DeploymentStep `json:"step"`
	Message   string         `json:"message"`
	Percent   int            `json:"percent"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// DeploymentResult holds the remote identifiers of a successful deployment.
type DeploymentResult struct {
	FunctionID           string `json:"function_id"`
	VersionID            string `json:"version_id"`
	PlatformDeploymentID string `json:"platform_deployment_id"`
	WorkflowName         string `json:"workflow_name"`
	InstanceID           string `json:"instance_id,omitempty"`
}

// DeploymentState is the persisted aggregate owned by a single deployment actor.
type DeploymentState struct {
	DeploymentID string            `json:"deployment_id"`
	WorkflowID   string            `json:"workflow_id"`
	Status       DeploymentStatus  `json:"status"`
	Progress     []ProgressEntry   `json:"progress"`
	Result       *DeploymentResult `json:"result,omitempty"`
	Error        string            `json:"error,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *DeploymentState) Clone() *DeploymentState {
	if s == nil {
		return nil
	}

	out := *s

	out.Progress = make([]ProgressEntry, len(s.Progress))
	copy(out.Progress, s.Progress)

	if s.Result != nil {
		result := *s.Result
		out.Result = &result
	}

	if s.CompletedAt != nil {
		completed := *s.CompletedAt
		out.CompletedAt = &completed
	}

	return &out
}

// LastStep returns the most recent progress step, or empty when none.
func (s *DeploymentState) LastStep() DeploymentStep {
	if len(s.Progress) == 0 {
		return ""
	}

	return s.Progress[len(s.Progress)-1].Step
}

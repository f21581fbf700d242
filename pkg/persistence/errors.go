package persistence

import (
	"errors"
	"fmt"

	"github.com/dukex/flowforge/pkg/models"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrDeploymentNotFound indicates no state was saved for the given deployment id.
	ErrDeploymentNotFound = errors.New("deployment not found")

	// ErrInvalidDeploymentState indicates a state that cannot be stored, such as one without id.
	ErrInvalidDeploymentState = errors.New("invalid deployment state")
)

// DeploymentError wraps storage errors with the operation and deployment involved.
type DeploymentError struct {
	Op           string // Operation being performed (e.g., "Get", "Save", "Register")
	DeploymentID string
	Err          error
}

func (e *DeploymentError) Error() string {
	if e.DeploymentID == "" {
		return fmt.Sprintf("%s operation failed: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s operation failed for deployment %s: %v", e.Op, e.DeploymentID, e.Err)
}

func (e *DeploymentError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for deployment errors.
func (e *DeploymentError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewDeploymentError(op, deploymentID string, err error) *DeploymentError {
	return &DeploymentError{Op: op, DeploymentID: deploymentID, Err: err}
}

// IsDeploymentNotFound checks if an error indicates a deployment was not found.
func IsDeploymentNotFound(err error) bool {
	return errors.Is(err, ErrDeploymentNotFound)
}

// ValidateState rejects states no backend can key.
func ValidateState(state *models.DeploymentState) error {
	if state == nil || state.DeploymentID == "" {
		return NewDeploymentError("Save", "", ErrInvalidDeploymentState)
	}

	return nil
}

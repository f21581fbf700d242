// Package bindings deduplicates and names the external resources required by
// generated workflow code.
package bindings

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/dukex/flowforge/pkg/models"
)

// AIBindingName is the single binding every inference call goes through.
const AIBindingName = "AI"

// Name returns the identifier generated code uses for a requirement. Storage
// bindings keep their declared name, AI collapses to one name, and everything
// else is suffixed with a hash of the workflow id so that modules deployed side
// by side cannot collide.
func Name(workflowID string, req models.BindingRequirement) string {
	switch {
	case req.Type == models.BindingTypeAI:
		return AIBindingName
	case req.Type.IsStorage():
		return models.SanitizeIdentifier(req.Name)
	default:
		return hashedName(req.Name, workflowID+":"+string(req.Type)+":"+req.Name)
	}
}

// ToolSessionBindingName names the stateful actor binding of the tool bundle.
func ToolSessionBindingName(workflowID string) string {
	return hashedName("TOOL_SESSION", workflowID+":tool-session")
}

// ToolWorkflowBindingName names the self-referencing workflow binding of the tool bundle.
func ToolWorkflowBindingName(workflowID string) string {
	return hashedName("TOOL_WORKFLOW", workflowID+":tool-workflow")
}

// ToolSessionClassName is the class exported for the tool bundle's actor.
func ToolSessionClassName(className string) string {
	return className + "ToolSession"
}

func hashedName(base, seed string) string {
	prefix := strings.ToUpper(models.SanitizeIdentifier(base))

	return fmt.Sprintf("%s_%08x", prefix, uint32(xxhash.Sum64String(seed)))
}

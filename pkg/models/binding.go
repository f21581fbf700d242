package models

// BindingType is the closed set of external resource kinds generated code can depend on.
type BindingType string

const (
	BindingTypeKV            BindingType = "kv"
	BindingTypeD1            BindingType = "d1"
	BindingTypeR2            BindingType = "r2"
	BindingTypeAI            BindingType = "ai"
	BindingTypeService       BindingType = "service"
	BindingTypeDurableObject BindingType = "durable_object"
	BindingTypeWorkflow      BindingType = "workflow"
)

// Valid reports whether t is a known binding type.
func (t BindingType) Valid() bool {
	switch t {
	case BindingTypeKV, BindingTypeD1, BindingTypeR2, BindingTypeAI,
		BindingTypeService, BindingTypeDurableObject, BindingTypeWorkflow:
		return true
	}

	return false
}

// IsStorage reports whether the binding keeps its user-declared name.
func (t BindingType) IsStorage() bool {
	return t == BindingTypeKV || t == BindingTypeD1 || t == BindingTypeR2
}

// Capability is a composite feature a node may request from the compiled module.
type Capability string

// CapabilityTool makes the compiled workflow invokable as an external tool.
const CapabilityTool Capability = "tool"

// BindingRequirement is a binding declared by a single node's generated code.
// ResourceName, ClassName and ScriptName optionally describe the remote target
// of workflow and service references.
type BindingRequirement struct {
	Name         string      `json:"name"`
	Type         BindingType `json:"type"`
	ResourceName string      `json:"resource_name,omitempty"`
	ClassName    string      `json:"class_name,omitempty"`
	ScriptName   string      `json:"script_name,omitempty"`
}

// BindingConfiguration is a deduplicated, named binding ready for deployment.
type BindingConfiguration struct {
	Name         string      `json:"name"`
	Type         BindingType `json:"type"`
	ExternalID   string      `json:"external_id,omitempty"`
	ResourceName string      `json:"resource_name,omitempty"`
	ClassName    string      `json:"class_name,omitempty"`
	ScriptName   string      `json:"script_name,omitempty"`
	UsedBy       []string    `json:"used_by,omitempty"`
}

package models

// CodegenResult is the output of generating code for a single node.
type CodegenResult struct {
	Code             string               `json:"code"`
	RequiredBindings []BindingRequirement `json:"required_bindings,omitempty"`
	Capabilities     []Capability         `json:"capabilities,omitempty"`
}

// HasCapability reports whether the result requests the given capability.
func (r *CodegenResult) HasCapability(c Capability) bool {
	for _, have := range r.Capabilities {
		if have == c {
			return true
		}
	}

	return false
}

// CompilationStatus is the outcome of a compilation.
type CompilationStatus string

const (
	CompilationStatusSuccess CompilationStatus = "success"
	CompilationStatusError   CompilationStatus = "error"
)

// CompilationResult is the immutable output of the workflow compiler.
type CompilationResult struct {
	SourceCode     string                  `json:"source_code"`
	Bindings       []*BindingConfiguration `json:"bindings"`
	ClassName      string                  `json:"class_name"`
	WorkflowName   string                  `json:"workflow_name"`
	PlatformConfig *PlatformConfig         `json:"platform_config,omitempty"`
	Status         CompilationStatus       `json:"status"`
	Errors         []string                `json:"errors,omitempty"`
}

// FailedCompilation builds the error-shaped result surfaced to API callers.
func FailedCompilation(errs ...error) *CompilationResult {
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		messages = append(messages, err.Error())
	}

	return &CompilationResult{
		Bindings: []*BindingConfiguration{},
		Status:   CompilationStatusError,
		Errors:   messages,
	}
}

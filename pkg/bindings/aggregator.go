package bindings

import (
	"fmt"
	"log/slog"

	"github.com/dukex/flowforge/pkg/models"
)

// NodeResult pairs a node with the output of its generator.
type NodeResult struct {
	NodeID string
	Result *models.CodegenResult
}

// Options identify the compiled unit bindings are named for.
type Options struct {
	WorkflowID   string
	WorkflowName string
	ClassName    string
}

type groupKey struct {
	name string
	kind models.BindingType
}

// Aggregator folds per-node requirements into the binding list of a module.
type Aggregator struct {
	logger *slog.Logger
}

func NewAggregator(logger *slog.Logger) *Aggregator {
	return &Aggregator{logger: logger.With("module", "binding_aggregator")}
}

// Aggregate groups requirements by (name, type) in first-seen order, names
// each group and appends the tool bundle bindings when any node asks for the
// tool capability. Two distinct groups that end up with the same name are an
// error.
func (a *Aggregator) Aggregate(opts Options, results []NodeResult) ([]*models.BindingConfiguration, error) {
	var (
		configs []*models.BindingConfiguration
		toolBy  []string
	)

	groups := make(map[groupKey]*models.BindingConfiguration)
	owners := make(map[string]groupKey)

	for _, nr := range results {
		if nr.Result == nil {
			continue
		}

		for _, req := range nr.Result.RequiredBindings {
			if !req.Type.Valid() {
				return nil, &models.WorkflowError{
					Kind:    models.ErrCompilation,
					NodeID:  nr.NodeID,
					Message: fmt.Sprintf("unknown binding type '%s'", req.Type),
				}
			}

			key := groupKey{name: req.Name, kind: req.Type}
			if req.Type == models.BindingTypeAI {
				key.name = AIBindingName
			}

			if existing, ok := groups[key]; ok {
				existing.UsedBy = appendUnique(existing.UsedBy, nr.NodeID)

				continue
			}

			name := Name(opts.WorkflowID, req)
			if other, taken := owners[name]; taken {
				return nil, &models.WorkflowError{
					Kind:   models.ErrCompilation,
					NodeID: nr.NodeID,
					Message: fmt.Sprintf("binding '%s' (%s) resolves to name '%s' already used by '%s' (%s)",
						req.Name, req.Type, name, other.name, other.kind),
				}
			}

			cfg := &models.BindingConfiguration{
				Name:         name,
				Type:         req.Type,
				ResourceName: resourceName(req),
				ClassName:    req.ClassName,
				ScriptName:   req.ScriptName,
				UsedBy:       []string{nr.NodeID},
			}

			groups[key] = cfg
			owners[name] = key
			configs = append(configs, cfg)
		}

		if nr.Result.HasCapability(models.CapabilityTool) {
			toolBy = appendUnique(toolBy, nr.NodeID)
		}
	}

	if len(toolBy) > 0 {
		for _, cfg := range toolBindings(opts, toolBy) {
			if other, taken := owners[cfg.Name]; taken {
				return nil, &models.WorkflowError{
					Kind:    models.ErrCompilation,
					Message: fmt.Sprintf("tool binding '%s' collides with declared binding '%s'", cfg.Name, other.name),
				}
			}

			owners[cfg.Name] = groupKey{name: cfg.Name, kind: cfg.Type}
			configs = append(configs, cfg)
		}
	}

	if configs == nil {
		configs = []*models.BindingConfiguration{}
	}

	a.logger.Debug("aggregated bindings", "workflow_id", opts.WorkflowID, "count", len(configs), "tool", len(toolBy) > 0)

	return configs, nil
}

func toolBindings(opts Options, usedBy []string) []*models.BindingConfiguration {
	sessionClass := ToolSessionClassName(opts.ClassName)

	return []*models.BindingConfiguration{
		{
			Name:         ToolSessionBindingName(opts.WorkflowID),
			Type:         models.BindingTypeDurableObject,
			ResourceName: sessionClass,
			ClassName:    sessionClass,
			UsedBy:       append([]string(nil), usedBy...),
		},
		{
			Name:         ToolWorkflowBindingName(opts.WorkflowID),
			Type:         models.BindingTypeWorkflow,
			ResourceName: opts.WorkflowName,
			ClassName:    opts.ClassName,
			ScriptName:   opts.WorkflowName,
			UsedBy:       append([]string(nil), usedBy...),
		},
	}
}

func resourceName(req models.BindingRequirement) string {
	if req.ResourceName != "" {
		return req.ResourceName
	}

	if req.Type == models.BindingTypeAI {
		return ""
	}

	return req.Name
}

func appendUnique(list []string, id string) []string {
	for _, have := range list {
		if have == id {
			return list
		}
	}

	return append(list, id)
}

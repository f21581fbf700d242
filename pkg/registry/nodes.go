package registry

import (
	"github.com/dukex/flowforge/pkg/nodes/ai"
	"github.com/dukex/flowforge/pkg/nodes/conditional"
	"github.com/dukex/flowforge/pkg/nodes/dbquery"
	"github.com/dukex/flowforge/pkg/nodes/entry"
	"github.com/dukex/flowforge/pkg/nodes/exit"
	"github.com/dukex/flowforge/pkg/nodes/httprequest"
	"github.com/dukex/flowforge/pkg/nodes/kv"
	"github.com/dukex/flowforge/pkg/nodes/log"
	"github.com/dukex/flowforge/pkg/nodes/merge"
	"github.com/dukex/flowforge/pkg/nodes/objectstorage"
	"github.com/dukex/flowforge/pkg/nodes/servicecall"
	"github.com/dukex/flowforge/pkg/nodes/sleep"
	"github.com/dukex/flowforge/pkg/nodes/subworkflow"
	switchnode "github.com/dukex/flowforge/pkg/nodes/switch"
	"github.com/dukex/flowforge/pkg/nodes/toolio"
	"github.com/dukex/flowforge/pkg/nodes/transform"
	"github.com/dukex/flowforge/pkg/protocol"
)

// DefaultNodes returns every built-in generator.
func DefaultNodes() []protocol.NodeCodegen {
	return []protocol.NodeCodegen{
		entry.NewEntryNode(),
		exit.NewExitNode(),
		toolio.NewToolInputNode(),
		toolio.NewToolOutputNode(),
		httprequest.NewHTTPRequestNode(),
		transform.NewTransformNode(),
		log.NewLogNode(),
		conditional.NewConditionalNode(),
		switchnode.NewSwitchNode(),
		merge.NewMergeNode(),
		kv.NewKVNode(),
		dbquery.NewDBQueryNode(),
		objectstorage.NewObjectStorageNode(),
		ai.NewAINode(),
		servicecall.NewServiceCallNode(),
		sleep.NewSleepNode(),
		subworkflow.NewSubworkflowNode(),
	}
}

// RegisterDefaultNodes registers all built-in node generators with the registry.
func (r *Registry) RegisterDefaultNodes() error {
	for _, node := range DefaultNodes() {
		if err := r.RegisterNode(node); err != nil {
			return err
		}
	}

	return nil
}

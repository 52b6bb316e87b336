package nodes

import (
	"context"

	"ordering_assistant/internal/core"
	"ordering_assistant/internal/nlu"
)

// NewPipeline builds the extract -> classify -> generate graph
func NewPipeline(ctx context.Context, processor *nlu.Processor, generator *ResponseGenerator) (*core.LocalPipeline, error) {
	return core.NewLocalPipeline(ctx,
		core.Stage{Name: NodeExtract, Lambda: NewExtractNode(processor)},
		core.Stage{Name: NodeClassify, Lambda: NewClassifyNode(processor)},
		core.Stage{Name: NodeGenerate, Lambda: NewGenerateNode(generator)},
	)
}

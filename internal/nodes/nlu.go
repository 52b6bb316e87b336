package nodes

import (
	"context"
	"errors"

	"ordering_assistant/internal/core"
	"ordering_assistant/internal/nlu"
	"ordering_assistant/pkg"

	"github.com/cloudwego/eino/compose"
)

// Node names of the local pipeline graph
const (
	NodeExtract  = "extract_entities"
	NodeClassify = "classify_intent"
	NodeGenerate = "generate_response"
)

var errNilState = errors.New("pipeline state is nil")

// NewExtractNode wraps entity extraction as a graph lambda: text in, state out
func NewExtractNode(processor *nlu.Processor) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, text string) (*core.PipelineState, error) {
		return &core.PipelineState{
			Text:     text,
			Entities: processor.Extract(text),
		}, nil
	})
}

// NewClassifyNode fills in the intent of the state
func NewClassifyNode(processor *nlu.Processor) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, state *core.PipelineState) (*core.PipelineState, error) {
		if state == nil {
			return nil, errNilState
		}
		state.Intent = processor.Classify(state.Text, state.Entities)
		return state, nil
	})
}

// NewGenerateNode renders the fallback reply for the classified state
func NewGenerateNode(generator *ResponseGenerator) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, state *core.PipelineState) (pkg.AssistantResponse, error) {
		if state == nil {
			return pkg.AssistantResponse{}, errNilState
		}
		return generator.Generate(state.Intent, state.Entities), nil
	})
}

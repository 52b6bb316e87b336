package core

import (
	"context"
	"fmt"
	"time"

	"ordering_assistant/pkg"
	"ordering_assistant/src/logger"

	"github.com/cloudwego/eino/compose"
)

// Stage is one named lambda of the local pipeline
type Stage struct {
	Name   string
	Lambda *compose.Lambda
}

// LocalPipeline runs text through a compiled chain of stages and yields the
// fallback reply. The first stage takes a string and the last returns a
// pkg.AssistantResponse.
type LocalPipeline struct {
	runnable compose.Runnable[string, pkg.AssistantResponse]
	stages   []string
}

// NewLocalPipeline wires the stages START -> s1 -> ... -> sN -> END and compiles the graph
func NewLocalPipeline(ctx context.Context, stages ...Stage) (*LocalPipeline, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("local pipeline needs at least one stage")
	}

	graph := compose.NewGraph[string, pkg.AssistantResponse]()
	names := make([]string, 0, len(stages))
	for _, st := range stages {
		if err := graph.AddLambdaNode(st.Name, st.Lambda); err != nil {
			return nil, fmt.Errorf("failed to add node %s: %w", st.Name, err)
		}
		names = append(names, st.Name)
	}

	prev := compose.START
	for _, name := range names {
		if err := graph.AddEdge(prev, name); err != nil {
			return nil, fmt.Errorf("failed to add edge %s -> %s: %w", prev, name, err)
		}
		prev = name
	}
	if err := graph.AddEdge(prev, compose.END); err != nil {
		return nil, fmt.Errorf("failed to add edge %s -> end: %w", prev, err)
	}

	runnable, err := graph.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile local pipeline: %w", err)
	}

	return &LocalPipeline{runnable: runnable, stages: names}, nil
}

// Respond runs the pipeline for one utterance
func (p *LocalPipeline) Respond(ctx context.Context, text string) (pkg.AssistantResponse, error) {
	start := time.Now()

	resp, err := p.runnable.Invoke(ctx, text)
	if err != nil {
		return pkg.AssistantResponse{}, fmt.Errorf("local pipeline failed: %w", err)
	}

	logger.Debug().
		Dur("elapsed", time.Since(start)).
		Int("stages", len(p.stages)).
		Msg("local pipeline completed")
	return resp, nil
}

// Stages returns the node names in execution order
func (p *LocalPipeline) Stages() []string {
	return append([]string(nil), p.stages...)
}

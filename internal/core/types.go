package core

import (
	"context"

	"ordering_assistant/pkg"
)

// PipelineState flows between the nodes of the local pipeline
type PipelineState struct {
	Text     string
	Entities []pkg.EntityMatch
	Intent   pkg.Intent
}

// Responder produces a reply for one utterance without any remote call
type Responder interface {
	Respond(ctx context.Context, text string) (pkg.AssistantResponse, error)
}

package assistant

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"ordering_assistant/internal/core"
	"ordering_assistant/internal/nodes"
	"ordering_assistant/pkg"
	"ordering_assistant/src/logger"

	"github.com/rs/zerolog"
)

// SessionStore is the dialogue context the orchestrator reads and appends to.
// *storage.ContextStore implements it.
type SessionStore interface {
	GetContext(key string) pkg.SessionContext
	AppendTurn(ctx context.Context, key string, user, assistant pkg.Turn, expectedSeq uint64) (uint64, error)
	AddSystemMessage(key, content string) error
	Clear(ctx context.Context, key string) error
	Stats(key string) (pkg.SessionStats, error)
	Transcript(ctx context.Context, key string) ([]pkg.LoggedTurn, error)
	SetMaxContextTurns(maxTurns int)
	MaxPairs() int
	Len() int
}

// NLU is the local understanding pipeline as seen by the status and config
// endpoints
type NLU interface {
	Status() pkg.NLUStatus
	SetIntentRecognition(enabled bool)
	SetEntityExtraction(enabled bool)
}

// Orchestrator answers one message per call: remote backend first, the
// local pipeline on any failure, then records the exchange.
type Orchestrator struct {
	store     SessionStore
	backend   Backend
	local     core.Responder
	generator *nodes.ResponseGenerator
	nlu       NLU
	now       func() time.Time

	remoteReplies   atomic.Int64
	fallbackReplies atomic.Int64
	droppedWrites   atomic.Int64
}

// OrchestratorConfig wires the orchestrator. Backend may be nil to always
// answer locally.
type OrchestratorConfig struct {
	Store     SessionStore
	Backend   Backend
	Local     core.Responder
	Generator *nodes.ResponseGenerator
	NLU       NLU
	Now       func() time.Time
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	o := &Orchestrator{
		store:     cfg.Store,
		backend:   cfg.Backend,
		local:     cfg.Local,
		generator: cfg.Generator,
		nlu:       cfg.NLU,
		now:       cfg.Now,
	}
	if o.generator == nil {
		o.generator = nodes.NewResponseGenerator(nil)
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

func (o *Orchestrator) log() zerolog.Logger {
	return logger.With("orchestrator")
}

// ProcessMessage always returns a usable reply
func (o *Orchestrator) ProcessMessage(ctx context.Context, message, sessionKey string) pkg.AssistantResponse {
	if strings.TrimSpace(message) == "" {
		o.fallbackReplies.Add(1)
		return o.generator.Generate(pkg.Intent{Name: pkg.GenericInquiry}, nil)
	}

	snapshot := o.store.GetContext(sessionKey)
	received := o.now()

	resp, ok := o.remote(ctx, message, snapshot)
	if !ok {
		resp = o.fallback(ctx, message)
	}

	o.record(ctx, sessionKey, message, resp.Message, received, snapshot.SequenceNumber)
	return resp
}

func (o *Orchestrator) remote(ctx context.Context, message string, snapshot pkg.SessionContext) (pkg.AssistantResponse, bool) {
	if o.backend == nil {
		return pkg.AssistantResponse{}, false
	}

	resp, err := o.backend.Generate(ctx, NewRemoteRequest(message, snapshot))
	if err != nil {
		kind := "unknown"
		var rbe *RemoteBackendError
		if errors.As(err, &rbe) {
			kind = rbe.Kind
		}
		l := o.log()
		l.Warn().Err(err).
			Str("session_key", snapshot.Key).
			Str("backend", o.backend.Name()).
			Str("kind", kind).
			Msg("remote backend failed, using local pipeline")
		return pkg.AssistantResponse{}, false
	}

	o.remoteReplies.Add(1)
	return resp, true
}

func (o *Orchestrator) fallback(ctx context.Context, message string) pkg.AssistantResponse {
	o.fallbackReplies.Add(1)
	if o.local != nil {
		resp, err := o.local.Respond(ctx, message)
		if err == nil && resp.Message != "" {
			return resp
		}
		l := o.log()
		l.Error().Err(err).Msg("local pipeline failed, using generic reply")
	}
	return o.generator.Generate(pkg.Intent{Name: pkg.GenericInquiry}, nil)
}

// record appends the exchange against the snapshot sequence. One conflict
// is retried with the latest sequence, a second one drops the write. A
// caller that already gave up, or whose session was cleared or swept, is
// never retried: its pair lands only if its snapshot is still current.
func (o *Orchestrator) record(ctx context.Context, key, message, reply string, received time.Time, seq uint64) {
	abandoned := ctx.Err() != nil
	ctx = context.WithoutCancel(ctx)
	user := pkg.UserTurn(message, received)
	assistant := pkg.AssistantTurn(reply, o.now())
	l := o.log()

	current, err := o.store.AppendTurn(ctx, key, user, assistant, seq)
	if retryable(err, abandoned, seq, current) {
		l.Debug().Str("session_key", key).Uint64("seq", seq).Uint64("current", current).Msg("stale append, retrying")
		_, err = o.store.AppendTurn(ctx, key, user, assistant, current)
	}
	if err != nil {
		o.droppedWrites.Add(1)
		l.Warn().Err(err).
			Str("session_key", key).
			Uint64("seq", seq).
			Bool("abandoned", abandoned).
			Msg("dropped turn pair")
	}
}

func retryable(err error, abandoned bool, seq, current uint64) bool {
	if abandoned || !errors.Is(err, pkg.ErrSessionConflict) || errors.Is(err, pkg.ErrSessionGone) {
		return false
	}
	// a lower sequence means the session was cleared and started over
	return current > seq
}

// Status reports the runtime counters
func (o *Orchestrator) Status() pkg.AssistantStatus {
	status := pkg.AssistantStatus{
		ActiveSessions:  o.store.Len(),
		Backend:         "none",
		RemoteReplies:   o.remoteReplies.Load(),
		FallbackReplies: o.fallbackReplies.Load(),
		DroppedWrites:   o.droppedWrites.Load(),
	}
	if o.backend != nil {
		status.Backend = o.backend.Name()
	}
	if o.nlu != nil {
		status.NLU = o.nlu.Status()
	}
	return status
}

func (o *Orchestrator) SessionStats(key string) (pkg.SessionStats, error) {
	return o.store.Stats(key)
}

func (o *Orchestrator) ClearSession(ctx context.Context, key string) error {
	return o.store.Clear(ctx, key)
}

func (o *Orchestrator) Transcript(ctx context.Context, key string) ([]pkg.LoggedTurn, error) {
	return o.store.Transcript(ctx, key)
}

// SetSystemPrompt sets the leading system turn sent with the session history
func (o *Orchestrator) SetSystemPrompt(key, content string) error {
	return o.store.AddSystemMessage(key, content)
}

// Config reports the settings that can change while serving
func (o *Orchestrator) Config() pkg.RuntimeConfig {
	cfg := pkg.RuntimeConfig{MaxContextTurns: 2 * o.store.MaxPairs()}
	if o.nlu != nil {
		features := o.nlu.Status().Features
		cfg.EnableIntentRecognition = features["intent_recognition"]
		cfg.EnableEntityExtraction = features["entity_extraction"]
	}
	return cfg
}

// UpdateConfig applies the fields set in update and returns the resulting
// config. Nothing is applied when a field is invalid.
func (o *Orchestrator) UpdateConfig(update pkg.RuntimeConfigUpdate) (pkg.RuntimeConfig, error) {
	if update.MaxContextTurns != nil && *update.MaxContextTurns < 2 {
		return o.Config(), pkg.NewConfigError("maxContextTurns", "must be at least 2")
	}
	if o.nlu == nil && (update.EnableIntentRecognition != nil || update.EnableEntityExtraction != nil) {
		return o.Config(), pkg.NewConfigError("nlu", "local pipeline is not configured")
	}

	if update.MaxContextTurns != nil {
		o.store.SetMaxContextTurns(*update.MaxContextTurns)
	}
	if update.EnableIntentRecognition != nil {
		o.nlu.SetIntentRecognition(*update.EnableIntentRecognition)
	}
	if update.EnableEntityExtraction != nil {
		o.nlu.SetEntityExtraction(*update.EnableEntityExtraction)
	}

	cfg := o.Config()
	l := o.log()
	l.Info().
		Int("max_context_turns", cfg.MaxContextTurns).
		Bool("intent_recognition", cfg.EnableIntentRecognition).
		Bool("entity_extraction", cfg.EnableEntityExtraction).
		Msg("runtime config updated")
	return cfg, nil
}

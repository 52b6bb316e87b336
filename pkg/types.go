package pkg

import (
	"time"

	"github.com/cloudwego/eino/schema"
)

// Core types shared by the NLU, storage and assistant packages

// GenericInquiry is the reserved intent returned when no rule matches
const GenericInquiry = "generic_inquiry"

// EntityMatch is a typed span found in the source text.
// Offsets are byte offsets and Value == SourceText[StartOffset:EndOffset].
type EntityMatch struct {
	Type        string  `json:"type"`
	Value       string  `json:"value"`
	SourceText  string  `json:"-"`
	StartOffset int     `json:"start_offset"`
	EndOffset   int     `json:"end_offset"`
	Confidence  float64 `json:"confidence"`
}

// Intent is the classification result for one utterance
type Intent struct {
	Name               string   `json:"name"`
	Description        string   `json:"description,omitempty"`
	MatchedEntityTypes []string `json:"matched_entity_types,omitempty"`
	Confidence         float64  `json:"confidence"`
}

// Analysis bundles the local NLU output for one utterance. Confidence blends
// the intent confidence with the mean entity confidence.
type Analysis struct {
	Entities   []EntityMatch `json:"entities"`
	Intent     Intent        `json:"intent"`
	Confidence float64       `json:"confidence"`
}

// Turn is one role-tagged message in a conversation
type Turn struct {
	Role      schema.RoleType `json:"role"`
	Content   string          `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
}

// UserTurn builds a user turn stamped with the given time
func UserTurn(content string, at time.Time) Turn {
	return Turn{Role: schema.User, Content: content, Timestamp: at}
}

// AssistantTurn builds an assistant turn stamped with the given time
func AssistantTurn(content string, at time.Time) Turn {
	return Turn{Role: schema.Assistant, Content: content, Timestamp: at}
}

// Message converts the turn into an eino chat message
func (t Turn) Message() *schema.Message {
	return &schema.Message{Role: t.Role, Content: t.Content}
}

// LoggedTurn is a turn as stored in the durable turn log
type LoggedTurn struct {
	Sequence uint64 `json:"seq"`
	Turn
}

// SessionContext is a point-in-time copy of one session's history
type SessionContext struct {
	Key            string    `json:"key"`
	Turns          []Turn    `json:"turns"`
	LastUpdatedAt  time.Time `json:"last_updated_at"`
	SequenceNumber uint64    `json:"sequence_number"`
}

// Messages converts the context turns into eino chat messages
func (c SessionContext) Messages() []*schema.Message {
	msgs := make([]*schema.Message, 0, len(c.Turns))
	for _, t := range c.Turns {
		msgs = append(msgs, t.Message())
	}
	return msgs
}

// Response sources
const (
	SourceRemote   = "remote"
	SourceFallback = "fallback"
)

// AssistantResponse is the reply handed back to the caller
type AssistantResponse struct {
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
	Source      string   `json:"-"`
}

// SessionStats summarizes one live session
type SessionStats struct {
	Key             string        `json:"key"`
	MessageCount    int           `json:"message_count"`
	SessionDuration time.Duration `json:"session_duration"`
	LastActivity    time.Time     `json:"last_activity"`
	SequenceNumber  uint64        `json:"sequence_number"`
}

// NLUStatus reports what the local NLU pipeline supports
type NLUStatus struct {
	SupportedIntents  []string        `json:"supported_intents"`
	SupportedEntities []string        `json:"supported_entities"`
	Features          map[string]bool `json:"features"`
}

// RuntimeConfig is the part of the configuration that can change while serving
type RuntimeConfig struct {
	MaxContextTurns         int  `json:"maxContextTurns"`
	EnableIntentRecognition bool `json:"enableIntentRecognition"`
	EnableEntityExtraction  bool `json:"enableEntityExtraction"`
}

// RuntimeConfigUpdate carries the fields to change; nil fields stay as they are
type RuntimeConfigUpdate struct {
	MaxContextTurns         *int  `json:"maxContextTurns,omitempty"`
	EnableIntentRecognition *bool `json:"enableIntentRecognition,omitempty"`
	EnableEntityExtraction  *bool `json:"enableEntityExtraction,omitempty"`
}

// AssistantStatus reports runtime counters of the orchestrator
type AssistantStatus struct {
	ActiveSessions  int       `json:"active_sessions"`
	Backend         string    `json:"backend"`
	RemoteReplies   int64     `json:"remote_replies"`
	FallbackReplies int64     `json:"fallback_replies"`
	DroppedWrites   int64     `json:"dropped_writes"`
	NLU             NLUStatus `json:"nlu"`
}

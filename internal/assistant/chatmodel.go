package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ordering_assistant/internal/services"
	"ordering_assistant/pkg"
	"ordering_assistant/src/model"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/ollama/ollama/api"
)

const defaultOllamaURL = "http://localhost:11434"

// NewChatModel builds the eino chat model for the configured provider
func NewChatModel(ctx context.Context, cfg model.RemoteConfig) (einomodel.BaseChatModel, error) {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond

	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, pkg.NewConfigError("REMOTE_API_KEY", "required for provider openai")
		}
		temperature := cfg.Temperature
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: &temperature,
		})
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = defaultOllamaURL
		}
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: baseURL,
			Model:   cfg.Model,
			Timeout: timeout,
			Options: &api.Options{Temperature: cfg.Temperature},
		})
	case "deepseek":
		if cfg.APIKey == "" {
			return nil, pkg.NewConfigError("REMOTE_API_KEY", "required for provider deepseek")
		}
		return deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: timeout,
		})
	case "ark":
		if cfg.APIKey == "" {
			return nil, pkg.NewConfigError("REMOTE_API_KEY", "required for provider ark")
		}
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	default:
		return nil, pkg.NewConfigError("REMOTE_PROVIDER", "no chat model for provider "+cfg.Provider)
	}
}

// ChatModelBackend generates replies with an eino chat model
type ChatModelBackend struct {
	name         string
	chatModel    einomodel.BaseChatModel
	template     prompt.ChatTemplate
	systemPrompt string
	timeout      time.Duration
}

// NewChatModelBackend wraps a chat model. The menu is rendered into the
// system prompt once.
func NewChatModelBackend(name string, chatModel einomodel.BaseChatModel, menu *services.MenuService, systemPrompt string, timeout time.Duration) *ChatModelBackend {
	if menu == nil {
		menu = services.NewMenuService()
	}
	return &ChatModelBackend{
		name:         name,
		chatModel:    chatModel,
		template:     newChatTemplate(menu),
		systemPrompt: systemPrompt,
		timeout:      timeout,
	}
}

func (b *ChatModelBackend) Name() string {
	return b.name
}

// Generate renders the prompt with the session history and asks the model.
// A leading system turn in the history replaces the configured system prompt.
func (b *ChatModelBackend) Generate(ctx context.Context, req RemoteRequest) (pkg.AssistantResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	systemPrompt := b.systemPrompt
	history := make([]*schema.Message, 0, len(req.Context))
	for i, m := range req.Context {
		role := schema.RoleType(m.Role)
		if i == 0 && role == schema.System {
			systemPrompt = m.Content
			continue
		}
		history = append(history, &schema.Message{Role: role, Content: m.Content})
	}

	msgs, err := formatPrompt(ctx, b.template, systemPrompt, history, req.Message)
	if err != nil {
		return pkg.AssistantResponse{}, &RemoteBackendError{Kind: KindMalformed, Err: err}
	}

	reply, err := b.chatModel.Generate(ctx, msgs)
	if err != nil {
		return pkg.AssistantResponse{}, transportError(err)
	}
	if reply == nil {
		return pkg.AssistantResponse{}, &RemoteBackendError{Kind: KindEmpty, Err: errors.New("model returned no message")}
	}

	message, suggestions := parseReply(reply.Content)
	if strings.TrimSpace(message) == "" {
		return pkg.AssistantResponse{}, &RemoteBackendError{Kind: KindEmpty, Err: fmt.Errorf("model %s returned empty content", b.name)}
	}

	return pkg.AssistantResponse{
		Message:     message,
		Suggestions: suggestions,
		Source:      pkg.SourceRemote,
	}, nil
}

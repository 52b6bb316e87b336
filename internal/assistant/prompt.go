package assistant

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"ordering_assistant/internal/services"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// Delimiters the model uses to append suggestion chips to its reply
const (
	SuggestionMarker         = "<|SUGGESTIONS|>"
	SuggestionDelimiter      = "<||>"
	maxSuggestions           = 4
	maxSuggestionLength      = 40
	historyPlaceholder       = "history"
	messageVariable          = "message"
	systemPromptVariable     = "system_prompt"
	defaultAssistantIdentity = "你是YYC³餐厅的AI点餐助手，用简洁友好的中文回答顾客。"
)

func getSystemTemplate() string {
	return `{system_prompt}

-Menu-
{MENU}

-Rules-
1. Only recommend dishes from the menu above and quote their prices exactly.
2. Keep the reply under 120 characters.
3. After the reply, append {SM} followed by up to 3 short follow-up options separated by {SD}.

-Example-
宫保鸡丁38元，微辣带花生香。需要为您下单吗？{SM}确认下单{SD}查看菜单{SD}推荐特色菜`
}

// menuSummary renders the catalog one dish per line
func menuSummary(menu *services.MenuService) string {
	var b strings.Builder
	for _, d := range menu.Dishes() {
		if !d.Available {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s) %g元", d.Name, d.Category, d.Price)
		if len(d.Allergens) > 0 {
			fmt.Fprintf(&b, " 过敏原: %s", strings.Join(d.Allergens, "、"))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// escapeBraces keeps literal text out of FString placeholder parsing
func escapeBraces(s string) string {
	return strings.NewReplacer("{", "{{", "}", "}}").Replace(s)
}

// newChatTemplate builds system -> history -> user. The menu and delimiters
// are fixed at construction, the system prompt is filled per call.
func newChatTemplate(menu *services.MenuService) prompt.ChatTemplate {
	systemText := strings.NewReplacer(
		"{MENU}", escapeBraces(menuSummary(menu)),
		"{SM}", SuggestionMarker,
		"{SD}", SuggestionDelimiter,
	).Replace(getSystemTemplate())

	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(systemText),
		schema.MessagesPlaceholder(historyPlaceholder, true),
		schema.UserMessage("{"+messageVariable+"}"),
	)
}

// formatPrompt renders the template for one call
func formatPrompt(ctx context.Context, tpl prompt.ChatTemplate, systemPrompt string, history []*schema.Message, message string) ([]*schema.Message, error) {
	if systemPrompt == "" {
		systemPrompt = defaultAssistantIdentity
	}
	msgs, err := tpl.Format(ctx, map[string]any{
		systemPromptVariable: systemPrompt,
		historyPlaceholder:   history,
		messageVariable:      message,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format prompt: %w", err)
	}
	return msgs, nil
}

// parseReply splits a model reply into the message and its suggestion chips.
// Chips that are empty, too long or invalid UTF-8 are dropped.
func parseReply(content string) (string, []string) {
	message, tail, found := strings.Cut(content, SuggestionMarker)
	message = strings.TrimSpace(message)
	suggestions := []string{}
	if !found {
		return message, suggestions
	}

	for _, part := range strings.Split(tail, SuggestionDelimiter) {
		part = strings.TrimSpace(part)
		if part == "" || !utf8.ValidString(part) || utf8.RuneCountInString(part) > maxSuggestionLength {
			continue
		}
		suggestions = append(suggestions, part)
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return message, suggestions
}

package integrations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/config"
)

// ErrAssistantDisabled is returned when no Gemini API key is configured.
var ErrAssistantDisabled = errors.New("assistant is not configured")

const chatSystemPrompt = `You are the RapidWorks assistant. RapidWorks helps founders and small
companies with branding, web development and expert services. Answer briefly and
concretely, in the language of the user's last message.`

const extractPrompt = `Extract the following fields from the text below and answer with a single
JSON object whose keys are exactly the field names. Use an empty string for fields
that are not present. Do not add commentary.

Fields: %s

Text:
%s`

// ChatMessage is one turn of a chat conversation.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant model"`
	Content string `json:"content" validate:"required"`
}

// Assistant proxies chat and extraction requests to a language model.
type Assistant struct {
	model llms.Model
}

// NewGeminiAssistant creates an assistant backed by Gemini. A nil assistant with
// ErrAssistantDisabled is returned when no key is configured.
func NewGeminiAssistant(ctx context.Context, cfg *config.Config) (*Assistant, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, ErrAssistantDisabled
	}
	model, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.GeminiAPIKey),
		googleai.WithDefaultModel(cfg.GeminiModel),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return NewAssistant(model), nil
}

func NewAssistant(model llms.Model) *Assistant {
	return &Assistant{model: model}
}

// Chat answers the conversation's last user message.
func (a *Assistant) Chat(ctx context.Context, history []ChatMessage) (string, error) {
	if a == nil || a.model == nil {
		return "", ErrAssistantDisabled
	}

	messages := make([]llms.MessageContent, 0, len(history)+1)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, chatSystemPrompt))
	for _, m := range history {
		role := llms.ChatMessageTypeHuman
		if m.Role == "assistant" || m.Role == "model" {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, m.Content))
	}

	resp, err := a.model.GenerateContent(ctx, messages, llms.WithTemperature(0.4))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// Extract asks the model to pull the named fields out of text.
func (a *Assistant) Extract(ctx context.Context, text string, fields []string) (map[string]string, error) {
	if a == nil || a.model == nil {
		return nil, ErrAssistantDisabled
	}

	prompt := fmt.Sprintf(extractPrompt, strings.Join(fields, ", "), text)
	out, err := llms.GenerateFromSinglePrompt(ctx, a.model, prompt, llms.WithTemperature(0))
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	raw, err := parseExtraction(out)
	if err != nil {
		return nil, err
	}

	result := make(map[string]string, len(fields))
	for _, f := range fields {
		switch v := raw[f].(type) {
		case nil:
			result[f] = ""
		case string:
			result[f] = v
		default:
			b, _ := json.Marshal(v)
			result[f] = string(b)
		}
	}
	return result, nil
}

// parseExtraction decodes the model's JSON answer, tolerating markdown code fences.
func parseExtraction(out string) (map[string]interface{}, error) {
	s := strings.TrimSpace(out)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("model answer is not a JSON object: %w", err)
	}
	return raw, nil
}

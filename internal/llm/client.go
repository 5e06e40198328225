// Package llm adapts an OpenAI-compatible chat completion API to the
// orchestrator's model-completion contract.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/inkwell-ai/inkwell/pkg/models"
)

// Config holds client configuration.
type Config struct {
	BaseURL     string        // e.g. "https://api.openai.com/v1" or a compatible endpoint
	APIKey      string        // bearer token
	Model       string        // e.g. "gpt-4o"
	Temperature float32       // 0 uses the API default
	MaxTokens   int           // 0 leaves the limit to the API
	Timeout     time.Duration // per-request timeout
}

// DefaultConfig returns sensible defaults for local development.
func DefaultConfig() Config {
	return Config{
		Model:   "gpt-4o-mini",
		Timeout: 60 * time.Second,
	}
}

// Client calls an OpenAI-compatible chat completion endpoint. One request per
// Complete call; any retry policy belongs to the caller.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

// NewClient creates a client. The base URL may point at any
// OpenAI-compatible server.
func NewClient(cfg Config) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}
}

// Complete sends the conversation plus tool catalogue and returns the
// assistant's reply, including any tool calls it requested.
func (c *Client) Complete(ctx context.Context, messages []models.Message, specs []models.ToolSpec) (models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toChatMessages(messages),
	}
	if c.temperature > 0 {
		req.Temperature = c.temperature
	}
	if c.maxTokens > 0 {
		req.MaxTokens = c.maxTokens
	}
	if len(specs) > 0 {
		req.Tools = toTools(specs)
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return models.Message{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.Message{}, fmt.Errorf("chat completion returned no choices")
	}
	return fromChatMessage(resp.Choices[0].Message), nil
}

// toChatMessages converts the conversation to the wire format. Tool-role
// messages carry the tool call id so the API can pair results with calls.
func toChatMessages(messages []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		cm := openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
		if msg.Role == models.RoleTool {
			cm.ToolCallID = msg.ToolCallID
		}
		if msg.Role == models.RoleAssistant && len(msg.ToolCalls) > 0 {
			cm.ToolCalls = make([]openai.ToolCall, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				args, err := json.Marshal(tc.Args)
				if err != nil {
					args = []byte("{}")
				}
				cm.ToolCalls[i] = openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(args),
					},
				}
			}
		}
		out = append(out, cm)
	}
	return out
}

// toTools converts the tool catalogue to function definitions. A spec with no
// input schema gets an empty object schema so the API accepts it.
func toTools(specs []models.ToolSpec) []openai.Tool {
	out := make([]openai.Tool, len(specs))
	for i, spec := range specs {
		parameters := spec.InputSchema
		if parameters == nil {
			parameters = map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			}
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  parameters,
			},
		}
	}
	return out
}

// fromChatMessage converts the API reply. Argument strings that fail to parse
// degrade to an empty map; the registry's schema validation reports the
// problem as a failed tool result instead of dropping the call.
func fromChatMessage(cm openai.ChatCompletionMessage) models.Message {
	msg := models.Message{
		Role:      models.RoleAssistant,
		Content:   cm.Content,
		Timestamp: time.Now(),
	}
	for _, tc := range cm.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = map[string]any{}
			}
		}
		msg.ToolCalls = append(msg.ToolCalls, models.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return msg
}

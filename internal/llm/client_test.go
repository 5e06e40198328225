package llm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/inkwell-ai/inkwell/pkg/models"
)

func TestToChatMessages(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleSystem, Content: "you are a writing assistant"},
		{Role: models.RoleUser, Content: "draft an intro"},
		{Role: models.RoleAssistant, Content: "checking", ToolCalls: []models.ToolCall{
			{ID: "tc-1", Name: "echo", Args: map[string]any{"text": "hi"}},
		}},
		{Role: models.RoleTool, Content: `{"output":{"result":"hi"}}`, ToolCallID: "tc-1", ToolName: "echo"},
	}

	out := toChatMessages(messages)
	if len(out) != 4 {
		t.Fatalf("got %d messages", len(out))
	}
	if out[0].Role != "system" || out[1].Role != "user" {
		t.Errorf("roles = %s, %s", out[0].Role, out[1].Role)
	}
	if len(out[2].ToolCalls) != 1 {
		t.Fatalf("assistant tool calls = %d", len(out[2].ToolCalls))
	}
	tc := out[2].ToolCalls[0]
	if tc.ID != "tc-1" || tc.Function.Name != "echo" {
		t.Errorf("tool call = %+v", tc)
	}
	if !strings.Contains(tc.Function.Arguments, `"text":"hi"`) {
		t.Errorf("arguments = %q", tc.Function.Arguments)
	}
	if out[3].Role != "tool" || out[3].ToolCallID != "tc-1" {
		t.Errorf("tool message = %+v", out[3])
	}
}

func TestToTools(t *testing.T) {
	specs := []models.ToolSpec{
		{
			Name:        "echo",
			Description: "echoes input",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"text": map[string]any{"type": "string"}},
			},
		},
		{Name: "noop", Description: "does nothing"},
	}

	out := toTools(specs)
	if len(out) != 2 {
		t.Fatalf("got %d tools", len(out))
	}
	if out[0].Type != openai.ToolTypeFunction || out[0].Function.Name != "echo" {
		t.Errorf("tool = %+v", out[0])
	}
	// A schema-less spec still produces a valid empty object schema.
	params, ok := out[1].Function.Parameters.(map[string]any)
	if !ok || params["type"] != "object" {
		t.Errorf("fallback schema = %+v", out[1].Function.Parameters)
	}
}

func TestFromChatMessage(t *testing.T) {
	cm := openai.ChatCompletionMessage{
		Role:    "assistant",
		Content: "checking the archive",
		ToolCalls: []openai.ToolCall{
			{
				ID:   "tc-1",
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      "search",
					Arguments: `{"query":"style guide"}`,
				},
			},
		},
	}

	msg := fromChatMessage(cm)
	if msg.Role != models.RoleAssistant || msg.Content != "checking the archive" {
		t.Errorf("message = %+v", msg)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d", len(msg.ToolCalls))
	}
	if msg.ToolCalls[0].Args["query"] != "style guide" {
		t.Errorf("args = %+v", msg.ToolCalls[0].Args)
	}
}

func TestFromChatMessage_BadArgumentsDegradeToEmptyMap(t *testing.T) {
	cm := openai.ChatCompletionMessage{
		Role: "assistant",
		ToolCalls: []openai.ToolCall{
			{
				ID:       "tc-1",
				Function: openai.FunctionCall{Name: "search", Arguments: `{"query":`},
			},
		},
	}

	msg := fromChatMessage(cm)
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d", len(msg.ToolCalls))
	}
	if len(msg.ToolCalls[0].Args) != 0 {
		t.Errorf("args = %+v, want empty", msg.ToolCalls[0].Args)
	}
}

func TestBuildSystemPrompt_TemplateSubstitution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "system_prompt.txt")
	content := "You are inkwell.\n\nTools:\n{{TOOL_CATALOGUE}}"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	prompt := BuildSystemPrompt(path, []models.ToolSpec{{Name: "echo", Description: "echoes input"}})
	if !strings.Contains(prompt, "You are inkwell.") {
		t.Errorf("template body missing: %q", prompt)
	}
	if !strings.Contains(prompt, "- echo: echoes input") {
		t.Errorf("catalogue not substituted: %q", prompt)
	}
	if strings.Contains(prompt, "{{TOOL_CATALOGUE}}") {
		t.Error("placeholder left in prompt")
	}
}

func TestBuildSystemPrompt_FallbackWhenFileMissing(t *testing.T) {
	prompt := BuildSystemPrompt(filepath.Join(t.TempDir(), "missing.txt"), nil)
	if !strings.Contains(prompt, "content-generation assistant") {
		t.Errorf("fallback prompt = %q", prompt)
	}
	if !strings.Contains(prompt, "No tools available.") {
		t.Errorf("fallback catalogue = %q", prompt)
	}
}

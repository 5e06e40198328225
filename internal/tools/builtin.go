package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/inkwell-ai/inkwell/pkg/models"
)

// RegisterBuiltins registers the built-in writing tools. They double as the
// demo toolkit for local chat: no external services required.
func RegisterBuiltins(registry *Registry) error {
	builtins := []struct {
		spec    models.ToolSpec
		handler Handler
	}{
		{
			spec: models.ToolSpec{
				Name:        "echo",
				Description: "Echoes the given text back. Useful for confirming exact phrasing.",
				InputSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"text": map[string]any{"type": "string"},
					},
					"required": []any{"text"},
				},
			},
			handler: HandlerFunc(echoHandler),
		},
		{
			spec: models.ToolSpec{
				Name:        "word_count",
				Description: "Counts the words in the given text.",
				InputSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"text": map[string]any{"type": "string"},
					},
					"required": []any{"text"},
				},
			},
			handler: HandlerFunc(wordCountHandler),
		},
		{
			spec: models.ToolSpec{
				Name:        "save_artifact",
				Description: "Saves a named piece of text (a draft, an outline) to the session for later turns.",
				InputSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":    map[string]any{"type": "string"},
						"content": map[string]any{"type": "string"},
					},
					"required": []any{"name", "content"},
				},
			},
			handler: HandlerFunc(saveArtifactHandler),
		},
		{
			spec: models.ToolSpec{
				Name:        "list_artifacts",
				Description: "Lists the names of artifacts saved in this session.",
				InputSchema: map[string]any{
					"type":       "object",
					"properties": map[string]any{},
				},
			},
			handler: HandlerFunc(listArtifactsHandler),
		},
	}

	for _, b := range builtins {
		if err := registry.Register(b.spec, b.handler); err != nil {
			return fmt.Errorf("register builtin %s: %w", b.spec.Name, err)
		}
	}
	return nil
}

// BuiltinHandlers returns the handler for each built-in tool by name. Used
// with Manifest.RegisterAll when a manifest redefines the specs the model
// sees but the implementations stay in code.
func BuiltinHandlers() map[string]Handler {
	return map[string]Handler{
		"echo":           HandlerFunc(echoHandler),
		"word_count":     HandlerFunc(wordCountHandler),
		"save_artifact":  HandlerFunc(saveArtifactHandler),
		"list_artifacts": HandlerFunc(listArtifactsHandler),
	}
}

func echoHandler(ctx context.Context, tc *ToolContext, call models.ToolCall) (any, error) {
	text, _ := call.Args["text"].(string)
	return text, nil
}

func wordCountHandler(ctx context.Context, tc *ToolContext, call models.ToolCall) (any, error) {
	text, _ := call.Args["text"].(string)
	return map[string]any{
		"words": len(strings.Fields(text)),
		"chars": len(text),
	}, nil
}

func saveArtifactHandler(ctx context.Context, tc *ToolContext, call models.ToolCall) (any, error) {
	name, _ := call.Args["name"].(string)
	content, _ := call.Args["content"].(string)
	if name == "" {
		return nil, fmt.Errorf("artifact name is required")
	}

	if tc != nil && tc.State != nil {
		if tc.State.Artifacts == nil {
			tc.State.Artifacts = make(map[string]any)
		}
		tc.State.Artifacts[name] = content
	}
	return map[string]any{"saved": name, "bytes": len(content)}, nil
}

func listArtifactsHandler(ctx context.Context, tc *ToolContext, call models.ToolCall) (any, error) {
	names := make([]string, 0)
	if tc != nil && tc.State != nil {
		for name := range tc.State.Artifacts {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return map[string]any{"artifacts": names}, nil
}

package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/inkwell-ai/inkwell/pkg/models"
)

const defaultSystemPromptPath = "system_prompt.txt"

// BuildSystemPrompt loads system_prompt.txt and substitutes the template
// variables. Falls back to a minimal inline prompt if the file cannot be read.
func BuildSystemPrompt(path string, specs []models.ToolSpec) string {
	if path == "" {
		path = defaultSystemPromptPath
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return buildFallbackPrompt(specs)
	}

	prompt := string(raw)
	prompt = strings.ReplaceAll(prompt, "{{TOOL_CATALOGUE}}", buildToolCatalogue(specs))
	return prompt
}

// buildToolCatalogue formats the registered tools so the model knows exact
// names and what each one is for. Schemas travel separately as function
// definitions; the prose here is orientation, not contract.
func buildToolCatalogue(specs []models.ToolSpec) string {
	if len(specs) == 0 {
		return "No tools available."
	}

	var sb strings.Builder
	for _, spec := range specs {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", spec.Name, spec.Description))
	}
	return sb.String()
}

// buildFallbackPrompt is used when system_prompt.txt cannot be read.
// It keeps the agent functional with a compact inline prompt.
func buildFallbackPrompt(specs []models.ToolSpec) string {
	var sb strings.Builder

	sb.WriteString("You are a content-generation assistant. ")
	sb.WriteString("Draft, revise, and manage writing projects for the user. ")
	sb.WriteString("Use the available tools when a request needs data or side effects; ")
	sb.WriteString("otherwise answer directly and concisely.\n\n")

	sb.WriteString("Available tools:\n")
	sb.WriteString(buildToolCatalogue(specs))
	return sb.String()
}

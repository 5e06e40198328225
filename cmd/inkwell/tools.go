package main

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List available tools",
	Long: `List all tools the assistant can call during a turn.

Examples:
  inkwell tools           # List all tools
  inkwell tools --verbose # Show input schemas`,
	Run: func(cmd *cobra.Command, args []string) {
		runTools()
	},
}

func runTools() {
	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7C3AED")).
		Bold(true)

	toolStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F59E0B")).
		Bold(true)

	descStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#9CA3AF"))

	paramStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#06B6D4"))

	registry, err := buildRegistry()
	if err != nil {
		fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).
			Render(fmt.Sprintf("Failed to load tools: %v", err)))
		return
	}

	fmt.Println(headerStyle.Render("Available Tools"))
	fmt.Println()

	specs := registry.Specs()
	for _, spec := range specs {
		fmt.Printf("  %s\n", toolStyle.Render(spec.Name))
		fmt.Printf("    %s\n", descStyle.Render(spec.Description))

		if verbose && spec.InputSchema != nil {
			required := requiredParams(spec.InputSchema)
			if props, ok := spec.InputSchema["properties"].(map[string]any); ok && len(props) > 0 {
				fmt.Println("    Parameters:")
				names := make([]string, 0, len(props))
				for name := range props {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					req := ""
					if required[name] {
						req = " (required)"
					}
					fmt.Printf("      %s%s\n", paramStyle.Render(name), req)
				}
			}
		}
		fmt.Println()
	}

	fmt.Println(descStyle.Render(fmt.Sprintf("  Total: %d tools available", len(specs))))
	if !verbose {
		fmt.Println(descStyle.Render("  Use --verbose for parameter details"))
	}
}

// requiredParams extracts the required property names from a JSON schema.
func requiredParams(schema map[string]any) map[string]bool {
	required := make(map[string]bool)
	raw, ok := schema["required"].([]any)
	if !ok {
		return required
	}
	for _, entry := range raw {
		if name, ok := entry.(string); ok {
			required[name] = true
		}
	}
	return required
}

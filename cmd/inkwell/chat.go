package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/inkwell-ai/inkwell/internal/agent"
	"github.com/inkwell-ai/inkwell/internal/ui"
	"github.com/inkwell-ai/inkwell/pkg/models"
)

// runOneShot executes a single turn against a fresh session and prints the
// reply.
func runOneShot(args []string) {
	text := strings.Join(args, " ")

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7C3AED")).
		Bold(true)

	toolStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F59E0B")).
		Bold(true)

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444"))

	dimStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#9CA3AF"))

	registry, err := buildRegistry()
	if err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("Failed to build tool registry: %v", err)))
		os.Exit(1)
	}
	orchestrator := buildOrchestrator(registry)

	fmt.Printf("%s %s\n\n", headerStyle.Render("Request:"), text)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.TurnTimeout)
	defer cancel()

	state := models.NewAgentState(uuid.NewString())
	outcome := orchestrator.ProcessTurn(ctx, state, text, nil)

	for _, result := range outcome.ToolResults {
		if result.Status == models.ToolStatusCompleted {
			fmt.Printf("%s %s\n", toolStyle.Render("tool "+result.Name+":"),
				dimStyle.Render(truncateForDisplay(result.Serialize(), 200)))
		} else {
			fmt.Printf("%s %s\n", toolStyle.Render("tool "+result.Name+":"),
				errorStyle.Render(result.Error))
		}
	}
	if len(outcome.ToolResults) > 0 {
		fmt.Println()
	}

	fmt.Println(outcome.Message.Content)

	if outcome.ModelErr != nil {
		fmt.Println()
		fmt.Println(errorStyle.Render(fmt.Sprintf("model error: %v", outcome.ModelErr)))
		os.Exit(1)
	}
}

// runInteractive starts the terminal chat. One session for the whole program
// run; turns execute one at a time, so the state needs no locking here.
func runInteractive() {
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	registry, err := buildRegistry()
	if err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("Failed to build tool registry: %v", err)))
		os.Exit(1)
	}
	orchestrator := buildOrchestrator(registry)
	state := models.NewAgentState(uuid.NewString())

	model := ui.NewModel(func(text string) tea.Cmd {
		return processTurnCmd(orchestrator, state, text)
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running UI: %v\n", err)
		os.Exit(1)
	}
}

// processTurnCmd runs one turn off the UI goroutine and delivers the outcome
// as a TurnMsg.
func processTurnCmd(orchestrator *agent.Orchestrator, state *models.AgentState, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.TurnTimeout)
		defer cancel()

		outcome := orchestrator.ProcessTurn(ctx, state, text, nil)
		return ui.TurnMsg{
			Reply:       outcome.Message.Content,
			ToolResults: outcome.ToolResults,
			Rounds:      outcome.Rounds,
			Err:         outcome.ModelErr,
		}
	}
}

func truncateForDisplay(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Package ui provides the terminal chat interface using Bubble Tea.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/inkwell-ai/inkwell/pkg/models"
)

type sessionState int

const (
	stateIdle sessionState = iota
	stateThinking
)

// TurnMsg is delivered when a turn finishes: the assistant's reply plus every
// tool execution the turn performed.
type TurnMsg struct {
	Reply       string
	ToolResults []models.ToolResult
	Rounds      int
	Err         error
}

// Model is the Bubble Tea model for the chat interface.
type Model struct {
	// UI components
	textInput textinput.Model
	spinner   spinner.Model
	viewport  viewport.Model
	styles    Styles

	// State
	state    sessionState
	messages []chatMessage
	width    int
	height   int
	ready    bool
	quitting bool

	// Turn runner (injected): sends the user message and eventually yields a
	// TurnMsg.
	sendMessage func(text string) tea.Cmd
}

// chatMessage represents one entry in the transcript.
type chatMessage struct {
	role    string // "user", "assistant", "system", "tool"
	content string
	tool    *models.ToolResult
}

// NewModel creates a new chat model.
func NewModel(sendMessage func(text string) tea.Cmd) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask for a draft, a revision, or a tool... (e.g. 'draft an intro about coffee')"
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 80

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED"))

	vp := viewport.New(0, 0)
	vp.KeyMap = viewport.DefaultKeyMap()

	return Model{
		textInput:   ti,
		spinner:     s,
		viewport:    vp,
		styles:      DefaultStyles(),
		state:       stateIdle,
		messages:    make([]chatMessage, 0),
		sendMessage: sendMessage,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}

// headerHeight returns the number of terminal lines occupied by the banner.
func (m Model) headerHeight() int {
	banner := m.styles.BannerTitle.Render(Banner())
	return lipgloss.Height(banner) + 2 // +2 for the two "\n" after the banner
}

// footerHeight returns the number of terminal lines occupied by the input + help bar.
func (m Model) footerHeight() int {
	// 1 blank line + 1 prompt/input line + 1 newline + 1 help bar = 4
	return 4
}

// updateViewport rebuilds the viewport content and scrolls to the bottom.
func (m *Model) updateViewport() {
	var b strings.Builder

	for _, msg := range m.messages {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}

	if m.state == stateThinking {
		b.WriteString(fmt.Sprintf("%s %s\n",
			m.spinner.View(),
			m.styles.StatusText.Render("thinking...")))
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.state == stateIdle {
				m.quitting = true
				return m, tea.Quit
			}
			m.state = stateIdle
			return m, nil

		case tea.KeyEnter:
			if m.state != stateIdle {
				return m, nil
			}

			text := strings.TrimSpace(m.textInput.Value())
			if text == "" {
				return m, nil
			}

			if cmd := m.handleCommand(text); cmd != nil {
				m.updateViewport()
				return m, cmd
			}

			m.messages = append(m.messages, chatMessage{
				role:    "user",
				content: text,
			})

			m.textInput.SetValue("")
			m.state = stateThinking
			m.updateViewport()

			if m.sendMessage != nil {
				cmds = append(cmds, m.sendMessage(text))
			}

			return m, tea.Batch(cmds...)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textInput.Width = msg.Width - 10

		vpWidth := msg.Width
		vpHeight := msg.Height - m.headerHeight() - m.footerHeight()
		if vpHeight < 1 {
			vpHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(vpWidth, vpHeight)
			m.viewport.KeyMap = viewport.DefaultKeyMap()
		} else {
			m.viewport.Width = vpWidth
			m.viewport.Height = vpHeight
		}

		m.ready = true
		m.updateViewport()

	case TurnMsg:
		return m.handleTurn(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		// Refresh viewport to update spinner frame
		m.updateViewport()
	}

	if m.state == stateIdle {
		var tiCmd tea.Cmd
		m.textInput, tiCmd = m.textInput.Update(msg)
		cmds = append(cmds, tiCmd)
	}

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	return m, tea.Batch(cmds...)
}

// handleCommand processes special commands.
func (m *Model) handleCommand(input string) tea.Cmd {
	switch strings.ToLower(input) {
	case "exit", "quit", "q":
		m.quitting = true
		return tea.Quit

	case "clear":
		m.messages = make([]chatMessage, 0)
		m.textInput.SetValue("")
		return nil

	case "help", "?":
		m.messages = append(m.messages, chatMessage{
			role: "system",
			content: `Available commands:
  help, ?     Show this help
  clear       Clear the transcript
  exit, quit  Leave the chat

Example requests:
  "draft an intro paragraph about single-origin coffee"
  "tighten the last draft to 100 words"
  "echo the project title back to me"`,
		})
		m.textInput.SetValue("")
		return nil
	}

	return nil
}

// handleTurn folds a finished turn into the transcript.
func (m Model) handleTurn(msg TurnMsg) (tea.Model, tea.Cmd) {
	for i := range msg.ToolResults {
		m.messages = append(m.messages, chatMessage{
			role: "tool",
			tool: &msg.ToolResults[i],
		})
	}

	if msg.Reply != "" {
		m.messages = append(m.messages, chatMessage{
			role:    "assistant",
			content: msg.Reply,
		})
	}
	if msg.Err != nil {
		m.messages = append(m.messages, chatMessage{
			role:    "system",
			content: fmt.Sprintf("model error: %s", msg.Err),
		})
	}

	m.state = stateIdle
	m.updateViewport()
	return m, m.spinner.Tick
}

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return m.styles.SystemMessage.Render("Goodbye!\n")
	}

	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder

	// Fixed header: banner
	b.WriteString(m.styles.BannerTitle.Render(Banner()))
	b.WriteString("\n\n")

	// Scrollable middle: viewport
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	// Fixed footer: input + help bar
	b.WriteString(m.styles.Prompt.Render("> "))
	if m.state == stateIdle {
		b.WriteString(m.textInput.View())
	} else {
		b.WriteString(m.styles.StatusText.Render("(waiting for the assistant...)"))
	}
	b.WriteString("\n")
	b.WriteString(m.renderHelpBar())

	return m.styles.App.Render(b.String())
}

// renderMessage renders a single transcript entry.
func (m Model) renderMessage(msg chatMessage) string {
	switch msg.role {
	case "user":
		return m.styles.UserMessage.Render("You: " + msg.content)

	case "assistant":
		return m.styles.AssistantMessage.Render("Assistant: " + msg.content)

	case "system":
		return m.styles.SystemMessage.Render(msg.content)

	case "tool":
		if msg.tool != nil {
			return m.renderToolResult(msg.tool)
		}
	}
	return ""
}

// renderToolResult renders one completed tool execution.
func (m Model) renderToolResult(result *models.ToolResult) string {
	var b strings.Builder

	b.WriteString(m.styles.ToolName.Render("Tool: " + result.Name))
	b.WriteString("\n")

	if result.Status == models.ToolStatusCompleted {
		b.WriteString(m.styles.ToolSuccess.Render("  " + string(result.Status)))
		b.WriteString("\n")
		if len(result.Output) > 0 {
			output := result.Serialize()
			if len(output) > 300 {
				output = output[:300] + "..."
			}
			for _, line := range strings.Split(output, "\n") {
				if line != "" {
					b.WriteString(m.styles.ToolOutput.Render("  | " + line))
					b.WriteString("\n")
				}
			}
		}
	} else {
		label := string(result.Status)
		if result.Error != "" {
			label += ": " + result.Error
		}
		b.WriteString(m.styles.ToolError.Render("  " + label))
		b.WriteString("\n")
	}

	return m.styles.ToolBox.Render(b.String())
}

// renderHelpBar renders the bottom help bar.
func (m Model) renderHelpBar() string {
	help := []string{
		m.styles.HelpKey.Render("enter") + m.styles.HelpValue.Render(" send"),
		m.styles.HelpKey.Render("ctrl+c") + m.styles.HelpValue.Render(" quit"),
		m.styles.HelpKey.Render("help") + m.styles.HelpValue.Render(" commands"),
		m.styles.HelpKey.Render("clear") + m.styles.HelpValue.Render(" reset transcript"),
	}
	return m.styles.HelpBar.Render(strings.Join(help, "  |  "))
}

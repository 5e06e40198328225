// Package memory bounds the conversation context sent to the model. Old
// messages fall out of the live window into a rolling textual summary, so
// context size stays fixed regardless of session length. The loss of detail
// beyond the summary horizon is deliberate.
package memory

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/inkwell-ai/inkwell/pkg/models"
)

const (
	// DefaultMaxMessages is the live conversation window size.
	DefaultMaxMessages = 40
	// DefaultItemMaxChars caps each message folded into the summary.
	DefaultItemMaxChars = 200
	// DefaultSummaryMaxChars caps the whole rolling summary.
	DefaultSummaryMaxChars = 2000

	summarySeparator = " | "
)

// Manager applies the context-window policy. Character budgets are a crude
// proxy for model tokens, not a tokenizer estimate.
type Manager struct {
	maxMessages     int
	itemMaxChars    int
	summaryMaxChars int
}

// NewManager creates a manager with the given live-window size. Non-positive
// values fall back to defaults.
func NewManager(maxMessages, itemMaxChars, summaryMaxChars int) *Manager {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	if itemMaxChars <= 0 {
		itemMaxChars = DefaultItemMaxChars
	}
	if summaryMaxChars <= 0 {
		summaryMaxChars = DefaultSummaryMaxChars
	}
	return &Manager{
		maxMessages:     maxMessages,
		itemMaxChars:    itemMaxChars,
		summaryMaxChars: summaryMaxChars,
	}
}

// BuildContext compacts the session if needed and returns the ordered message
// list for the next model call: system prompt, rolling summary, session
// metadata, then the live conversation.
func (m *Manager) BuildContext(state *models.AgentState, systemPrompt string) []models.Message {
	m.compact(state)

	context := make([]models.Message, 0, len(state.Conversation)+3)
	if systemPrompt != "" {
		context = append(context, models.Message{Role: models.RoleSystem, Content: systemPrompt})
	}
	if state.Summary != "" {
		context = append(context, models.Message{
			Role:    models.RoleSystem,
			Content: "conversation summary: " + state.Summary,
		})
	}
	if len(state.Metadata) > 0 {
		context = append(context, models.Message{
			Role:    models.RoleSystem,
			Content: "session metadata: " + truncate(serializeMetadata(state.Metadata), m.itemMaxChars),
		})
	}
	context = append(context, state.Conversation...)
	return context
}

// compact folds messages beyond the live window into the rolling summary,
// oldest first. On summary overflow the trailing portion wins: the most
// recent information survives.
func (m *Manager) compact(state *models.AgentState) {
	overflow := len(state.Conversation) - m.maxMessages
	if overflow <= 0 {
		return
	}

	evicted := state.Conversation[:overflow]
	state.Conversation = append([]models.Message(nil), state.Conversation[overflow:]...)

	parts := make([]string, 0, len(evicted)+1)
	if state.Summary != "" {
		parts = append(parts, state.Summary)
	}
	for _, msg := range evicted {
		parts = append(parts, fmt.Sprintf("%s: %s", msg.Role, truncate(msg.Content, m.itemMaxChars)))
	}

	combined := strings.Join(parts, summarySeparator)
	if len(combined) > m.summaryMaxChars {
		cut := len(combined) - m.summaryMaxChars
		// Never start mid-rune; the summary must stay valid UTF-8.
		for cut < len(combined) && !utf8.RuneStart(combined[cut]) {
			cut++
		}
		combined = combined[cut:]
	}
	state.Summary = combined
}

// MaxMessages returns the live window size.
func (m *Manager) MaxMessages() int {
	return m.maxMessages
}

func serializeMetadata(metadata map[string]any) string {
	data, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Sprintf("%v", metadata)
	}
	return string(data)
}

// truncate cuts s to at most maxLen bytes, marking the cut with "...". The
// marker counts against the budget and the cut never splits a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 3
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

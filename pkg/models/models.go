// Package models defines the shared data types passed between the agent
// runtime components: conversation messages, tool calls and results, session
// state, and run events.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role indicates the message author type.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in a conversation. Messages are immutable once
// appended; append order is the conversation.
type Message struct {
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`   // assistant messages only
	ToolCallID string         `json:"tool_call_id,omitempty"` // tool messages only
	ToolName   string         `json:"tool_name,omitempty"`    // tool messages only
	Timestamp  time.Time      `json:"timestamp,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ToolCall is a model request to execute one tool. The ID is unique within
// the assistant message that produced it.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolResultStatus enumerates the outcome states of a tool invocation.
type ToolResultStatus string

const (
	ToolStatusWorking       ToolResultStatus = "working"
	ToolStatusInputRequired ToolResultStatus = "input_required"
	ToolStatusCompleted     ToolResultStatus = "completed"
	ToolStatusFailed        ToolResultStatus = "failed"
	ToolStatusCancelled     ToolResultStatus = "cancelled"
)

// ToolResult is the outcome of exactly one ToolCall.
type ToolResult struct {
	ToolCallID string           `json:"tool_call_id"`
	Name       string           `json:"name"`
	Status     ToolResultStatus `json:"status"`
	Output     map[string]any   `json:"output,omitempty"`
	Error      string           `json:"error,omitempty"`
	TaskID     string           `json:"task_id,omitempty"` // external task handle, if any
}

// Serialize renders the result as compact deterministic text suitable for
// embedding back into the conversation as a tool message. encoding/json
// sorts map keys, so equal results always serialize identically.
func (r ToolResult) Serialize() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"tool_call_id":%q,"name":%q,"status":%q,"error":"unserializable output"}`,
			r.ToolCallID, r.Name, r.Status)
	}
	return string(data)
}

// AsMessage folds the result into a tool-role conversation message.
func (r ToolResult) AsMessage() Message {
	return Message{
		Role:       RoleTool,
		Content:    r.Serialize(),
		ToolCallID: r.ToolCallID,
		ToolName:   r.Name,
		Timestamp:  time.Now(),
	}
}

// ToolSpec declares a tool to the model collaborator. Name is the unique,
// stable registry key. Schemas are JSON Schema documents.
type ToolSpec struct {
	Name         string         `json:"name" yaml:"name"`
	Description  string         `json:"description" yaml:"description"`
	InputSchema  map[string]any `json:"input_schema,omitempty" yaml:"input_schema,omitempty"`
	OutputSchema map[string]any `json:"output_schema,omitempty" yaml:"output_schema,omitempty"`
}

// AgentState is the durable conversational context for one session. It is
// exclusively owned by the orchestrator executing a turn for that session;
// tool handlers borrow it for the duration of a call and must not retain it.
type AgentState struct {
	SessionID    string         `json:"session_id"`
	Conversation []Message      `json:"conversation"`
	Summary      string         `json:"summary,omitempty"`
	Artifacts    map[string]any `json:"artifacts,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// NewAgentState creates an empty session state.
func NewAgentState(sessionID string) *AgentState {
	return &AgentState{
		SessionID:    sessionID,
		Conversation: make([]Message, 0),
		Artifacts:    make(map[string]any),
		Metadata:     make(map[string]any),
	}
}

// Append adds a message to the conversation.
func (s *AgentState) Append(msg Message) {
	s.Conversation = append(s.Conversation, msg)
}

// RunEventType identifies the kind of run progress event.
type RunEventType string

const (
	// Run lifecycle.
	RunEventStarted   RunEventType = "run.started"
	RunEventCompleted RunEventType = "run.completed"
	RunEventFailed    RunEventType = "run.failed"
	RunEventCancelled RunEventType = "run.cancelled"

	// Turn progress.
	RunEventAssistantMessage RunEventType = "assistant.message"
	RunEventToolStarted      RunEventType = "tool.started"
	RunEventToolFinished     RunEventType = "tool.finished"
)

// Terminal reports whether the event type ends a run's stream.
func (t RunEventType) Terminal() bool {
	switch t {
	case RunEventCompleted, RunEventFailed, RunEventCancelled:
		return true
	}
	return false
}

// RunEvent is one entry in a run's ordered progress stream. Seq is per-run,
// strictly increasing, assigned at publish time and never reused; it totally
// orders the stream for every observer and exposes gaps or duplicates on the
// wire.
type RunEvent struct {
	EventID   string         `json:"event_id"`
	RunID     string         `json:"run_id"`
	Type      RunEventType   `json:"type"`
	Seq       uint64         `json:"seq"`
	Timestamp time.Time      `json:"ts"`
	Payload   map[string]any `json:"payload,omitempty"`
}

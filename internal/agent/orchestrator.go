// Package agent implements the bounded tool-calling conversation loop.
package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/memory"
	"github.com/inkwell-ai/inkwell/internal/tools"
	"github.com/inkwell-ai/inkwell/pkg/models"
)

// FallbackReply is appended verbatim when the model collaborator fails.
// The conversation always receives a well-formed assistant message.
const FallbackReply = "unable to generate a response, please try again"

// DefaultMaxToolRounds bounds tool-call rounds per turn.
const DefaultMaxToolRounds = 5

// ModelClient is the model-completion collaborator. It must be supplied by
// the embedding application; any retry policy belongs to the implementation,
// not to the turn loop.
type ModelClient interface {
	Complete(ctx context.Context, messages []models.Message, specs []models.ToolSpec) (models.Message, error)
}

// Config holds orchestrator configuration.
type Config struct {
	Model         ModelClient
	Registry      *tools.Registry
	Memory        *memory.Manager
	SystemPrompt  string
	MaxToolRounds int
	Logger        *zap.Logger
}

// Orchestrator drives one turn at a time for a session: user message in,
// assistant message out, with zero or more tool-call rounds in between. It is
// the only writer of the AgentState it is handed.
type Orchestrator struct {
	model         ModelClient
	registry      *tools.Registry
	memory        *memory.Manager
	systemPrompt  string
	maxToolRounds int
	logger        *zap.Logger
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Memory == nil {
		cfg.Memory = memory.NewManager(0, 0, 0)
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	return &Orchestrator{
		model:         cfg.Model,
		registry:      cfg.Registry,
		memory:        cfg.Memory,
		systemPrompt:  cfg.SystemPrompt,
		maxToolRounds: cfg.MaxToolRounds,
		logger:        cfg.Logger,
	}
}

// TurnOutcome is what a completed turn hands back to the caller: the final
// assistant message plus every tool result the turn accumulated, so outer
// layers can surface partial progress and artifacts.
type TurnOutcome struct {
	Message     models.Message
	ToolResults []models.ToolResult
	Rounds      int
	// ModelErr is set when the turn ended because the completion collaborator
	// failed; Message then carries the fallback reply. It is an outcome, not
	// a thrown error.
	ModelErr error
}

// ProcessTurn appends the user message and runs the turn loop. The round cap
// is the hard backstop against a model that keeps calling tools without ever
// answering; bounding it here rather than trusting the model is what makes
// the loop terminate.
func (o *Orchestrator) ProcessTurn(ctx context.Context, state *models.AgentState, userText string, emit func(models.RunEventType, map[string]any)) *TurnOutcome {
	state.Append(models.Message{
		Role:      models.RoleUser,
		Content:   userText,
		Timestamp: time.Now(),
	})

	outcome := &TurnOutcome{}
	toolCtx := &tools.ToolContext{State: state, Emit: emit}

	for round := 0; round <= o.maxToolRounds; round++ {
		outcome.Rounds = round + 1

		messages := o.memory.BuildContext(state, o.systemPrompt)
		reply, err := o.model.Complete(ctx, messages, o.registry.Specs())
		if err != nil {
			o.logger.Error("model completion failed",
				zap.String("session_id", state.SessionID),
				zap.Int("round", round),
				zap.Error(err))
			fallback := models.Message{
				Role:      models.RoleAssistant,
				Content:   FallbackReply,
				Timestamp: time.Now(),
			}
			state.Append(fallback)
			outcome.Message = fallback
			outcome.ModelErr = err
			return outcome
		}

		reply.Role = models.RoleAssistant
		if reply.Timestamp.IsZero() {
			reply.Timestamp = time.Now()
		}
		state.Append(reply)
		outcome.Message = reply

		if len(reply.ToolCalls) == 0 {
			return outcome
		}

		o.emitAssistant(emit, reply)

		// Sequential dispatch in the order the model produced the calls, so
		// tools sharing the session state never interleave side effects.
		// Every call gets exactly one result appended before the turn moves on.
		for _, call := range reply.ToolCalls {
			o.emitToolStarted(emit, call)
			result := o.registry.Execute(ctx, toolCtx, call)
			state.Append(result.AsMessage())
			outcome.ToolResults = append(outcome.ToolResults, result)
			o.emitToolFinished(emit, result)
		}

		if round == o.maxToolRounds {
			// Policy stop, not an error: the tool-laden assistant message
			// stands and no further model call is made.
			o.logger.Warn("max tool rounds reached",
				zap.String("session_id", state.SessionID),
				zap.Int("max_tool_rounds", o.maxToolRounds))
			return outcome
		}
	}
	return outcome
}

func (o *Orchestrator) emitAssistant(emit func(models.RunEventType, map[string]any), msg models.Message) {
	if emit == nil {
		return
	}
	emit(models.RunEventAssistantMessage, map[string]any{
		"content":    msg.Content,
		"tool_calls": len(msg.ToolCalls),
	})
}

func (o *Orchestrator) emitToolStarted(emit func(models.RunEventType, map[string]any), call models.ToolCall) {
	if emit == nil {
		return
	}
	emit(models.RunEventToolStarted, map[string]any{
		"tool_call_id": call.ID,
		"tool":         call.Name,
	})
}

func (o *Orchestrator) emitToolFinished(emit func(models.RunEventType, map[string]any), result models.ToolResult) {
	if emit == nil {
		return
	}
	emit(models.RunEventToolFinished, map[string]any{
		"tool_call_id": result.ToolCallID,
		"tool":         result.Name,
		"status":       string(result.Status),
	})
}

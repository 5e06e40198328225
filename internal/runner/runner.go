// Package runner executes agent turns as runs: durable records whose
// progress fans out through the hub as an ordered event stream.
package runner

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/agent"
	"github.com/inkwell-ai/inkwell/internal/hub"
	"github.com/inkwell-ai/inkwell/internal/run"
	"github.com/inkwell-ai/inkwell/internal/session"
	"github.com/inkwell-ai/inkwell/pkg/models"
)

// DefaultTurnTimeout bounds one run's turn end to end.
const DefaultTurnTimeout = 120 * time.Second

const summaryMaxChars = 280

// Service starts, finishes, and cancels runs. The run store is the single
// arbiter of the terminal state, which is what keeps the stream to exactly
// one terminal event even when completion and cancellation race.
type Service struct {
	orchestrator *agent.Orchestrator
	hub          *hub.Hub
	store        run.Store
	locks        *session.Locks
	turnTimeout  time.Duration
	logger       *zap.Logger
}

// New creates a run service. The lock table is shared with any other caller
// running turns against the same sessions, so state mutation stays serialized.
func New(orchestrator *agent.Orchestrator, eventHub *hub.Hub, store run.Store, locks *session.Locks, turnTimeout time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locks == nil {
		locks = session.NewLocks()
	}
	if turnTimeout <= 0 {
		turnTimeout = DefaultTurnTimeout
	}
	return &Service{
		orchestrator: orchestrator,
		hub:          eventHub,
		store:        store,
		locks:        locks,
		turnTimeout:  turnTimeout,
		logger:       logger,
	}
}

// Start creates the run record and executes the turn on its own goroutine,
// returning the run id immediately. Progress streams through the hub.
func (s *Service) Start(ctx context.Context, state *models.AgentState, userText string) (string, error) {
	runID := uuid.NewString()
	record := &run.Run{
		ID:        runID,
		SessionID: state.SessionID,
		Input:     userText,
		Status:    run.StatusPending,
	}
	if err := s.store.Create(ctx, record); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	go s.execute(runID, state, userText)
	return runID, nil
}

// execute runs the turn detached from the caller's context: the run outlives
// the request that started it.
func (s *Service) execute(runID string, state *models.AgentState, userText string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.turnTimeout)
	defer cancel()

	_, changed, err := s.store.SetStatus(ctx, runID, run.StatusRunning, "", "")
	if err != nil {
		s.logger.Error("mark run running", zap.String("run_id", runID), zap.Error(err))
	} else if !changed {
		// Cancelled before the turn started; the cancel path already
		// published the terminal event.
		s.logger.Info("run cancelled before start", zap.String("run_id", runID))
		return
	}
	s.hub.Publish(runID, models.RunEventStarted, map[string]any{
		"session_id": state.SessionID,
	})

	emit := func(typ models.RunEventType, payload map[string]any) {
		s.hub.Publish(runID, typ, payload)
	}

	outcome := func() *agent.TurnOutcome {
		lock := s.locks.For(state.SessionID)
		lock.Lock()
		defer lock.Unlock()
		return s.orchestrator.ProcessTurn(ctx, state, userText, emit)
	}()

	status := run.StatusDone
	summary := truncate(outcome.Message.Content, summaryMaxChars)
	errMsg := ""
	if outcome.ModelErr != nil {
		status = run.StatusFailed
		errMsg = outcome.ModelErr.Error()
	}

	record, changed, err := s.store.SetStatus(ctx, runID, status, summary, errMsg)
	if err != nil {
		s.logger.Error("finish run", zap.String("run_id", runID), zap.Error(err))
		return
	}
	if !changed {
		// A concurrent cancellation won; its path already published the
		// terminal event.
		s.logger.Info("run finished after cancellation",
			zap.String("run_id", runID),
			zap.String("status", string(record.Status)))
		return
	}

	s.hub.Publish(runID, status.TerminalEventType(), map[string]any{
		"summary":      record.Summary,
		"error":        record.Error,
		"rounds":       outcome.Rounds,
		"tool_results": len(outcome.ToolResults),
	})
}

// Cancel records cancellation intent, marks the run cancelled, and publishes
// the terminal cancellation event. Cooperative: in-flight tool calls are not
// preempted. Unknown run ids and already-terminal runs are silently ignored.
func (s *Service) Cancel(ctx context.Context, runID string) {
	s.hub.Cancel(runID)

	if _, changed, err := s.store.SetStatus(ctx, runID, run.StatusCancelled, "", "cancelled by client"); err != nil || !changed {
		return
	}

	s.hub.Publish(runID, models.RunEventCancelled, map[string]any{
		"reason": "cancelled by client",
	})
}

// truncate cuts s to at most maxLen bytes on a rune boundary, marking the cut
// with "...".
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

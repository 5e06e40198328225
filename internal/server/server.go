// Package server exposes the agent over HTTP: synchronous turns, background
// runs, and the WebSocket event stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/agent"
	"github.com/inkwell-ai/inkwell/internal/bridge"
	"github.com/inkwell-ai/inkwell/internal/run"
	"github.com/inkwell-ai/inkwell/internal/runner"
	"github.com/inkwell-ai/inkwell/internal/session"
	"github.com/inkwell-ai/inkwell/internal/validator"
	"github.com/inkwell-ai/inkwell/pkg/models"
)

// Config holds server configuration.
type Config struct {
	Addr        string
	TurnTimeout time.Duration
}

// Server routes requests to the agent runtime.
type Server struct {
	cfg          Config
	orchestrator *agent.Orchestrator
	runner       *runner.Service
	bridge       *bridge.Bridge
	store        run.Store
	sessions     *session.Store
	locks        *session.Locks
	validator    *validator.InputValidator
	logger       *zap.Logger
	http         *http.Server
}

// New creates a server. The session lock table must be the same one handed to
// the run service so synchronous and background turns never interleave on a
// session.
func New(cfg Config, orchestrator *agent.Orchestrator, runSvc *runner.Service, streamBridge *bridge.Bridge, store run.Store, sessions *session.Store, locks *session.Locks, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = runner.DefaultTurnTimeout
	}
	s := &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		runner:       runSvc,
		bridge:       streamBridge,
		store:        store,
		sessions:     sessions,
		locks:        locks,
		validator:    validator.NewInputValidator(),
		logger:       logger,
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /v1/sessions/{id}/messages", s.handleMessage)
	mux.HandleFunc("POST /v1/runs", s.handleStartRun)
	mux.HandleFunc("GET /v1/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /v1/runs/{id}/events", s.handleRunEvents)
	return s.logRequests(mux)
}

// ListenAndServe blocks serving requests until Shutdown or failure.
func (s *Server) ListenAndServe() error {
	s.logger.Info("server listening", zap.String("addr", s.cfg.Addr))
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	SessionID   string              `json:"session_id"`
	Reply       string              `json:"reply"`
	Rounds      int                 `json:"rounds"`
	ToolResults []models.ToolResult `json:"tool_results,omitempty"`
	ModelError  string              `json:"model_error,omitempty"`
}

// handleMessage runs one synchronous turn against the session and returns
// the assistant's reply.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text := s.validator.Sanitize(req.Message)
	if err := s.validator.Validate(text); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.TurnTimeout)
	defer cancel()

	state := s.sessions.GetOrCreate(sessionID)
	outcome := func() *agent.TurnOutcome {
		lock := s.locks.For(sessionID)
		lock.Lock()
		// Deferred so a panicking turn (recovered by net/http) cannot wedge
		// the session.
		defer lock.Unlock()
		return s.orchestrator.ProcessTurn(ctx, state, text, nil)
	}()

	resp := messageResponse{
		SessionID:   sessionID,
		Reply:       outcome.Message.Content,
		Rounds:      outcome.Rounds,
		ToolResults: outcome.ToolResults,
	}
	if outcome.ModelErr != nil {
		resp.ModelError = outcome.ModelErr.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type startRunRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type startRunResponse struct {
	RunID     string `json:"run_id"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// handleStartRun starts a background run and returns its id immediately.
// Progress streams over the run's WebSocket endpoint.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text := s.validator.Sanitize(req.Message)
	if err := s.validator.Validate(text); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	state := s.sessions.GetOrCreate(req.SessionID)
	runID, err := s.runner.Start(r.Context(), state, text)
	if err != nil {
		s.logger.Error("start run", zap.String("session_id", req.SessionID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}

	s.writeJSON(w, http.StatusAccepted, startRunResponse{
		RunID:     runID,
		SessionID: req.SessionID,
		Status:    string(run.StatusPending),
	})
}

// handleGetRun returns the durable run record.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, run.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "run lookup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

// handleRunEvents hands the connection to the stream bridge.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	s.bridge.Serve(w, r, r.PathValue("id"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// logRequests wraps the mux with zap request logging. WebSocket upgrades are
// passed through untouched; a recorder would break the hijacker.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

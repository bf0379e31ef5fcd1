// Package server exposes the agent over HTTP: a chat endpoint, a
// server-sent-events stream of tool activity, and session management.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/scout/internal/agent"
	"github.com/haasonsaas/scout/internal/observability"
	"github.com/haasonsaas/scout/pkg/models"
)

// ChatService is the slice of the agent the HTTP surface needs.
type ChatService interface {
	Chat(ctx context.Context, sessionID, message string) (*models.ChatResult, error)
	Cancel(sessionID string) bool
	History(sessionID string) []models.DisplayTurn
	ClearSession(sessionID string) string
	Events() *agent.EventBus
}

// Config holds the server settings.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Server routes HTTP requests to the agent.
type Server struct {
	cfg     Config
	service ChatService
	metrics *observability.Metrics
	logger  *slog.Logger

	http *http.Server
}

// New builds the server and its router.
func New(cfg Config, service ChatService, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8422"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{cfg: cfg, service: service, metrics: metrics, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/api/chat", s.handleChat)
	r.Route("/api/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/events", s.handleEvents)
		r.Get("/history", s.handleHistory)
		r.Post("/cancel", s.handleCancel)
		r.Delete("/", s.handleClear)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	}

	s.http = &http.Server{Addr: cfg.Addr, Handler: r}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe blocks until the listener fails or Shutdown runs.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.cfg.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	result, err := s.service.Chat(r.Context(), req.SessionID, req.Message)
	if err != nil {
		s.writeChatError(w, req.SessionID, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveChat("ok", result.TokenUsage.InputTokens, result.TokenUsage.OutputTokens)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeChatError(w http.ResponseWriter, sessionID string, err error) {
	status := http.StatusInternalServerError
	category := ""
	outcome := "error"

	var agentErr *agent.Error
	if errors.As(err, &agentErr) {
		category = string(agentErr.Category)
		switch {
		case agent.IsCancellation(err):
			// 499 mirrors the CLI's cancelled exit code.
			status = 499
			outcome = "cancelled"
		case agentErr.Category == agent.CategoryValidation:
			status = http.StatusBadRequest
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveChat(outcome, 0, 0)
	}
	s.logger.Error("chat request failed", "session", sessionID, "error", err)
	writeJSON(w, status, errorResponse{Error: err.Error(), Category: category})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"turns":      s.service.History(sessionID),
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	cancelled := s.service.Cancel(sessionID)
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"cancelled":  cancelled,
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	next := s.service.ClearSession(sessionID)
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":      sessionID,
		"next_session_id": next,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

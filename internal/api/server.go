// Package api exposes the chat service over HTTP: a server-sent-events chat
// endpoint, session CRUD, health, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kubechat-dev/kubechat/internal/chat"
	"github.com/kubechat-dev/kubechat/internal/config"
	apperrors "github.com/kubechat-dev/kubechat/internal/errors"
	"github.com/kubechat-dev/kubechat/internal/session"
	"github.com/kubechat-dev/kubechat/internal/tools"
)

// Server wires the HTTP routes to the chat service and session store.
type Server struct {
	chat     *chat.Service
	sessions *session.Store
	registry *tools.Registry
	router   *mux.Router
	logger   *zap.Logger
}

// NewServer builds the router.
func NewServer(chatService *chat.Service, store *session.Store, registry *tools.Registry, logger *zap.Logger) *Server {
	s := &Server{
		chat:     chatService,
		sessions: store,
		registry: registry,
		router:   mux.NewRouter(),
		logger:   logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/chat", s.handleChat).Methods("POST")
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleCloseSession).Methods("DELETE")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Build creates the HTTP server. Write timeout is left unset so chat streams
// are not cut off mid-turn.
func (s *Server) Build(cfg config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
	}
}

// handleChat runs one turn and streams its events as SSE. Admission errors
// (bad request, unknown session, turn already running) are reported as plain
// HTTP errors before any event is written.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.New(apperrors.ErrCodeValidation, "invalid request body", err))
		return
	}

	events, err := s.chat.StreamTurn(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, apperrors.New(apperrors.ErrCodeInternal, "streaming unsupported", nil))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			s.logger.Error("failed to encode event", zap.Error(err))
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apperrors.New(apperrors.ErrCodeValidation, "invalid request body", err))
			return
		}
	}

	sess := s.sessions.Create(r.Context(), req.Title)
	s.writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": s.sessions.List(r.Context()),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Close(r.Context(), mux.Vars(r)["id"]) {
		s.writeError(w, apperrors.New(apperrors.ErrCodeNotFound, "session not found", nil))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth aggregates per-tool health. Degraded tools do not fail the
// endpoint; the status field flips to degraded and the detail is in the body.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	statuses := s.registry.Health(ctx)
	healthy := true
	for _, status := range statuses {
		if !status.Healthy {
			healthy = false
			break
		}
	}

	overall := "healthy"
	if !healthy {
		overall = "degraded"
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": overall,
		"tools":  statuses,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperrors.Code(err)

	status := http.StatusInternalServerError
	switch code {
	case apperrors.ErrCodeValidation:
		status = http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeTurnInProgress:
		status = http.StatusConflict
	case apperrors.ErrCodeDenied:
		status = http.StatusForbidden
	case apperrors.ErrCodeUpstream, apperrors.ErrCodeTimeout:
		status = http.StatusBadGateway
	}

	s.logger.Debug("request failed", zap.String("code", code), zap.Error(err))
	s.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  code,
	})
}

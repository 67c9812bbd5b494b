package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/kubechat-dev/kubechat/internal/errors"
	"github.com/kubechat-dev/kubechat/internal/metrics"
	"github.com/kubechat-dev/kubechat/internal/models"
	"github.com/kubechat-dev/kubechat/internal/session"
)

// TurnExecutor runs a turn durably and returns its aggregated result. The
// Temporal executor implements this.
type TurnExecutor interface {
	ExecuteTurn(ctx context.Context, sess *models.Session, userMessage string, confirm bool) (*models.TurnResult, error)
}

// TurnRequest is one user turn. An empty SessionID starts a new session.
type TurnRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	Confirm   bool   `json:"confirm,omitempty"`
}

// Service owns turn admission: request validation, session resolution, the
// per-session turn lock, and the choice between the direct streamer and the
// durable executor. The execution path is fixed at startup, never per turn.
type Service struct {
	store    *session.Store
	streamer *Streamer
	executor TurnExecutor
	logger   *zap.Logger
}

// NewService builds the chat service. A nil executor pins the direct path.
func NewService(store *session.Store, streamer *Streamer, executor TurnExecutor, logger *zap.Logger) *Service {
	mode := "direct"
	if executor != nil {
		mode = "workflow"
	}
	logger.Info("chat execution path selected", zap.String("mode", mode))

	return &Service{
		store:    store,
		streamer: streamer,
		executor: executor,
		logger:   logger,
	}
}

// StreamTurn admits one turn and returns its event stream. Validation,
// session lookup, and turn-lock conflicts fail synchronously; everything
// after that is reported through the stream, which always ends with exactly
// one terminal event.
func (s *Service) StreamTurn(ctx context.Context, req TurnRequest) (<-chan models.Event, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "message must not be empty", nil)
	}

	var (
		sess    *models.Session
		created bool
	)
	if req.SessionID != "" {
		found, err := s.store.Get(ctx, req.SessionID)
		if err != nil && !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
			return nil, err
		}
		sess = found
	}
	// An absent or unknown session id starts a fresh session.
	if sess == nil {
		sess = s.store.Create(ctx, "")
		created = true
		if req.SessionID != "" {
			s.logger.Info("unknown session id, created a new session",
				zap.String("requested_id", req.SessionID),
				zap.String("session_id", sess.ID))
		}
	}

	if err := s.store.BeginTurn(ctx, sess.ID); err != nil {
		return nil, err
	}

	events := make(chan models.Event, 32)
	go func() {
		defer s.store.EndTurn(sess.ID)

		out := events
		if created {
			out <- models.NewSessionStartEvent(sess.ID)
		}
		if s.executor != nil {
			s.runDurable(ctx, sess, req.Message, req.Confirm, out)
			return
		}
		s.streamer.RunTurn(ctx, sess, req.Message, req.Confirm, out)
	}()
	return events, nil
}

// runDurable executes the turn through the workflow orchestrator and adapts
// its single TurnResult into the streaming protocol.
func (s *Service) runDurable(ctx context.Context, sess *models.Session, userMessage string, confirm bool, events chan<- models.Event) {
	defer close(events)

	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.TurnsTotal.WithLabelValues("workflow", outcome).Inc()
		metrics.TurnDuration.WithLabelValues("workflow").Observe(time.Since(start).Seconds())
	}()

	userMsg := models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   userMessage,
		Timestamp: time.Now().UTC(),
	}
	if err := s.store.AppendMessage(ctx, sess.ID, userMsg); err != nil {
		events <- models.NewErrorEvent(sess.ID, err.Error())
		return
	}

	events <- models.NewTypingEvent(sess.ID)

	result, err := s.executor.ExecuteTurn(ctx, sess, userMessage, confirm)
	if err != nil {
		s.logger.Error("workflow turn failed",
			zap.String("session_id", sess.ID), zap.Error(err))
		events <- models.NewErrorEvent(sess.ID, err.Error())
		return
	}

	var toolResults []models.ToolResult
	for _, r := range result.ToolResults {
		toolResults = append(toolResults, r)
	}
	assistantMsg := models.Message{
		ID:          uuid.NewString(),
		Role:        models.RoleAssistant,
		Content:     result.Response,
		ToolResults: toolResults,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.store.AppendMessage(ctx, sess.ID, assistantMsg); err != nil {
		events <- models.NewErrorEvent(sess.ID, err.Error())
		return
	}

	if result.Error == "" {
		outcome = "completed"
	}
	events <- models.NewMessageCompleteEvent(sess.ID, assistantMsg)
}

package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kubechat-dev/kubechat/internal/llm"
	"github.com/kubechat-dev/kubechat/internal/metrics"
	"github.com/kubechat-dev/kubechat/internal/models"
	"github.com/kubechat-dev/kubechat/internal/session"
	"github.com/kubechat-dev/kubechat/internal/tools"
)

// Streamer runs one turn in-process and emits the typed event sequence:
// optional session_start, typing, message deltas, tool call/result pairs,
// then exactly one terminal event. On an error terminal nothing is appended
// to the session; on message_complete the full assistant message is.
type Streamer struct {
	provider      llm.Provider
	gate          *tools.Gate
	registry      *tools.Registry
	store         *session.Store
	maxToolRounds int
	maxTokens     int
	logger        *zap.Logger
}

// NewStreamer wires the direct execution path.
func NewStreamer(
	provider llm.Provider,
	gate *tools.Gate,
	registry *tools.Registry,
	store *session.Store,
	maxToolRounds, maxTokens int,
	logger *zap.Logger,
) *Streamer {
	if maxToolRounds <= 0 {
		maxToolRounds = 1
	}
	return &Streamer{
		provider:      provider,
		gate:          gate,
		registry:      registry,
		store:         store,
		maxToolRounds: maxToolRounds,
		maxTokens:     maxTokens,
		logger:        logger,
	}
}

// RunTurn executes the turn against an already-locked session. The caller
// (Service) owns session resolution and the turn lock; the streamer owns the
// event sequence. The channel is closed after the terminal event.
func (s *Streamer) RunTurn(ctx context.Context, sess *models.Session, userMessage string, confirm bool, events chan<- models.Event) {
	defer close(events)

	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.TurnsTotal.WithLabelValues("direct", outcome).Inc()
		metrics.TurnDuration.WithLabelValues("direct").Observe(time.Since(start).Seconds())
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
	history := append(sess.Messages, userMsg)

	events <- models.NewTypingEvent(sess.ID)

	messageID := uuid.NewString()
	var (
		text        strings.Builder
		toolCalls   []models.ToolCall
		toolResults []models.ToolResult
	)

	for round := 0; round < s.maxToolRounds; round++ {
		request := llm.Request{
			System:    SystemPrompt,
			Messages:  history,
			Tools:     s.toolDefinitions(),
			MaxTokens: s.maxTokens,
		}

		roundCalls, err := s.streamRound(ctx, sess.ID, messageID, request, &text, events)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("turn cancelled", zap.String("session_id", sess.ID))
				return
			}
			events <- models.NewErrorEvent(sess.ID, err.Error())
			return
		}
		if len(roundCalls) == 0 {
			break
		}

		roundResults := make([]models.ToolResult, 0, len(roundCalls))
		for _, call := range roundCalls {
			events <- models.NewToolCallEvent(sess.ID, messageID, call)

			_, result := s.gate.Execute(ctx, call, confirm)
			events <- models.NewToolResultEvent(sess.ID, messageID, result)
			roundResults = append(roundResults, result)
		}
		toolCalls = append(toolCalls, roundCalls...)
		toolResults = append(toolResults, roundResults...)

		// Feed this round back so the model sees its calls and their
		// results before continuing.
		history = append(history, models.Message{
			ID:          uuid.NewString(),
			Role:        models.RoleAssistant,
			Content:     "",
			ToolCalls:   roundCalls,
			ToolResults: roundResults,
			Timestamp:   time.Now().UTC(),
		})
	}

	assistantMsg := models.Message{
		ID:          messageID,
		Role:        models.RoleAssistant,
		Content:     text.String(),
		ToolCalls:   toolCalls,
		ToolResults: toolResults,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.store.AppendMessage(ctx, sess.ID, assistantMsg); err != nil {
		events <- models.NewErrorEvent(sess.ID, err.Error())
		return
	}

	outcome = "completed"
	events <- models.NewMessageCompleteEvent(sess.ID, assistantMsg)
}

// streamRound runs one completion round, forwarding text deltas and
// returning any tool calls the model requested.
func (s *Streamer) streamRound(
	ctx context.Context,
	sessionID, messageID string,
	request llm.Request,
	text *strings.Builder,
	events chan<- models.Event,
) ([]models.ToolCall, error) {
	chunks, errCh := s.provider.StreamComplete(ctx, request)

	var calls []models.ToolCall
	for chunk := range chunks {
		if chunk.Content != "" {
			text.WriteString(chunk.Content)
			events <- models.NewMessageDeltaEvent(sessionID, messageID, chunk.Content)
		}
		if len(chunk.ToolCalls) > 0 {
			calls = append(calls, chunk.ToolCalls...)
		}
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return calls, nil
}

func (s *Streamer) toolDefinitions() []llm.ToolDefinition {
	registered := s.registry.List()
	defs := make([]llm.ToolDefinition, 0, len(registered))
	for _, tool := range registered {
		defs = append(defs, llm.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Schema:      tool.Schema(),
		})
	}
	return defs
}

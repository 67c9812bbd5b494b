package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "github.com/kubechat-dev/kubechat/internal/errors"
	"github.com/kubechat-dev/kubechat/internal/llm"
	"github.com/kubechat-dev/kubechat/internal/models"
	"github.com/kubechat-dev/kubechat/internal/session"
)

type fakeExecutor struct {
	result *models.TurnResult
	err    error
	calls  int
}

func (e *fakeExecutor) ExecuteTurn(ctx context.Context, sess *models.Session, userMessage string, confirm bool) (*models.TurnResult, error) {
	e.calls++
	return e.result, e.err
}

func newDirectService(t *testing.T, provider llm.Provider) (*Service, *session.Store) {
	t.Helper()
	f := newStreamerFixture(t, provider)
	return NewService(f.store, f.streamer, nil, zaptest.NewLogger(t)), f.store
}

func drain(events <-chan models.Event) []models.Event {
	var out []models.Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestService_RejectsEmptyMessage(t *testing.T) {
	svc, _ := newDirectService(t, &scriptedProvider{})

	_, err := svc.StreamTurn(context.Background(), TurnRequest{Message: "   "})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}

func TestService_UnknownSessionCreatesNew(t *testing.T) {
	provider := &scriptedProvider{rounds: [][]llm.StreamChunk{{
		{Content: "hello", Delta: true},
		{FinishReason: "end_turn"},
	}}}
	svc, store := newDirectService(t, provider)

	events, err := svc.StreamTurn(context.Background(), TurnRequest{SessionID: "ghost", Message: "hi"})
	require.NoError(t, err, "an unknown session id starts a new session")

	collected := drain(events)
	require.NotEmpty(t, collected)
	require.Equal(t, models.EventSessionStart, collected[0].Type)
	assert.NotEqual(t, "ghost", collected[0].SessionID)
	assertOneTerminal(t, collected)

	_, err = store.Get(context.Background(), collected[0].SessionID)
	require.NoError(t, err)
}

func TestService_NewSessionEmitsSessionStart(t *testing.T) {
	provider := &scriptedProvider{rounds: [][]llm.StreamChunk{{
		{Content: "hello", Delta: true},
		{FinishReason: "end_turn"},
	}}}
	svc, _ := newDirectService(t, provider)

	events, err := svc.StreamTurn(context.Background(), TurnRequest{Message: "hi"})
	require.NoError(t, err)

	collected := drain(events)
	require.NotEmpty(t, collected)
	assert.Equal(t, models.EventSessionStart, collected[0].Type)
	assert.NotEmpty(t, collected[0].SessionID)
	assertOneTerminal(t, collected)
}

func TestService_ExistingSessionSkipsSessionStart(t *testing.T) {
	provider := &scriptedProvider{rounds: [][]llm.StreamChunk{{
		{Content: "hello", Delta: true},
		{FinishReason: "end_turn"},
	}}}
	svc, store := newDirectService(t, provider)
	sess := store.Create(context.Background(), "")

	events, err := svc.StreamTurn(context.Background(), TurnRequest{SessionID: sess.ID, Message: "hi"})
	require.NoError(t, err)

	collected := drain(events)
	assert.Equal(t, models.EventTyping, collected[0].Type)
}

func TestService_ConcurrentTurnRejected(t *testing.T) {
	svc, store := newDirectService(t, &scriptedProvider{})
	sess := store.Create(context.Background(), "")

	require.NoError(t, store.BeginTurn(context.Background(), sess.ID))
	defer store.EndTurn(sess.ID)

	_, err := svc.StreamTurn(context.Background(), TurnRequest{SessionID: sess.ID, Message: "hi"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTurnInProgress))
}

func TestService_TurnLockReleasedAfterStream(t *testing.T) {
	provider := &scriptedProvider{rounds: [][]llm.StreamChunk{
		{{Content: "one", Delta: true}, {FinishReason: "end_turn"}},
		{{Content: "two", Delta: true}, {FinishReason: "end_turn"}},
	}}
	svc, store := newDirectService(t, provider)
	sess := store.Create(context.Background(), "")

	events, err := svc.StreamTurn(context.Background(), TurnRequest{SessionID: sess.ID, Message: "first"})
	require.NoError(t, err)
	drain(events)

	// Lock release is asynchronous with channel close; give it a moment.
	require.Eventually(t, func() bool {
		if err := store.BeginTurn(context.Background(), sess.ID); err != nil {
			return false
		}
		store.EndTurn(sess.ID)
		return true
	}, time.Second, 5*time.Millisecond)
}

func TestService_DurablePath(t *testing.T) {
	executor := &fakeExecutor{result: &models.TurnResult{
		Response: "2 pods are running",
		ToolResults: map[string]models.ToolResult{
			"get_pods": {ID: "get_pods", Name: "get_pods", Result: "[]", Success: true},
		},
	}}

	f := newStreamerFixture(t, &scriptedProvider{})
	svc := NewService(f.store, f.streamer, executor, zaptest.NewLogger(t))

	events, err := svc.StreamTurn(context.Background(), TurnRequest{Message: "what pods are running?"})
	require.NoError(t, err)

	collected := drain(events)
	assertOneTerminal(t, collected)
	assert.Equal(t, 1, executor.calls)

	last := collected[len(collected)-1]
	require.Equal(t, models.EventMessageComplete, last.Type)
	assert.Equal(t, "2 pods are running", last.Content)
	require.NotNil(t, last.Message)
	require.Len(t, last.Message.ToolResults, 1)

	sess, err := f.store.Get(context.Background(), last.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "2 pods are running", sess.Messages[1].Content)
}

func TestService_DurablePathApologyStillCompletes(t *testing.T) {
	executor := &fakeExecutor{result: &models.TurnResult{
		Response: "I encountered an error while processing your request: synthesis failed",
		Error:    "synthesis failed",
	}}
	f := newStreamerFixture(t, &scriptedProvider{})
	svc := NewService(f.store, f.streamer, executor, zaptest.NewLogger(t))

	events, err := svc.StreamTurn(context.Background(), TurnRequest{Message: "hi"})
	require.NoError(t, err)

	collected := drain(events)
	assertOneTerminal(t, collected)
	assert.Equal(t, models.EventMessageComplete, collected[len(collected)-1].Type)
}

func TestService_DurablePathExecutorFailure(t *testing.T) {
	executor := &fakeExecutor{err: errors.New("workflow start failed")}
	f := newStreamerFixture(t, &scriptedProvider{})
	svc := NewService(f.store, f.streamer, executor, zaptest.NewLogger(t))

	events, err := svc.StreamTurn(context.Background(), TurnRequest{Message: "hi"})
	require.NoError(t, err)

	collected := drain(events)
	assertOneTerminal(t, collected)
	last := collected[len(collected)-1]
	assert.Equal(t, models.EventError, last.Type)
	assert.Contains(t, last.Error, "workflow start failed")

	sess, getErr := f.store.Get(context.Background(), last.SessionID)
	require.NoError(t, getErr)
	require.Len(t, sess.Messages, 1, "no assistant message on failure")
}

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "github.com/kubechat-dev/kubechat/internal/errors"
	"github.com/kubechat-dev/kubechat/internal/models"
)

type memArchiver struct {
	mu       sync.Mutex
	archived []*models.Session
}

func (m *memArchiver) Archive(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archived = append(m.archived, session)
	return nil
}

func (m *memArchiver) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.archived))
	for _, s := range m.archived {
		out = append(out, s.ID)
	}
	return out
}

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *memArchiver, *time.Time) {
	t.Helper()

	archiver := &memArchiver{}
	store := NewStore(ttl, archiver, zaptest.NewLogger(t))

	now := time.Now()
	store.now = func() time.Time { return now }
	return store, archiver, &now
}

func TestStore_CreateAndGet(t *testing.T) {
	store, _, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	created := store.Create(ctx, "debugging web")

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "debugging web", got.Title)
	assert.Equal(t, models.SessionActive, got.Status)
	assert.Empty(t, got.Messages)
}

func TestStore_GetMissing(t *testing.T) {
	store, _, _ := newTestStore(t, time.Hour)

	_, err := store.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestStore_ExpiredSessionIsMissing(t *testing.T) {
	store, archiver, now := newTestStore(t, time.Minute)
	ctx := context.Background()

	created := store.Create(ctx, "")
	*now = now.Add(2 * time.Minute)

	_, err := store.Get(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	assert.Equal(t, []string{created.ID}, archiver.ids(), "expired session must be archived on eviction")

	// Second access stays missing and does not archive again.
	_, err = store.Get(ctx, created.ID)
	require.Error(t, err)
	assert.Len(t, archiver.ids(), 1)
}

func TestStore_ListSweepsExpired(t *testing.T) {
	store, _, now := newTestStore(t, time.Minute)
	ctx := context.Background()

	old := store.Create(ctx, "old")
	*now = now.Add(2 * time.Minute)
	fresh := store.Create(ctx, "fresh")

	sessions := store.List(ctx)
	require.Len(t, sessions, 1)
	assert.Equal(t, fresh.ID, sessions[0].ID)

	_, err := store.Get(ctx, old.ID)
	assert.Error(t, err)
}

func TestStore_ReadsDoNotExtendTTL(t *testing.T) {
	store, _, now := newTestStore(t, time.Minute)
	ctx := context.Background()

	created := store.Create(ctx, "")

	// Poll the session; reads must not keep it alive.
	*now = now.Add(30 * time.Second)
	_, err := store.Get(ctx, created.ID)
	require.NoError(t, err)

	*now = now.Add(40 * time.Second)
	_, err = store.Get(ctx, created.ID)
	require.Error(t, err, "a session idle past the TTL expires even when read")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestStore_AppendExtendsTTL(t *testing.T) {
	store, _, now := newTestStore(t, time.Minute)
	ctx := context.Background()

	created := store.Create(ctx, "")

	*now = now.Add(30 * time.Second)
	require.NoError(t, store.AppendMessage(ctx, created.ID, models.Message{Role: models.RoleUser, Content: "hi"}))

	*now = now.Add(50 * time.Second)
	_, err := store.Get(ctx, created.ID)
	require.NoError(t, err, "the append moved the expiry window forward")
}

func TestStore_AppendMessage(t *testing.T) {
	store, _, now := newTestStore(t, time.Hour)
	ctx := context.Background()

	created := store.Create(ctx, "")
	*now = now.Add(time.Second)

	err := store.AppendMessage(ctx, created.ID, models.Message{Role: models.RoleUser, Content: "hi"})
	require.NoError(t, err)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, models.RoleUser, got.Messages[0].Role)
	assert.NotEmpty(t, got.Messages[0].ID)
	assert.False(t, got.Messages[0].Timestamp.IsZero())
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestStore_ConcurrentAppendsAllLand(t *testing.T) {
	store, _, _ := newTestStore(t, time.Hour)
	ctx := context.Background()
	created := store.Create(ctx, "")

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = store.AppendMessage(ctx, created.ID, models.Message{Role: models.RoleUser, Content: "m"})
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, n)
}

func TestStore_TurnLock(t *testing.T) {
	store, _, _ := newTestStore(t, time.Hour)
	ctx := context.Background()
	created := store.Create(ctx, "")

	require.NoError(t, store.BeginTurn(ctx, created.ID))

	err := store.BeginTurn(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTurnInProgress))

	store.EndTurn(created.ID)
	require.NoError(t, store.BeginTurn(ctx, created.ID))
}

func TestStore_CloseIsIdempotentAndArchives(t *testing.T) {
	store, archiver, _ := newTestStore(t, time.Hour)
	ctx := context.Background()
	created := store.Create(ctx, "")

	assert.True(t, store.Close(ctx, created.ID))
	assert.False(t, store.Close(ctx, created.ID), "second close reports nothing to do")
	assert.False(t, store.Close(ctx, "ghost"))

	require.Len(t, archiver.archived, 1)
	assert.Equal(t, models.SessionClosed, archiver.archived[0].Status)

	_, err := store.Get(ctx, created.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestStore_SnapshotIsolation(t *testing.T) {
	store, _, _ := newTestStore(t, time.Hour)
	ctx := context.Background()
	created := store.Create(ctx, "")

	require.NoError(t, store.AppendMessage(ctx, created.ID, models.Message{Role: models.RoleUser, Content: "hi"}))

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	got.Messages[0].Content = "mutated"

	again, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Messages[0].Content, "callers must not be able to mutate stored state")
}

// Package session holds active conversations in memory with TTL-based
// expiry and archives closed ones to the configured database.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/kubechat-dev/kubechat/internal/errors"
	"github.com/kubechat-dev/kubechat/internal/metrics"
	"github.com/kubechat-dev/kubechat/internal/models"
)

// Archiver persists sessions that leave the store.
type Archiver interface {
	Archive(ctx context.Context, session *models.Session) error
}

// Store keeps active sessions in memory. Expiry is lazy: an expired session
// is evicted when next touched, there is no background sweeper. Message
// appends are serialized per session; distinct sessions never contend.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	ttl      time.Duration
	archiver Archiver
	logger   *zap.Logger
	now      func() time.Time
}

type entry struct {
	mu         sync.Mutex
	session    *models.Session
	turnActive bool
}

// NewStore creates a store with the given TTL. The archiver may be nil;
// evicted and closed sessions are then dropped.
func NewStore(ttl time.Duration, archiver Archiver, logger *zap.Logger) *Store {
	return &Store{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		archiver: archiver,
		logger:   logger,
		now:      time.Now,
	}
}

// Create starts a new active session.
func (s *Store) Create(ctx context.Context, title string) *models.Session {
	now := s.now().UTC()
	session := &models.Session{
		ID:        uuid.NewString(),
		Title:     title,
		Status:    models.SessionActive,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []models.Message{},
	}

	s.mu.Lock()
	s.sessions[session.ID] = &entry{session: session}
	s.mu.Unlock()

	metrics.ActiveSessions.Inc()
	s.logger.Info("session created", zap.String("session_id", session.ID))
	return snapshot(session)
}

// Get returns a copy of the session. An expired session is evicted and
// reported as not found.
func (s *Store) Get(ctx context.Context, id string) (*models.Session, error) {
	e, err := s.touch(ctx, id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(e.session), nil
}

// List returns copies of all live sessions, evicting any that expired.
func (s *Store) List(ctx context.Context) []*models.Session {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	out := make([]*models.Session, 0, len(ids))
	for _, id := range ids {
		if session, err := s.Get(ctx, id); err == nil {
			out = append(out, session)
		}
	}
	return out
}

// AppendMessage adds a message to the session and bumps UpdatedAt. Appends
// to the same session are serialized.
func (s *Store) AppendMessage(ctx context.Context, id string, msg models.Message) error {
	e, err := s.touch(ctx, id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.Status != models.SessionActive {
		return apperrors.New(apperrors.ErrCodeValidation, "session is closed", nil)
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now().UTC()
	}
	e.session.Messages = append(e.session.Messages, msg)
	e.session.UpdatedAt = s.now().UTC()
	return nil
}

// BeginTurn acquires the session's turn slot. A second turn on the same
// session is rejected, not queued.
func (s *Store) BeginTurn(ctx context.Context, id string) error {
	e, err := s.touch(ctx, id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.turnActive {
		return apperrors.New(apperrors.ErrCodeTurnInProgress, "a turn is already running on this session", nil)
	}
	e.turnActive = true
	return nil
}

// EndTurn releases the session's turn slot. Safe to call after eviction.
func (s *Store) EndTurn(id string) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return
	}

	e.mu.Lock()
	e.turnActive = false
	e.mu.Unlock()
}

// Close marks the session closed, archives it, and removes it from the
// store. Returns false when the session is unknown or already closed.
func (s *Store) Close(ctx context.Context, id string) bool {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}

	e.mu.Lock()
	e.session.Status = models.SessionClosed
	e.session.UpdatedAt = s.now().UTC()
	session := snapshot(e.session)
	e.mu.Unlock()

	metrics.ActiveSessions.Dec()
	s.archive(ctx, session)
	s.logger.Info("session closed", zap.String("session_id", id))
	return true
}

// touch resolves a live entry, evicting it first if expired.
func (s *Store) touch(ctx context.Context, id string) (*entry, error) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok && s.expired(e) {
		delete(s.sessions, id)
		s.mu.Unlock()

		metrics.ActiveSessions.Dec()
		e.mu.Lock()
		e.session.Status = models.SessionClosed
		expiredCopy := snapshot(e.session)
		e.mu.Unlock()

		s.archive(ctx, expiredCopy)
		s.logger.Info("session expired", zap.String("session_id", id))
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "session not found", nil)
	}
	s.mu.Unlock()

	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "session not found", nil)
	}
	return e, nil
}

// expired keys the TTL to UpdatedAt, which only message appends bump. Reads
// do not keep a session alive.
func (s *Store) expired(e *entry) bool {
	if s.ttl <= 0 {
		return false
	}
	e.mu.Lock()
	updated := e.session.UpdatedAt
	e.mu.Unlock()
	return s.now().Sub(updated) > s.ttl
}

func (s *Store) archive(ctx context.Context, session *models.Session) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Archive(ctx, session); err != nil {
		s.logger.Error("failed to archive session",
			zap.String("session_id", session.ID), zap.Error(err))
	}
}

func snapshot(session *models.Session) *models.Session {
	copied := *session
	copied.Messages = make([]models.Message, len(session.Messages))
	copy(copied.Messages, session.Messages)
	return &copied
}

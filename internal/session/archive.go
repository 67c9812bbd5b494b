package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kubechat-dev/kubechat/internal/config"
	apperrors "github.com/kubechat-dev/kubechat/internal/errors"
	"github.com/kubechat-dev/kubechat/internal/models"
)

// ArchivedSession is the database row for a session that left the store.
// Messages are stored as a JSON document; the archive is written once and
// read for audit, not queried per message.
type ArchivedSession struct {
	ID        string `gorm:"primaryKey"`
	Title     string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  time.Time
	Messages  string `gorm:"type:text"`
}

// Archive is the gorm-backed session archive.
type Archive struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewArchive opens the configured database and migrates the archive table.
func NewArchive(cfg config.StorageConfig, logger *zap.Logger) (*Archive, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeUpstream, "failed to open session archive", err)
	}

	if err := db.AutoMigrate(&ArchivedSession{}); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeUpstream, "failed to migrate session archive", err)
	}

	return &Archive{db: db, logger: logger}, nil
}

// Archive upserts the session row.
func (a *Archive) Archive(ctx context.Context, session *models.Session) error {
	encoded, err := json.Marshal(session.Messages)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeInternal, "failed to encode session messages", err)
	}

	row := ArchivedSession{
		ID:        session.ID,
		Title:     session.Title,
		Status:    string(session.Status),
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		ClosedAt:  time.Now().UTC(),
		Messages:  string(encoded),
	}

	if err := a.db.WithContext(ctx).Save(&row).Error; err != nil {
		return apperrors.New(apperrors.ErrCodeUpstream, "failed to write session archive", err)
	}
	return nil
}

// Load reads one archived session back, mostly for audit tooling and tests.
func (a *Archive) Load(ctx context.Context, id string) (*models.Session, error) {
	var row ArchivedSession
	if err := a.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "archived session not found", err)
	}

	var messages []models.Message
	if err := json.Unmarshal([]byte(row.Messages), &messages); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeInternal, "failed to decode archived messages", err)
	}

	return &models.Session{
		ID:        row.ID,
		Title:     row.Title,
		Status:    models.SessionStatus(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Messages:  messages,
	}, nil
}

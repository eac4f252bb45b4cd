package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"futuresbot/src/database"
	"futuresbot/src/model"
)

type BotStatusRepository interface {
	Get(ctx context.Context, userID string) (*model.BotStatus, error)
	Patch(ctx context.Context, userID string, patch model.BotStatusPatch) error
	ListRunning(ctx context.Context) ([]string, error)
}

type GormBotStatusRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewBotStatusRepository() *GormBotStatusRepository {
	return NewBotStatusRepositoryWithDB(database.MainDB)
}

func NewBotStatusRepositoryWithDB(db *gorm.DB) *GormBotStatusRepository {
	return &GormBotStatusRepository{db: db, now: time.Now}
}

// Get returns the stored status for userID, or (nil, nil) when none exists.
func (r *GormBotStatusRepository) Get(ctx context.Context, userID string) (*model.BotStatus, error) {
	var s model.BotStatus
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Patch merges the provided fields into the user's status in a single statement.
// Fields absent from the patch keep their stored value; last_update is always refreshed.
func (r *GormBotStatusRepository) Patch(ctx context.Context, userID string, patch model.BotStatusPatch) error {
	now := r.now().UTC()

	row := model.BotStatus{UserID: userID}
	patch.Apply(&row, now)

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(patch.Columns(now)),
		}).
		Create(&row).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "BotStatusRepository",
			"op":      "Patch",
			"user_id": userID,
		}).WithError(err).Error("Failed to patch bot status")
	}
	return err
}

// ListRunning returns the ids of users whose stored status says the bot is running.
func (r *GormBotStatusRepository) ListRunning(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.BotStatus{}).
		Where("is_running = ?", true).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

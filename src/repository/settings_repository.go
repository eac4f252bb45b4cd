package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"futuresbot/src/database"
	"futuresbot/src/model"
)

type SettingsRepository interface {
	Get(ctx context.Context, userID string) (*model.TradingSettings, error)
	Upsert(ctx context.Context, s *model.TradingSettings) error
}

type GormSettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository() *GormSettingsRepository {
	return &GormSettingsRepository{db: database.MainDB}
}

func NewSettingsRepositoryWithDB(db *gorm.DB) *GormSettingsRepository {
	return &GormSettingsRepository{db: db}
}

// Get returns the stored settings for userID.
// Returns (nil, nil) if the user never saved any.
func (r *GormSettingsRepository) Get(ctx context.Context, userID string) (*model.TradingSettings, error) {
	var s model.TradingSettings
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":    "SettingsRepository",
			"op":      "Get",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch trading settings")
		return nil, err
	}
	return &s, nil
}

// Upsert writes the full settings record for s.UserID.
func (r *GormSettingsRepository) Upsert(ctx context.Context, s *model.TradingSettings) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(s).Error
}

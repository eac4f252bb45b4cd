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

type APIKeysRepository interface {
	Get(ctx context.Context, userID string) (*model.APIKeys, error)
	Upsert(ctx context.Context, keys *model.APIKeys) error
}

type GormAPIKeysRepository struct {
	db *gorm.DB
}

func NewAPIKeysRepository() *GormAPIKeysRepository {
	return &GormAPIKeysRepository{db: database.MainDB}
}

func NewAPIKeysRepositoryWithDB(db *gorm.DB) *GormAPIKeysRepository {
	return &GormAPIKeysRepository{db: db}
}

// Get returns the credential blob for userID, or (nil, nil) when none is stored.
func (r *GormAPIKeysRepository) Get(ctx context.Context, userID string) (*model.APIKeys, error) {
	var keys model.APIKeys
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&keys).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":    "APIKeysRepository",
				"op":      "Get",
				"user_id": userID,
			}).Debug("API keys not found")
			return nil, nil
		}
		return nil, err
	}
	return &keys, nil
}

// Upsert creates the credential blob or replaces the key material if one exists.
func (r *GormAPIKeysRepository) Upsert(ctx context.Context, keys *model.APIKeys) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"api_key",
				"api_secret",
				"encrypted",
				"updated_at",
			}),
		}).
		Create(keys).Error
}

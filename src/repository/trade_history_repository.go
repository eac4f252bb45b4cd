package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"futuresbot/src/database"
	"futuresbot/src/model"
)

type TradeHistoryRepository interface {
	Create(ctx context.Context, rec *model.TradeHistory) error
	DeleteOlderThan(ctx context.Context, userID string, cutoff time.Time) (int64, error)
	DistinctUserIDs(ctx context.Context) ([]string, error)
}

type GormTradeHistoryRepository struct {
	db *gorm.DB
}

func NewTradeHistoryRepository() *GormTradeHistoryRepository {
	return &GormTradeHistoryRepository{db: database.MainDB}
}

func NewTradeHistoryRepositoryWithDB(db *gorm.DB) *GormTradeHistoryRepository {
	return &GormTradeHistoryRepository{db: db}
}

func (r *GormTradeHistoryRepository) Create(ctx context.Context, rec *model.TradeHistory) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// DeleteOlderThan removes userID's trade records with a timestamp before cutoff.
func (r *GormTradeHistoryRepository) DeleteOlderThan(ctx context.Context, userID string, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND timestamp < ?", userID, cutoff).
		Delete(&model.TradeHistory{})
	return res.RowsAffected, res.Error
}

func (r *GormTradeHistoryRepository) DistinctUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.TradeHistory{}).
		Distinct().
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

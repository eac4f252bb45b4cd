package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"futuresbot/src/database"
	"futuresbot/src/model"
)

type ActivityLogRepository interface {
	Append(ctx context.Context, entry *model.ActivityLogEntry) error
	ListRecent(ctx context.Context, userID string, limit int) ([]model.ActivityLogEntry, error)
	DeleteOlderThan(ctx context.Context, userID string, cutoff time.Time) (int64, error)
	DistinctUserIDs(ctx context.Context) ([]string, error)
}

type GormActivityLogRepository struct {
	db *gorm.DB
}

func NewActivityLogRepository() *GormActivityLogRepository {
	return &GormActivityLogRepository{db: database.MainDB}
}

func NewActivityLogRepositoryWithDB(db *gorm.DB) *GormActivityLogRepository {
	return &GormActivityLogRepository{db: db}
}

func (r *GormActivityLogRepository) Append(ctx context.Context, entry *model.ActivityLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListRecent returns the newest entries first, by insertion order.
func (r *GormActivityLogRepository) ListRecent(ctx context.Context, userID string, limit int) ([]model.ActivityLogEntry, error) {
	var out []model.ActivityLogEntry
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

func (r *GormActivityLogRepository) DeleteOlderThan(ctx context.Context, userID string, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND timestamp < ?", userID, cutoff).
		Delete(&model.ActivityLogEntry{})
	return res.RowsAffected, res.Error
}

func (r *GormActivityLogRepository) DistinctUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.ActivityLogEntry{}).
		Distinct().
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"futuresbot/src/database"
	"futuresbot/src/model"
)

type PositionRepository interface {
	Create(ctx context.Context, p *model.Position) error
	FindOpenBySymbol(ctx context.Context, userID, symbol string) (*model.Position, error)
	ListOpen(ctx context.Context, userID string) ([]model.Position, error)
	UpdateMarket(ctx context.Context, id string, currentPrice, pnl float64) error
	Close(ctx context.Context, id string, exitPrice, pnl float64, closedAt time.Time) (bool, error)
}

type GormPositionRepository struct {
	db *gorm.DB
}

func NewPositionRepository() *GormPositionRepository {
	return &GormPositionRepository{db: database.MainDB}
}

func NewPositionRepositoryWithDB(db *gorm.DB) *GormPositionRepository {
	return &GormPositionRepository{db: db}
}

// Create inserts an open position. A second non-closed position for the same
// (user_id, symbol) is rejected by ux_positions_open_symbol and reported as
// model.ErrDuplicatePosition.
func (r *GormPositionRepository) Create(ctx context.Context, p *model.Position) error {
	err := r.db.WithContext(ctx).Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", model.ErrDuplicatePosition, p.Symbol)
	}
	return err
}

// FindOpenBySymbol returns the non-closed position for (userID, symbol).
// Returns (nil, nil) if there is none.
func (r *GormPositionRepository) FindOpenBySymbol(ctx context.Context, userID, symbol string) (*model.Position, error) {
	var p model.Position
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ? AND status <> ?", userID, symbol, model.PositionStatusClosed).
		Take(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "FindOpenBySymbol",
			"user_id": userID,
			"symbol":  symbol,
		}).WithError(err).Error("Failed to fetch open position")
		return nil, err
	}
	return &p, nil
}

func (r *GormPositionRepository) ListOpen(ctx context.Context, userID string) ([]model.Position, error) {
	var out []model.Position
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status <> ?", userID, model.PositionStatusClosed).
		Order("timestamp ASC").
		Find(&out).Error
	return out, err
}

// UpdateMarket refreshes the mark price and unrealized PnL of an open position.
func (r *GormPositionRepository) UpdateMarket(ctx context.Context, id string, currentPrice, pnl float64) error {
	return r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ? AND status <> ?", id, model.PositionStatusClosed).
		Updates(map[string]interface{}{
			"current_price": currentPrice,
			"pnl":           pnl,
			"updated_at":    time.Now().UTC(),
		}).Error
}

// Close marks the position closed. It reports false when the position was
// already closed or does not exist.
func (r *GormPositionRepository) Close(ctx context.Context, id string, exitPrice, pnl float64, closedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ? AND status <> ?", id, model.PositionStatusClosed).
		Updates(map[string]interface{}{
			"status":        model.PositionStatusClosed,
			"current_price": exitPrice,
			"pnl":           pnl,
			"closed_at":     closedAt,
			"updated_at":    closedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

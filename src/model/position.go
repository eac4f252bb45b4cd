package model

import "time"

// Side is the direction of a position. The signal engine emits the same values.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// OrderSide is the exchange order direction.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// EntrySide returns the order side that opens a position in this direction.
func (s Side) EntrySide() OrderSide {
	if s == SideShort {
		return OrderSideSell
	}
	return OrderSideBuy
}

// CloseSide returns the order side that reduces a position in this direction.
func (s Side) CloseSide() OrderSide {
	if s == SideShort {
		return OrderSideBuy
	}
	return OrderSideSell
}

func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)

// Position is stored under users/{id}/positions/{positionId}.
// At most one non-closed row exists per (user_id, symbol); see migrations.
type Position struct {
	ID              string     `gorm:"primaryKey;size:64" json:"id"`
	UserID          string     `gorm:"size:128;not null;index:idx_positions_user_symbol,priority:1" json:"userId"`
	ExchangeOrderID string     `gorm:"size:64" json:"exchangeOrderId"`
	Symbol          string     `gorm:"size:32;not null;index:idx_positions_user_symbol,priority:2" json:"symbol"`
	Side            Side       `gorm:"size:8;not null" json:"side"`
	Size            float64    `gorm:"not null" json:"size"`
	EntryPrice      float64    `json:"entryPrice"`
	CurrentPrice    float64    `json:"currentPrice"`
	TPPrice         float64    `gorm:"column:tp_price" json:"tpPrice"`
	SLPrice         float64    `gorm:"column:sl_price" json:"slPrice"`
	PnL             float64    `gorm:"column:pnl" json:"pnl"`
	Status          string     `gorm:"size:16;not null;index" json:"status"`
	Timestamp       time.Time  `gorm:"not null" json:"timestamp"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	ClosedAt        *time.Time `json:"closedAt,omitempty"`
}

func (Position) TableName() string {
	return "positions"
}

func (p *Position) IsOpen() bool {
	return p.Status != PositionStatusClosed
}

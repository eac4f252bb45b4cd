package model

import "time"

type ActivityType string

const (
	ActivityInfo    ActivityType = "info"
	ActivitySuccess ActivityType = "success"
	ActivityWarning ActivityType = "warning"
	ActivityError   ActivityType = "error"
)

// ActivityLogEntry is stored under users/{id}/activityLogs/{key}. Entries are append-only;
// ID is the insertion sequence and Key the push-generated identifier.
type ActivityLogEntry struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"-"`
	Key       string         `gorm:"size:64;not null;uniqueIndex" json:"id"`
	UserID    string         `gorm:"size:128;not null;index:idx_activity_user_ts,priority:1" json:"userId"`
	Type      ActivityType   `gorm:"size:16;not null" json:"type"`
	Message   string         `gorm:"size:1024;not null" json:"message"`
	Details   map[string]any `gorm:"serializer:json;type:text" json:"details,omitempty"`
	Symbol    *string        `gorm:"size:32" json:"symbol,omitempty"`
	Timestamp time.Time      `gorm:"not null;index:idx_activity_user_ts,priority:2" json:"timestamp"`
}

func (ActivityLogEntry) TableName() string {
	return "activity_logs"
}

// TradeHistory is stored under users/{id}/tradeHistory/{id} and is subject to the retention sweep.
type TradeHistory struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	UserID     string    `gorm:"size:128;not null;index:idx_trade_history_user_ts,priority:1" json:"userId"`
	PositionID string    `gorm:"size:64;index" json:"positionId"`
	Symbol     string    `gorm:"size:32;not null" json:"symbol"`
	Side       Side      `gorm:"size:8;not null" json:"side"`
	Size       float64   `json:"size"`
	EntryPrice float64   `json:"entryPrice"`
	ExitPrice  float64   `json:"exitPrice"`
	PnL        float64   `gorm:"column:pnl" json:"pnl"`
	Timestamp  time.Time `gorm:"not null;index:idx_trade_history_user_ts,priority:2" json:"timestamp"`
}

func (TradeHistory) TableName() string {
	return "trade_histories"
}

// APIKeys is the credential blob stored under users/{id}/apiKeys.
// Encrypted blobs are secretbox sealed, the rest base64 encoded.
type APIKeys struct {
	UserID    string    `gorm:"primaryKey;size:128" json:"userId"`
	APIKey    string    `gorm:"column:api_key;type:text;not null" json:"-"`
	APISecret string    `gorm:"column:api_secret;type:text;not null" json:"-"`
	Encrypted bool      `gorm:"not null" json:"encrypted"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (APIKeys) TableName() string {
	return "api_keys"
}

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

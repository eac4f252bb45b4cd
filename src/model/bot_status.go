package model

import "time"

// BotStatus is stored under users/{id}/botStatus. It is only ever written through a BotStatusPatch.
type BotStatus struct {
	UserID          string    `gorm:"primaryKey;size:128" json:"userId"`
	IsRunning       bool      `gorm:"not null;index" json:"isRunning"`
	ActivePositions int       `gorm:"not null" json:"activePositions"`
	LastUpdate      time.Time `json:"lastUpdate"`
	Error           *string   `gorm:"type:text" json:"error,omitempty"`
}

func (BotStatus) TableName() string {
	return "bot_statuses"
}

// BotStatusPatch carries the fields a writer wants to change. Nil fields are left untouched;
// LastUpdate is always refreshed.
type BotStatusPatch struct {
	IsRunning       *bool
	ActivePositions *int
	Error           *string
	ClearError      bool
}

// Columns returns the column assignments for the patch, stamped with now.
func (p BotStatusPatch) Columns(now time.Time) map[string]interface{} {
	cols := map[string]interface{}{"last_update": now}
	if p.IsRunning != nil {
		cols["is_running"] = *p.IsRunning
	}
	if p.ActivePositions != nil {
		cols["active_positions"] = *p.ActivePositions
	}
	if p.ClearError {
		cols["error"] = nil
	} else if p.Error != nil {
		cols["error"] = *p.Error
	}
	return cols
}

// Apply merges the patch into s.
func (p BotStatusPatch) Apply(s *BotStatus, now time.Time) {
	if p.IsRunning != nil {
		s.IsRunning = *p.IsRunning
	}
	if p.ActivePositions != nil {
		s.ActivePositions = *p.ActivePositions
	}
	if p.ClearError {
		s.Error = nil
	} else if p.Error != nil {
		msg := *p.Error
		s.Error = &msg
	}
	s.LastUpdate = now
}

// DefaultBotStatus is what a user without a stored status sees.
func DefaultBotStatus(userID string, now time.Time) BotStatus {
	return BotStatus{UserID: userID, LastUpdate: now}
}

func Bool(v bool) *bool       { return &v }
func Int(v int) *int          { return &v }
func String(v string) *string { return &v }

package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Timeframe is a candle interval accepted by the exchange.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

const (
	DefaultLeverage  = 10
	DefaultTimeframe = Timeframe15m
	MaxRiskPercent   = 10.0
)

var allowedLeverage = map[int]struct{}{5: {}, 10: {}, 20: {}, 50: {}, 100: {}}

func (t Timeframe) Valid() bool {
	switch t {
	case Timeframe1m, Timeframe5m, Timeframe15m, Timeframe30m, Timeframe1h, Timeframe4h, Timeframe1d:
		return true
	}
	return false
}

func IsAllowedLeverage(v int) bool {
	_, ok := allowedLeverage[v]
	return ok
}

// TradingSettings is stored under users/{id}/settings and edited by the dashboard.
type TradingSettings struct {
	UserID         string    `gorm:"primaryKey;size:128" json:"userId"`
	Leverage       int       `json:"leverage"`
	RiskPercentage float64   `json:"riskPercentage"`
	TPPercentage   float64   `gorm:"column:tp_percentage" json:"tpPercentage"`
	SLPercentage   float64   `gorm:"column:sl_percentage" json:"slPercentage"`
	Symbols        []string  `gorm:"serializer:json;type:text" json:"symbols"`
	Timeframe      Timeframe `gorm:"size:8" json:"timeframe"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (TradingSettings) TableName() string {
	return "trading_settings"
}

// WithDefaults fills the values the dashboard may leave unset.
func (s TradingSettings) WithDefaults() TradingSettings {
	if s.Leverage == 0 {
		s.Leverage = DefaultLeverage
	}
	if s.Timeframe == "" {
		s.Timeframe = DefaultTimeframe
	}
	return s
}

// NormalizedSymbols returns the symbol set upper-cased, de-duplicated and sorted.
func (s TradingSettings) NormalizedSymbols() []string {
	seen := make(map[string]struct{}, len(s.Symbols))
	out := make([]string, 0, len(s.Symbols))
	for _, sym := range s.Symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Validate reports ErrValidation when there is nothing to trade and ErrFatal when
// the stored values are outside what the dashboard can produce.
func (s TradingSettings) Validate() error {
	if len(s.NormalizedSymbols()) == 0 {
		return fmt.Errorf("%w: no symbols configured", ErrValidation)
	}
	if !IsAllowedLeverage(s.Leverage) {
		return fmt.Errorf("%w: malformed settings: leverage %d not allowed", ErrFatal, s.Leverage)
	}
	if s.RiskPercentage <= 0 || s.RiskPercentage > MaxRiskPercent {
		return fmt.Errorf("%w: malformed settings: risk percentage %.2f out of range", ErrFatal, s.RiskPercentage)
	}
	if s.TPPercentage <= 0 || s.SLPercentage <= 0 {
		return fmt.Errorf("%w: malformed settings: tp %.2f / sl %.2f must be positive", ErrFatal, s.TPPercentage, s.SLPercentage)
	}
	if !s.Timeframe.Valid() {
		return fmt.Errorf("%w: malformed settings: timeframe %q", ErrFatal, s.Timeframe)
	}
	return nil
}

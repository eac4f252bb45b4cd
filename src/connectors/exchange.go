package connectors

import (
	"context"

	"futuresbot/src/model"
)

// Credentials are the decoded exchange API key pair of one user.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Balance maps a currency to its free amount.
type Balance map[string]float64

// ExchangePosition is a position as reported by the exchange.
type ExchangePosition struct {
	Symbol        string
	Side          model.Side
	Size          float64
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnl float64
}

type OrderResult struct {
	OrderID       string
	ClientOrderID string
	Status        string
	Filled        float64
	Average       float64
}

// ExchangeClient is the per-user handle onto a derivatives exchange.
// Every call honours ctx cancellation and deadline.
type ExchangeClient interface {
	FetchBalance(ctx context.Context) (Balance, error)
	FetchOHLCV(ctx context.Context, symbol string, timeframe model.Timeframe, limit int) ([]model.Candle, error)
	FetchPositions(ctx context.Context) ([]ExchangePosition, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	CreateMarketOrder(ctx context.Context, symbol string, side model.OrderSide, quantity float64) (*OrderResult, error)
	CreateLimitOrder(ctx context.Context, symbol string, side model.OrderSide, quantity, price float64, reduceOnly bool) (*OrderResult, error)
	CreateStopMarketOrder(ctx context.Context, symbol string, side model.OrderSide, quantity, triggerPrice float64, reduceOnly bool) (*OrderResult, error)
	Close() error
}

// ClientFactory builds an exchange handle for a user's credentials.
type ClientFactory func(creds Credentials) (ExchangeClient, error)

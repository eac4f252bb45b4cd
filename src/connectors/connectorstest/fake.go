// Package connectorstest provides an in-memory ExchangeClient for tests.
package connectorstest

import (
	"context"
	"fmt"
	"sync"

	"futuresbot/src/connectors"
	"futuresbot/src/model"
)

type Call struct {
	Method     string
	Symbol     string
	Side       model.OrderSide
	Quantity   float64
	Price      float64
	Leverage   int
	ReduceOnly bool
}

// FakeClient records every call and answers from its fields.
// Zero values mean success with empty data.
type FakeClient struct {
	mu sync.Mutex

	Balance      connectors.Balance
	BalanceErr   error
	Candles      map[string][]model.Candle
	CandlesErr   error
	Positions    []connectors.ExchangePosition
	PositionsErr error
	LeverageErr  error
	MarketErr    error
	LimitErr     error
	StopErr      error

	// FillPrice is the average price reported for market orders.
	FillPrice float64
	// ZeroFill makes market orders report no executed quantity.
	ZeroFill bool

	// Gate, when set, blocks FetchOHLCV until it is closed or ctx ends.
	Gate chan struct{}

	calls  []Call
	closed bool
	seq    int
}

var _ connectors.ExchangeClient = (*FakeClient)(nil)

func (f *FakeClient) record(c Call) {
	f.calls = append(f.calls, c)
}

func (f *FakeClient) FetchBalance(ctx context.Context) (connectors.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Method: "FetchBalance"})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.BalanceErr != nil {
		return nil, f.BalanceErr
	}
	out := connectors.Balance{}
	for k, v := range f.Balance {
		out[k] = v
	}
	return out, nil
}

func (f *FakeClient) FetchOHLCV(ctx context.Context, symbol string, timeframe model.Timeframe, limit int) ([]model.Candle, error) {
	f.mu.Lock()
	gate := f.Gate
	f.record(Call{Method: "FetchOHLCV", Symbol: symbol})
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CandlesErr != nil {
		return nil, f.CandlesErr
	}
	return append([]model.Candle(nil), f.Candles[symbol]...), nil
}

func (f *FakeClient) FetchPositions(ctx context.Context) ([]connectors.ExchangePosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Method: "FetchPositions"})
	if f.PositionsErr != nil {
		return nil, f.PositionsErr
	}
	return append([]connectors.ExchangePosition(nil), f.Positions...), nil
}

func (f *FakeClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Method: "SetLeverage", Symbol: symbol, Leverage: leverage})
	return f.LeverageErr
}

func (f *FakeClient) CreateMarketOrder(ctx context.Context, symbol string, side model.OrderSide, quantity float64) (*connectors.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Method: "CreateMarketOrder", Symbol: symbol, Side: side, Quantity: quantity})
	if f.MarketErr != nil {
		return nil, f.MarketErr
	}
	filled := quantity
	if f.ZeroFill {
		filled = 0
	}
	return &connectors.OrderResult{OrderID: f.nextID(), Status: "FILLED", Filled: filled, Average: f.FillPrice}, nil
}

func (f *FakeClient) CreateLimitOrder(ctx context.Context, symbol string, side model.OrderSide, quantity, price float64, reduceOnly bool) (*connectors.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Method: "CreateLimitOrder", Symbol: symbol, Side: side, Quantity: quantity, Price: price, ReduceOnly: reduceOnly})
	if f.LimitErr != nil {
		return nil, f.LimitErr
	}
	return &connectors.OrderResult{OrderID: f.nextID(), Status: "NEW"}, nil
}

func (f *FakeClient) CreateStopMarketOrder(ctx context.Context, symbol string, side model.OrderSide, quantity, triggerPrice float64, reduceOnly bool) (*connectors.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Method: "CreateStopMarketOrder", Symbol: symbol, Side: side, Quantity: quantity, Price: triggerPrice, ReduceOnly: reduceOnly})
	if f.StopErr != nil {
		return nil, f.StopErr
	}
	return &connectors.OrderResult{OrderID: f.nextID(), Status: "NEW"}, nil
}

func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakeClient) nextID() string {
	f.seq++
	return fmt.Sprintf("fake-%d", f.seq)
}

// Calls returns a copy of the recorded calls.
func (f *FakeClient) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded calls to method.
func (f *FakeClient) CallsTo(method string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// OrderCalls counts leverage and order placement calls.
func (f *FakeClient) OrderCalls() int {
	n := 0
	for _, c := range f.Calls() {
		switch c.Method {
		case "SetLeverage", "CreateMarketOrder", "CreateLimitOrder", "CreateStopMarketOrder":
			n++
		}
	}
	return n
}

func (f *FakeClient) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeClient) SetBalanceErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BalanceErr = err
}

func (f *FakeClient) SetPositions(p []connectors.ExchangePosition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Positions = p
}

// Factory returns a ClientFactory that always hands out client.
func Factory(client connectors.ExchangeClient) connectors.ClientFactory {
	return func(connectors.Credentials) (connectors.ExchangeClient, error) {
		return client, nil
	}
}

// FactoryByKey hands out the client registered under the credential's API key.
func FactoryByKey(clients map[string]connectors.ExchangeClient) connectors.ClientFactory {
	return func(creds connectors.Credentials) (connectors.ExchangeClient, error) {
		c, ok := clients[creds.APIKey]
		if !ok {
			return nil, fmt.Errorf("%w: unknown api key %q", model.ErrAuth, creds.APIKey)
		}
		return c, nil
	}
}

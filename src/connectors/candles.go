package connectors

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"

	"futuresbot/src/model"
)

// klineAPI is the part of goex.FutureRestAPI the candle source needs.
type klineAPI interface {
	GetKlineRecords(contractType string, currency goex.CurrencyPair, period goex.KlinePeriod, size int, optional ...goex.OptionalParameter) ([]goex.FutureKline, error)
}

// CandleSource loads USDT-M perpetual OHLCV bars from the futures API through
// goex. The goex call is not context aware, so it runs in its own goroutine and
// the caller stops waiting when ctx ends.
type CandleSource struct {
	api   klineAPI
	quote string
}

func NewCandleSource(cfg Config) *CandleSource {
	apiConfig := &goex.APIConfig{
		HttpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Endpoint:   strings.TrimRight(cfg.FuturesBaseURL, "/"),
	}
	return &CandleSource{api: binance.NewBinanceSwap(apiConfig), quote: cfg.QuoteCurrency}
}

func (s *CandleSource) Fetch(ctx context.Context, symbol string, timeframe model.Timeframe, limit int) ([]model.Candle, error) {
	period, err := goexPeriod(timeframe)
	if err != nil {
		return nil, err
	}
	pair, err := s.pair(symbol)
	if err != nil {
		return nil, err
	}

	type result struct {
		klines []goex.FutureKline
		err    error
	}
	done := make(chan result, 1)
	go func() {
		k, err := s.api.GetKlineRecords(goex.SWAP_USDT_CONTRACT, pair, period, limit, goex.OptionalParameter{})
		done <- result{klines: k, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: fetch candles %s: %w", model.ErrTransient, symbol, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("%w: fetch candles %s: %w", model.ErrTransient, symbol, r.err)
		}
		return toCandles(r.klines), nil
	}
}

func (s *CandleSource) pair(symbol string) (goex.CurrencyPair, error) {
	symbol = strings.ToUpper(symbol)
	quote := s.quote
	if quote == "" {
		quote = "USDT"
	}
	if !strings.HasSuffix(symbol, quote) || len(symbol) == len(quote) {
		return goex.CurrencyPair{}, fmt.Errorf("%w: symbol %q is not quoted in %s", model.ErrValidation, symbol, quote)
	}
	base := strings.TrimSuffix(symbol, quote)
	return goex.NewCurrencyPair(goex.Currency{Symbol: base}, goex.Currency{Symbol: quote}), nil
}

func toCandles(klines []goex.FutureKline) []model.Candle {
	out := make([]model.Candle, 0, len(klines))
	for _, fk := range klines {
		if fk.Kline == nil {
			continue
		}
		k := fk.Kline
		out = append(out, model.Candle{
			OpenTime: time.Unix(k.Timestamp, 0).UTC(),
			Open:     k.Open,
			High:     k.High,
			Low:      k.Low,
			Close:    k.Close,
			Volume:   k.Vol,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out
}

func goexPeriod(tf model.Timeframe) (goex.KlinePeriod, error) {
	switch tf {
	case model.Timeframe1m:
		return goex.KLINE_PERIOD_1MIN, nil
	case model.Timeframe5m:
		return goex.KLINE_PERIOD_5MIN, nil
	case model.Timeframe15m:
		return goex.KLINE_PERIOD_15MIN, nil
	case model.Timeframe30m:
		return goex.KLINE_PERIOD_30MIN, nil
	case model.Timeframe1h:
		return goex.KLINE_PERIOD_1H, nil
	case model.Timeframe4h:
		return goex.KLINE_PERIOD_4H, nil
	case model.Timeframe1d:
		return goex.KLINE_PERIOD_1DAY, nil
	}
	return 0, fmt.Errorf("%w: unsupported timeframe %q", model.ErrValidation, tf)
}

package connectors

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"futuresbot/src/model"
	"futuresbot/src/risk"
	"futuresbot/src/tp_sl"
)

const (
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 5 * time.Second
)

var ErrClientClosed = errors.New("exchange client closed")

type candleFetcher interface {
	Fetch(ctx context.Context, symbol string, timeframe model.Timeframe, limit int) ([]model.Candle, error)
}

type symbolFilters struct {
	stepSize decimal.Decimal
	tickSize decimal.Decimal
}

// BinanceFutures is a signed REST client for Binance USDT-M perpetual futures.
type BinanceFutures struct {
	creds   Credentials
	cfg     Config
	read    *resty.Client // idempotent calls, retried
	write   *resty.Client // orders and leverage, never retried
	limiter *rate.Limiter
	candles candleFetcher
	now     func() time.Time
	closed  atomic.Bool

	mu      sync.Mutex
	filters map[string]symbolFilters
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == http.StatusTooManyRequests {
		return true
	}
	if code == http.StatusRequestTimeout {
		return true
	}
	return false
}

func NewBinanceFutures(cfg Config, creds Credentials, candles candleFetcher) (*BinanceFutures, error) {
	if creds.APIKey == "" || creds.APISecret == "" {
		return nil, fmt.Errorf("%w: empty api key or secret", model.ErrAuth)
	}
	if cfg.FuturesBaseURL == "" {
		cfg.FuturesBaseURL = "https://fapi.binance.com"
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}

	retryCount := cfg.RetryAttempts - 1
	if retryCount < 0 {
		retryCount = 0
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = int(math.Max(1, math.Ceil(cfg.RequestsPerSecond)))
	}

	return &BinanceFutures{
		creds: creds,
		cfg:   cfg,
		read: resty.New().
			SetBaseURL(cfg.FuturesBaseURL).
			SetTimeout(cfg.HTTPTimeout).
			SetRetryCount(retryCount).
			SetRetryWaitTime(defaultRetryBaseDelay).
			SetRetryMaxWaitTime(defaultRetryMaxBackoff).
			AddRetryCondition(isRetryableResp),
		write: resty.New().
			SetBaseURL(cfg.FuturesBaseURL).
			SetTimeout(cfg.HTTPTimeout),
		limiter: rate.NewLimiter(limit, burst),
		candles: candles,
		now:     time.Now,
		filters: map[string]symbolFilters{},
	}, nil
}

// NewBinanceFactory returns a ClientFactory that shares one candle source across users.
func NewBinanceFactory(cfg Config, candles candleFetcher) ClientFactory {
	return func(creds Credentials) (ExchangeClient, error) {
		return NewBinanceFutures(cfg, creds, candles)
	}
}

func sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// do sends one request. Signed requests carry timestamp, recvWindow and the
// HMAC-SHA256 signature as the last query parameter.
func (c *BinanceFutures) do(ctx context.Context, client *resty.Client, method, path string, params url.Values, signed bool, out interface{}) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", model.ErrTransient, err)
	}

	if params == nil {
		params = url.Values{}
	}
	req := client.R().SetContext(ctx)
	if signed {
		params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		if c.cfg.RecvWindow > 0 {
			params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
		}
		req.SetHeader("X-MBX-APIKEY", c.creds.APIKey)
	}

	query := params.Encode()
	if signed {
		query += "&signature=" + sign(query, c.creds.APISecret)
	}
	target := path
	if query != "" {
		target = path + "?" + query
	}

	logger.WithFields(logger.Fields{
		"method": method,
		"path":   path,
	}).Debug("Binance HTTP request")

	resp, err := req.Execute(method, target)
	if err != nil {
		logger.WithError(err).WithField("path", path).Error("Binance HTTP request failed")
		return fmt.Errorf("%w: %s %s: %w", model.ErrTransient, method, path, err)
	}

	if resp.IsError() {
		var body struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		_ = json.Unmarshal(resp.Body(), &body)
		apiErr := newAPIError(resp.StatusCode(), body.Code, body.Msg)

		logger.WithFields(logger.Fields{
			"path":   path,
			"status": resp.StatusCode(),
			"code":   body.Code,
			"msg":    body.Msg,
		}).Error("Binance API returned error")
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

func (c *BinanceFutures) FetchBalance(ctx context.Context) (Balance, error) {
	var rows []struct {
		Asset            string `json:"asset"`
		Balance          string `json:"balance"`
		AvailableBalance string `json:"availableBalance"`
	}
	if err := c.do(ctx, c.read, http.MethodGet, "/fapi/v2/balance", nil, true, &rows); err != nil {
		return nil, err
	}

	out := make(Balance, len(rows))
	for _, r := range rows {
		out[r.Asset] = toFloat(r.AvailableBalance)
	}
	return out, nil
}

func (c *BinanceFutures) FetchOHLCV(ctx context.Context, symbol string, timeframe model.Timeframe, limit int) ([]model.Candle, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if c.candles == nil {
		return nil, fmt.Errorf("%w: no candle source configured", model.ErrFatal)
	}
	return c.candles.Fetch(ctx, symbol, timeframe, limit)
}

func (c *BinanceFutures) FetchPositions(ctx context.Context) ([]ExchangePosition, error) {
	var rows []struct {
		Symbol           string `json:"symbol"`
		PositionAmt      string `json:"positionAmt"`
		EntryPrice       string `json:"entryPrice"`
		MarkPrice        string `json:"markPrice"`
		UnRealizedProfit string `json:"unRealizedProfit"`
	}
	if err := c.do(ctx, c.read, http.MethodGet, "/fapi/v2/positionRisk", nil, true, &rows); err != nil {
		return nil, err
	}

	out := make([]ExchangePosition, 0, len(rows))
	for _, r := range rows {
		amt := toFloat(r.PositionAmt)
		side := model.SideLong
		if amt < 0 {
			side = model.SideShort
		}
		out = append(out, ExchangePosition{
			Symbol:        r.Symbol,
			Side:          side,
			Size:          math.Abs(amt),
			EntryPrice:    toFloat(r.EntryPrice),
			MarkPrice:     toFloat(r.MarkPrice),
			UnrealizedPnl: toFloat(r.UnRealizedProfit),
		})
	}
	return out, nil
}

func (c *BinanceFutures) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))
	return c.do(ctx, c.write, http.MethodPost, "/fapi/v1/leverage", params, true, nil)
}

func (c *BinanceFutures) CreateMarketOrder(ctx context.Context, symbol string, side model.OrderSide, quantity float64) (*OrderResult, error) {
	qty, err := c.formatQuantity(ctx, symbol, quantity)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", binanceSide(side))
	params.Set("type", "MARKET")
	params.Set("quantity", qty)
	return c.placeOrder(ctx, params)
}

func (c *BinanceFutures) CreateLimitOrder(ctx context.Context, symbol string, side model.OrderSide, quantity, price float64, reduceOnly bool) (*OrderResult, error) {
	qty, err := c.formatQuantity(ctx, symbol, quantity)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", binanceSide(side))
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "GTC")
	params.Set("quantity", qty)
	params.Set("price", c.formatPrice(ctx, symbol, price))
	if reduceOnly {
		params.Set("reduceOnly", "true")
	}
	return c.placeOrder(ctx, params)
}

func (c *BinanceFutures) CreateStopMarketOrder(ctx context.Context, symbol string, side model.OrderSide, quantity, triggerPrice float64, reduceOnly bool) (*OrderResult, error) {
	qty, err := c.formatQuantity(ctx, symbol, quantity)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", binanceSide(side))
	params.Set("type", "STOP_MARKET")
	params.Set("quantity", qty)
	params.Set("stopPrice", c.formatPrice(ctx, symbol, triggerPrice))
	params.Set("workingType", "MARK_PRICE")
	if reduceOnly {
		params.Set("reduceOnly", "true")
	}
	return c.placeOrder(ctx, params)
}

func (c *BinanceFutures) placeOrder(ctx context.Context, params url.Values) (*OrderResult, error) {
	params.Set("newClientOrderId", uuid.NewString())
	params.Set("newOrderRespType", "RESULT")

	var resp struct {
		OrderID       int64  `json:"orderId"`
		ClientOrderID string `json:"clientOrderId"`
		Status        string `json:"status"`
		ExecutedQty   string `json:"executedQty"`
		AvgPrice      string `json:"avgPrice"`
	}
	if err := c.do(ctx, c.write, http.MethodPost, "/fapi/v1/order", params, true, &resp); err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"symbol":   params.Get("symbol"),
		"type":     params.Get("type"),
		"side":     params.Get("side"),
		"order_id": resp.OrderID,
		"status":   resp.Status,
	}).Info("Binance order placed")

	return &OrderResult{
		OrderID:       strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: resp.ClientOrderID,
		Status:        resp.Status,
		Filled:        toFloat(resp.ExecutedQty),
		Average:       toFloat(resp.AvgPrice),
	}, nil
}

// Close releases the handle. Later calls fail with ErrClientClosed.
func (c *BinanceFutures) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.read.GetClient().CloseIdleConnections()
	c.write.GetClient().CloseIdleConnections()
	return nil
}

func (c *BinanceFutures) formatQuantity(ctx context.Context, symbol string, quantity float64) (string, error) {
	qty := decimal.NewFromFloat(quantity)
	if f, ok := c.symbolFilters(ctx, symbol); ok {
		qty = risk.RoundToStep(qty, f.stepSize)
	}
	if !qty.IsPositive() {
		return "", fmt.Errorf("%w: quantity %v below the lot size of %s", model.ErrValidation, quantity, symbol)
	}
	return qty.String(), nil
}

func (c *BinanceFutures) formatPrice(ctx context.Context, symbol string, price float64) string {
	p := decimal.NewFromFloat(price)
	if f, ok := c.symbolFilters(ctx, symbol); ok {
		p = tp_sl.RoundToTick(p, f.tickSize)
	}
	return p.String()
}

// symbolFilters loads lot and tick sizes from exchangeInfo once per handle.
func (c *BinanceFutures) symbolFilters(ctx context.Context, symbol string) (symbolFilters, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.filters[symbol]; ok {
		return f, true
	}
	if len(c.filters) > 0 {
		return symbolFilters{}, false
	}

	var info struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType string `json:"filterType"`
				StepSize   string `json:"stepSize"`
				TickSize   string `json:"tickSize"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := c.do(ctx, c.read, http.MethodGet, "/fapi/v1/exchangeInfo", nil, false, &info); err != nil {
		logger.WithError(err).WithField("symbol", symbol).Warn("exchangeInfo unavailable, sending unrounded values")
		return symbolFilters{}, false
	}

	for _, s := range info.Symbols {
		var f symbolFilters
		for _, flt := range s.Filters {
			switch flt.FilterType {
			case "LOT_SIZE":
				f.stepSize, _ = decimal.NewFromString(flt.StepSize)
			case "PRICE_FILTER":
				f.tickSize, _ = decimal.NewFromString(flt.TickSize)
			}
		}
		c.filters[s.Symbol] = f
	}

	f, ok := c.filters[symbol]
	return f, ok
}

func binanceSide(side model.OrderSide) string {
	if side == model.OrderSideSell {
		return "SELL"
	}
	return "BUY"
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}

package strategy

import (
	"futuresbot/src/model"
)

const (
	MinCandles       = 50
	FastPeriod       = 9
	MediumPeriod     = 21
	SlowPeriod       = 50
	VolumeLookback   = 10
	VolumeMultiplier = 1.2
)

type Trend string

const (
	TrendNone    Trend = "none"
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
)

// Analysis is the snapshot behind a signal decision, kept for logging.
type Analysis struct {
	Candles        int
	Price          float64
	EMAFast        float64
	EMAMedium      float64
	EMASlow        float64
	LatestVolume   float64
	AverageVolume  float64
	Trend          Trend
	VolumeConfirms bool
}

// EMA computes the exponential moving average series of values.
// ema[0] = values[0]; ema[i] = values[i]*k + ema[i-1]*(1-k) with k = 2/(period+1).
func EMA(values []float64, period int) []float64 {
	if len(values) == 0 || period <= 0 {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// Analyze computes trend and volume confirmation for candles. ok is false when
// there is not enough history to decide.
func Analyze(candles []model.Candle) (Analysis, bool) {
	if len(candles) < MinCandles {
		return Analysis{Candles: len(candles), Trend: TrendNone}, false
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	last := len(candles) - 1
	a := Analysis{
		Candles:   len(candles),
		Price:     closes[last],
		EMAFast:   EMA(closes, FastPeriod)[last],
		EMAMedium: EMA(closes, MediumPeriod)[last],
		EMASlow:   EMA(closes, SlowPeriod)[last],
		Trend:     TrendNone,
	}

	switch {
	case a.EMAFast > a.EMAMedium && a.EMAMedium > a.EMASlow:
		a.Trend = TrendBullish
	case a.EMAFast < a.EMAMedium && a.EMAMedium < a.EMASlow:
		a.Trend = TrendBearish
	}

	var sum float64
	window := candles[len(candles)-VolumeLookback:]
	for _, c := range window {
		sum += c.Volume
	}
	a.AverageVolume = sum / float64(len(window))
	a.LatestVolume = candles[last].Volume
	a.VolumeConfirms = a.LatestVolume > a.AverageVolume*VolumeMultiplier

	return a, true
}

// Evaluate returns the signal for candles fetched at settings' timeframe. The
// decision depends only on the candles; it never performs I/O and does not know
// about open positions.
func Evaluate(candles []model.Candle, settings model.TradingSettings) (model.Side, bool) {
	a, ok := Analyze(candles)
	if !ok || !a.VolumeConfirms {
		return "", false
	}
	switch a.Trend {
	case TrendBullish:
		return model.SideLong, true
	case TrendBearish:
		return model.SideShort, true
	}
	return "", false
}

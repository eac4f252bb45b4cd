package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresbot/src/model"
)

func candlesFrom(closes []float64, volumes []float64) []model.Candle {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = model.Candle{
			OpenTime: start.Add(time.Duration(i) * 15 * time.Minute),
			Open:     c,
			High:     c,
			Low:      c,
			Close:    c,
			Volume:   volumes[i],
		}
	}
	return out
}

// series returns n closes moving by step per bar and flat volume, with the last volume set to lastVol.
func series(n int, start, step, lastVol float64) []model.Candle {
	closes := make([]float64, n)
	vols := make([]float64, n)
	for i := 0; i < n; i++ {
		closes[i] = start + float64(i)*step
		vols[i] = 100
	}
	vols[n-1] = lastVol
	return candlesFrom(closes, vols)
}

func TestEMARecurrence(t *testing.T) {
	got := EMA([]float64{1, 2, 3, 4, 5}, 3)
	want := []float64{1, 1.5, 2.25, 3.125, 4.0625}

	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12, "index %d", i)
	}
}

func TestEMAEmptyInput(t *testing.T) {
	assert.Nil(t, EMA(nil, 9))
	assert.Nil(t, EMA([]float64{1}, 0))
}

func TestEvaluateInsufficientHistory(t *testing.T) {
	for _, n := range []int{0, 1, 10, 49} {
		closes := make([]float64, n)
		vols := make([]float64, n)
		for i := range closes {
			closes[i] = float64(100 + i)
			vols[i] = 1000
		}
		_, ok := Evaluate(candlesFrom(closes, vols), model.TradingSettings{})
		assert.False(t, ok, "n=%d", n)
	}
}

func TestEvaluateAtMinimumHistory(t *testing.T) {
	sig, ok := Evaluate(series(MinCandles, 100, 1, 500), model.TradingSettings{})
	require.True(t, ok)
	assert.Equal(t, model.SideLong, sig)

	_, ok = Evaluate(series(MinCandles-1, 100, 1, 500), model.TradingSettings{})
	assert.False(t, ok)
}

func TestEvaluateLong(t *testing.T) {
	sig, ok := Evaluate(series(60, 100, 1, 500), model.TradingSettings{})
	require.True(t, ok)
	assert.Equal(t, model.SideLong, sig)
}

func TestEvaluateShort(t *testing.T) {
	sig, ok := Evaluate(series(60, 200, -1, 500), model.TradingSettings{})
	require.True(t, ok)
	assert.Equal(t, model.SideShort, sig)
}

func TestEvaluateRequiresVolumeConfirmation(t *testing.T) {
	// avg of last 10 = (9*100 + 120)/10 = 102; 120 > 122.4 is false.
	_, ok := Evaluate(series(60, 100, 1, 120), model.TradingSettings{})
	assert.False(t, ok)

	a, ok := Analyze(series(60, 100, 1, 120))
	require.True(t, ok)
	assert.Equal(t, TrendBullish, a.Trend)
	assert.InDelta(t, 102.0, a.AverageVolume, 1e-9)
	assert.False(t, a.VolumeConfirms)
}

func TestEvaluateFlatMarketHasNoTrend(t *testing.T) {
	_, ok := Evaluate(series(60, 100, 0, 1000), model.TradingSettings{})
	assert.False(t, ok)

	a, ok := Analyze(series(60, 100, 0, 1000))
	require.True(t, ok)
	assert.Equal(t, TrendNone, a.Trend)
	assert.True(t, a.VolumeConfirms)
}

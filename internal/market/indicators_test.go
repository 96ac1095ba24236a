package market

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.Equal(t, []float64{2, 3, 4}, got[2:])
}

func TestEMA_SeededWithFirstValue(t *testing.T) {
	got := EMA([]float64{10, 20, 20}, 3)
	assert.InDelta(t, 10, got[0], 1e-9)
	assert.InDelta(t, 15, got[1], 1e-9)
	assert.InDelta(t, 17.5, got[2], 1e-9)
}

func TestStdDev_Sample(t *testing.T) {
	got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)
	assert.InDelta(t, 2.138089935, got[7], 1e-6)
}

func TestRSI(t *testing.T) {
	t.Run("only gains", func(t *testing.T) {
		prices := make([]float64, 20)
		for i := range prices {
			prices[i] = float64(i + 1)
		}
		got := RSI(prices, 14)
		assert.True(t, math.IsNaN(got[12]))
		assert.InDelta(t, 100, got[19], 1e-9)
	})

	t.Run("balanced", func(t *testing.T) {
		prices := []float64{10, 11, 10, 11, 10, 11, 10, 11, 10, 11, 10, 11, 10, 11, 10}
		got := RSI(prices, 14)
		assert.InDelta(t, 50, got[14], 1e-9)
	})
}

func TestMACD_HistogramIsLineMinusSignal(t *testing.T) {
	prices := []float64{1, 3, 2, 5, 4, 6, 8, 7, 9, 12}
	line, signal, hist := MACD(prices, 12, 26, 9)
	for i := range prices {
		assert.InDelta(t, line[i]-signal[i], hist[i], 1e-12)
	}
	assert.InDelta(t, 0, line[0], 1e-12)
}

func TestBollinger(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 5
	}
	upper, middle, lower := Bollinger(prices, 20, 2)
	assert.InDelta(t, 5, middle[19], 1e-9)
	assert.InDelta(t, 5, upper[19], 1e-9)
	assert.InDelta(t, 5, lower[19], 1e-9)
	assert.True(t, math.IsNaN(upper[18]))
}

func TestAnalyze_RequiresHistory(t *testing.T) {
	_, err := Analyze("bitcoin", "usd", []float64{1}, nil)
	require.Error(t, err)
}

func TestAnalyze_OversoldDowntrend(t *testing.T) {
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 200 - float64(i)*2
	}

	a, err := Analyze("bitcoin", "usd", prices, nil)
	require.NoError(t, err)

	require.NotNil(t, a.Indicators.RSI)
	assert.InDelta(t, 0, *a.Indicators.RSI, 1e-9)
	assert.Contains(t, a.Signals, Signal{Type: SignalBuy, Strength: StrengthMedium, Indicator: "RSI", Description: "RSI oversold at 0.00"})
	require.NotNil(t, a.Levels)
	assert.InDelta(t, prices[59], a.Levels.Support, 1e-9)
	assert.InDelta(t, prices[40], a.Levels.Resistance, 1e-9)
}

func TestAnalyze_FlatSeriesIsNeutral(t *testing.T) {
	prices := make([]float64, 15)
	for i := range prices {
		prices[i] = 42
	}

	a, err := Analyze("ethereum", "usd", prices, nil)
	require.NoError(t, err)

	assert.Equal(t, "NEUTRAL", a.OverallSentiment)
	assert.Nil(t, a.Indicators.SMA50)
}

func TestAnalyze_VolumeSpikeConfirmsMove(t *testing.T) {
	prices := make([]float64, 25)
	volumes := make([]float64, 25)
	for i := range prices {
		prices[i] = 100
		volumes[i] = 10
	}
	prices[24] = 101
	volumes[24] = 100

	a, err := Analyze("bitcoin", "usd", prices, volumes)
	require.NoError(t, err)

	found := false
	for _, s := range a.Signals {
		if s.Indicator == "Volume" {
			found = true
			assert.Equal(t, SignalBuy, s.Type)
		}
	}
	assert.True(t, found)
	require.NotNil(t, a.Indicators.VolumeSMA20)
}

func TestSentiment(t *testing.T) {
	assert.Equal(t, "BULLISH", sentiment([]Signal{{Type: SignalBuy}, {Type: SignalBuy}, {Type: SignalSell}}))
	assert.Equal(t, "BEARISH", sentiment([]Signal{{Type: SignalSell}}))
	assert.Equal(t, "NEUTRAL", sentiment([]Signal{{Type: SignalBullish}}))
}

package market

import (
	"fmt"
	"math"
)

type SignalType string

const (
	SignalBuy      SignalType = "BUY"
	SignalSell     SignalType = "SELL"
	SignalBullish  SignalType = "BULLISH_TREND"
	SignalBearish  SignalType = "BEARISH_TREND"
	SignalNeutral  SignalType = "NEUTRAL"
	StrengthStrong            = "STRONG"
	StrengthMedium            = "MEDIUM"
	StrengthWeak              = "WEAK"
)

type Signal struct {
	Type        SignalType `json:"type"`
	Strength    string     `json:"strength"`
	Indicator   string     `json:"indicator"`
	Description string     `json:"description"`
}

// Indicators holds the latest value of each indicator; nil when undefined.
type Indicators struct {
	SMA20         *float64 `json:"sma20,omitempty"`
	SMA50         *float64 `json:"sma50,omitempty"`
	RSI           *float64 `json:"rsi,omitempty"`
	MACD          *float64 `json:"macd,omitempty"`
	MACDSignal    *float64 `json:"macd_signal,omitempty"`
	MACDHistogram *float64 `json:"macd_histogram,omitempty"`
	BBUpper       *float64 `json:"bb_upper,omitempty"`
	BBLower       *float64 `json:"bb_lower,omitempty"`
	VolumeSMA20   *float64 `json:"volume_sma20,omitempty"`
}

type PriceLevels struct {
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

// Analysis is the technical read-out for one coin.
type Analysis struct {
	CoinID           string       `json:"coin_id"`
	Currency         string       `json:"currency"`
	CurrentPrice     float64      `json:"current_price"`
	Indicators       Indicators   `json:"indicators"`
	Signals          []Signal     `json:"signals"`
	OverallSentiment string       `json:"overall_sentiment"`
	Levels           *PriceLevels `json:"price_levels,omitempty"`
}

const (
	rsiPeriod       = 14
	macdFast        = 12
	macdSlow        = 26
	macdSignal      = 9
	bollingerWindow = 20
	bollingerStd    = 2.0
	levelsWindow    = 20
	volumeSpike     = 1.5
)

func last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

func prev(series []float64) float64 {
	if len(series) < 2 {
		return math.NaN()
	}
	return series[len(series)-2]
}

func ptr(v float64) *float64 {
	if !defined(v) {
		return nil
	}
	r := math.Round(v*10000) / 10000
	return &r
}

// Analyze derives indicators and trading signals from a price and volume history.
func Analyze(coinID, currency string, prices, volumes []float64) (*Analysis, error) {
	if len(prices) < 2 {
		return nil, fmt.Errorf("need at least 2 price points, got %d", len(prices))
	}

	current := last(prices)
	sma20 := SMA(prices, 20)
	sma50 := SMA(prices, 50)
	rsi := RSI(prices, rsiPeriod)
	macd, signal, hist := MACD(prices, macdFast, macdSlow, macdSignal)
	upper, _, lower := Bollinger(prices, bollingerWindow, bollingerStd)

	a := &Analysis{
		CoinID:       coinID,
		Currency:     currency,
		CurrentPrice: current,
		Indicators: Indicators{
			SMA20:         ptr(last(sma20)),
			SMA50:         ptr(last(sma50)),
			RSI:           ptr(last(rsi)),
			MACD:          ptr(last(macd)),
			MACDSignal:    ptr(last(signal)),
			MACDHistogram: ptr(last(hist)),
			BBUpper:       ptr(last(upper)),
			BBLower:       ptr(last(lower)),
		},
	}

	add := func(t SignalType, strength, indicator, description string) {
		a.Signals = append(a.Signals, Signal{Type: t, Strength: strength, Indicator: indicator, Description: description})
	}

	if s20, s50 := last(sma20), last(sma50); defined(s20) && defined(s50) && defined(prev(sma50)) {
		if s20 > s50 && prev(sma20) <= prev(sma50) {
			add(SignalBuy, StrengthStrong, "SMA Crossover", "SMA 20 crossed above SMA 50")
		} else if s20 < s50 && prev(sma20) >= prev(sma50) {
			add(SignalSell, StrengthStrong, "SMA Crossover", "SMA 20 crossed below SMA 50")
		}
	}

	if r := last(rsi); defined(r) {
		switch {
		case r < 30:
			add(SignalBuy, StrengthMedium, "RSI", fmt.Sprintf("RSI oversold at %.2f", r))
		case r < 40 && prev(rsi) < 30:
			add(SignalBuy, StrengthWeak, "RSI", "RSI recovering from oversold")
		case r > 70:
			add(SignalSell, StrengthMedium, "RSI", fmt.Sprintf("RSI overbought at %.2f", r))
		case r > 60 && prev(rsi) > 70:
			add(SignalSell, StrengthWeak, "RSI", "RSI falling from overbought")
		}
	}

	m, s, h := last(macd), last(signal), last(hist)
	switch {
	case m > s && prev(macd) <= prev(signal):
		add(SignalBuy, StrengthStrong, "MACD", "MACD bullish crossover")
	case m < s && prev(macd) >= prev(signal):
		add(SignalSell, StrengthStrong, "MACD", "MACD bearish crossover")
	case m > 0 && s > 0 && h > 0 && h > prev(hist):
		add(SignalBuy, StrengthWeak, "MACD", "MACD histogram increasing in positive territory")
	case m < 0 && s < 0 && h < 0 && h < prev(hist):
		add(SignalSell, StrengthWeak, "MACD", "MACD histogram decreasing in negative territory")
	}

	if u, l := last(upper), last(lower); defined(u) && defined(l) {
		if current <= l {
			add(SignalBuy, StrengthMedium, "Bollinger Bands", "Price at/below lower Bollinger Band")
		} else if current >= u {
			add(SignalSell, StrengthMedium, "Bollinger Bands", "Price at/above upper Bollinger Band")
		}
	}

	if len(volumes) == len(prices) {
		volSMA := SMA(volumes, 20)
		a.Indicators.VolumeSMA20 = ptr(last(volSMA))
		if v, vs := last(volumes), last(volSMA); defined(vs) && v > vs*volumeSpike {
			if current > prev(prices) {
				add(SignalBuy, StrengthMedium, "Volume", "High volume confirming upward price movement")
			} else if current < prev(prices) {
				add(SignalSell, StrengthMedium, "Volume", "High volume confirming downward price movement")
			}
		}
	}

	if len(a.Signals) == 0 {
		s20, s50 := last(sma20), last(sma50)
		switch {
		case defined(s20) && defined(s50) && s20 > s50 && m > s:
			add(SignalBullish, StrengthMedium, "Combined Analysis", "Positive trend based on multiple indicators")
		case defined(s20) && defined(s50) && s20 < s50 && m < s:
			add(SignalBearish, StrengthMedium, "Combined Analysis", "Negative trend based on multiple indicators")
		default:
			add(SignalNeutral, StrengthWeak, "Combined Analysis", "No strong signals detected")
		}
	}

	a.OverallSentiment = sentiment(a.Signals)

	if len(prices) >= levelsWindow {
		recent := prices[len(prices)-levelsWindow:]
		lo, hi := recent[0], recent[0]
		for _, p := range recent {
			lo = math.Min(lo, p)
			hi = math.Max(hi, p)
		}
		a.Levels = &PriceLevels{Support: lo, Resistance: hi}
	}

	return a, nil
}

func sentiment(signals []Signal) string {
	var buys, sells int
	for _, s := range signals {
		switch s.Type {
		case SignalBuy:
			buys++
		case SignalSell:
			sells++
		}
	}
	switch {
	case buys > sells:
		return "BULLISH"
	case sells > buys:
		return "BEARISH"
	default:
		return "NEUTRAL"
	}
}

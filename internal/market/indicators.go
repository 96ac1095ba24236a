package market

import "math"

// Indicator series are aligned with their input; points without enough
// history are NaN.

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SMA is the simple moving average over window points.
func SMA(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	if window <= 0 {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// EMA is the recursive exponential moving average seeded with the first value.
func EMA(values []float64, span int) []float64 {
	out := nanSeries(len(values))
	if len(values) == 0 || span <= 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// StdDev is the rolling sample standard deviation over window points.
func StdDev(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	if window < 2 {
		return out
	}
	means := SMA(values, window)
	for i := window - 1; i < len(values); i++ {
		var ss float64
		for _, v := range values[i-window+1 : i+1] {
			d := v - means[i]
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

// RSI is the relative strength index using simple averages of gains and losses.
func RSI(prices []float64, period int) []float64 {
	n := len(prices)
	out := nanSeries(n)
	if period <= 0 || n < period {
		return out
	}
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}
	avgGain := SMA(gains, period)
	avgLoss := SMA(losses, period)
	for i := period - 1; i < n; i++ {
		switch {
		case avgLoss[i] == 0 && avgGain[i] == 0:
			out[i] = 50
		case avgLoss[i] == 0:
			out[i] = 100
		default:
			rs := avgGain[i] / avgLoss[i]
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}

// MACD returns the MACD line, its signal line and the histogram.
func MACD(prices []float64, fast, slow, signal int) (line, signalLine, histogram []float64) {
	fastEMA := EMA(prices, fast)
	slowEMA := EMA(prices, slow)
	line = make([]float64, len(prices))
	for i := range prices {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine = EMA(line, signal)
	histogram = make([]float64, len(prices))
	for i := range prices {
		histogram[i] = line[i] - signalLine[i]
	}
	return line, signalLine, histogram
}

// Bollinger returns the upper band, middle band and lower band.
func Bollinger(prices []float64, window int, numStd float64) (upper, middle, lower []float64) {
	middle = SMA(prices, window)
	std := StdDev(prices, window)
	upper = nanSeries(len(prices))
	lower = nanSeries(len(prices))
	for i := range prices {
		if defined(middle[i]) && defined(std[i]) {
			upper[i] = middle[i] + numStd*std[i]
			lower[i] = middle[i] - numStd*std[i]
		}
	}
	return upper, middle, lower
}

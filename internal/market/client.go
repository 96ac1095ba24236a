// Package market reads spot prices and price history from CoinGecko and
// derives technical indicators from them.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
)

const (
	DefaultBaseURL  = "https://api.coingecko.com/api/v3"
	DefaultCurrency = "usd"
	DefaultDays     = 30
	maxDays         = 365
)

var coinIDs = map[string]string{
	"btc":  "bitcoin",
	"eth":  "ethereum",
	"doge": "dogecoin",
	"sol":  "solana",
	"bnb":  "binancecoin",
	"xrp":  "ripple",
	"ada":  "cardano",
	"dot":  "polkadot",
	"ltc":  "litecoin",
	"link": "chainlink",
}

// CoinID resolves a ticker symbol (or a CoinGecko id) to a CoinGecko id.
func CoinID(symbol string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(symbol))
	if id, ok := coinIDs[s]; ok {
		return id, nil
	}
	for _, id := range coinIDs {
		if id == s {
			return id, nil
		}
	}
	return "", domain.ErrUnknownSymbol
}

// Symbols lists the supported ticker symbols.
func Symbols() []string {
	out := make([]string, 0, len(coinIDs))
	for s := range coinIDs {
		out = append(out, s)
	}
	return out
}

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	// RequestsPerMinute throttles outgoing calls. Zero disables throttling.
	RequestsPerMinute int
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	throttle   *rate.Limiter
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	throttle := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		throttle = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, throttle: throttle}
}

// Quote is a spot price.
type Quote struct {
	CoinID   string  `json:"coin_id"`
	Currency string  `json:"currency"`
	Price    float64 `json:"price"`
}

// Point is one timestamped value of a market chart.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

type Chart struct {
	CoinID     string  `json:"coin_id"`
	Currency   string  `json:"currency"`
	Prices     []Point `json:"prices"`
	Volumes    []Point `json:"volumes"`
	MarketCaps []Point `json:"market_caps"`
}

// Report is the combined answer for one coin.
type Report struct {
	Symbol    string    `json:"symbol"`
	Quote     Quote     `json:"quote"`
	Change24h *float64  `json:"change_24h_pct,omitempty"`
	Change7d  *float64  `json:"change_7d_pct,omitempty"`
	Analysis  *Analysis `json:"analysis"`
}

// APIError is a non-2xx answer from CoinGecko.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market API error (%d): %s", e.StatusCode, e.Body)
}

// Price returns the current spot price of symbol in USD.
func (c *Client) Price(ctx context.Context, symbol string) (*Quote, error) {
	id, err := CoinID(symbol)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("ids", id)
	params.Set("vs_currencies", DefaultCurrency)

	var body map[string]map[string]float64
	if err := c.get(ctx, "/simple/price?"+params.Encode(), &body); err != nil {
		return nil, err
	}
	price, ok := body[id][DefaultCurrency]
	if !ok {
		return nil, fmt.Errorf("no %s price for %s", DefaultCurrency, id)
	}
	return &Quote{CoinID: id, Currency: DefaultCurrency, Price: price}, nil
}

// MarketChart returns the price, volume and market cap history for the last days.
func (c *Client) MarketChart(ctx context.Context, symbol string, days int) (*Chart, error) {
	id, err := CoinID(symbol)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = DefaultDays
	}
	if days > maxDays {
		days = maxDays
	}

	params := url.Values{}
	params.Set("vs_currency", DefaultCurrency)
	params.Set("days", strconv.Itoa(days))

	var body struct {
		Prices       [][2]float64 `json:"prices"`
		TotalVolumes [][2]float64 `json:"total_volumes"`
		MarketCaps   [][2]float64 `json:"market_caps"`
	}
	if err := c.get(ctx, "/coins/"+url.PathEscape(id)+"/market_chart?"+params.Encode(), &body); err != nil {
		return nil, err
	}
	return &Chart{
		CoinID:     id,
		Currency:   DefaultCurrency,
		Prices:     toPoints(body.Prices),
		Volumes:    toPoints(body.TotalVolumes),
		MarketCaps: toPoints(body.MarketCaps),
	}, nil
}

// Report fetches the spot price and history of symbol and analyzes them.
func (c *Client) Report(ctx context.Context, symbol string, days int) (*Report, error) {
	quote, err := c.Price(ctx, symbol)
	if err != nil {
		return nil, err
	}
	chart, err := c.MarketChart(ctx, symbol, days)
	if err != nil {
		return nil, err
	}

	prices := Values(chart.Prices)
	analysis, err := Analyze(chart.CoinID, chart.Currency, prices, Values(chart.Volumes))
	if err != nil {
		return nil, err
	}
	return &Report{
		Symbol:    strings.ToLower(strings.TrimSpace(symbol)),
		Quote:     *quote,
		Change24h: PercentChange(prices, 24),
		Change7d:  PercentChange(prices, 168),
		Analysis:  analysis,
	}, nil
}

// PercentChange compares the last value with the one points earlier.
func PercentChange(values []float64, points int) *float64 {
	if points <= 0 || len(values) <= points {
		return nil
	}
	base := values[len(values)-1-points]
	if base == 0 {
		return nil
	}
	pct := (values[len(values)-1] - base) / base * 100
	return &pct
}

func Values(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

func toPoints(raw [][2]float64) []Point {
	out := make([]Point, 0, len(raw))
	for _, r := range raw {
		out = append(out, Point{Time: time.UnixMilli(int64(r[0])).UTC(), Value: r[1]})
	}
	return out
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if err := c.throttle.Wait(ctx); err != nil {
		return fmt.Errorf("market request throttled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Package marketdata is the market-data collaborator: it fetches and caches
// OHLCV candles and market extremes for the analysis pipeline. The analytic
// core never performs I/O itself; everything flows in through this package.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"crypto-scenario-engine/internal/candles"
	"crypto-scenario-engine/internal/levels"
)

// Provider supplies candle series and market metadata. Implemented by the
// REST client, the cached wrapper, and the deterministic mock.
type Provider interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) (*candles.Series, error)
	GetMarketMeta(ctx context.Context, symbol string) (levels.MarketMeta, error)
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// Client is a Binance-style public market data REST client. No API keys are
// needed; every endpoint used here is public.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a REST client. An empty baseURL targets the public
// Binance API.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// intervalDurations maps exchange interval strings onto timeframe units.
var intervalDurations = map[string]time.Duration{
	"1m": time.Minute, "3m": 3 * time.Minute, "5m": 5 * time.Minute,
	"15m": 15 * time.Minute, "30m": 30 * time.Minute,
	"1h": time.Hour, "2h": 2 * time.Hour, "4h": 4 * time.Hour,
	"6h": 6 * time.Hour, "8h": 8 * time.Hour, "12h": 12 * time.Hour,
	"1d": 24 * time.Hour, "3d": 72 * time.Hour,
	"1w": 7 * 24 * time.Hour, "1M": 30 * 24 * time.Hour,
}

// IntervalDuration resolves an exchange interval string to a duration,
// defaulting to one hour for unknown strings.
func IntervalDuration(interval string) time.Duration {
	if d, ok := intervalDurations[interval]; ok {
		return d
	}
	return time.Hour
}

// GetCandles fetches klines and normalizes them into a candle series.
func (c *Client) GetCandles(ctx context.Context, symbol, interval string, limit int) (*candles.Series, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", c.baseURL, params.Encode())
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetching klines: %w", err)
	}

	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing klines: %w", err)
	}

	series := candles.NewSeries(symbol, IntervalDuration(interval))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}
		openTime, ok := k[0].(float64)
		if !ok {
			continue
		}
		candle := candles.Candle{
			OpenTime: time.UnixMilli(int64(openTime)).UTC(),
			Open:     parseFloat(k[1]),
			High:     parseFloat(k[2]),
			Low:      parseFloat(k[3]),
			Close:    parseFloat(k[4]),
			Volume:   parseFloat(k[5]),
		}
		if err := series.Append(candle); err != nil {
			return nil, fmt.Errorf("normalizing klines: %w", err)
		}
	}
	return series, nil
}

// GetMarketMeta derives the all-time extremes from the full weekly history.
// The exchange has no direct ATH/ATL endpoint; the weekly grid is the
// cheapest complete view.
func (c *Client) GetMarketMeta(ctx context.Context, symbol string) (levels.MarketMeta, error) {
	series, err := c.GetCandles(ctx, symbol, "1w", 1000)
	if err != nil {
		return levels.MarketMeta{}, err
	}
	if series.Len() == 0 {
		return levels.MarketMeta{}, candles.ErrEmptySeries
	}
	return MetaFromSeries(series), nil
}

// MetaFromSeries scans a series for its high/low extremes.
func MetaFromSeries(series *candles.Series) levels.MarketMeta {
	cs := series.Snapshot()
	meta := levels.MarketMeta{
		AllTimeHigh:   cs[0].High,
		AllTimeLow:    cs[0].Low,
		AllTimeHighAt: cs[0].OpenTime,
		AllTimeLowAt:  cs[0].OpenTime,
	}
	for _, c := range cs[1:] {
		if c.High > meta.AllTimeHigh {
			meta.AllTimeHigh = c.High
			meta.AllTimeHighAt = c.OpenTime
		}
		if c.Low < meta.AllTimeLow {
			meta.AllTimeLow = c.Low
			meta.AllTimeLowAt = c.OpenTime
		}
	}
	return meta
}

// GetCurrentPrice fetches the latest traded price for a symbol.
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", c.baseURL, url.QueryEscape(symbol))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return 0, fmt.Errorf("fetching price: %w", err)
	}

	var ticker struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &ticker); err != nil {
		return 0, fmt.Errorf("parsing price: %w", err)
	}
	return strconv.ParseFloat(ticker.Price, 64)
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func parseFloat(v interface{}) float64 {
	switch t := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case float64:
		return t
	}
	return 0
}

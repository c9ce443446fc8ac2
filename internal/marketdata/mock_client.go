package marketdata

import (
	"context"
	"fmt"
	"math"
	"time"

	"crypto-scenario-engine/internal/candles"
	"crypto-scenario-engine/internal/levels"
)

// MockProvider serves pre-loaded series and metadata for tests and offline
// runs. Fully deterministic.
type MockProvider struct {
	Series map[string]*candles.Series // keyed "symbol:interval"
	Meta   map[string]levels.MarketMeta
	Prices map[string]float64
}

var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates an empty mock.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Series: make(map[string]*candles.Series),
		Meta:   make(map[string]levels.MarketMeta),
		Prices: make(map[string]float64),
	}
}

// SetSeries registers a series under symbol and interval.
func (m *MockProvider) SetSeries(symbol, interval string, s *candles.Series) {
	m.Series[symbol+":"+interval] = s
}

// SeedSynthetic loads a deterministic trending series plus matching meta and
// price, so mock mode can answer analyze, scenario and price requests without
// an exchange. The same inputs always produce the same series.
func (m *MockProvider) SeedSynthetic(symbol, interval string, n int) {
	if n <= 0 {
		n = 500
	}
	tf := IntervalDuration(interval)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	series := candles.NewSeries(symbol, tf)
	for i := 0; i < n; i++ {
		close := 100 + 0.5*float64(i) + 2*math.Sin(float64(i)/3)
		// Timestamps form a strict ascending grid, so Append cannot fail.
		_ = series.Append(candles.Candle{
			OpenTime: start.Add(time.Duration(i) * tf),
			Open:     close - 0.2,
			High:     close + 1,
			Low:      close - 1.2,
			Close:    close,
			Volume:   100,
		})
	}

	m.SetSeries(symbol, interval, series)
	m.Meta[symbol] = MetaFromSeries(series)
	m.Prices[symbol] = series.LastClose()
}

// GetCandles returns the registered series, truncated to limit from the end.
func (m *MockProvider) GetCandles(_ context.Context, symbol, interval string, limit int) (*candles.Series, error) {
	s, ok := m.Series[symbol+":"+interval]
	if !ok {
		return nil, fmt.Errorf("no mock series for %s %s", symbol, interval)
	}
	cs := s.Snapshot()
	if limit > 0 && len(cs) > limit {
		cs = cs[len(cs)-limit:]
	}
	return candles.FromCandles(s.Symbol(), s.Timeframe(), cs)
}

// GetMarketMeta returns the registered metadata for the symbol.
func (m *MockProvider) GetMarketMeta(_ context.Context, symbol string) (levels.MarketMeta, error) {
	meta, ok := m.Meta[symbol]
	if !ok {
		return levels.MarketMeta{}, fmt.Errorf("no mock meta for %s", symbol)
	}
	return meta, nil
}

// GetCurrentPrice returns the registered price for the symbol.
func (m *MockProvider) GetCurrentPrice(_ context.Context, symbol string) (float64, error) {
	price, ok := m.Prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no mock price for %s", symbol)
	}
	return price, nil
}

package scenario

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-scenario-engine/internal/candles"
	"crypto-scenario-engine/internal/indicators"
	"crypto-scenario-engine/internal/levels"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func seriesFrom(t *testing.T, cs []candles.Candle) *candles.Series {
	t.Helper()
	for i := range cs {
		cs[i].OpenTime = t0.Add(time.Duration(i) * time.Hour)
	}
	s, err := candles.FromCandles("BTCUSDT", time.Hour, cs)
	require.NoError(t, err)
	return s
}

// trendSeries builds n candles drifting by step per candle with a mild
// oscillation, wide enough that every indicator warms up by n=300.
func trendSeries(t *testing.T, n int, start, step float64) *candles.Series {
	t.Helper()
	cs := make([]candles.Candle, n)
	prev := start
	for i := range cs {
		close := start + step*float64(i) + 2*math.Sin(float64(i)/3)
		cs[i] = candles.Candle{
			Open:   prev,
			High:   math.Max(prev, close) + 1,
			Low:    math.Min(prev, close) - 1,
			Close:  close,
			Volume: 100,
		}
		prev = close
	}
	return seriesFrom(t, cs)
}

// flatRangeSeries builds candles that all close at price with a fixed
// high-low range, giving an exact, known ATR.
func flatRangeSeries(t *testing.T, n int, price, rng float64) *candles.Series {
	t.Helper()
	cs := make([]candles.Candle, n)
	for i := range cs {
		cs[i] = candles.Candle{
			Open:   price,
			High:   price + rng/2,
			Low:    price - rng/2,
			Close:  price,
			Volume: 100,
		}
	}
	return seriesFrom(t, cs)
}

func snapshotFor(t *testing.T, s *candles.Series) *indicators.Snapshot {
	t.Helper()
	snap, err := indicators.Compute(s, indicators.DefaultConfig())
	require.NoError(t, err)
	return snap
}

func TestBuildLongScenarioOrdering(t *testing.T) {
	s := trendSeries(t, 300, 100, 0.5)
	snap := snapshotFor(t, s)

	b := NewBuilder(Options{})
	sc, err := b.Build(s, snap, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, Long, sc.Direction)
	assert.Equal(t, "BTCUSDT", sc.Symbol)

	entry := sc.EntryZone.Conservative
	assert.Less(t, sc.StopLoss.Conservative, entry)
	assert.Less(t, sc.StopLoss.Conservative, sc.StopLoss.Aggressive)
	assert.Less(t, sc.StopLoss.Aggressive, entry)

	require.Len(t, sc.Targets, 3)
	assert.Greater(t, sc.Targets[0].Price, entry)
	assert.Greater(t, sc.Targets[1].Price, sc.Targets[0].Price)
	assert.Greater(t, sc.Targets[2].Price, sc.Targets[1].Price)

	// Swing target sits one ATR out against a one ATR stop.
	assert.InDelta(t, 0.5, sc.Targets[0].RR, 1e-9)
	assert.InDelta(t, 1.0, sc.Targets[1].RR, 1e-9)
	assert.InDelta(t, 2.0, sc.Targets[2].RR, 1e-9)

	assert.GreaterOrEqual(t, sc.Confidence, 0.0)
	assert.LessOrEqual(t, sc.Confidence, 1.0)

	last, _ := s.Last()
	assert.Equal(t, last.OpenTime, sc.GeneratedAt)
}

func TestBuildShortScenarioOrdering(t *testing.T) {
	s := trendSeries(t, 300, 300, -0.5)
	snap := snapshotFor(t, s)

	b := NewBuilder(Options{})
	sc, err := b.Build(s, snap, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, Short, sc.Direction)

	entry := sc.EntryZone.Conservative
	assert.Greater(t, sc.StopLoss.Conservative, entry)
	assert.Greater(t, sc.StopLoss.Conservative, sc.StopLoss.Aggressive)

	require.Len(t, sc.Targets, 3)
	assert.Less(t, sc.Targets[0].Price, entry)
	assert.Less(t, sc.Targets[1].Price, sc.Targets[0].Price)
	assert.Less(t, sc.Targets[2].Price, sc.Targets[1].Price)
}

func TestBuildRejectsFlatMarket(t *testing.T) {
	// Zero range candles give a zero ATR.
	s := flatRangeSeries(t, 30, 100, 0)
	_, err := NewBuilder(Options{}).Build(s, nil, nil, nil)
	assert.ErrorIs(t, err, ErrInsufficientVolatility)
}

func TestBuildRejectsShortSeries(t *testing.T) {
	// Fewer candles than the ATR warm-up window. The undefined-ATR cause
	// stays visible through the wrap.
	s := flatRangeSeries(t, 10, 100, 2)
	_, err := NewBuilder(Options{}).Build(s, nil, nil, nil)
	assert.ErrorIs(t, err, ErrInsufficientVolatility)
	assert.ErrorIs(t, err, indicators.ErrInsufficientData)
}

func TestBuildEmptySeries(t *testing.T) {
	_, err := NewBuilder(Options{}).Build(nil, nil, nil, nil)
	assert.ErrorIs(t, err, candles.ErrEmptySeries)
}

func TestDirectionHintOverridesTrend(t *testing.T) {
	s := trendSeries(t, 300, 100, 0.5)
	snap := snapshotFor(t, s)

	hint := Short
	sc, err := NewBuilder(Options{}).Build(s, snap, nil, &hint)
	require.NoError(t, err)
	assert.Equal(t, Short, sc.Direction)
}

func TestLeverageBuckets(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		rng   float64
		want  Leverage
	}{
		// ATR $1,200 on a $67,200 entry is 1.79% of price.
		{"low volatility", 67200, 1200, Leverage{Recommended: 3, Max: 10, VolatilityLevel: "low"}},
		{"medium volatility", 40000, 1200, Leverage{Recommended: 2, Max: 7, VolatilityLevel: "medium"}},
		{"high volatility", 20000, 1200, Leverage{Recommended: 1, Max: 5, VolatilityLevel: "high"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := flatRangeSeries(t, 30, tt.price, tt.rng)
			sc, err := NewBuilder(Options{}).Build(s, nil, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sc.Leverage)
			assert.InDelta(t, tt.rng, sc.Basis.ATR, 1e-9)
		})
	}
}

func TestEntryZoneSnapsToNearbySupport(t *testing.T) {
	// Constant ATR of 2, close at 100, search radius one ATR.
	s := flatRangeSeries(t, 30, 100, 2)
	lvls := []levels.Level{
		{Kind: levels.KindSupport, Price: 99.5},
		{Kind: levels.KindSupport, Price: 90},         // outside the radius
		{Kind: levels.KindResistance, Price: 100.5},   // wrong side for a long
		{Kind: levels.KindLiquidityZone, Price: 99.8}, // wrong kind
	}

	hint := Long
	sc, err := NewBuilder(Options{}).Build(s, nil, lvls, &hint)
	require.NoError(t, err)

	assert.InDelta(t, 99.5, sc.EntryZone.Conservative, 1e-9)
	assert.InDelta(t, 100.0, sc.EntryZone.Aggressive, 1e-9)
	require.NotNil(t, sc.Basis.EntryLevel)
	assert.InDelta(t, 99.5, sc.Basis.EntryLevel.Price, 1e-9)

	// Stops and targets stage off the conservative entry.
	assert.InDelta(t, 97.5, sc.StopLoss.Conservative, 1e-9)
	assert.InDelta(t, 100.5, sc.Targets[1].Price, 1e-9)
}

func TestEntryZoneFallsBackToClose(t *testing.T) {
	s := flatRangeSeries(t, 30, 100, 2)

	hint := Long
	sc, err := NewBuilder(Options{}).Build(s, nil, nil, &hint)
	require.NoError(t, err)

	assert.InDelta(t, 100.0, sc.EntryZone.Conservative, 1e-9)
	assert.InDelta(t, 100.0, sc.EntryZone.Aggressive, 1e-9)
	assert.Nil(t, sc.Basis.EntryLevel)
}

func TestConfidenceFullAgreement(t *testing.T) {
	s := flatRangeSeries(t, 30, 100, 2)
	snap := &indicators.Snapshot{
		MACD: &indicators.MACDSeries{Histogram: []float64{1}},
		RSI:  []float64{55},
		ADX:  &indicators.ADXSeries{ADX: []float64{25}},
	}

	hint := Long
	sc, err := NewBuilder(Options{}).Build(s, snap, nil, &hint)
	require.NoError(t, err)

	// Base 0.20 + MACD 0.30 + RSI 0.30 + ADX 0.20.
	assert.InDelta(t, 1.0, sc.Confidence, 1e-9)
}

func TestConfidencePenalizesOverboughtLong(t *testing.T) {
	s := flatRangeSeries(t, 30, 100, 2)
	snap := &indicators.Snapshot{
		MACD: &indicators.MACDSeries{Histogram: []float64{1}},
		RSI:  []float64{80}, // overbought against a long
		ADX:  &indicators.ADXSeries{ADX: []float64{25}},
	}

	hint := Long
	sc, err := NewBuilder(Options{}).Build(s, snap, nil, &hint)
	require.NoError(t, err)
	assert.InDelta(t, 0.70, sc.Confidence, 1e-9)
}

func TestConfidenceBaseOnly(t *testing.T) {
	s := flatRangeSeries(t, 30, 100, 2)

	hint := Long
	sc, err := NewBuilder(Options{}).Build(s, nil, nil, &hint)
	require.NoError(t, err)
	assert.InDelta(t, 0.20, sc.Confidence, 1e-9)
}

func TestDirectionSign(t *testing.T) {
	assert.Equal(t, 1.0, Long.Sign())
	assert.Equal(t, -1.0, Short.Sign())
}

package candles

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptySeries is returned by consumers that cannot operate on a series
	// with no candles at all.
	ErrEmptySeries = errors.New("candle series is empty")

	// ErrOutOfOrder is returned when an appended candle does not advance the
	// series timestamp.
	ErrOutOfOrder = errors.New("candle timestamp not after last candle")
)

// Candle represents a single OHLCV candle. Immutable once appended to a series.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Body returns the absolute size of the candle body.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns the full high-low range of the candle.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// UpperWick returns the distance from the body top to the high.
func (c Candle) UpperWick() float64 {
	if c.Close >= c.Open {
		return c.High - c.Close
	}
	return c.High - c.Open
}

// LowerWick returns the distance from the body bottom to the low.
func (c Candle) LowerWick() float64 {
	if c.Close >= c.Open {
		return c.Open - c.Low
	}
	return c.Close - c.Low
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish reports whether the candle closed below its open.
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// Series is a time-ordered OHLCV sequence for one symbol and timeframe.
// The series owns its candles; readers get copies via Snapshot and never
// mutate in place.
type Series struct {
	symbol    string
	timeframe time.Duration
	candles   []Candle
}

// NewSeries creates an empty series for the given symbol and timeframe unit.
func NewSeries(symbol string, timeframe time.Duration) *Series {
	return &Series{
		symbol:    symbol,
		timeframe: timeframe,
	}
}

// FromCandles builds a series from pre-sorted candles, validating order.
func FromCandles(symbol string, timeframe time.Duration, cs []Candle) (*Series, error) {
	s := NewSeries(symbol, timeframe)
	for _, c := range cs {
		if err := s.Append(c); err != nil {
			return nil, fmt.Errorf("candle at %s: %w", c.OpenTime, err)
		}
	}
	return s, nil
}

// Append adds a candle to the end of the series. The candle must be strictly
// newer than the current last candle; duplicate timestamps are rejected.
func (s *Series) Append(c Candle) error {
	if n := len(s.candles); n > 0 && !c.OpenTime.After(s.candles[n-1].OpenTime) {
		return ErrOutOfOrder
	}
	s.candles = append(s.candles, c)
	return nil
}

// Symbol returns the symbol the series is tagged with.
func (s *Series) Symbol() string { return s.symbol }

// Timeframe returns the expected spacing between candles.
func (s *Series) Timeframe() time.Duration { return s.timeframe }

// Len returns the number of candles in the series.
func (s *Series) Len() int { return len(s.candles) }

// At returns the candle at index i.
func (s *Series) At(i int) Candle { return s.candles[i] }

// Last returns the most recent candle. The boolean is false for an empty series.
func (s *Series) Last() (Candle, bool) {
	if len(s.candles) == 0 {
		return Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// LastClose returns the close of the most recent candle, or 0 when empty.
func (s *Series) LastClose() float64 {
	if c, ok := s.Last(); ok {
		return c.Close
	}
	return 0
}

// Snapshot returns a copy of the candles. Mutating the returned slice does
// not affect the series.
func (s *Series) Snapshot() []Candle {
	out := make([]Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

// Gap marks a spacing anomaly between two consecutive candles.
type Gap struct {
	Index    int           // index of the candle after the gap
	Expected time.Time     // open time the timeframe predicted
	Actual   time.Time     // open time observed
	Missing  time.Duration // size of the hole
}

// Gaps returns every spot where the timestamp delta between consecutive
// candles exceeds one timeframe unit. Gaps are tolerated, not repaired.
func (s *Series) Gaps() []Gap {
	if s.timeframe <= 0 {
		return nil
	}
	var gaps []Gap
	for i := 1; i < len(s.candles); i++ {
		expected := s.candles[i-1].OpenTime.Add(s.timeframe)
		actual := s.candles[i].OpenTime
		if actual.After(expected) {
			gaps = append(gaps, Gap{
				Index:    i,
				Expected: expected,
				Actual:   actual,
				Missing:  actual.Sub(expected),
			})
		}
	}
	return gaps
}

package levels

import (
	"time"
)

// Kind discriminates the origin of a price level.
type Kind string

const (
	KindFibonacci     Kind = "fibonacci"
	KindSupport       Kind = "support"
	KindResistance    Kind = "resistance"
	KindEMA           Kind = "ema"
	KindLiquidityZone Kind = "liquidity_zone"
)

// Metadata carries kind-specific detail for a level.
type Metadata struct {
	FibRatio    float64 `json:"fib_ratio,omitempty"`    // fibonacci levels
	EMAPeriod   int     `json:"ema_period,omitempty"`   // ema levels
	Position    string  `json:"position,omitempty"`     // "above" or "below" current close
	VolumeRatio float64 `json:"volume_ratio,omitempty"` // liquidity zones
	SwingCount  int     `json:"swing_count,omitempty"`  // swings merged into a support/resistance
	CandleIndex int     `json:"candle_index,omitempty"` // liquidity zone source candle
}

// Level is a derived price level. Levels have no lifecycle of their own;
// regenerating from the same inputs yields the same set.
type Level struct {
	Kind        Kind     `json:"kind"`
	Price       float64  `json:"price"`
	DistancePct float64  `json:"distance_pct"` // signed, relative to current close
	Metadata    Metadata `json:"metadata"`
}

// MarketMeta is the market-data collaborator's contribution: all-time extremes
// and supply context for the symbol under analysis.
type MarketMeta struct {
	AllTimeHigh       float64   `json:"all_time_high"`
	AllTimeLow        float64   `json:"all_time_low"`
	AllTimeHighAt     time.Time `json:"all_time_high_at"`
	AllTimeLowAt      time.Time `json:"all_time_low_at"`
	CirculatingSupply float64   `json:"circulating_supply,omitempty"`
}

// FibRatios are the standard retracement ratios applied between ATH and ATL.
var FibRatios = []float64{0.236, 0.382, 0.5, 0.618, 0.786}

func distancePct(price, close float64) float64 {
	if close == 0 {
		return 0
	}
	return (price - close) / close * 100
}

package scenario

import (
	"time"

	"crypto-scenario-engine/internal/indicators"
	"crypto-scenario-engine/internal/levels"
)

// Direction is the trade direction of a scenario.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Sign returns +1 for long and -1 for short.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// EntryZone holds the two entry styles of a scenario.
type EntryZone struct {
	Conservative float64 `json:"conservative"`
	Aggressive   float64 `json:"aggressive"`
}

// StopLoss holds the two stop styles, always on the loss side of entry.
type StopLoss struct {
	Conservative float64 `json:"conservative"`
	Aggressive   float64 `json:"aggressive"`
}

// Target is one staged take-profit.
type Target struct {
	Label string  `json:"label"`
	Price float64 `json:"price"`
	RR    float64 `json:"rr"` // reward distance over risk distance from the conservative stop
}

// Leverage is the recommendation bucketed by volatility.
type Leverage struct {
	Recommended     int    `json:"recommended"`
	Max             int    `json:"max"`
	VolatilityLevel string `json:"volatility_level"` // low, medium, high
}

// Basis records the inputs the builder leaned on, for auditability.
type Basis struct {
	Trend      indicators.Trend `json:"trend"`
	MACDBias   int              `json:"macd_bias"`
	RSI        float64          `json:"rsi,omitempty"`
	ADX        float64          `json:"adx,omitempty"`
	ATR        float64          `json:"atr"`
	ATRPercent float64          `json:"atr_percent"`
	EntryLevel *levels.Level    `json:"entry_level,omitempty"` // level behind the conservative entry
}

// Scenario is one directional trade plan. Immutable after creation; a new
// generation produces a new Scenario.
type Scenario struct {
	Symbol      string    `json:"symbol"`
	Direction   Direction `json:"direction"`
	EntryZone   EntryZone `json:"entry_zone"`
	StopLoss    StopLoss  `json:"stop_loss"`
	Targets     []Target  `json:"targets"`
	Leverage    Leverage  `json:"leverage"`
	Confidence  float64   `json:"confidence"` // 0..1
	Basis       Basis     `json:"basis"`
	GeneratedAt time.Time `json:"generated_at"`
}

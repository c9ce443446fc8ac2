package scenario

import (
	"errors"
	"fmt"
	"math"

	"crypto-scenario-engine/internal/candles"
	"crypto-scenario-engine/internal/indicators"
	"crypto-scenario-engine/internal/levels"
)

// ErrInsufficientVolatility is returned when ATR is zero or still warming up;
// scale-based entries cannot be derived from a flat market.
var ErrInsufficientVolatility = errors.New("atr is zero or undefined")

// TargetSpec defines one staged take-profit as an ATR multiple from entry.
type TargetSpec struct {
	Label         string  `json:"label"`
	ATRMultiplier float64 `json:"atr_multiplier"`
}

// Options tunes scenario construction. The ATR multipliers are defaults
// carried over from live tuning, not invariants; override as needed.
type Options struct {
	ATRPeriod        int          `json:"atr_period"`        // default 14
	StopConservative float64      `json:"stop_conservative"` // stop distance in ATRs, default 1.0
	StopAggressive   float64      `json:"stop_aggressive"`   // default 0.5
	EntrySearchATR   float64      `json:"entry_search_atr"`  // S/R search radius in ATRs, default 1.0
	Targets          []TargetSpec `json:"targets"`           // default scalp 0.5 / swing 1.0 / extended 2.0
}

// DefaultOptions returns the standard ATR multiplier set.
func DefaultOptions() Options {
	return Options{
		ATRPeriod:        14,
		StopConservative: 1.0,
		StopAggressive:   0.5,
		EntrySearchATR:   1.0,
		Targets: []TargetSpec{
			{Label: "scalp", ATRMultiplier: 0.5},
			{Label: "swing", ATRMultiplier: 1.0},
			{Label: "extended", ATRMultiplier: 2.0},
		},
	}
}

// Builder combines indicators, levels and ATR into trade scenarios.
type Builder struct {
	opts Options
}

// NewBuilder creates a builder, filling zero option fields with defaults.
func NewBuilder(opts Options) *Builder {
	def := DefaultOptions()
	if opts.ATRPeriod <= 0 {
		opts.ATRPeriod = def.ATRPeriod
	}
	if opts.StopConservative <= 0 {
		opts.StopConservative = def.StopConservative
	}
	if opts.StopAggressive <= 0 {
		opts.StopAggressive = def.StopAggressive
	}
	if opts.EntrySearchATR <= 0 {
		opts.EntrySearchATR = def.EntrySearchATR
	}
	if len(opts.Targets) == 0 {
		opts.Targets = def.Targets
	}
	return &Builder{opts: opts}
}

// Build synthesizes a directional scenario. A nil hint lets the trend and
// MACD bias pick the direction. Fails with ErrInsufficientVolatility on a
// zero or undefined ATR; no scenario is ever fabricated from absent data.
func (b *Builder) Build(series *candles.Series, snap *indicators.Snapshot, lvls []levels.Level, hint *Direction) (*Scenario, error) {
	if series == nil || series.Len() == 0 {
		return nil, candles.ErrEmptySeries
	}

	cs := series.Snapshot()
	atr, err := indicators.LatestATR(cs, b.opts.ATRPeriod)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInsufficientVolatility, err)
	}
	if atr <= 0 {
		return nil, ErrInsufficientVolatility
	}

	close := series.LastClose()
	basis := Basis{
		ATR:        atr,
		ATRPercent: atr / close * 100,
	}
	if snap != nil {
		basis.Trend = snap.ClassifyTrend(close)
		if snap.MACD != nil {
			basis.MACDBias = snap.MACD.Bias()
		}
		if rsi, ok := snap.LatestRSI(); ok {
			basis.RSI = rsi
		}
		if snap.ADX != nil {
			if adx := snap.ADX.ADX[len(snap.ADX.ADX)-1]; indicators.Defined(adx) {
				basis.ADX = adx
			}
		}
	}

	direction := b.inferDirection(basis, close, snap, hint)

	entry, entryLevel := b.entryZone(direction, close, atr, lvls)
	basis.EntryLevel = entryLevel

	sign := direction.Sign()
	stop := StopLoss{
		Conservative: entry.Conservative - sign*b.opts.StopConservative*atr,
		Aggressive:   entry.Conservative - sign*b.opts.StopAggressive*atr,
	}

	risk := math.Abs(entry.Conservative - stop.Conservative)
	targets := make([]Target, 0, len(b.opts.Targets))
	for _, spec := range b.opts.Targets {
		price := entry.Conservative + sign*spec.ATRMultiplier*atr
		targets = append(targets, Target{
			Label: spec.Label,
			Price: price,
			RR:    math.Abs(price-entry.Conservative) / risk,
		})
	}

	last, _ := series.Last()
	return &Scenario{
		Symbol:      series.Symbol(),
		Direction:   direction,
		EntryZone:   entry,
		StopLoss:    stop,
		Targets:     targets,
		Leverage:    leverageFor(basis.ATRPercent),
		Confidence:  confidence(direction, basis, snap),
		Basis:       basis,
		GeneratedAt: last.OpenTime,
	}, nil
}

// inferDirection picks the direction from the trend class, falling back to
// the MACD bias and finally the EMA50/EMA200 relationship.
func (b *Builder) inferDirection(basis Basis, close float64, snap *indicators.Snapshot, hint *Direction) Direction {
	if hint != nil {
		return *hint
	}
	switch basis.Trend {
	case indicators.TrendStrongUp, indicators.TrendUp:
		return Long
	case indicators.TrendStrongDown, indicators.TrendDown:
		return Short
	}
	if basis.MACDBias > 0 {
		return Long
	}
	if basis.MACDBias < 0 {
		return Short
	}
	if snap != nil {
		ema50, ok50 := snap.LatestEMA(50)
		ema200, ok200 := snap.LatestEMA(200)
		if ok50 && ok200 && ema50 < ema200 {
			return Short
		}
	}
	return Long
}

// entryZone finds the conservative entry: the nearest support (long) or
// resistance (short) within the ATR search radius. Without one, conservative
// degenerates to the aggressive entry at the current close.
func (b *Builder) entryZone(direction Direction, close, atr float64, lvls []levels.Level) (EntryZone, *levels.Level) {
	zone := EntryZone{Conservative: close, Aggressive: close}
	radius := b.opts.EntrySearchATR * atr

	var best *levels.Level
	for i := range lvls {
		l := lvls[i]
		switch direction {
		case Long:
			if l.Kind != levels.KindSupport || l.Price >= close {
				continue
			}
		case Short:
			if l.Kind != levels.KindResistance || l.Price <= close {
				continue
			}
		}
		if math.Abs(l.Price-close) > radius {
			continue
		}
		if best == nil || math.Abs(l.Price-close) < math.Abs(best.Price-close) {
			lv := l
			best = &lv
		}
	}
	if best != nil {
		zone.Conservative = best.Price
	}
	return zone, best
}

// leverageFor buckets leverage by ATR as a percentage of price.
func leverageFor(atrPct float64) Leverage {
	switch {
	case atrPct < 2:
		return Leverage{Recommended: 3, Max: 10, VolatilityLevel: "low"}
	case atrPct <= 4:
		return Leverage{Recommended: 2, Max: 7, VolatilityLevel: "medium"}
	default:
		// High volatility favors spot-like sizing at the top of the bucket.
		return Leverage{Recommended: 1, Max: 5, VolatilityLevel: "high"}
	}
}

// Per-signal confidence weights. No single signal can reach 1.0 alone.
const (
	confidenceBase      = 0.20
	weightMACDAgrees    = 0.30
	weightRSINotAgainst = 0.30
	weightADXTrending   = 0.20
)

// confidence maps indicator agreement onto [0,1].
func confidence(direction Direction, basis Basis, snap *indicators.Snapshot) float64 {
	score := confidenceBase

	if basis.MACDBias != 0 {
		agrees := (direction == Long && basis.MACDBias > 0) || (direction == Short && basis.MACDBias < 0)
		if agrees {
			score += weightMACDAgrees
		}
	}

	if snap != nil {
		if rsi, ok := snap.LatestRSI(); ok {
			zone := indicators.ClassifyRSI(rsi)
			against := (direction == Long && zone == indicators.RSIOverbought) ||
				(direction == Short && zone == indicators.RSIOversold)
			if !against {
				score += weightRSINotAgainst
			}
		}
	}

	if basis.ADX >= 20 {
		score += weightADXTrending
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

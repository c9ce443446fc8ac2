package levels

import (
	"math"
	"sort"

	"crypto-scenario-engine/internal/candles"
	"crypto-scenario-engine/internal/indicators"
)

// Config tunes level generation.
type Config struct {
	SwingWindow         int     `json:"swing_window"`          // symmetric swing lookback, default 5
	ClusterTolerancePct float64 `json:"cluster_tolerance_pct"` // merge swings within this %, default 1.0
	MaxPerSide          int     `json:"max_per_side"`          // supports/resistances kept nearest to price, default 3
	LiquidityBodyPct    float64 `json:"liquidity_body_pct"`    // min body as % of candle range, default 3.0
	LiquidityVolRatio   float64 `json:"liquidity_vol_ratio"`   // min volume vs trailing average, default 1.8
	VolumeLookback      int     `json:"volume_lookback"`       // trailing average volume window, default 20
	EMAPeriods          []int   `json:"ema_periods"`           // dynamic EMA levels, default 20/50/200
}

// DefaultConfig returns the standard level generation parameters.
func DefaultConfig() Config {
	return Config{
		SwingWindow:         5,
		ClusterTolerancePct: 1.0,
		MaxPerSide:          3,
		LiquidityBodyPct:    3.0,
		LiquidityVolRatio:   1.8,
		VolumeLookback:      20,
		EMAPeriods:          []int{20, 50, 200},
	}
}

// Generator derives price levels from a candle series. Stateless; every call
// with identical inputs yields an identical set.
type Generator struct {
	cfg Config
}

// NewGenerator creates a generator, filling zero config fields with defaults.
func NewGenerator(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.SwingWindow <= 0 {
		cfg.SwingWindow = def.SwingWindow
	}
	if cfg.ClusterTolerancePct <= 0 {
		cfg.ClusterTolerancePct = def.ClusterTolerancePct
	}
	if cfg.MaxPerSide <= 0 {
		cfg.MaxPerSide = def.MaxPerSide
	}
	if cfg.LiquidityBodyPct <= 0 {
		cfg.LiquidityBodyPct = def.LiquidityBodyPct
	}
	if cfg.LiquidityVolRatio <= 0 {
		cfg.LiquidityVolRatio = def.LiquidityVolRatio
	}
	if cfg.VolumeLookback <= 0 {
		cfg.VolumeLookback = def.VolumeLookback
	}
	if len(cfg.EMAPeriods) == 0 {
		cfg.EMAPeriods = def.EMAPeriods
	}
	return &Generator{cfg: cfg}
}

// Generate derives all level kinds for the series. The indicator snapshot is
// optional; without it EMA levels are omitted. Output order is deterministic.
func (g *Generator) Generate(series *candles.Series, meta MarketMeta, snap *indicators.Snapshot) ([]Level, error) {
	if series == nil || series.Len() == 0 {
		return nil, candles.ErrEmptySeries
	}
	close := series.LastClose()

	var out []Level
	out = append(out, g.fibonacciLevels(meta, close)...)
	out = append(out, g.supportResistance(series, close)...)
	out = append(out, g.liquidityZones(series, close)...)
	out = append(out, g.emaLevels(snap, close)...)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Price < out[j].Price
	})
	return out, nil
}

// fibonacciLevels applies the standard ratios between ATH and ATL. When the
// ATH is the more recent extreme the grid retraces down from the high;
// otherwise it extends up from the low.
func (g *Generator) fibonacciLevels(meta MarketMeta, close float64) []Level {
	diff := meta.AllTimeHigh - meta.AllTimeLow
	if diff <= 0 {
		return nil
	}

	fromHigh := !meta.AllTimeHighAt.Before(meta.AllTimeLowAt)
	out := make([]Level, 0, len(FibRatios))
	for _, ratio := range FibRatios {
		var price float64
		if fromHigh {
			price = meta.AllTimeHigh - diff*ratio
		} else {
			price = meta.AllTimeLow + diff*ratio
		}
		out = append(out, Level{
			Kind:        KindFibonacci,
			Price:       price,
			DistancePct: distancePct(price, close),
			Metadata:    Metadata{FibRatio: ratio},
		})
	}
	return out
}

// swing is an intermediate swing point before clustering.
type swing struct {
	price float64
	count int
}

// supportResistance finds swing highs/lows with a symmetric window, collapses
// nearby swings into single levels and keeps the ones nearest to price.
func (g *Generator) supportResistance(series *candles.Series, close float64) []Level {
	cs := series.Snapshot()
	w := g.cfg.SwingWindow

	var highs, lows []float64
	for i := w; i < len(cs)-w; i++ {
		isHigh, isLow := true, true
		for j := i - w; j <= i+w; j++ {
			if j == i {
				continue
			}
			if cs[j].High >= cs[i].High {
				isHigh = false
			}
			if cs[j].Low <= cs[i].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			highs = append(highs, cs[i].High)
		}
		if isLow {
			lows = append(lows, cs[i].Low)
		}
	}

	supports := g.cluster(lows)
	resistances := g.cluster(highs)

	var out []Level
	out = append(out, g.nearestLevels(supports, KindSupport, close)...)
	out = append(out, g.nearestLevels(resistances, KindResistance, close)...)
	return out
}

// cluster merges swing prices within the tolerance into averaged levels.
func (g *Generator) cluster(prices []float64) []swing {
	tolerance := g.cfg.ClusterTolerancePct / 100
	var clusters []swing
	for _, p := range prices {
		merged := false
		for i := range clusters {
			if math.Abs(p-clusters[i].price)/clusters[i].price < tolerance {
				n := float64(clusters[i].count)
				clusters[i].price = (clusters[i].price*n + p) / (n + 1)
				clusters[i].count++
				merged = true
				break
			}
		}
		if !merged {
			clusters = append(clusters, swing{price: p, count: 1})
		}
	}
	return clusters
}

// nearestLevels keeps the MaxPerSide clusters closest to the current close.
func (g *Generator) nearestLevels(clusters []swing, kind Kind, close float64) []Level {
	sort.SliceStable(clusters, func(i, j int) bool {
		return math.Abs(clusters[i].price-close) < math.Abs(clusters[j].price-close)
	})
	if len(clusters) > g.cfg.MaxPerSide {
		clusters = clusters[:g.cfg.MaxPerSide]
	}

	out := make([]Level, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, Level{
			Kind:        kind,
			Price:       c.price,
			DistancePct: distancePct(c.price, close),
			Metadata:    Metadata{SwingCount: c.count},
		})
	}
	return out
}

// liquidityZones marks candles with an oversized body and outsized volume
// relative to the trailing average; the zone sits at the body midpoint.
func (g *Generator) liquidityZones(series *candles.Series, close float64) []Level {
	cs := series.Snapshot()
	avgVol := indicators.CalculateAverageVolume(cs, g.cfg.VolumeLookback)

	var out []Level
	for i, c := range cs {
		if !indicators.Defined(avgVol[i]) || avgVol[i] == 0 || c.Range() == 0 {
			continue
		}
		bodyPct := c.Body() / c.Range() * 100
		volRatio := c.Volume / avgVol[i]
		if bodyPct <= g.cfg.LiquidityBodyPct || volRatio <= g.cfg.LiquidityVolRatio {
			continue
		}
		mid := (c.Open + c.Close) / 2
		out = append(out, Level{
			Kind:        KindLiquidityZone,
			Price:       mid,
			DistancePct: distancePct(mid, close),
			Metadata:    Metadata{VolumeRatio: volRatio, CandleIndex: i},
		})
	}
	return out
}

// emaLevels positions the configured EMAs as dynamic levels.
func (g *Generator) emaLevels(snap *indicators.Snapshot, close float64) []Level {
	if snap == nil {
		return nil
	}
	var out []Level
	for _, period := range g.cfg.EMAPeriods {
		ema, ok := snap.LatestEMA(period)
		if !ok || ema == 0 {
			continue
		}
		// Position records where price sits relative to the EMA.
		position := "below"
		if close > ema {
			position = "above"
		}
		out = append(out, Level{
			Kind:        KindEMA,
			Price:       ema,
			DistancePct: distancePct(ema, close),
			Metadata:    Metadata{EMAPeriod: period, Position: position},
		})
	}
	return out
}

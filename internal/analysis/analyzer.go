package analysis

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"crypto-scenario-engine/internal/candles"
	"crypto-scenario-engine/internal/indicators"
	"crypto-scenario-engine/internal/levels"
	"crypto-scenario-engine/internal/marketdata"
	"crypto-scenario-engine/internal/patterns"
	"crypto-scenario-engine/internal/scenario"
)

// Analysis is the full read-only picture for one symbol and interval.
type Analysis struct {
	Symbol     string               `json:"symbol"`
	Interval   string               `json:"interval"`
	Close      float64              `json:"close"`
	Trend      indicators.Trend     `json:"trend"`
	Indicators *indicators.Snapshot `json:"indicators"`
	Patterns   []patterns.Pattern   `json:"patterns"`
	Levels     []levels.Level       `json:"levels"`
	Meta       levels.MarketMeta    `json:"market_meta"`
}

// Analyzer wires market data through the indicator, pattern and level
// stages. It holds no per-request state and is safe for concurrent use.
type Analyzer struct {
	provider marketdata.Provider
	indCfg   indicators.Config
	detector *patterns.Detector
	levelGen *levels.Generator
	builder  *scenario.Builder
	log      zerolog.Logger
}

// NewAnalyzer creates an analyzer with the given indicator config. Zero-value
// detector, level and scenario settings fall back to their defaults.
func NewAnalyzer(provider marketdata.Provider, indCfg indicators.Config, levelCfg levels.Config, opts scenario.Options, log zerolog.Logger) (*Analyzer, error) {
	if err := indCfg.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{
		provider: provider,
		indCfg:   indCfg,
		detector: patterns.NewDetector(0),
		levelGen: levels.NewGenerator(levelCfg),
		builder:  scenario.NewBuilder(opts),
		log:      log.With().Str("component", "analysis").Logger(),
	}, nil
}

// Analyze fetches candles and runs the full pipeline up to level generation.
func (a *Analyzer) Analyze(ctx context.Context, symbol, interval string, limit int) (*Analysis, error) {
	series, meta, snap, err := a.prepare(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}

	lvls, err := a.levelGen.Generate(series, meta, snap)
	if err != nil {
		return nil, fmt.Errorf("generate levels for %s: %w", symbol, err)
	}

	close := series.LastClose()
	result := &Analysis{
		Symbol:     symbol,
		Interval:   interval,
		Close:      close,
		Trend:      snap.ClassifyTrend(close),
		Indicators: snap,
		Patterns:   a.detector.Detect(series),
		Levels:     lvls,
		Meta:       meta,
	}

	a.log.Debug().
		Str("symbol", symbol).
		Str("interval", interval).
		Int("candles", series.Len()).
		Int("patterns", len(result.Patterns)).
		Int("levels", len(result.Levels)).
		Msg("analysis complete")

	return result, nil
}

// BuildScenario runs the pipeline and produces a trade scenario. A nil hint
// lets the builder infer direction from trend and momentum.
func (a *Analyzer) BuildScenario(ctx context.Context, symbol, interval string, limit int, hint *scenario.Direction) (*scenario.Scenario, error) {
	series, meta, snap, err := a.prepare(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}

	lvls, err := a.levelGen.Generate(series, meta, snap)
	if err != nil {
		return nil, fmt.Errorf("generate levels for %s: %w", symbol, err)
	}

	sc, err := a.builder.Build(series, snap, lvls, hint)
	if err != nil {
		return nil, fmt.Errorf("build scenario for %s: %w", symbol, err)
	}

	a.log.Info().
		Str("symbol", symbol).
		Str("direction", string(sc.Direction)).
		Float64("confidence", sc.Confidence).
		Msg("scenario built")

	return sc, nil
}

func (a *Analyzer) prepare(ctx context.Context, symbol, interval string, limit int) (*candles.Series, levels.MarketMeta, *indicators.Snapshot, error) {
	series, err := a.provider.GetCandles(ctx, symbol, interval, limit)
	if err != nil {
		return nil, levels.MarketMeta{}, nil, fmt.Errorf("fetch candles for %s %s: %w", symbol, interval, err)
	}

	meta, err := a.provider.GetMarketMeta(ctx, symbol)
	if err != nil {
		// All-time extremes are optional inputs. Fibonacci levels are
		// skipped when they are missing.
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("market meta unavailable")
		meta = levels.MarketMeta{}
	}

	snap, err := indicators.Compute(series, a.indCfg)
	if err != nil {
		return nil, levels.MarketMeta{}, nil, fmt.Errorf("compute indicators for %s: %w", symbol, err)
	}

	return series, meta, snap, nil
}

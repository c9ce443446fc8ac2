package indicators

import (
	"errors"
	"fmt"

	"crypto-scenario-engine/internal/candles"
)

var (
	// ErrInvalidConfig indicates contradictory indicator parameters.
	ErrInvalidConfig = errors.New("invalid indicator configuration")

	// ErrInsufficientData indicates a series too short for an indicator's
	// warm-up window. Compute recovers from it per indicator; it is surfaced
	// directly only by single-indicator helpers.
	ErrInsufficientData = errors.New("insufficient candle data")
)

// RSIConfig configures the RSI calculation.
type RSIConfig struct {
	Period int `json:"period"`
}

// MACDConfig configures the MACD calculation.
type MACDConfig struct {
	FastPeriod   int `json:"fast"`
	SlowPeriod   int `json:"slow"`
	SignalPeriod int `json:"signal"`
}

// EMAConfig configures which EMA periods are computed.
type EMAConfig struct {
	Periods []int `json:"periods"`
}

// SMAConfig configures which SMA periods are computed.
type SMAConfig struct {
	Periods []int `json:"periods"`
}

// BollingerConfig configures the Bollinger Band calculation.
type BollingerConfig struct {
	Period int     `json:"period"`
	StdDev float64 `json:"stddev"`
}

// StochasticConfig configures the Stochastic Oscillator calculation.
type StochasticConfig struct {
	KPeriod int `json:"k_period"`
	DPeriod int `json:"d_period"`
}

// ADXConfig configures the ADX calculation.
type ADXConfig struct {
	Period int `json:"period"`
}

// Config enumerates the requested indicators. A nil section skips that
// indicator entirely.
type Config struct {
	RSI        *RSIConfig        `json:"rsi,omitempty"`
	MACD       *MACDConfig       `json:"macd,omitempty"`
	EMA        *EMAConfig        `json:"ema,omitempty"`
	SMA        *SMAConfig        `json:"sma,omitempty"`
	Bollinger  *BollingerConfig  `json:"bollinger,omitempty"`
	Stochastic *StochasticConfig `json:"stochastic,omitempty"`
	ADX        *ADXConfig        `json:"adx,omitempty"`
	OBV        bool              `json:"obv,omitempty"`
}

// DefaultConfig returns the standard indicator set: RSI(14), MACD(12,26,9),
// EMA(20/50/200), SMA(200), Bollinger(20, 2.0), Stochastic(14,3), ADX(14), OBV.
func DefaultConfig() Config {
	return Config{
		RSI:        &RSIConfig{Period: 14},
		MACD:       &MACDConfig{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9},
		EMA:        &EMAConfig{Periods: []int{20, 50, 200}},
		SMA:        &SMAConfig{Periods: []int{200}},
		Bollinger:  &BollingerConfig{Period: 20, StdDev: 2.0},
		Stochastic: &StochasticConfig{KPeriod: 14, DPeriod: 3},
		ADX:        &ADXConfig{Period: 14},
		OBV:        true,
	}
}

// Validate checks the configuration for contradictory parameters.
func (c Config) Validate() error {
	if c.RSI != nil && c.RSI.Period <= 0 {
		return fmt.Errorf("%w: rsi period must be positive", ErrInvalidConfig)
	}
	if c.MACD != nil {
		if c.MACD.FastPeriod <= 0 || c.MACD.SlowPeriod <= 0 || c.MACD.SignalPeriod <= 0 {
			return fmt.Errorf("%w: macd periods must be positive", ErrInvalidConfig)
		}
		if c.MACD.FastPeriod >= c.MACD.SlowPeriod {
			return fmt.Errorf("%w: macd fast period %d must be below slow period %d",
				ErrInvalidConfig, c.MACD.FastPeriod, c.MACD.SlowPeriod)
		}
	}
	for _, p := range periodsOf(c.EMA, c.SMA) {
		if p <= 0 {
			return fmt.Errorf("%w: moving average period must be positive", ErrInvalidConfig)
		}
	}
	if c.Bollinger != nil && (c.Bollinger.Period <= 0 || c.Bollinger.StdDev <= 0) {
		return fmt.Errorf("%w: bollinger period and stddev must be positive", ErrInvalidConfig)
	}
	if c.Stochastic != nil && (c.Stochastic.KPeriod <= 0 || c.Stochastic.DPeriod <= 0) {
		return fmt.Errorf("%w: stochastic periods must be positive", ErrInvalidConfig)
	}
	if c.ADX != nil && c.ADX.Period <= 0 {
		return fmt.Errorf("%w: adx period must be positive", ErrInvalidConfig)
	}
	return nil
}

func periodsOf(ema *EMAConfig, sma *SMAConfig) []int {
	var out []int
	if ema != nil {
		out = append(out, ema.Periods...)
	}
	if sma != nil {
		out = append(out, sma.Periods...)
	}
	return out
}

// Snapshot holds per-candle-index indicator series for one computed series.
// All populated slices are exactly Length long; NaN marks warm-up indices.
// Indicators that could not be computed at all are listed in Missing and
// their slices stay nil.
type Snapshot struct {
	Length     int
	RSI        []float64
	MACD       *MACDSeries
	EMA        map[int][]float64
	SMA        map[int][]float64
	Bollinger  *BollingerSeries
	Stochastic *StochasticSeries
	ADX        *ADXSeries
	OBV        []float64
	Missing    []string
}

// Compute calculates every requested indicator over the series. Indicators
// whose warm-up exceeds the series length are skipped and reported in
// Missing rather than failing the whole computation. An empty series is
// fatal; a contradictory config is fatal.
func Compute(series *candles.Series, cfg Config) (*Snapshot, error) {
	if series == nil || series.Len() == 0 {
		return nil, candles.ErrEmptySeries
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cs := series.Snapshot()
	closes := make([]float64, len(cs))
	for i, c := range cs {
		closes[i] = c.Close
	}

	snap := &Snapshot{Length: len(cs)}

	if cfg.RSI != nil {
		if len(cs) >= cfg.RSI.Period+1 {
			snap.RSI = CalculateRSI(closes, cfg.RSI.Period)
		} else {
			snap.Missing = append(snap.Missing, "rsi")
		}
	}
	if cfg.MACD != nil {
		if len(cs) >= cfg.MACD.SlowPeriod+cfg.MACD.SignalPeriod {
			snap.MACD = CalculateMACD(closes, cfg.MACD.FastPeriod, cfg.MACD.SlowPeriod, cfg.MACD.SignalPeriod)
		} else {
			snap.Missing = append(snap.Missing, "macd")
		}
	}
	if cfg.EMA != nil {
		snap.EMA = make(map[int][]float64, len(cfg.EMA.Periods))
		for _, p := range cfg.EMA.Periods {
			if len(cs) >= p {
				snap.EMA[p] = CalculateEMA(closes, p)
			} else {
				snap.Missing = append(snap.Missing, fmt.Sprintf("ema%d", p))
			}
		}
	}
	if cfg.SMA != nil {
		snap.SMA = make(map[int][]float64, len(cfg.SMA.Periods))
		for _, p := range cfg.SMA.Periods {
			if len(cs) >= p {
				snap.SMA[p] = CalculateSMA(closes, p)
			} else {
				snap.Missing = append(snap.Missing, fmt.Sprintf("sma%d", p))
			}
		}
	}
	if cfg.Bollinger != nil {
		if len(cs) >= cfg.Bollinger.Period {
			snap.Bollinger = CalculateBollingerBands(closes, cfg.Bollinger.Period, cfg.Bollinger.StdDev)
		} else {
			snap.Missing = append(snap.Missing, "bollinger")
		}
	}
	if cfg.Stochastic != nil {
		if len(cs) >= cfg.Stochastic.KPeriod+cfg.Stochastic.DPeriod-1 {
			snap.Stochastic = CalculateStochastic(cs, cfg.Stochastic.KPeriod, cfg.Stochastic.DPeriod)
		} else {
			snap.Missing = append(snap.Missing, "stochastic")
		}
	}
	if cfg.ADX != nil {
		if len(cs) >= 2*cfg.ADX.Period+1 {
			snap.ADX = CalculateADX(cs, cfg.ADX.Period)
		} else {
			snap.Missing = append(snap.Missing, "adx")
		}
	}
	if cfg.OBV {
		snap.OBV = CalculateOBV(cs)
	}

	return snap, nil
}

// LatestEMA returns the most recent EMA value for the given period, with ok
// false when the period was not computed or is still warming up.
func (s *Snapshot) LatestEMA(period int) (float64, bool) {
	return latest(s.EMA[period])
}

// LatestSMA returns the most recent SMA value for the given period.
func (s *Snapshot) LatestSMA(period int) (float64, bool) {
	return latest(s.SMA[period])
}

// LatestRSI returns the most recent RSI value.
func (s *Snapshot) LatestRSI() (float64, bool) {
	return latest(s.RSI)
}

func latest(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	v := vals[len(vals)-1]
	if !Defined(v) {
		return 0, false
	}
	return v, true
}

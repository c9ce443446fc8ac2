package indicators

// RSIZone classifies an RSI reading.
type RSIZone string

const (
	RSIOverbought RSIZone = "overbought"
	RSIOversold   RSIZone = "oversold"
	RSINeutral    RSIZone = "neutral"
)

// ClassifyRSI buckets an RSI value with the standard 70/30 thresholds.
func ClassifyRSI(rsi float64) RSIZone {
	switch {
	case rsi > 70:
		return RSIOverbought
	case rsi < 30:
		return RSIOversold
	default:
		return RSINeutral
	}
}

// MACDCross identifies signal-line crossovers on the latest two candles.
type MACDCross string

const (
	MACDBullishCross MACDCross = "bullish_cross"
	MACDBearishCross MACDCross = "bearish_cross"
	MACDNoCross      MACDCross = "none"
)

// LatestCross reports whether the MACD line crossed its signal line between
// the last two defined indices.
func (m *MACDSeries) LatestCross() MACDCross {
	n := len(m.Line)
	if n < 2 || !Defined(m.Signal[n-1]) || !Defined(m.Signal[n-2]) {
		return MACDNoCross
	}
	prevDiff := m.Line[n-2] - m.Signal[n-2]
	currDiff := m.Line[n-1] - m.Signal[n-1]
	switch {
	case prevDiff <= 0 && currDiff > 0:
		return MACDBullishCross
	case prevDiff >= 0 && currDiff < 0:
		return MACDBearishCross
	default:
		return MACDNoCross
	}
}

// Bias reports the direction of the latest histogram value: +1 bullish,
// -1 bearish, 0 undefined or flat.
func (m *MACDSeries) Bias() int {
	n := len(m.Histogram)
	if n == 0 || !Defined(m.Histogram[n-1]) {
		return 0
	}
	switch {
	case m.Histogram[n-1] > 0:
		return 1
	case m.Histogram[n-1] < 0:
		return -1
	default:
		return 0
	}
}

// Trend classifies price behaviour relative to the EMA pair.
type Trend string

const (
	TrendStrongUp   Trend = "strong_up"
	TrendUp         Trend = "up"
	TrendSideways   Trend = "sideways"
	TrendDown       Trend = "down"
	TrendStrongDown Trend = "strong_down"
)

// trendSlopeWindow is how many candles back the EMA slope is measured.
const trendSlopeWindow = 10

// ClassifyTrend derives a trend class from the close position relative to
// EMA50/EMA200 and the EMA50 slope over the last few candles. Falls back to
// sideways when either EMA is unavailable.
func (s *Snapshot) ClassifyTrend(close float64) Trend {
	ema50, ok50 := s.LatestEMA(50)
	ema200, ok200 := s.LatestEMA(200)
	if !ok50 || !ok200 {
		return TrendSideways
	}

	slopeUp := true
	if series := s.EMA[50]; len(series) > trendSlopeWindow {
		past := series[len(series)-1-trendSlopeWindow]
		if Defined(past) {
			slopeUp = ema50 >= past
		}
	}

	switch {
	case close > ema50 && ema50 > ema200:
		if slopeUp {
			return TrendStrongUp
		}
		return TrendUp
	case close > ema200:
		if slopeUp {
			return TrendUp
		}
		return TrendSideways
	case close < ema50 && ema50 < ema200:
		if !slopeUp {
			return TrendStrongDown
		}
		return TrendDown
	case close < ema200:
		if !slopeUp {
			return TrendDown
		}
		return TrendSideways
	default:
		return TrendSideways
	}
}

// BollingerPosition classifies where the close sits relative to the bands.
type BollingerPosition string

const (
	BollingerAboveUpper BollingerPosition = "above_upper"
	BollingerUpperHalf  BollingerPosition = "upper_half"
	BollingerLowerHalf  BollingerPosition = "lower_half"
	BollingerBelowLower BollingerPosition = "below_lower"
)

// PositionAt classifies the close at index i against the bands at index i.
func (b *BollingerSeries) PositionAt(i int, close float64) (BollingerPosition, bool) {
	if i < 0 || i >= len(b.Middle) || !Defined(b.Middle[i]) {
		return "", false
	}
	switch {
	case close > b.Upper[i]:
		return BollingerAboveUpper, true
	case close >= b.Middle[i]:
		return BollingerUpperHalf, true
	case close > b.Lower[i]:
		return BollingerLowerHalf, true
	default:
		return BollingerBelowLower, true
	}
}

// ADXStrength buckets trend strength from an ADX value.
type ADXStrength string

const (
	ADXWeak     ADXStrength = "weak"
	ADXModerate ADXStrength = "moderate"
	ADXStrong   ADXStrength = "strong"
)

// ClassifyADX buckets an ADX value: weak below 20, strong above 40.
func ClassifyADX(adx float64) ADXStrength {
	switch {
	case adx < 20:
		return ADXWeak
	case adx <= 40:
		return ADXModerate
	default:
		return ADXStrong
	}
}

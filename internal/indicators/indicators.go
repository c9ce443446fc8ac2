package indicators

import (
	"fmt"
	"math"

	"crypto-scenario-engine/internal/candles"
)

// All series calculators return one value per input candle. Indices inside
// the warm-up window hold NaN; past warm-up every value is a real number.

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// CalculateSMA calculates a Simple Moving Average series.
func CalculateSMA(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) < period {
		return out
	}

	sum := 0.0
	for i, c := range closes {
		sum += c
		if i >= period {
			sum -= closes[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// CalculateEMA calculates an Exponential Moving Average series, seeded with
// the SMA of the first period closes.
func CalculateEMA(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) < period {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += closes[i]
	}
	ema := sum / float64(period)
	out[period-1] = ema

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(closes); i++ {
		ema = (closes[i] * multiplier) + (ema * (1 - multiplier))
		out[i] = ema
	}
	return out
}

// ============================================================================
// RSI (Relative Strength Index)
// ============================================================================

// CalculateRSI calculates the Relative Strength Index series using Wilder's
// smoothing. The first period indices are warm-up.
func CalculateRSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFromAverages(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ============================================================================
// MACD (Moving Average Convergence Divergence)
// ============================================================================

// MACDSeries holds the MACD line, signal line and histogram series.
type MACDSeries struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// CalculateMACD calculates the MACD line as EMA(fast) - EMA(slow), the signal
// line as an EMA of the MACD line itself, and the histogram as their difference.
func CalculateMACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) *MACDSeries {
	n := len(closes)
	result := &MACDSeries{
		Line:      nanSlice(n),
		Signal:    nanSlice(n),
		Histogram: nanSlice(n),
	}
	if n < slowPeriod+signalPeriod {
		return result
	}

	fast := CalculateEMA(closes, fastPeriod)
	slow := CalculateEMA(closes, slowPeriod)
	for i := slowPeriod - 1; i < n; i++ {
		result.Line[i] = fast[i] - slow[i]
	}

	// Signal line: EMA over the defined part of the MACD line.
	macdValues := result.Line[slowPeriod-1:]
	signal := CalculateEMA(macdValues, signalPeriod)
	for i, v := range signal {
		idx := slowPeriod - 1 + i
		result.Signal[idx] = v
		if !math.IsNaN(v) {
			result.Histogram[idx] = result.Line[idx] - v
		}
	}
	return result
}

// ============================================================================
// BOLLINGER BANDS
// ============================================================================

// BollingerSeries holds the Bollinger Band series plus relative band width.
type BollingerSeries struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
	Width  []float64 // (upper - lower) / middle
}

// CalculateBollingerBands calculates Bollinger Bands with the given SMA
// period and standard deviation multiplier.
func CalculateBollingerBands(closes []float64, period int, stdDevMultiplier float64) *BollingerSeries {
	n := len(closes)
	result := &BollingerSeries{
		Upper:  nanSlice(n),
		Middle: CalculateSMA(closes, period),
		Lower:  nanSlice(n),
		Width:  nanSlice(n),
	}
	if period <= 0 || n < period {
		return result
	}

	for i := period - 1; i < n; i++ {
		middle := result.Middle[i]
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			diff := closes[j] - middle
			variance += diff * diff
		}
		stdDev := math.Sqrt(variance / float64(period))

		result.Upper[i] = middle + stdDev*stdDevMultiplier
		result.Lower[i] = middle - stdDev*stdDevMultiplier
		if middle != 0 {
			result.Width[i] = (result.Upper[i] - result.Lower[i]) / middle
		}
	}
	return result
}

// ============================================================================
// STOCHASTIC OSCILLATOR
// ============================================================================

// StochasticSeries holds the %K and %D oscillator series.
type StochasticSeries struct {
	K []float64
	D []float64
}

// CalculateStochastic calculates the Stochastic Oscillator. %K uses the
// highest high and lowest low over kPeriod candles; %D is the SMA of %K
// over dPeriod values.
func CalculateStochastic(cs []candles.Candle, kPeriod, dPeriod int) *StochasticSeries {
	n := len(cs)
	result := &StochasticSeries{
		K: nanSlice(n),
		D: nanSlice(n),
	}
	if kPeriod <= 0 || n < kPeriod {
		return result
	}

	for i := kPeriod - 1; i < n; i++ {
		highest := cs[i-kPeriod+1].High
		lowest := cs[i-kPeriod+1].Low
		for j := i - kPeriod + 2; j <= i; j++ {
			if cs[j].High > highest {
				highest = cs[j].High
			}
			if cs[j].Low < lowest {
				lowest = cs[j].Low
			}
		}
		if highest == lowest {
			result.K[i] = 50
		} else {
			result.K[i] = (cs[i].Close - lowest) / (highest - lowest) * 100
		}
	}

	// %D: simple average of the last dPeriod defined %K values.
	for i := kPeriod - 1 + dPeriod - 1; i < n; i++ {
		sum := 0.0
		for j := i - dPeriod + 1; j <= i; j++ {
			sum += result.K[j]
		}
		result.D[i] = sum / float64(dPeriod)
	}
	return result
}

// ============================================================================
// ATR (Average True Range)
// ============================================================================

// CalculateTrueRange calculates the true range series. Index 0 is the plain
// high-low range since no previous close exists.
func CalculateTrueRange(cs []candles.Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		if i == 0 {
			out[i] = c.High - c.Low
			continue
		}
		prevClose := cs[i-1].Close
		out[i] = math.Max(c.High-c.Low,
			math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
	}
	return out
}

// CalculateATR calculates the Average True Range series as a rolling average
// of the true range.
func CalculateATR(cs []candles.Candle, period int) []float64 {
	out := nanSlice(len(cs))
	if period <= 0 || len(cs) < period+1 {
		return out
	}

	tr := CalculateTrueRange(cs)
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	out[period] = sum / float64(period)
	for i := period + 1; i < len(cs); i++ {
		sum += tr[i] - tr[i-period]
		out[i] = sum / float64(period)
	}
	return out
}

// LatestATR returns the most recent ATR value, or ErrInsufficientData while
// the series is still inside the warm-up window.
func LatestATR(cs []candles.Candle, period int) (float64, error) {
	atr := CalculateATR(cs, period)
	if len(atr) == 0 || !Defined(atr[len(atr)-1]) {
		return 0, fmt.Errorf("%w: atr(%d) needs %d candles, have %d",
			ErrInsufficientData, period, period+1, len(cs))
	}
	return atr[len(atr)-1], nil
}

// ============================================================================
// ADX (Average Directional Index)
// ============================================================================

// ADXSeries holds the ADX series with its directional components.
type ADXSeries struct {
	ADX     []float64
	PlusDI  []float64
	MinusDI []float64
}

// CalculateADX calculates the Average Directional Index with +DI/-DI using
// Wilder's smoothing. ADX needs 2*period candles of warm-up.
func CalculateADX(cs []candles.Candle, period int) *ADXSeries {
	n := len(cs)
	result := &ADXSeries{
		ADX:     nanSlice(n),
		PlusDI:  nanSlice(n),
		MinusDI: nanSlice(n),
	}
	if period <= 0 || n < 2*period+1 {
		return result
	}

	tr := CalculateTrueRange(cs)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		upMove := cs[i].High - cs[i-1].High
		downMove := cs[i-1].Low - cs[i].Low
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	// Wilder smoothing of TR and directional movement.
	smTR, smPlus, smMinus := 0.0, 0.0, 0.0
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := nanSlice(n)
	for i := period; i < n; i++ {
		if i > period {
			smTR = smTR - smTR/float64(period) + tr[i]
			smPlus = smPlus - smPlus/float64(period) + plusDM[i]
			smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		}
		if smTR == 0 {
			continue
		}
		pdi := smPlus / smTR * 100
		mdi := smMinus / smTR * 100
		result.PlusDI[i] = pdi
		result.MinusDI[i] = mdi
		if pdi+mdi != 0 {
			dx[i] = math.Abs(pdi-mdi) / (pdi + mdi) * 100
		} else {
			dx[i] = 0
		}
	}

	// ADX: Wilder average of DX.
	sum := 0.0
	for i := period; i < 2*period; i++ {
		sum += dx[i]
	}
	adx := sum / float64(period)
	result.ADX[2*period-1] = adx
	for i := 2 * period; i < n; i++ {
		adx = (adx*float64(period-1) + dx[i]) / float64(period)
		result.ADX[i] = adx
	}
	return result
}

// ============================================================================
// OBV (On-Balance Volume)
// ============================================================================

// CalculateOBV calculates the On-Balance Volume series, starting from zero.
func CalculateOBV(cs []candles.Candle) []float64 {
	out := make([]float64, len(cs))
	for i := 1; i < len(cs); i++ {
		switch {
		case cs[i].Close > cs[i-1].Close:
			out[i] = out[i-1] + cs[i].Volume
		case cs[i].Close < cs[i-1].Close:
			out[i] = out[i-1] - cs[i].Volume
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// ============================================================================
// VOLUME
// ============================================================================

// CalculateAverageVolume calculates the trailing average volume series over
// period candles, excluding the current candle.
func CalculateAverageVolume(cs []candles.Candle, period int) []float64 {
	out := nanSlice(len(cs))
	if period <= 0 || len(cs) < period+1 {
		return out
	}
	sum := 0.0
	for i := 0; i < len(cs); i++ {
		if i >= period {
			out[i] = sum / float64(period)
			sum -= cs[i-period].Volume
		}
		sum += cs[i].Volume
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Defined reports whether a snapshot value is past its warm-up window.
func Defined(v float64) bool {
	return !math.IsNaN(v)
}

package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyRSI(t *testing.T) {
	assert.Equal(t, RSIOverbought, ClassifyRSI(75))
	assert.Equal(t, RSIOversold, ClassifyRSI(25))
	assert.Equal(t, RSINeutral, ClassifyRSI(50))
	assert.Equal(t, RSINeutral, ClassifyRSI(70))
	assert.Equal(t, RSINeutral, ClassifyRSI(30))
}

func TestMACDLatestCross(t *testing.T) {
	nan := math.NaN()

	bullish := &MACDSeries{
		Line:   []float64{-1, 0.5},
		Signal: []float64{0, 0},
	}
	assert.Equal(t, MACDBullishCross, bullish.LatestCross())

	bearish := &MACDSeries{
		Line:   []float64{1, -0.5},
		Signal: []float64{0, 0},
	}
	assert.Equal(t, MACDBearishCross, bearish.LatestCross())

	none := &MACDSeries{
		Line:   []float64{1, 2},
		Signal: []float64{0, 0},
	}
	assert.Equal(t, MACDNoCross, none.LatestCross())

	warmingUp := &MACDSeries{
		Line:   []float64{nan, 1},
		Signal: []float64{nan, 0},
	}
	assert.Equal(t, MACDNoCross, warmingUp.LatestCross())
}

func TestMACDBias(t *testing.T) {
	assert.Equal(t, 1, (&MACDSeries{Histogram: []float64{0.3}}).Bias())
	assert.Equal(t, -1, (&MACDSeries{Histogram: []float64{-0.3}}).Bias())
	assert.Equal(t, 0, (&MACDSeries{Histogram: []float64{0}}).Bias())
	assert.Equal(t, 0, (&MACDSeries{Histogram: []float64{math.NaN()}}).Bias())
	assert.Equal(t, 0, (&MACDSeries{}).Bias())
}

// emaRamp builds an EMA slice ending at end, rising when up is true.
func emaRamp(n int, end float64, up bool) []float64 {
	out := make([]float64, n)
	for i := range out {
		offset := float64(n - 1 - i)
		if up {
			out[i] = end - offset
		} else {
			out[i] = end + offset
		}
	}
	return out
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		name   string
		close  float64
		ema50  []float64
		ema200 []float64
		want   Trend
	}{
		{"strong up", 110, emaRamp(15, 105, true), emaRamp(15, 100, true), TrendStrongUp},
		{"up when slope flat", 110, emaRamp(15, 105, false), emaRamp(15, 100, true), TrendUp},
		{"strong down", 90, emaRamp(15, 95, false), emaRamp(15, 100, false), TrendStrongDown},
		{"down when slope rising", 90, emaRamp(15, 95, true), emaRamp(15, 100, true), TrendDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &Snapshot{EMA: map[int][]float64{50: tt.ema50, 200: tt.ema200}}
			assert.Equal(t, tt.want, snap.ClassifyTrend(tt.close))
		})
	}
}

func TestClassifyTrendFallsBackToSideways(t *testing.T) {
	snap := &Snapshot{EMA: map[int][]float64{50: emaRamp(15, 105, true)}}
	assert.Equal(t, TrendSideways, snap.ClassifyTrend(110))
}

func TestBollingerPositionAt(t *testing.T) {
	b := &BollingerSeries{
		Upper:  []float64{110},
		Middle: []float64{100},
		Lower:  []float64{90},
	}

	pos, ok := b.PositionAt(0, 115)
	require.True(t, ok)
	assert.Equal(t, BollingerAboveUpper, pos)

	pos, _ = b.PositionAt(0, 105)
	assert.Equal(t, BollingerUpperHalf, pos)

	pos, _ = b.PositionAt(0, 95)
	assert.Equal(t, BollingerLowerHalf, pos)

	pos, _ = b.PositionAt(0, 85)
	assert.Equal(t, BollingerBelowLower, pos)

	_, ok = b.PositionAt(5, 100)
	assert.False(t, ok)
}

func TestClassifyADX(t *testing.T) {
	assert.Equal(t, ADXWeak, ClassifyADX(15))
	assert.Equal(t, ADXModerate, ClassifyADX(20))
	assert.Equal(t, ADXModerate, ClassifyADX(40))
	assert.Equal(t, ADXStrong, ClassifyADX(45))
}

package feed

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-scenario-engine/internal/candles"
	"crypto-scenario-engine/internal/forwardtest"
	"crypto-scenario-engine/internal/scenario"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func testSession(t *testing.T) *forwardtest.Session {
	t.Helper()
	seq := 0
	return forwardtest.NewSession("feed-test", forwardtest.Config{
		Logger: zerolog.Nop(),
		IDFunc: func() string {
			seq++
			return fmt.Sprintf("pos-%d", seq)
		},
	})
}

func openLong(t *testing.T, s *forwardtest.Session) *forwardtest.Position {
	t.Helper()
	pos, err := s.OpenFromScenario(&scenario.Scenario{
		Symbol:    "BTCUSDT",
		Direction: scenario.Long,
		EntryZone: scenario.EntryZone{Conservative: 99, Aggressive: 100},
		StopLoss:  scenario.StopLoss{Conservative: 95, Aggressive: 97.5},
		Targets: []scenario.Target{
			{Label: "scalp", Price: 102},
			{Label: "swing", Price: 104},
		},
	}, 1, t0)
	require.NoError(t, err)
	return pos
}

func TestDriveReplaySource(t *testing.T) {
	s := testSession(t)
	pos := openLong(t, s)

	src := NewReplaySource([]forwardtest.Tick{
		{Price: 101, At: t0.Add(time.Minute)},
		{Price: math.NaN(), At: t0.Add(2 * time.Minute)},
		{Price: 105, At: t0.Add(3 * time.Minute)},
	})

	accepted, rejected, err := Drive(context.Background(), src, s)
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, forwardtest.StatusClosedByTarget, pos.Status)
}

// stuckSource never emits and never closes; only cancellation ends it.
type stuckSource struct{}

func (stuckSource) Ticks(ctx context.Context) (<-chan forwardtest.Tick, error) {
	return make(chan forwardtest.Tick), nil
}

func TestDriveCancellation(t *testing.T) {
	s := testSession(t)
	openLong(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Drive(ctx, stuckSource{}, s)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReplaySourceCopiesInput(t *testing.T) {
	ticks := []forwardtest.Tick{{Price: 100, At: t0}}
	src := NewReplaySource(ticks)
	ticks[0].Price = 999

	ch, err := src.Ticks(context.Background())
	require.NoError(t, err)
	got := <-ch
	assert.InDelta(t, 100.0, got.Price, 1e-9)
}

func TestFromSeriesEmitsOneTickPerCandle(t *testing.T) {
	cs := make([]candles.Candle, 5)
	for i := range cs {
		cs[i] = candles.Candle{
			OpenTime: t0.Add(time.Duration(i) * time.Hour),
			Open:     100, High: 101, Low: 99, Close: 100 + float64(i), Volume: 10,
		}
	}
	series, err := candles.FromCandles("BTCUSDT", time.Hour, cs)
	require.NoError(t, err)

	src := FromSeries(series)
	ch, err := src.Ticks(context.Background())
	require.NoError(t, err)

	var got []forwardtest.Tick
	for tick := range ch {
		got = append(got, tick)
	}
	require.Len(t, got, 5)
	assert.InDelta(t, 100.0, got[0].Price, 1e-9)
	assert.InDelta(t, 104.0, got[4].Price, 1e-9)
	assert.Equal(t, cs[4].OpenTime, got[4].At)
}

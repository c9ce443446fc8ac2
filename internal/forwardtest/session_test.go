package forwardtest

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-scenario-engine/internal/scenario"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	seq := 0
	return Config{
		Logger: zerolog.Nop(),
		IDFunc: func() string {
			seq++
			return fmt.Sprintf("pos-%d", seq)
		},
	}
}

func longScenario() *scenario.Scenario {
	return &scenario.Scenario{
		Symbol:    "BTCUSDT",
		Direction: scenario.Long,
		EntryZone: scenario.EntryZone{Conservative: 99, Aggressive: 100},
		StopLoss:  scenario.StopLoss{Conservative: 95, Aggressive: 97.5},
		Targets: []scenario.Target{
			{Label: "scalp", Price: 102, RR: 0.4},
			{Label: "swing", Price: 104, RR: 0.8},
			{Label: "extended", Price: 108, RR: 1.6},
		},
		GeneratedAt: t0,
	}
}

func shortScenario() *scenario.Scenario {
	return &scenario.Scenario{
		Symbol:    "BTCUSDT",
		Direction: scenario.Short,
		EntryZone: scenario.EntryZone{Conservative: 101, Aggressive: 100},
		StopLoss:  scenario.StopLoss{Conservative: 105, Aggressive: 102.5},
		Targets: []scenario.Target{
			{Label: "scalp", Price: 98, RR: 0.4},
			{Label: "swing", Price: 96, RR: 0.8},
			{Label: "extended", Price: 92, RR: 1.6},
		},
		GeneratedAt: t0,
	}
}

func at(i int) time.Time { return t0.Add(time.Duration(i) * time.Minute) }

func TestOpenFromScenarioValidation(t *testing.T) {
	s := NewSession("s1", testConfig())

	_, err := s.OpenFromScenario(nil, 1, at(0))
	assert.ErrorIs(t, err, ErrBadScenario)

	_, err = s.OpenFromScenario(longScenario(), 0, at(0))
	assert.ErrorIs(t, err, ErrBadScenario)

	_, err = s.OpenFromScenario(longScenario(), -2, at(0))
	assert.ErrorIs(t, err, ErrBadScenario)

	// Stop on the profit side of entry.
	bad := longScenario()
	bad.StopLoss.Conservative = 105
	_, err = s.OpenFromScenario(bad, 1, at(0))
	assert.ErrorIs(t, err, ErrBadScenario)

	// Targets not monotonic in the profit direction.
	bad = longScenario()
	bad.Targets[2].Price = 103
	_, err = s.OpenFromScenario(bad, 1, at(0))
	assert.ErrorIs(t, err, ErrBadScenario)

	assert.Zero(t, s.Stats().OpenedCount)
}

func TestOpenRejectsTargetOnLossSide(t *testing.T) {
	s := NewSession("s1", testConfig())

	// Monotonic targets whose first stage sits below a long entry would let
	// any tick above it book a losing fill labeled as a target.
	bad := longScenario()
	bad.Targets[0].Price = 97
	_, err := s.OpenFromScenario(bad, 1, at(0))
	assert.ErrorIs(t, err, ErrBadScenario)

	bad = shortScenario()
	bad.Targets[0].Price = 103
	_, err = s.OpenFromScenario(bad, 1, at(0))
	assert.ErrorIs(t, err, ErrBadScenario)

	require.NoError(t, s.OnTick(98, at(1)))
	assert.Zero(t, s.Stats().OpenedCount)
	assert.True(t, s.Stats().RealizedPnL.IsZero())
}

func TestOpenUsesEntryMode(t *testing.T) {
	aggressive := NewSession("s1", testConfig())
	pos, err := aggressive.OpenFromScenario(longScenario(), 1, at(0))
	require.NoError(t, err)
	assert.InDelta(t, 100.0, pos.EntryPrice, 1e-9)
	assert.Equal(t, StatusOpen, pos.Status)

	cfg := testConfig()
	cfg.EntryMode = EntryConservative
	conservative := NewSession("s2", cfg)
	pos, err = conservative.OpenFromScenario(longScenario(), 1, at(0))
	require.NoError(t, err)
	assert.InDelta(t, 99.0, pos.EntryPrice, 1e-9)
}

func TestTargetAllocationsSumToOne(t *testing.T) {
	s := NewSession("s1", testConfig())
	pos, err := s.OpenFromScenario(longScenario(), 1, at(0))
	require.NoError(t, err)

	sum := decimal.Zero
	for _, tgt := range pos.Targets {
		sum = sum.Add(tgt.Allocation)
	}
	assert.True(t, sum.Equal(decimal.NewFromInt(1)), "allocations sum to %s", sum)
}

func TestSequentialTargetFills(t *testing.T) {
	s := NewSession("s1", testConfig())
	pos, err := s.OpenFromScenario(longScenario(), 3, at(0))
	require.NoError(t, err)

	require.NoError(t, s.OnTick(101, at(1))) // nothing hit
	assert.Empty(t, pos.Fills)

	require.NoError(t, s.OnTick(102.5, at(2))) // scalp only
	require.Len(t, pos.Fills, 1)
	assert.Equal(t, "target:scalp", pos.Fills[0].Reason)
	// Fill books at the target price, not the tick price.
	f, _ := pos.Fills[0].Price.Float64()
	assert.InDelta(t, 102.0, f, 1e-9)
	pnl, _ := pos.Fills[0].PnL.Float64()
	assert.InDelta(t, 2.0, pnl, 1e-6) // (102-100) * 1/3 * size 3
	assert.Equal(t, StatusOpen, pos.Status)

	require.NoError(t, s.OnTick(110, at(3))) // swing and extended together
	require.Len(t, pos.Fills, 3)
	assert.Equal(t, "target:swing", pos.Fills[1].Reason)
	assert.Equal(t, "target:extended", pos.Fills[2].Reason)
	assert.Equal(t, StatusClosedByTarget, pos.Status)
	assert.True(t, pos.Remaining().IsZero())
	assert.Equal(t, 3, pos.ClosedSeq)
}

func TestPnLConservation(t *testing.T) {
	s := NewSession("s1", testConfig())
	pos, err := s.OpenFromScenario(longScenario(), 1, at(0))
	require.NoError(t, err)

	require.NoError(t, s.OnTick(110, at(1)))
	require.Equal(t, StatusClosedByTarget, pos.Status)

	// The sum of fill fractions is exactly one and the realized P&L is the
	// exact decimal sum of the per-fill P&Ls.
	fractions := decimal.Zero
	pnl := decimal.Zero
	for _, f := range pos.Fills {
		fractions = fractions.Add(f.Fraction)
		pnl = pnl.Add(f.PnL)
	}
	assert.True(t, fractions.Equal(decimal.NewFromInt(1)))
	assert.True(t, pnl.Equal(pos.RealizedPnL))
	assert.True(t, pos.RealizedPnL.Equal(s.Stats().RealizedPnL))
}

func TestStopChecksBeforeTargets(t *testing.T) {
	s := NewSession("s1", testConfig())
	pos, err := s.OpenFromScenario(longScenario(), 2, at(0))
	require.NoError(t, err)

	// A gap straight through the stop closes everything at the stop price.
	require.NoError(t, s.OnTick(94, at(1)))

	assert.Equal(t, StatusClosedByStop, pos.Status)
	require.Len(t, pos.Fills, 1)
	assert.Equal(t, "stop", pos.Fills[0].Reason)
	f, _ := pos.Fills[0].Price.Float64()
	assert.InDelta(t, 95.0, f, 1e-9) // books at the stop, not the gapped tick
	pnl, _ := pos.RealizedPnL.Float64()
	assert.InDelta(t, -10.0, pnl, 1e-9) // (95-100) * size 2

	st := s.Stats()
	assert.Equal(t, 1, st.LossCount)
	assert.Zero(t, st.WinCount)
}

func TestPartialWinThenStop(t *testing.T) {
	s := NewSession("s1", testConfig())
	pos, err := s.OpenFromScenario(longScenario(), 1, at(0))
	require.NoError(t, err)

	require.NoError(t, s.OnTick(102.5, at(1))) // scalp fills
	require.NoError(t, s.OnTick(94, at(2)))    // stop takes the rest

	assert.Equal(t, StatusClosedByStop, pos.Status)
	require.Len(t, pos.Fills, 2)

	pnl, _ := pos.RealizedPnL.Float64()
	// Strictly better than losing the whole position, strictly worse than
	// the banked scalp alone.
	assert.Greater(t, pnl, -5.0)
	assert.Less(t, pnl, 2.0/3.0)
	assert.InDelta(t, (102.0-100.0)/3+(95.0-100.0)*2/3, pnl, 1e-6)

	// A partial profit does not make a stopped-out trade a win.
	st := s.Stats()
	assert.Equal(t, 1, st.LossCount)
	require.Len(t, st.EquityCurve, 1)
	assert.Equal(t, 2, st.EquityCurve[0].Seq)
}

func TestShortPositionMirrors(t *testing.T) {
	s := NewSession("s1", testConfig())
	pos, err := s.OpenFromScenario(shortScenario(), 1, at(0))
	require.NoError(t, err)

	require.NoError(t, s.OnTick(97, at(1))) // first target only
	require.Len(t, pos.Fills, 1)
	pnl, _ := pos.Fills[0].PnL.Float64()
	assert.InDelta(t, 2.0/3.0, pnl, 1e-6) // (100-98) * 1/3

	require.NoError(t, s.OnTick(91, at(2))) // remaining targets
	assert.Equal(t, StatusClosedByTarget, pos.Status)

	st := s.Stats()
	assert.Equal(t, 1, st.WinCount)
	total, _ := st.RealizedPnL.Float64()
	assert.InDelta(t, 2.0/3+4.0/3+8.0/3, total, 1e-6)
}

func TestShortStop(t *testing.T) {
	s := NewSession("s1", testConfig())
	pos, err := s.OpenFromScenario(shortScenario(), 1, at(0))
	require.NoError(t, err)

	require.NoError(t, s.OnTick(106, at(1)))
	assert.Equal(t, StatusClosedByStop, pos.Status)
	pnl, _ := pos.RealizedPnL.Float64()
	assert.InDelta(t, -5.0, pnl, 1e-9) // (100-105) on the full size
}

func TestCloseManual(t *testing.T) {
	s := NewSession("s1", testConfig())
	pos, err := s.OpenFromScenario(longScenario(), 1, at(0))
	require.NoError(t, err)

	require.NoError(t, s.OnTick(101, at(1)))
	require.NoError(t, s.CloseManual(pos.ID, 103, "timeout", at(2)))

	assert.Equal(t, StatusClosedManual, pos.Status)
	require.Len(t, pos.Fills, 1)
	assert.Equal(t, "manual:timeout", pos.Fills[0].Reason)
	pnl, _ := pos.RealizedPnL.Float64()
	assert.InDelta(t, 3.0, pnl, 1e-9)

	// Closing twice, or closing an unknown position, fails.
	assert.ErrorIs(t, s.CloseManual(pos.ID, 104, "again", at(3)), ErrNotOpen)
	assert.ErrorIs(t, s.CloseManual("nope", 104, "x", at(3)), ErrNotOpen)

	// Bad price is rejected before any lookup.
	assert.ErrorIs(t, s.CloseManual(pos.ID, -1, "x", at(3)), ErrInvalidTick)
}

func TestInvalidTicksLeaveStateUntouched(t *testing.T) {
	s := NewSession("s1", testConfig())
	pos, err := s.OpenFromScenario(longScenario(), 1, at(0))
	require.NoError(t, err)

	for _, price := range []float64{0, -5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.ErrorIs(t, s.OnTick(price, at(1)), ErrInvalidTick)
	}

	assert.Equal(t, StatusOpen, pos.Status)
	assert.Empty(t, pos.Fills)

	// A rejected tick does not advance the sequence.
	require.NoError(t, s.OnTick(94, at(2)))
	assert.Equal(t, 1, pos.ClosedSeq)
}

func TestReplayCountsAcceptedAndRejected(t *testing.T) {
	s := NewSession("s1", testConfig())
	_, err := s.OpenFromScenario(longScenario(), 1, at(0))
	require.NoError(t, err)

	accepted, rejected := Replay(s, []Tick{
		{Price: 101, At: at(1)},
		{Price: math.NaN(), At: at(2)},
		{Price: 102.5, At: at(3)},
		{Price: -1, At: at(4)},
	})
	assert.Equal(t, 2, accepted)
	assert.Equal(t, 2, rejected)
}

func TestReplayIsDeterministic(t *testing.T) {
	ticks := []Tick{
		{Price: 101, At: at(1)},
		{Price: 102.5, At: at(2)},
		{Price: 103, At: at(3)},
		{Price: 94, At: at(4)},
	}

	run := func() (*Position, Stats) {
		s := NewSession("fixed", testConfig())
		pos, err := s.OpenFromScenario(longScenario(), 2, at(0))
		require.NoError(t, err)
		Replay(s, ticks)
		return pos, s.Stats()
	}

	pos1, stats1 := run()
	pos2, stats2 := run()

	assert.Equal(t, pos1.ID, pos2.ID)
	assert.Equal(t, pos1.Fills, pos2.Fills)
	assert.Equal(t, pos1.Status, pos2.Status)
	assert.Equal(t, stats1, stats2)
}

func TestStatsAggregation(t *testing.T) {
	s := NewSession("s1", testConfig())

	winner, err := s.OpenFromScenario(longScenario(), 1, at(0))
	require.NoError(t, err)
	require.NoError(t, s.OnTick(110, at(1))) // all targets

	loser, err := s.OpenFromScenario(longScenario(), 1, at(2))
	require.NoError(t, err)
	require.NoError(t, s.OnTick(94, at(3))) // straight to stop

	require.True(t, winner.Status.Closed())
	require.True(t, loser.Status.Closed())

	st := s.Stats()
	assert.Equal(t, 2, st.OpenedCount)
	assert.Equal(t, 2, st.ClosedCount)
	assert.Equal(t, 1, st.WinCount)
	assert.Equal(t, 1, st.LossCount)
	assert.InDelta(t, 0.5, st.WinRate, 1e-9)

	// Risk per trade is 5: the winner banks ~4.67, the loser -5 exactly.
	assert.InDelta(t, (4.6666667/5-1.0)/2, st.AvgRealizedR, 1e-6)

	require.Len(t, st.EquityCurve, 2)
	first, _ := st.EquityCurve[0].Equity.Float64()
	second, _ := st.EquityCurve[1].Equity.Float64()
	assert.InDelta(t, 4.6666667, first, 1e-6)
	assert.InDelta(t, 4.6666667-5, second, 1e-6)
}

func TestOpenPositionsListing(t *testing.T) {
	s := NewSession("s1", testConfig())

	p1, err := s.OpenFromScenario(longScenario(), 1, at(0))
	require.NoError(t, err)
	p2, err := s.OpenFromScenario(longScenario(), 1, at(0))
	require.NoError(t, err)

	open := s.OpenPositions()
	require.Len(t, open, 2)
	assert.Equal(t, p1.ID, open[0].ID)
	assert.Equal(t, p2.ID, open[1].ID)

	require.NoError(t, s.CloseManual(p1.ID, 101, "done", at(1)))
	open = s.OpenPositions()
	require.Len(t, open, 1)
	assert.Equal(t, p2.ID, open[0].ID)

	assert.NotNil(t, s.Position(p1.ID))
	assert.Nil(t, s.Position("missing"))
}

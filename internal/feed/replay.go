package feed

import (
	"context"

	"crypto-scenario-engine/internal/candles"
	"crypto-scenario-engine/internal/forwardtest"
)

// ReplaySource walks a recorded tick slice in order. The same slice always
// produces the same tick sequence; tests use it as their harness.
type ReplaySource struct {
	ticks []forwardtest.Tick
}

var _ Source = (*ReplaySource)(nil)

// NewReplaySource copies the given ticks into a replay source.
func NewReplaySource(ticks []forwardtest.Tick) *ReplaySource {
	out := make([]forwardtest.Tick, len(ticks))
	copy(out, ticks)
	return &ReplaySource{ticks: out}
}

// FromSeries builds a replay source from candle closes, one tick per candle.
func FromSeries(series *candles.Series) *ReplaySource {
	cs := series.Snapshot()
	ticks := make([]forwardtest.Tick, 0, len(cs))
	for _, c := range cs {
		ticks = append(ticks, forwardtest.Tick{Price: c.Close, At: c.OpenTime})
	}
	return &ReplaySource{ticks: ticks}
}

// Ticks emits the recorded sequence and closes the channel.
func (r *ReplaySource) Ticks(ctx context.Context) (<-chan forwardtest.Tick, error) {
	out := make(chan forwardtest.Tick)
	go func() {
		defer close(out)
		for _, t := range r.ticks {
			select {
			case <-ctx.Done():
				return
			case out <- t:
			}
		}
	}()
	return out, nil
}

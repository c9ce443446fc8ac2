// Package feed supplies price ticks to forward-test sessions: a live
// websocket trade stream for paper trading against the market, and a replay
// source for deterministic runs.
package feed

import (
	"context"

	"crypto-scenario-engine/internal/forwardtest"
)

// Source emits price ticks until the context is cancelled or the source is
// exhausted. Implementations must close the returned channel when done.
type Source interface {
	Ticks(ctx context.Context) (<-chan forwardtest.Tick, error)
}

// Drive pumps a source into a session until the source closes or the context
// is cancelled. Invalid ticks are counted and skipped; the session logs them.
func Drive(ctx context.Context, src Source, session *forwardtest.Session) (accepted, rejected int, err error) {
	ticks, err := src.Ticks(ctx)
	if err != nil {
		return 0, 0, err
	}
	for {
		select {
		case <-ctx.Done():
			return accepted, rejected, ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return accepted, rejected, nil
			}
			if err := session.OnTick(tick.Price, tick.At); err != nil {
				rejected++
				continue
			}
			accepted++
		}
	}
}

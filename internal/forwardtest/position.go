package forwardtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"crypto-scenario-engine/internal/scenario"
)

var (
	// ErrInvalidTick marks a rejected price update (NaN, infinite or
	// non-positive). Position state is untouched by an invalid tick.
	ErrInvalidTick = errors.New("invalid tick price")

	// ErrNotOpen is returned when a transition requires an open position.
	ErrNotOpen = errors.New("position is not open")

	// ErrBadScenario marks a scenario whose stop or targets violate the
	// direction invariants.
	ErrBadScenario = errors.New("scenario violates stop/target invariants")
)

// Status is the lifecycle state of a simulated position.
type Status string

const (
	// StatusPending is reserved for entry-triggered fills. OpenFromScenario
	// fills market-style, so every position starts at StatusOpen.
	StatusPending        Status = "pending"
	StatusOpen           Status = "open"
	StatusClosedByStop   Status = "closed_by_stop"
	StatusClosedByTarget Status = "closed_by_target"
	StatusClosedManual   Status = "closed_manual"
)

// Closed reports whether the status is terminal.
func (s Status) Closed() bool {
	switch s {
	case StatusClosedByStop, StatusClosedByTarget, StatusClosedManual:
		return true
	}
	return false
}

// EntryMode selects which scenario entry price a market-style fill uses.
type EntryMode string

const (
	EntryAggressive   EntryMode = "aggressive"
	EntryConservative EntryMode = "conservative"
)

// Fill is one partial or full exit of a position.
type Fill struct {
	Seq      int             `json:"seq"`      // tick sequence at which the fill happened
	Price    decimal.Decimal `json:"price"`    // exit price
	Fraction decimal.Decimal `json:"fraction"` // fraction of the position size closed
	Reason   string          `json:"reason"`   // "target:<label>", "stop", "manual:<reason>"
	PnL      decimal.Decimal `json:"pnl"`      // (exit-entry) * direction * fraction * size
	At       time.Time       `json:"at"`
}

// PositionTarget is one unfilled take-profit in queue order.
type PositionTarget struct {
	Label      string          `json:"label"`
	Price      float64         `json:"price"`
	Allocation decimal.Decimal `json:"allocation"` // fraction of size closed at this target
}

// Position is a simulated trade owned exclusively by its session. It is
// mutated only by the session's tick evaluation; the struct itself carries
// no locking.
type Position struct {
	ID          string             `json:"id"`
	Scenario    *scenario.Scenario `json:"scenario"`
	Direction   scenario.Direction `json:"direction"`
	EntryPrice  float64            `json:"entry_price"`
	Size        decimal.Decimal    `json:"size"`
	StopLoss    float64            `json:"stop_loss"`
	Targets     []PositionTarget   `json:"targets"`
	Status      Status             `json:"status"`
	Fills       []Fill             `json:"fills"`
	RealizedPnL decimal.Decimal    `json:"realized_pnl"`
	OpenedAt    time.Time          `json:"opened_at"`
	ClosedAt    time.Time          `json:"closed_at,omitempty"`
	OpenedSeq   int                `json:"opened_seq"`
	ClosedSeq   int                `json:"closed_seq,omitempty"`

	nextTarget int             // index of the next unfilled target
	remaining  decimal.Decimal // unfilled fraction, 1 at open
}

// Remaining returns the still-open fraction of the position size.
func (p *Position) Remaining() decimal.Decimal {
	return p.remaining
}

// stopHit reports whether a price breaches the stop for the direction.
func (p *Position) stopHit(price float64) bool {
	if p.Direction == scenario.Long {
		return price <= p.StopLoss
	}
	return price >= p.StopLoss
}

// targetHit reports whether a price reaches the given target for the direction.
func (p *Position) targetHit(price float64, t PositionTarget) bool {
	if p.Direction == scenario.Long {
		return price >= t.Price
	}
	return price <= t.Price
}

// fill books a partial or full exit and accumulates realized P&L.
func (p *Position) fill(seq int, at time.Time, price, fraction decimal.Decimal, reason string) {
	sign := decimal.NewFromInt(1)
	if p.Direction == scenario.Short {
		sign = decimal.NewFromInt(-1)
	}
	entry := decimal.NewFromFloat(p.EntryPrice)
	pnl := price.Sub(entry).Mul(sign).Mul(fraction).Mul(p.Size)

	p.Fills = append(p.Fills, Fill{
		Seq:      seq,
		Price:    price,
		Fraction: fraction,
		Reason:   reason,
		PnL:      pnl,
		At:       at,
	})
	p.RealizedPnL = p.RealizedPnL.Add(pnl)
	p.remaining = p.remaining.Sub(fraction)
}

// validateScenario checks the direction invariants before a position is
// created: stop on the loss side of entry, targets on the profit side and
// monotonically further in the profit direction.
func validateScenario(sc *scenario.Scenario, entry float64) error {
	sign := sc.Direction.Sign()
	if (entry-sc.StopLoss.Conservative)*sign <= 0 {
		return fmt.Errorf("%w: stop %.8f not on loss side of entry %.8f",
			ErrBadScenario, sc.StopLoss.Conservative, entry)
	}
	if len(sc.Targets) > 0 && (sc.Targets[0].Price-entry)*sign <= 0 {
		return fmt.Errorf("%w: target %q at %.8f not on profit side of entry %.8f",
			ErrBadScenario, sc.Targets[0].Label, sc.Targets[0].Price, entry)
	}
	for i := 1; i < len(sc.Targets); i++ {
		if (sc.Targets[i].Price-sc.Targets[i-1].Price)*sign <= 0 {
			return fmt.Errorf("%w: target %q at %.8f not beyond %q",
				ErrBadScenario, sc.Targets[i].Label, sc.Targets[i].Price, sc.Targets[i-1].Label)
		}
	}
	return nil
}

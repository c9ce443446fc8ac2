package forwardtest

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crypto-scenario-engine/internal/scenario"
)

// EquityPoint is the running realized P&L after one full position closure.
type EquityPoint struct {
	Seq    int             `json:"seq"` // tick sequence of the closure
	Equity decimal.Decimal `json:"equity"`
	At     time.Time       `json:"at"`
}

// Stats is a point-in-time aggregation over a session.
type Stats struct {
	OpenedCount  int             `json:"opened_count"`
	ClosedCount  int             `json:"closed_count"`
	WinCount     int             `json:"win_count"`
	LossCount    int             `json:"loss_count"`
	WinRate      float64         `json:"win_rate"`
	AvgRealizedR float64         `json:"avg_realized_r"` // realized P&L in risk units, averaged over closures
	RealizedPnL  decimal.Decimal `json:"realized_pnl"`
	EquityCurve  []EquityPoint   `json:"equity_curve"`
}

// Config tunes a session. IDFunc exists so replay harnesses can assign
// deterministic position ids; production uses random uuids, which serve as
// identity only and never ordering.
type Config struct {
	EntryMode EntryMode
	IDFunc    func() string
	Logger    zerolog.Logger
}

// Session owns every simulated position it opens. The session is the only
// writer to its positions; callers must serialize ticks per session, which
// the internal mutex enforces. Different sessions run fully in parallel.
type Session struct {
	mu sync.Mutex

	id        string
	entryMode EntryMode
	idFunc    func() string
	log       zerolog.Logger

	positions []*Position
	byID      map[string]*Position
	tickSeq   int

	openedCount int
	closedCount int
	winCount    int
	lossCount   int
	equity      decimal.Decimal
	curve       []EquityPoint
	realizedR   float64
}

// NewSession creates an empty forward-test session.
func NewSession(id string, cfg Config) *Session {
	if id == "" {
		id = uuid.New().String()
	}
	if cfg.EntryMode == "" {
		cfg.EntryMode = EntryAggressive
	}
	if cfg.IDFunc == nil {
		cfg.IDFunc = func() string { return uuid.New().String() }
	}
	return &Session{
		id:        id,
		entryMode: cfg.EntryMode,
		idFunc:    cfg.IDFunc,
		log:       cfg.Logger.With().Str("component", "forwardtest").Str("session", id).Logger(),
		byID:      make(map[string]*Position),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// OpenFromScenario opens a position immediately at the scenario entry price
// selected by the session's entry mode, market-order style. The position
// skips Pending and is Open on return.
func (s *Session) OpenFromScenario(sc *scenario.Scenario, size float64, at time.Time) (*Position, error) {
	if sc == nil {
		return nil, fmt.Errorf("%w: nil scenario", ErrBadScenario)
	}
	if size <= 0 || math.IsNaN(size) {
		return nil, fmt.Errorf("%w: size must be positive", ErrBadScenario)
	}

	entry := sc.EntryZone.Aggressive
	if s.entryMode == EntryConservative {
		entry = sc.EntryZone.Conservative
	}
	if err := validateScenario(sc, entry); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos := &Position{
		ID:         s.idFunc(),
		Scenario:   sc,
		Direction:  sc.Direction,
		EntryPrice: entry,
		Size:       decimal.NewFromFloat(size),
		StopLoss:   sc.StopLoss.Conservative,
		Targets:    splitTargets(sc.Targets),
		Status:     StatusOpen,
		OpenedAt:   at,
		OpenedSeq:  s.tickSeq,
		remaining:  decimal.NewFromInt(1),
	}
	s.positions = append(s.positions, pos)
	s.byID[pos.ID] = pos
	s.openedCount++

	s.log.Info().
		Str("position", pos.ID).
		Str("direction", string(pos.Direction)).
		Float64("entry", pos.EntryPrice).
		Float64("stop", pos.StopLoss).
		Msg("position opened")
	return pos, nil
}

// splitTargets assigns equal allocation fractions to the scenario targets,
// giving the last target the remainder so fractions sum to exactly one.
func splitTargets(ts []scenario.Target) []PositionTarget {
	n := len(ts)
	out := make([]PositionTarget, 0, n)
	if n == 0 {
		return out
	}
	each := decimal.NewFromInt(1).DivRound(decimal.NewFromInt(int64(n)), 8)
	used := decimal.Zero
	for i, t := range ts {
		alloc := each
		if i == n-1 {
			alloc = decimal.NewFromInt(1).Sub(used)
		}
		used = used.Add(alloc)
		out = append(out, PositionTarget{Label: t.Label, Price: t.Price, Allocation: alloc})
	}
	return out
}

// OnTick evaluates every open position against a price. The stop check runs
// before the target check on the same tick, biasing toward conservative risk
// accounting. Invalid prices are rejected and skipped without touching state.
func (s *Session) OnTick(price float64, at time.Time) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		s.log.Warn().Float64("price", price).Msg("tick rejected")
		return fmt.Errorf("%w: %v", ErrInvalidTick, price)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tickSeq++
	for _, pos := range s.positions {
		if pos.Status != StatusOpen {
			continue
		}
		s.evaluate(pos, price, at)
	}
	return nil
}

// evaluate applies one tick to one open position. Caller holds the lock.
func (s *Session) evaluate(pos *Position, price float64, at time.Time) {
	if pos.stopHit(price) {
		pos.fill(s.tickSeq, at, decimal.NewFromFloat(pos.StopLoss), pos.remaining, "stop")
		s.close(pos, StatusClosedByStop, at)
		return
	}

	for pos.nextTarget < len(pos.Targets) {
		t := pos.Targets[pos.nextTarget]
		if !pos.targetHit(price, t) {
			break
		}
		fraction := t.Allocation
		if fraction.GreaterThan(pos.remaining) {
			fraction = pos.remaining
		}
		pos.fill(s.tickSeq, at, decimal.NewFromFloat(t.Price), fraction, "target:"+t.Label)
		pos.nextTarget++
		s.log.Debug().
			Str("position", pos.ID).
			Str("target", t.Label).
			Float64("price", t.Price).
			Msg("target filled")
	}

	if pos.nextTarget == len(pos.Targets) {
		s.close(pos, StatusClosedByTarget, at)
	}
}

// CloseManual closes any still-open fraction of the position at the given
// price. Allowed from Open at any time, e.g. on session timeout.
func (s *Session) CloseManual(positionID string, price float64, reason string, at time.Time) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTick, price)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.byID[positionID]
	if !ok {
		return fmt.Errorf("%w: unknown position %s", ErrNotOpen, positionID)
	}
	if pos.Status != StatusOpen {
		return fmt.Errorf("%w: position %s is %s", ErrNotOpen, positionID, pos.Status)
	}

	if pos.remaining.IsPositive() {
		pos.fill(s.tickSeq, at, decimal.NewFromFloat(price), pos.remaining, "manual:"+reason)
	}
	s.close(pos, StatusClosedManual, at)
	return nil
}

// close transitions a position to a terminal state and folds it into the
// session aggregates. Caller holds the lock.
func (s *Session) close(pos *Position, status Status, at time.Time) {
	pos.Status = status
	pos.ClosedAt = at
	pos.ClosedSeq = s.tickSeq

	s.closedCount++
	if pos.RealizedPnL.IsPositive() {
		s.winCount++
	} else {
		s.lossCount++
	}

	// Realized R multiple: P&L in units of the initial risk.
	risk := math.Abs(pos.EntryPrice-pos.StopLoss) * sizeFloat(pos.Size)
	if risk > 0 {
		pnl, _ := pos.RealizedPnL.Float64()
		s.realizedR += pnl / risk
	}

	s.equity = s.equity.Add(pos.RealizedPnL)
	s.curve = append(s.curve, EquityPoint{Seq: s.tickSeq, Equity: s.equity, At: at})

	s.log.Info().
		Str("position", pos.ID).
		Str("status", string(status)).
		Str("realized_pnl", pos.RealizedPnL.String()).
		Msg("position closed")
}

func sizeFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Position returns a position by id, nil when unknown.
func (s *Session) Position(id string) *Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id]
}

// OpenPositions returns the positions still open, in open order.
func (s *Session) OpenPositions() []*Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Position
	for _, p := range s.positions {
		if p.Status == StatusOpen {
			out = append(out, p)
		}
	}
	return out
}

// Stats aggregates the session counters and equity curve.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		OpenedCount: s.openedCount,
		ClosedCount: s.closedCount,
		WinCount:    s.winCount,
		LossCount:   s.lossCount,
		RealizedPnL: s.equity,
		EquityCurve: append([]EquityPoint(nil), s.curve...),
	}
	if s.closedCount > 0 {
		st.WinRate = float64(s.winCount) / float64(s.closedCount)
		st.AvgRealizedR = s.realizedR / float64(s.closedCount)
	}
	return st
}

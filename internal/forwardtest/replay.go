package forwardtest

import (
	"time"
)

// Tick is one externally supplied price event.
type Tick struct {
	Price float64   `json:"price"`
	At    time.Time `json:"at"`
}

// Replay drives a session through a recorded tick sequence. Identical
// scenarios and identical tick sequences always produce identical position
// histories. Returns the number of accepted and rejected ticks.
func Replay(s *Session, ticks []Tick) (accepted, rejected int) {
	for _, t := range ticks {
		if err := s.OnTick(t.Price, t.At); err != nil {
			rejected++
			continue
		}
		accepted++
	}
	return accepted, rejected
}

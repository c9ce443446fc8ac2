package patterns

import (
	"crypto-scenario-engine/internal/candles"
)

// Name identifies a candlestick formation.
type Name string

const (
	Doji               Name = "doji"
	DragonflyDoji      Name = "dragonfly_doji"
	GravestoneDoji     Name = "gravestone_doji"
	Hammer             Name = "hammer"
	ShootingStar       Name = "shooting_star"
	BullishEngulfing   Name = "bullish_engulfing"
	BearishEngulfing   Name = "bearish_engulfing"
	MorningStar        Name = "morning_star"
	EveningStar        Name = "evening_star"
	ThreeWhiteSoldiers Name = "three_white_soldiers"
	ThreeBlackCrows    Name = "three_black_crows"
)

// Signal is the directional reading of a formation.
type Signal string

const (
	SignalBullish Signal = "bullish"
	SignalBearish Signal = "bearish"
	SignalNeutral Signal = "neutral"
)

// Pattern is one detected formation. Index references the last candle of the
// formation within the scanned series.
type Pattern struct {
	Name   Name   `json:"name"`
	Index  int    `json:"index"`
	Signal Signal `json:"signal"`
}

// Detector scans candle series for single, two and three candle formations.
// Same series in, same pattern list out, always.
type Detector struct {
	maxDojiBodyPct float64 // body as fraction of range above which a candle is not a doji
}

// NewDetector creates a detector with the given doji body threshold.
// A non-positive threshold falls back to the default 10% of range.
func NewDetector(maxDojiBodyPct float64) *Detector {
	if maxDojiBodyPct <= 0 {
		maxDojiBodyPct = 0.10
	}
	return &Detector{maxDojiBodyPct: maxDojiBodyPct}
}

// Detect returns all formations found in the series, in index order. Multiple
// patterns may co-occur at the same index; the detector reports all of them
// and leaves ranking to the caller.
func (d *Detector) Detect(series *candles.Series) []Pattern {
	if series == nil || series.Len() == 0 {
		return nil
	}
	cs := series.Snapshot()

	var found []Pattern
	for i := range cs {
		found = append(found, d.detectSingle(cs, i)...)
		if i >= 1 {
			found = append(found, d.detectDouble(cs, i)...)
		}
		if i >= 2 {
			found = append(found, d.detectTriple(cs, i)...)
		}
	}
	return found
}

func (d *Detector) detectSingle(cs []candles.Candle, i int) []Pattern {
	c := cs[i]
	var prev *candles.Candle
	if i > 0 {
		prev = &cs[i-1]
	}

	var found []Pattern
	switch {
	case d.isDragonflyDoji(c):
		found = append(found, Pattern{Name: DragonflyDoji, Index: i, Signal: SignalBullish})
	case d.isGravestoneDoji(c):
		found = append(found, Pattern{Name: GravestoneDoji, Index: i, Signal: SignalBearish})
	case d.isDoji(c):
		found = append(found, Pattern{Name: Doji, Index: i, Signal: SignalNeutral})
	}
	if d.isHammer(c, prev) {
		found = append(found, Pattern{Name: Hammer, Index: i, Signal: SignalBullish})
	}
	if d.isShootingStar(c, prev) {
		found = append(found, Pattern{Name: ShootingStar, Index: i, Signal: SignalBearish})
	}
	return found
}

func (d *Detector) detectDouble(cs []candles.Candle, i int) []Pattern {
	c1, c2 := cs[i-1], cs[i]

	var found []Pattern
	if d.isBullishEngulfing(c1, c2) {
		found = append(found, Pattern{Name: BullishEngulfing, Index: i, Signal: SignalBullish})
	}
	if d.isBearishEngulfing(c1, c2) {
		found = append(found, Pattern{Name: BearishEngulfing, Index: i, Signal: SignalBearish})
	}
	return found
}

func (d *Detector) detectTriple(cs []candles.Candle, i int) []Pattern {
	c1, c2, c3 := cs[i-2], cs[i-1], cs[i]

	var found []Pattern
	if d.isMorningStar(c1, c2, c3) {
		found = append(found, Pattern{Name: MorningStar, Index: i, Signal: SignalBullish})
	}
	if d.isEveningStar(c1, c2, c3) {
		found = append(found, Pattern{Name: EveningStar, Index: i, Signal: SignalBearish})
	}
	if d.isThreeWhiteSoldiers(c1, c2, c3) {
		found = append(found, Pattern{Name: ThreeWhiteSoldiers, Index: i, Signal: SignalBullish})
	}
	if d.isThreeBlackCrows(c1, c2, c3) {
		found = append(found, Pattern{Name: ThreeBlackCrows, Index: i, Signal: SignalBearish})
	}
	return found
}

package patterns

import (
	"crypto-scenario-engine/internal/candles"
)

// isBullishEngulfing checks for a Bullish Engulfing: a bearish candle whose
// body is fully engulfed by the following bullish candle's body.
func (d *Detector) isBullishEngulfing(c1, c2 candles.Candle) bool {
	if !c1.IsBearish() || !c2.IsBullish() {
		return false
	}
	// C2 body must completely engulf C1 body.
	return c2.Open <= c1.Close && c2.Close >= c1.Open
}

// isBearishEngulfing checks for a Bearish Engulfing: a bullish candle whose
// body is fully engulfed by the following bearish candle's body.
func (d *Detector) isBearishEngulfing(c1, c2 candles.Candle) bool {
	if !c1.IsBullish() || !c2.IsBearish() {
		return false
	}
	return c2.Open >= c1.Close && c2.Close <= c1.Open
}

// isMorningStar checks for a Morning Star: long bearish candle, small
// indecision candle, long bullish candle closing above the midpoint of the
// first body.
func (d *Detector) isMorningStar(c1, c2, c3 candles.Candle) bool {
	if !c1.IsBearish() || c1.Range() == 0 {
		return false
	}
	body1 := c1.Body()
	if body1 < c1.Range()*0.6 {
		return false
	}

	if c2.Body() > body1*0.4 {
		return false
	}

	if !c3.IsBullish() || c3.Range() == 0 {
		return false
	}
	if c3.Body() < c3.Range()*0.6 {
		return false
	}

	midpoint := (c1.Open + c1.Close) / 2
	return c3.Close >= midpoint
}

// isEveningStar checks for an Evening Star: the bearish mirror of the
// morning star.
func (d *Detector) isEveningStar(c1, c2, c3 candles.Candle) bool {
	if !c1.IsBullish() || c1.Range() == 0 {
		return false
	}
	body1 := c1.Body()
	if body1 < c1.Range()*0.6 {
		return false
	}

	if c2.Body() > body1*0.4 {
		return false
	}

	if !c3.IsBearish() || c3.Range() == 0 {
		return false
	}
	if c3.Body() < c3.Range()*0.6 {
		return false
	}

	midpoint := (c1.Open + c1.Close) / 2
	return c3.Close <= midpoint
}

// isThreeWhiteSoldiers checks for Three White Soldiers: three consecutive
// solid bullish candles, each opening within the previous body and closing
// at a new high.
func (d *Detector) isThreeWhiteSoldiers(c1, c2, c3 candles.Candle) bool {
	for _, c := range []candles.Candle{c1, c2, c3} {
		if !c.IsBullish() || c.Range() == 0 {
			return false
		}
		// Solid body, limited upper wick.
		if c.Body() < c.Range()*0.5 {
			return false
		}
	}
	if c2.Open < c1.Open || c2.Open > c1.Close {
		return false
	}
	if c3.Open < c2.Open || c3.Open > c2.Close {
		return false
	}
	return c2.Close > c1.Close && c3.Close > c2.Close
}

// isThreeBlackCrows checks for Three Black Crows: three consecutive solid
// bearish candles, each opening within the previous body and closing at a
// new low.
func (d *Detector) isThreeBlackCrows(c1, c2, c3 candles.Candle) bool {
	for _, c := range []candles.Candle{c1, c2, c3} {
		if !c.IsBearish() || c.Range() == 0 {
			return false
		}
		if c.Body() < c.Range()*0.5 {
			return false
		}
	}
	if c2.Open > c1.Open || c2.Open < c1.Close {
		return false
	}
	if c3.Open > c2.Open || c3.Open < c2.Close {
		return false
	}
	return c2.Close < c1.Close && c3.Close < c2.Close
}

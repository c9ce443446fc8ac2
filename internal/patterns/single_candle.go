package patterns

import (
	"crypto-scenario-engine/internal/candles"
)

// isDoji checks for a Doji: the body is very small relative to the range.
func (d *Detector) isDoji(c candles.Candle) bool {
	r := c.Range()
	if r == 0 {
		return false
	}
	return c.Body()/r < d.maxDojiBodyPct
}

// isDragonflyDoji checks for a Dragonfly Doji: doji with a long lower wick
// and little to no upper wick.
func (d *Detector) isDragonflyDoji(c candles.Candle) bool {
	if !d.isDoji(c) {
		return false
	}
	body := c.Body()
	return c.LowerWick() > body*3 && c.UpperWick() < body*0.3
}

// isGravestoneDoji checks for a Gravestone Doji: doji with a long upper wick
// and little to no lower wick.
func (d *Detector) isGravestoneDoji(c candles.Candle) bool {
	if !d.isDoji(c) {
		return false
	}
	body := c.Body()
	return c.UpperWick() > body*3 && c.LowerWick() < body*0.3
}

// isHammer checks for a Hammer: body in the top third of the range, lower
// wick at least twice the body, small upper wick. With a previous candle
// available the hammer must follow a down candle.
func (d *Detector) isHammer(c candles.Candle, prev *candles.Candle) bool {
	body := c.Body()
	r := c.Range()
	if body == 0 || r == 0 {
		return false
	}
	bodyBottom := c.Open
	if c.Close < c.Open {
		bodyBottom = c.Close
	}
	if bodyBottom < c.Low+r*2.0/3.0 {
		return false
	}
	if c.LowerWick() < body*2 {
		return false
	}
	if c.UpperWick() > body*0.3 {
		return false
	}
	if prev != nil && !prev.IsBearish() {
		return false
	}
	return true
}

// isShootingStar checks for a Shooting Star: the mirror of a hammer, a long
// upper wick after an up candle.
func (d *Detector) isShootingStar(c candles.Candle, prev *candles.Candle) bool {
	body := c.Body()
	r := c.Range()
	if body == 0 || r == 0 {
		return false
	}
	bodyTop := c.Close
	if c.Open > c.Close {
		bodyTop = c.Open
	}
	if bodyTop > c.High-r*2.0/3.0 {
		return false
	}
	if c.UpperWick() < body*2 {
		return false
	}
	if c.LowerWick() > body*0.3 {
		return false
	}
	if prev != nil && !prev.IsBullish() {
		return false
	}
	return true
}

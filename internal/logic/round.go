package logic

import (
	"math"

	"github.com/shopspring/decimal"
)

// DefaultPricePrecision is the number of decimal places prices are kept at.
const DefaultPricePrecision = 3

// Rounder rounds prices to a fixed number of decimal places using banker's
// rounding. Rounding after every adjustment keeps float noise from feeding
// back into the direction detector.
type Rounder struct {
	places int32
}

// NewRounder returns a Rounder for the given number of decimal places.
// Negative values fall back to DefaultPricePrecision.
func NewRounder(places int) Rounder {
	if places < 0 {
		places = DefaultPricePrecision
	}
	return Rounder{places: int32(places)}
}

// Round returns x rounded to the configured precision. NaN and infinities are
// returned unchanged.
func (r Rounder) Round(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return decimal.NewFromFloat(x).RoundBank(r.places).InexactFloat64()
}

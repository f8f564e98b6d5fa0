package market

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"

	// Exponent of the volume impact model: trading a fraction f of the
	// available pool moves the price by f^1.2.
	impactExponent = 1.2
)

// NextPrice computes the post-trade share price in cents. pool is the
// available pool before the trade. Buys move the price up, sells down.
// The result is rounded to two fraction digits, half away from zero.
func NextPrice(priceCents, shares, pool int64, side string) (int64, error) {
	if shares <= 0 {
		return 0, fmt.Errorf("%w: shares must be > 0", ErrValidation)
	}
	if pool <= 0 {
		return 0, ErrNoLiquidity
	}

	impact := math.Pow(float64(shares)/float64(pool), impactExponent)
	var factor float64
	switch side {
	case SideBuy:
		factor = 1 + impact
	case SideSell:
		factor = 1 - impact
	default:
		return 0, fmt.Errorf("%w: side must be buy or sell", ErrValidation)
	}

	next := CentsToDecimal(priceCents).
		Mul(decimal.NewFromFloat(factor)).
		Round(2).
		Shift(2).
		IntPart()
	if next < MinPriceCents {
		// The impact model produced a non-positive price; the company's
		// parameters are unsound and need an operator edit.
		return 0, fmt.Errorf("%w: %s of %d shares against pool %d", ErrInvalidPriceState, side, shares, pool)
	}
	return next, nil
}

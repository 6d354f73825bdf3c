// Package pricing resolves bulk-discount unit prices and aggregates cart totals.
// Every surface that shows a price goes through this package.
package pricing

import (
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity and ErrNegativePrice are returned for out-of-range inputs.
var (
	ErrInvalidQuantity = pkgerrors.New(pkgerrors.CodeInvalidArgument, "quantity must be at least 1")
	ErrNegativePrice   = pkgerrors.New(pkgerrors.CodeInvalidArgument, "base price must not be negative")
)

// ApplyDiscount returns basePrice reduced by pct percent, rounded to cents and
// clamped to [0, basePrice].
func ApplyDiscount(basePrice, pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() || pct.IsZero() {
		return basePrice
	}
	if pct.GreaterThanOrEqual(hundred) {
		return decimal.Zero
	}
	factor := hundred.Sub(pct).Div(hundred)
	price := basePrice.Mul(factor).Round(2)
	if price.GreaterThan(basePrice) {
		return basePrice
	}
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}

// ResolveTier picks the matching tier with the highest discount.
// Malformed tiers never match.
func ResolveTier(tiers []Tier, quantity int) (Tier, bool) {
	var (
		best  Tier
		found bool
	)
	for _, t := range tiers {
		if !t.Valid() || !t.Matches(quantity) {
			continue
		}
		if !found || t.DiscountPercentage.GreaterThan(best.DiscountPercentage) {
			best = t
			found = true
		}
	}
	return best, found
}

// ResolveUnitPrice returns the unit price for quantity units of a product.
// With no matching tier the base price is returned unchanged.
func ResolveUnitPrice(basePrice decimal.Decimal, tiers []Tier, quantity int) (decimal.Decimal, error) {
	if err := checkInputs(basePrice, quantity); err != nil {
		return decimal.Zero, err
	}
	tier, ok := ResolveTier(tiers, quantity)
	if !ok {
		return basePrice, nil
	}
	return ApplyDiscount(basePrice, tier.DiscountPercentage), nil
}

func checkInputs(basePrice decimal.Decimal, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if basePrice.IsNegative() {
		return ErrNegativePrice
	}
	return nil
}

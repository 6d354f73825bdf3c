package pricing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is a product and quantity with the catalog data needed to price it.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
	BasePrice decimal.Decimal
	Tiers     []Tier
}

// ComputeLineTotal returns the resolved unit price times quantity.
func ComputeLineTotal(line Line) (decimal.Decimal, error) {
	unit, err := ResolveUnitPrice(line.BasePrice, line.Tiers, line.Quantity)
	if err != nil {
		return decimal.Zero, err
	}
	return unit.Mul(decimal.NewFromInt(int64(line.Quantity))), nil
}

// ComputeCartTotal sums line totals. An empty cart totals zero.
func ComputeCartTotal(lines []Line) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, line := range lines {
		lineTotal, err := ComputeLineTotal(line)
		if err != nil {
			return decimal.Zero, fmt.Errorf("product %s: %w", line.ProductID, err)
		}
		total = total.Add(lineTotal)
	}
	return total, nil
}

// NextTier tells the shopper how many more units reach the next tier.
type NextTier struct {
	MinQuantity        int             `json:"min_quantity"`
	UnitsNeeded        int             `json:"units_needed"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
}

// NextTierHint finds the valid tier with the smallest MinQuantity above quantity.
func NextTierHint(basePrice decimal.Decimal, tiers []Tier, quantity int) (NextTier, bool) {
	var (
		next  Tier
		found bool
	)
	for _, t := range tiers {
		if !t.Valid() || t.MinQuantity <= quantity {
			continue
		}
		if !found || t.MinQuantity < next.MinQuantity {
			next = t
			found = true
		}
	}
	if !found {
		return NextTier{}, false
	}
	return NextTier{
		MinQuantity:        next.MinQuantity,
		UnitsNeeded:        next.MinQuantity - quantity,
		DiscountPercentage: next.DiscountPercentage,
		UnitPrice:          ApplyDiscount(basePrice, next.DiscountPercentage),
	}, true
}

// LineQuote holds the display values for one cart line.
type LineQuote struct {
	ProductID          uuid.UUID       `json:"product_id"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	OriginalPrice      decimal.Decimal `json:"original_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	LineTotal          decimal.Decimal `json:"line_total"`
	Savings            decimal.Decimal `json:"savings"`
	DiscountActive     bool            `json:"discount_active"`
	NextTier           *NextTier       `json:"next_tier,omitempty"`
}

// QuoteLine prices a single line for display.
func QuoteLine(line Line) (LineQuote, error) {
	if err := checkInputs(line.BasePrice, line.Quantity); err != nil {
		return LineQuote{}, err
	}

	qty := decimal.NewFromInt(int64(line.Quantity))
	unit := line.BasePrice
	pct := decimal.Zero
	if tier, ok := ResolveTier(line.Tiers, line.Quantity); ok {
		unit = ApplyDiscount(line.BasePrice, tier.DiscountPercentage)
		pct = tier.DiscountPercentage
	}

	quote := LineQuote{
		ProductID:          line.ProductID,
		Quantity:           line.Quantity,
		UnitPrice:          unit,
		OriginalPrice:      line.BasePrice,
		DiscountPercentage: pct,
		LineTotal:          unit.Mul(qty),
		Savings:            line.BasePrice.Sub(unit).Mul(qty),
		DiscountActive:     unit.LessThan(line.BasePrice),
	}
	if hint, ok := NextTierHint(line.BasePrice, line.Tiers, line.Quantity); ok {
		quote.NextTier = &hint
	}
	return quote, nil
}

// CartQuote aggregates line quotes. Subtotal is at base prices.
type CartQuote struct {
	Lines     []LineQuote     `json:"lines"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Savings   decimal.Decimal `json:"savings"`
	Total     decimal.Decimal `json:"total"`
}

// QuoteCart prices every line and sums the results.
func QuoteCart(lines []Line) (CartQuote, error) {
	quote := CartQuote{
		Lines:    make([]LineQuote, 0, len(lines)),
		Subtotal: decimal.Zero,
		Savings:  decimal.Zero,
		Total:    decimal.Zero,
	}
	for _, line := range lines {
		lq, err := QuoteLine(line)
		if err != nil {
			return CartQuote{}, fmt.Errorf("product %s: %w", line.ProductID, err)
		}
		quote.Lines = append(quote.Lines, lq)
		quote.ItemCount += lq.Quantity
		quote.Subtotal = quote.Subtotal.Add(lq.OriginalPrice.Mul(decimal.NewFromInt(int64(lq.Quantity))))
		quote.Savings = quote.Savings.Add(lq.Savings)
		quote.Total = quote.Total.Add(lq.LineTotal)
	}
	return quote, nil
}

// ToCents converts an amount to integer minor units.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

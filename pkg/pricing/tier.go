package pricing

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"

	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MaxQuantity is the inclusive upper bound of a tier, or Unbounded.
// The zero value is Unbounded.
type MaxQuantity struct {
	value   int
	bounded bool
}

// Unbounded returns an open-ended upper bound.
func Unbounded() MaxQuantity {
	return MaxQuantity{}
}

// UpTo returns an inclusive upper bound of n.
func UpTo(n int) MaxQuantity {
	return MaxQuantity{value: n, bounded: true}
}

// Get returns the bound and whether one is set.
func (m MaxQuantity) Get() (int, bool) {
	return m.value, m.bounded
}

func (m MaxQuantity) IsBounded() bool {
	return m.bounded
}

// Allows reports whether quantity is within the bound.
func (m MaxQuantity) Allows(quantity int) bool {
	return !m.bounded || quantity <= m.value
}

func (m MaxQuantity) String() string {
	if !m.bounded {
		return "unbounded"
	}
	return fmt.Sprintf("%d", m.value)
}

func (m MaxQuantity) MarshalJSON() ([]byte, error) {
	if !m.bounded {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

func (m *MaxQuantity) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = Unbounded()
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("max_quantity must be an integer or null: %w", err)
	}
	*m = UpTo(n)
	return nil
}

// Scan maps a nullable integer column onto the bound.
func (m *MaxQuantity) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Unbounded()
	case int64:
		*m = UpTo(int(v))
	case int32:
		*m = UpTo(int(v))
	case int:
		*m = UpTo(v)
	default:
		return fmt.Errorf("MaxQuantity: unsupported Scan type %T", src)
	}
	return nil
}

// Value stores Unbounded as NULL.
func (m MaxQuantity) Value() (driver.Value, error) {
	if !m.bounded {
		return nil, nil
	}
	return int64(m.value), nil
}

// Tier is one bulk-discount band of a product.
type Tier struct {
	MinQuantity        int             `json:"min_quantity"`
	MaxQuantity        MaxQuantity     `json:"max_quantity"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DiscountedPrice    decimal.Decimal `json:"discounted_price"`
}

// Valid reports whether the tier is well formed on its own.
func (t Tier) Valid() bool {
	if t.MinQuantity < 1 {
		return false
	}
	if upper, ok := t.MaxQuantity.Get(); ok && upper < t.MinQuantity {
		return false
	}
	return !t.DiscountPercentage.IsNegative() && t.DiscountPercentage.LessThanOrEqual(hundred)
}

// Matches reports whether quantity falls in the tier's range.
func (t Tier) Matches(quantity int) bool {
	return quantity >= t.MinQuantity && t.MaxQuantity.Allows(quantity)
}

// TierViolation describes why a tier was rejected at write time.
type TierViolation struct {
	Index  int    `json:"index"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidateTiers checks a tier set before it is stored: every tier must be
// well formed, ranges must not overlap, and only the last tier may be unbounded.
func ValidateTiers(tiers []Tier) error {
	var violations []TierViolation
	for i, t := range tiers {
		if t.MinQuantity < 1 {
			violations = append(violations, TierViolation{Index: i, Field: "min_quantity", Reason: "must be at least 1"})
		}
		if upper, ok := t.MaxQuantity.Get(); ok && upper < t.MinQuantity {
			violations = append(violations, TierViolation{Index: i, Field: "max_quantity", Reason: "must be greater than or equal to min_quantity"})
		}
		if t.DiscountPercentage.IsNegative() || t.DiscountPercentage.GreaterThan(hundred) {
			violations = append(violations, TierViolation{Index: i, Field: "discount_percentage", Reason: "must be between 0 and 100"})
		}
	}
	if len(violations) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid discount tiers").WithDetails(violations)
	}

	order := sortedIndexes(tiers)
	for pos := 1; pos < len(order); pos++ {
		prev, cur := tiers[order[pos-1]], tiers[order[pos]]
		prevMax, bounded := prev.MaxQuantity.Get()
		if !bounded {
			violations = append(violations, TierViolation{Index: order[pos-1], Field: "max_quantity", Reason: "only the highest tier may be unbounded"})
			continue
		}
		if cur.MinQuantity <= prevMax {
			violations = append(violations, TierViolation{Index: order[pos], Field: "min_quantity", Reason: fmt.Sprintf("overlaps tier %d", order[pos-1])})
		}
	}
	if len(violations) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "overlapping discount tiers").WithDetails(violations)
	}
	return nil
}

// NormalizeTiers validates tiers, sorts them by MinQuantity and recomputes
// each DiscountedPrice from basePrice.
func NormalizeTiers(basePrice decimal.Decimal, tiers []Tier) ([]Tier, error) {
	if basePrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if err := ValidateTiers(tiers); err != nil {
		return nil, err
	}
	out := make([]Tier, 0, len(tiers))
	for _, idx := range sortedIndexes(tiers) {
		t := tiers[idx]
		t.DiscountedPrice = ApplyDiscount(basePrice, t.DiscountPercentage)
		out = append(out, t)
	}
	return out, nil
}

func sortedIndexes(tiers []Tier) []int {
	order := make([]int, len(tiers))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return tiers[order[a]].MinQuantity < tiers[order[b]].MinQuantity
	})
	return order
}

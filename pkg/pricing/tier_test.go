package pricing

import (
	"encoding/json"
	"testing"

	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
)

func TestMaxQuantityJSON(t *testing.T) {
	t.Parallel()

	var tier Tier
	if err := json.Unmarshal([]byte(`{"min_quantity":50,"max_quantity":null,"discount_percentage":"20"}`), &tier); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tier.MaxQuantity.IsBounded() {
		t.Fatal("null max_quantity should be unbounded")
	}

	if err := json.Unmarshal([]byte(`{"min_quantity":10,"max_quantity":49,"discount_percentage":10}`), &tier); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if upper, ok := tier.MaxQuantity.Get(); !ok || upper != 49 {
		t.Fatalf("expected bounded 49, got %v", tier.MaxQuantity)
	}

	out, err := json.Marshal(Tier{MinQuantity: 1, MaxQuantity: Unbounded()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(out, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if v, ok := raw["max_quantity"]; !ok || v != nil {
		t.Fatalf("expected max_quantity null, got %s", out)
	}

	if err := json.Unmarshal([]byte(`{"max_quantity":"lots"}`), &tier); err == nil {
		t.Fatal("expected non-integer max_quantity to fail")
	}
}

func TestMaxQuantityScanValue(t *testing.T) {
	t.Parallel()

	var m MaxQuantity
	if err := m.Scan(nil); err != nil || m.IsBounded() {
		t.Fatalf("scan nil: %v %v", m, err)
	}
	if err := m.Scan(int64(12)); err != nil {
		t.Fatalf("scan int64: %v", err)
	}
	v, err := m.Value()
	if err != nil || v != int64(12) {
		t.Fatalf("value: %v %v", v, err)
	}
	if v, _ := Unbounded().Value(); v != nil {
		t.Fatalf("unbounded should store NULL, got %v", v)
	}
	if err := m.Scan("12"); err == nil {
		t.Fatal("expected unsupported scan type to fail")
	}
}

func TestValidateTiers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		tiers   []Tier
		wantErr bool
	}{
		{name: "empty", tiers: nil},
		{name: "standard", tiers: standardTiers(t)},
		{name: "unsorted but disjoint", tiers: []Tier{
			{MinQuantity: 50, MaxQuantity: Unbounded(), DiscountPercentage: dec(t, "20")},
			{MinQuantity: 10, MaxQuantity: UpTo(49), DiscountPercentage: dec(t, "10")},
		}},
		{name: "overlap", wantErr: true, tiers: []Tier{
			{MinQuantity: 10, MaxQuantity: UpTo(50), DiscountPercentage: dec(t, "10")},
			{MinQuantity: 50, MaxQuantity: Unbounded(), DiscountPercentage: dec(t, "20")},
		}},
		{name: "unbounded not last", wantErr: true, tiers: []Tier{
			{MinQuantity: 10, MaxQuantity: Unbounded(), DiscountPercentage: dec(t, "10")},
			{MinQuantity: 50, MaxQuantity: Unbounded(), DiscountPercentage: dec(t, "20")},
		}},
		{name: "percentage above 100", wantErr: true, tiers: []Tier{
			{MinQuantity: 1, MaxQuantity: Unbounded(), DiscountPercentage: dec(t, "100.01")},
		}},
		{name: "negative percentage", wantErr: true, tiers: []Tier{
			{MinQuantity: 1, MaxQuantity: Unbounded(), DiscountPercentage: dec(t, "-1")},
		}},
		{name: "min zero", wantErr: true, tiers: []Tier{
			{MinQuantity: 0, MaxQuantity: UpTo(5), DiscountPercentage: dec(t, "1")},
		}},
		{name: "max below min", wantErr: true, tiers: []Tier{
			{MinQuantity: 10, MaxQuantity: UpTo(9), DiscountPercentage: dec(t, "1")},
		}},
	}

	for _, tc := range cases {
		err := ValidateTiers(tc.tiers)
		if tc.wantErr {
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("%s: expected validation error, got %v", tc.name, err)
			}
			if details, ok := pkgerrors.As(err).Details().([]TierViolation); !ok || len(details) == 0 {
				t.Fatalf("%s: expected tier violations in details", tc.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestNormalizeTiersSortsAndRecomputesPrice(t *testing.T) {
	t.Parallel()

	tiers := []Tier{
		{MinQuantity: 50, MaxQuantity: Unbounded(), DiscountPercentage: dec(t, "20"), DiscountedPrice: dec(t, "1")},
		{MinQuantity: 10, MaxQuantity: UpTo(49), DiscountPercentage: dec(t, "10")},
	}
	out, err := NormalizeTiers(dec(t, "215"), tiers)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out[0].MinQuantity != 10 || out[1].MinQuantity != 50 {
		t.Fatalf("expected ascending order, got %+v", out)
	}
	if !out[0].DiscountedPrice.Equal(dec(t, "193.50")) || !out[1].DiscountedPrice.Equal(dec(t, "172")) {
		t.Fatalf("discounted prices not recomputed: %s %s", out[0].DiscountedPrice, out[1].DiscountedPrice)
	}

	if _, err := NormalizeTiers(dec(t, "-1"), nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for negative price, got %v", err)
	}
}

package products

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/pricing"
	"github.com/shopspring/decimal"
)

// ProductDTO is the catalog payload returned to clients.
type ProductDTO struct {
	ID               uuid.UUID        `json:"id"`
	Name             string           `json:"name"`
	Slug             string           `json:"slug"`
	SKU              string           `json:"sku"`
	Description      *string          `json:"description,omitempty"`
	Price            decimal.Decimal  `json:"price"`
	ImageURL         *string          `json:"image_url,omitempty"`
	StockQuantity    int              `json:"stock_quantity"`
	IsActive         bool             `json:"is_active"`
	RequiresApproval bool             `json:"requires_approval"`
	Category         *CategorySummary `json:"category,omitempty"`
	BulkDiscounts    []pricing.Tier   `json:"bulk_discounts"`
	PriceTable       []PriceTableRow  `json:"price_table,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

type CategorySummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// PriceTableRow is one quantity band and the unit price it resolves to.
type PriceTableRow struct {
	MinQuantity        int                 `json:"min_quantity"`
	MaxQuantity        pricing.MaxQuantity `json:"max_quantity"`
	DiscountPercentage decimal.Decimal     `json:"discount_percentage"`
	UnitPrice          decimal.Decimal     `json:"unit_price"`
}

// NewProductDTO maps a product and its tiers; withTable adds the price table preview.
func NewProductDTO(p *models.Product, withTable bool) *ProductDTO {
	dto := &ProductDTO{
		ID:               p.ID,
		Name:             p.Name,
		Slug:             p.Slug,
		SKU:              p.SKU,
		Description:      p.Description,
		Price:            p.Price,
		ImageURL:         p.ImageURL,
		StockQuantity:    p.StockQuantity,
		IsActive:         p.IsActive,
		RequiresApproval: p.RequiresApproval,
		BulkDiscounts:    p.PricingTiers(),
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	if p.Category != nil {
		dto.Category = &CategorySummary{ID: p.Category.ID, Name: p.Category.Name, Slug: p.Category.Slug}
	}
	if withTable {
		dto.PriceTable = BuildPriceTable(p.Price, dto.BulkDiscounts)
	}
	return dto
}

// BuildPriceTable lists the base band followed by each valid tier, in quantity order.
func BuildPriceTable(base decimal.Decimal, tiers []pricing.Tier) []PriceTableRow {
	valid := make([]pricing.Tier, 0, len(tiers))
	for _, t := range tiers {
		if t.Valid() {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		return []PriceTableRow{{MinQuantity: 1, MaxQuantity: pricing.Unbounded(), DiscountPercentage: decimal.Zero, UnitPrice: base}}
	}

	valid = sortByMin(valid)
	rows := make([]PriceTableRow, 0, len(valid)+1)
	if first := valid[0].MinQuantity; first > 1 {
		rows = append(rows, PriceTableRow{MinQuantity: 1, MaxQuantity: pricing.UpTo(first - 1), DiscountPercentage: decimal.Zero, UnitPrice: base})
	}
	for _, t := range valid {
		unit, _ := pricing.ResolveUnitPrice(base, tiers, t.MinQuantity)
		rows = append(rows, PriceTableRow{
			MinQuantity:        t.MinQuantity,
			MaxQuantity:        t.MaxQuantity,
			DiscountPercentage: t.DiscountPercentage,
			UnitPrice:          unit,
		})
	}
	return rows
}

func sortByMin(tiers []pricing.Tier) []pricing.Tier {
	out := slices.Clone(tiers)
	slices.SortStableFunc(out, func(a, b pricing.Tier) int { return cmp.Compare(a.MinQuantity, b.MinQuantity) })
	return out
}

// ProductListResult is a page of catalog products.
type ProductListResult struct {
	Items  []ProductDTO `json:"items"`
	Cursor string       `json:"next_cursor,omitempty"`
}

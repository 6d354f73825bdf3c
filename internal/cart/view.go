package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/pricing"
	"github.com/shopspring/decimal"
)

// ProductSummary is the catalog data shown next to a cart line.
type ProductSummary struct {
	ID               uuid.UUID       `json:"id"`
	Name             string          `json:"name"`
	Slug             string          `json:"slug"`
	SKU              string          `json:"sku"`
	Price            decimal.Decimal `json:"price"`
	ImageURL         *string         `json:"image_url,omitempty"`
	StockQuantity    int             `json:"stock_quantity"`
	RequiresApproval bool            `json:"requires_approval"`
	BulkDiscounts    []pricing.Tier  `json:"bulk_discounts"`
}

// LineView is a cart line priced against the current catalog.
type LineView struct {
	ID                 uuid.UUID         `json:"id"`
	ProductID          uuid.UUID         `json:"product_id"`
	Quantity           int               `json:"quantity"`
	Available          bool              `json:"available"`
	Product            *ProductSummary   `json:"product,omitempty"`
	UnitPrice          decimal.Decimal   `json:"unit_price"`
	OriginalPrice      decimal.Decimal   `json:"original_price"`
	DiscountPercentage decimal.Decimal   `json:"discount_percentage"`
	LineTotal          decimal.Decimal   `json:"line_total"`
	Savings            decimal.Decimal   `json:"savings"`
	DiscountActive     bool              `json:"discount_active"`
	NextTier           *pricing.NextTier `json:"next_tier,omitempty"`
}

// View is the priced cart returned to clients. Unavailable lines are listed
// but excluded from the totals.
type View struct {
	Lines     []LineView      `json:"lines"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Savings   decimal.Decimal `json:"savings"`
	Total     decimal.Decimal `json:"total"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

// PricedLine pairs a purchasable cart line with its product and quote.
type PricedLine struct {
	LineID  uuid.UUID
	Product models.Product
	Quote   pricing.LineQuote
}

// Snapshot is the cart priced at one instant, used for display and checkout.
type Snapshot struct {
	Lines       []PricedLine
	Unavailable []uuid.UUID
	Quote       pricing.CartQuote
	UpdatedAt   *time.Time
	lineIDs     map[uuid.UUID]uuid.UUID
	order       []Line
}

// View renders the snapshot in cart order.
func (s *Snapshot) View() *View {
	view := &View{
		Lines:     make([]LineView, 0, len(s.order)),
		ItemCount: s.Quote.ItemCount,
		Subtotal:  s.Quote.Subtotal,
		Savings:   s.Quote.Savings,
		Total:     s.Quote.Total,
		UpdatedAt: s.UpdatedAt,
	}

	priced := make(map[uuid.UUID]PricedLine, len(s.Lines))
	for _, pl := range s.Lines {
		priced[pl.Product.ID] = pl
	}
	for _, line := range s.order {
		lv := LineView{
			ID:                 s.lineIDs[line.ProductID],
			ProductID:          line.ProductID,
			Quantity:           line.Quantity,
			UnitPrice:          decimal.Zero,
			OriginalPrice:      decimal.Zero,
			DiscountPercentage: decimal.Zero,
			LineTotal:          decimal.Zero,
			Savings:            decimal.Zero,
		}
		if pl, ok := priced[line.ProductID]; ok {
			q := pl.Quote
			lv.Available = true
			lv.Product = summarize(pl.Product)
			lv.UnitPrice = q.UnitPrice
			lv.OriginalPrice = q.OriginalPrice
			lv.DiscountPercentage = q.DiscountPercentage
			lv.LineTotal = q.LineTotal
			lv.Savings = q.Savings
			lv.DiscountActive = q.DiscountActive
			lv.NextTier = q.NextTier
		}
		view.Lines = append(view.Lines, lv)
	}
	return view
}

func summarize(p models.Product) *ProductSummary {
	return &ProductSummary{
		ID:               p.ID,
		Name:             p.Name,
		Slug:             p.Slug,
		SKU:              p.SKU,
		Price:            p.Price,
		ImageURL:         p.ImageURL,
		StockQuantity:    p.StockQuantity,
		RequiresApproval: p.RequiresApproval,
		BulkDiscounts:    p.PricingTiers(),
	}
}

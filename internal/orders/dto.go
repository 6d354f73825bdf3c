package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// OrderDTO is the order payload returned to shoppers and admins.
type OrderDTO struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	Status    enums.OrderStatus `json:"status"`
	Currency  string            `json:"currency"`
	Subtotal  decimal.Decimal   `json:"subtotal"`
	Savings   decimal.Decimal   `json:"savings"`
	Total     decimal.Decimal   `json:"total"`
	ItemCount int               `json:"item_count"`
	PaidAt    *time.Time        `json:"paid_at,omitempty"`
	Lines     []OrderLineDTO    `json:"lines"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// OrderLineDTO is the priced snapshot of one purchased product.
type OrderLineDTO struct {
	ProductID          uuid.UUID       `json:"product_id"`
	ProductName        string          `json:"product_name"`
	SKU                string          `json:"sku"`
	Quantity           int             `json:"quantity"`
	OriginalUnitPrice  decimal.Decimal `json:"original_unit_price"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	LineTotal          decimal.Decimal `json:"line_total"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func FromModel(o *models.Order) *OrderDTO {
	dto := &OrderDTO{
		ID:        o.ID,
		UserID:    o.UserID,
		Status:    o.Status,
		Currency:  o.Currency,
		Subtotal:  o.Subtotal,
		Savings:   o.Savings,
		Total:     o.Total,
		ItemCount: o.ItemCount,
		PaidAt:    o.PaidAt,
		Lines:     make([]OrderLineDTO, 0, len(o.Lines)),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	for _, l := range o.Lines {
		dto.Lines = append(dto.Lines, OrderLineDTO{
			ProductID:          l.ProductID,
			ProductName:        l.ProductName,
			SKU:                l.SKU,
			Quantity:           l.Quantity,
			OriginalUnitPrice:  l.OriginalUnitPrice,
			UnitPrice:          l.UnitPrice,
			DiscountPercentage: l.DiscountPercentage,
			LineTotal:          l.LineTotal,
		})
	}
	return dto
}

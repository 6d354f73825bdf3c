package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/pkg/pricing"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Category groups products in the catalog.
type Category struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Slug        string    `gorm:"column:slug;not null;uniqueIndex"`
	Description *string   `gorm:"column:description"`
	Position    int       `gorm:"column:position;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// Product is a catalog listing with optional bulk-discount tiers.
type Product struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CategoryID       *uuid.UUID            `gorm:"column:category_id;type:uuid"`
	Category         *Category             `gorm:"foreignKey:CategoryID"`
	Name             string                `gorm:"column:name;not null"`
	Slug             string                `gorm:"column:slug;not null;uniqueIndex"`
	SKU              string                `gorm:"column:sku;not null"`
	Description      *string               `gorm:"column:description"`
	Price            decimal.Decimal       `gorm:"column:price;type:numeric(12,2);not null"`
	ImageURL         *string               `gorm:"column:image_url"`
	StockQuantity    int                   `gorm:"column:stock_quantity;not null;default:0"`
	IsActive         bool                  `gorm:"column:is_active;not null"`
	RequiresApproval bool                  `gorm:"column:requires_approval;not null"`
	DiscountTiers    []ProductDiscountTier `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// PricingTiers converts the stored tiers for the price resolver.
func (p *Product) PricingTiers() []pricing.Tier {
	tiers := make([]pricing.Tier, 0, len(p.DiscountTiers))
	for _, t := range p.DiscountTiers {
		tiers = append(tiers, t.ToPricing())
	}
	return tiers
}

// ProductDiscountTier is one persisted bulk-discount band.
type ProductDiscountTier struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID          uuid.UUID           `gorm:"column:product_id;type:uuid;not null;index"`
	MinQuantity        int                 `gorm:"column:min_quantity;not null"`
	MaxQuantity        pricing.MaxQuantity `gorm:"column:max_quantity"`
	DiscountPercentage decimal.Decimal     `gorm:"column:discount_percentage;type:numeric(5,2);not null"`
	DiscountedPrice    decimal.Decimal     `gorm:"column:discounted_price;type:numeric(12,2);not null"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (t *ProductDiscountTier) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

func (t ProductDiscountTier) ToPricing() pricing.Tier {
	return pricing.Tier{
		MinQuantity:        t.MinQuantity,
		MaxQuantity:        t.MaxQuantity,
		DiscountPercentage: t.DiscountPercentage,
		DiscountedPrice:    t.DiscountedPrice,
	}
}

// Carousel is a home-page slide.
type Carousel struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title     string    `gorm:"column:title;not null"`
	Subtitle  *string   `gorm:"column:subtitle"`
	ImageURL  string    `gorm:"column:image_url;not null"`
	LinkURL   *string   `gorm:"column:link_url"`
	Position  int       `gorm:"column:position;not null;default:0"`
	IsActive  bool      `gorm:"column:is_active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Carousel) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

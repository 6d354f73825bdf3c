package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/pkg/db"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/medmarket/medmarket-backend/pkg/pagination"
	"github.com/medmarket/medmarket-backend/pkg/pricing"
	"github.com/medmarket/medmarket-backend/pkg/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service exposes catalog reads and back-office product management.
type Service interface {
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	GetBySlug(ctx context.Context, slug string) (*ProductDTO, error)
	GetByID(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
	ReplaceDiscounts(ctx context.Context, productID uuid.UUID, tiers []pricing.Tier) (*ProductDTO, error)
}

// ListProductsInput filters the public catalog.
type ListProductsInput struct {
	CategorySlug string
	Search       string
	Pagination   pagination.Params
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	CategoryID       *uuid.UUID
	Name             string
	Slug             string
	SKU              string
	Description      *string
	Price            decimal.Decimal
	ImageURL         *string
	StockQuantity    int
	IsActive         bool
	RequiresApproval bool
	BulkDiscounts    []pricing.Tier
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	CategoryID       *uuid.UUID
	Name             *string
	Slug             *string
	SKU              *string
	Description      *string
	Price            *decimal.Decimal
	ImageURL         *string
	StockQuantity    *int
	IsActive         *bool
	RequiresApproval *bool
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo *Repository
	tx   txRunner
}

// NewService constructs a product service instance.
func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, listQuery{
		categorySlug: strings.TrimSpace(input.CategorySlug),
		search:       input.Search,
		cursor:       cursor,
		limit:        input.Pagination.Limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	rows, next := pagination.Trim(rows, input.Pagination.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	items := make([]ProductDTO, len(rows))
	for i := range rows {
		items[i] = *NewProductDTO(&rows[i], false)
	}
	return &ProductListResult{Items: items, Cursor: next}, nil
}

func (s *service) GetBySlug(ctx context.Context, slug string) (*ProductDTO, error) {
	product, err := s.repo.FindBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		return nil, mapLookupError(err)
	}
	return NewProductDTO(product, true), nil
}

func (s *service) GetByID(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return NewProductDTO(product, true), nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	if input.StockQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock_quantity cannot be negative")
	}
	price := input.Price.Round(2)
	tiers, err := pricing.NormalizeTiers(price, input.BulkDiscounts)
	if err != nil {
		return nil, err
	}
	productSlug := strings.TrimSpace(input.Slug)
	if productSlug == "" {
		productSlug = slug.From(input.Name)
	}

	product := &models.Product{
		CategoryID:       input.CategoryID,
		Name:             strings.TrimSpace(input.Name),
		Slug:             productSlug,
		SKU:              strings.TrimSpace(input.SKU),
		Description:      input.Description,
		Price:            price,
		ImageURL:         input.ImageURL,
		StockQuantity:    input.StockQuantity,
		IsActive:         input.IsActive,
		RequiresApproval: input.RequiresApproval,
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Create(ctx, product); err != nil {
			return err
		}
		return txRepo.ReplaceTiers(ctx, product.ID, toTierModels(tiers))
	}); err != nil {
		return nil, mapWriteError(err, "create product")
	}
	return s.load(ctx, product.ID)
}

func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, mapLookupError(err)
	}

	priceChanged := false
	if input.Price != nil {
		if err := validatePrice(*input.Price); err != nil {
			return nil, err
		}
		price := input.Price.Round(2)
		priceChanged = !product.Price.Equal(price)
		product.Price = price
	}
	if input.StockQuantity != nil {
		if *input.StockQuantity < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock_quantity cannot be negative")
		}
		product.StockQuantity = *input.StockQuantity
	}
	applyUpdate(product, input)

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Update(ctx, product); err != nil {
			return err
		}
		if !priceChanged {
			return nil
		}
		// Discounted prices are derived from the base price.
		tiers, err := pricing.NormalizeTiers(product.Price, product.PricingTiers())
		if err != nil {
			return err
		}
		return txRepo.ReplaceTiers(ctx, product.ID, toTierModels(tiers))
	}); err != nil {
		return nil, mapWriteError(err, "update product")
	}
	return s.load(ctx, product.ID)
}

func (s *service) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

func (s *service) ReplaceDiscounts(ctx context.Context, productID uuid.UUID, tiers []pricing.Tier) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, mapLookupError(err)
	}
	normalized, err := pricing.NormalizeTiers(product.Price, tiers)
	if err != nil {
		return nil, err
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).ReplaceTiers(ctx, productID, toTierModels(normalized))
	}); err != nil {
		return nil, mapWriteError(err, "replace discount tiers")
	}
	return s.load(ctx, productID)
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product detail")
	}
	return NewProductDTO(product, true), nil
}

func applyUpdate(product *models.Product, input UpdateProductInput) {
	if input.CategoryID != nil {
		product.CategoryID = input.CategoryID
		product.Category = nil
	}
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Slug != nil {
		product.Slug = strings.TrimSpace(*input.Slug)
	}
	if input.SKU != nil {
		product.SKU = strings.TrimSpace(*input.SKU)
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.ImageURL != nil {
		product.ImageURL = input.ImageURL
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	if input.RequiresApproval != nil {
		product.RequiresApproval = *input.RequiresApproval
	}
}

func toTierModels(tiers []pricing.Tier) []models.ProductDiscountTier {
	out := make([]models.ProductDiscountTier, len(tiers))
	for i, t := range tiers {
		out[i] = models.ProductDiscountTier{
			MinQuantity:        t.MinQuantity,
			MaxQuantity:        t.MaxQuantity,
			DiscountPercentage: t.DiscountPercentage,
			DiscountedPrice:    t.DiscountedPrice,
		}
	}
	return out
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	return nil
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
}

func mapWriteError(err error, action string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.New(pkgerrors.CodeConflict, "a product with this slug already exists")
	}
	if strings.Contains(strings.ToLower(err.Error()), "foreign key") {
		return pkgerrors.New(pkgerrors.CodeValidation, "category does not exist")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

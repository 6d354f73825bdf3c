package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medmarket/medmarket-backend/api/responses"
	"github.com/medmarket/medmarket-backend/api/validators"
	"github.com/medmarket/medmarket-backend/internal/carousels"
	"github.com/medmarket/medmarket-backend/internal/categories"
	productsvc "github.com/medmarket/medmarket-backend/internal/products"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/medmarket/medmarket-backend/pkg/logger"
	"github.com/medmarket/medmarket-backend/pkg/pricing"
)

// CatalogProducts lists active products, filtered by ?category= and ?q=.
func CatalogProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := r.URL.Query()
		result, err := svc.ListProducts(r.Context(), productsvc.ListProductsInput{
			CategorySlug: validators.SanitizeString(query.Get("category"), 120),
			Search:       validators.SanitizeString(query.Get("q"), 200),
			Pagination:   params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, result.Items, result.Cursor)
	}
}

func CatalogProductDetail(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		slug := strings.TrimSpace(chi.URLParam(r, "slug"))
		if slug == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "slug is required"))
			return
		}
		product, err := svc.GetBySlug(r.Context(), slug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func CatalogCategories(svc categories.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "category service unavailable"))
			return
		}
		items, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func CatalogCarousels(svc carousels.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "carousel service unavailable"))
			return
		}
		items, err := svc.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

type createProductRequest struct {
	CategoryID       *string         `json:"category_id,omitempty" validate:"omitempty,uuid"`
	Name             string          `json:"name" validate:"required,max=200"`
	Slug             string          `json:"slug,omitempty" validate:"omitempty,max=200"`
	SKU              string          `json:"sku" validate:"required,max=64"`
	Description      *string         `json:"description,omitempty"`
	Price            decimal.Decimal `json:"price"`
	ImageURL         *string         `json:"image_url,omitempty" validate:"omitempty,url"`
	StockQuantity    int             `json:"stock_quantity" validate:"min=0"`
	IsActive         *bool           `json:"is_active,omitempty"`
	RequiresApproval bool            `json:"requires_approval"`
	BulkDiscounts    []pricing.Tier  `json:"bulk_discounts,omitempty"`
}

func (r createProductRequest) toInput() (productsvc.CreateProductInput, error) {
	categoryID, err := parseOptionalUUID(r.CategoryID, "category_id")
	if err != nil {
		return productsvc.CreateProductInput{}, err
	}
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return productsvc.CreateProductInput{
		CategoryID:       categoryID,
		Name:             strings.TrimSpace(r.Name),
		Slug:             strings.TrimSpace(r.Slug),
		SKU:              strings.TrimSpace(r.SKU),
		Description:      r.Description,
		Price:            r.Price,
		ImageURL:         r.ImageURL,
		StockQuantity:    r.StockQuantity,
		IsActive:         active,
		RequiresApproval: r.RequiresApproval,
		BulkDiscounts:    r.BulkDiscounts,
	}, nil
}

type updateProductRequest struct {
	CategoryID       *string          `json:"category_id,omitempty" validate:"omitempty,uuid"`
	Name             *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Slug             *string          `json:"slug,omitempty" validate:"omitempty,max=200"`
	SKU              *string          `json:"sku,omitempty" validate:"omitempty,max=64"`
	Description      *string          `json:"description,omitempty"`
	Price            *decimal.Decimal `json:"price,omitempty"`
	ImageURL         *string          `json:"image_url,omitempty" validate:"omitempty,url"`
	StockQuantity    *int             `json:"stock_quantity,omitempty" validate:"omitempty,min=0"`
	IsActive         *bool            `json:"is_active,omitempty"`
	RequiresApproval *bool            `json:"requires_approval,omitempty"`
}

func (r updateProductRequest) toInput() (productsvc.UpdateProductInput, error) {
	categoryID, err := parseOptionalUUID(r.CategoryID, "category_id")
	if err != nil {
		return productsvc.UpdateProductInput{}, err
	}
	return productsvc.UpdateProductInput{
		CategoryID:       categoryID,
		Name:             r.Name,
		Slug:             r.Slug,
		SKU:              r.SKU,
		Description:      r.Description,
		Price:            r.Price,
		ImageURL:         r.ImageURL,
		StockQuantity:    r.StockQuantity,
		IsActive:         r.IsActive,
		RequiresApproval: r.RequiresApproval,
	}, nil
}

type replaceDiscountsRequest struct {
	BulkDiscounts []pricing.Tier `json:"bulk_discounts"`
}

func AdminGetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetByID(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func AdminCreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func AdminUpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.UpdateProduct(r.Context(), productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func AdminDeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteProduct(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// AdminReplaceDiscounts swaps the product's whole tier table.
func AdminReplaceDiscounts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload replaceDiscountsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.ReplaceDiscounts(r.Context(), productID, payload.BulkDiscounts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func parseOptionalUUID(raw *string, field string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field).WithDetails(map[string]any{"field": field})
	}
	return &id, nil
}

package products

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository wires together product and discount tier persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) withDetail(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Category").
		Preload("DiscountTiers", func(db *gorm.DB) *gorm.DB {
			return db.Order("min_quantity ASC")
		})
}

// FindByID loads the product with its category and tiers.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.withDetail(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindBySlug loads an active product by slug.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	if err := r.withDetail(ctx).Where("slug = ? AND is_active = ?", slug, true).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads products with tiers keyed by id. Missing ids are absent from the map.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.withDetail(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Category", "DiscountTiers").Create(product).Error
}

func (r *Repository) Update(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Category", "DiscountTiers", "CreatedAt").Save(product).Error
}

// Delete removes a product; tiers go with it through the FK cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}

// ReplaceTiers swaps every tier of the product for tiers.
func (r *Repository) ReplaceTiers(ctx context.Context, productID uuid.UUID, tiers []models.ProductDiscountTier) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("product_id = ?", productID).Delete(&models.ProductDiscountTier{}).Error; err != nil {
		return err
	}
	if len(tiers) == 0 {
		return nil
	}
	for i := range tiers {
		tiers[i].ProductID = productID
	}
	return tx.Create(&tiers).Error
}

type listQuery struct {
	categorySlug string
	search       string
	cursor       *pagination.Cursor
	limit        int
}

// List returns active products newest first with one lookahead row.
func (r *Repository) List(ctx context.Context, q listQuery) ([]models.Product, error) {
	query := r.withDetail(ctx).Model(&models.Product{}).Where("products.is_active = ?", true)
	if q.categorySlug != "" {
		query = query.Where("products.category_id IN (?)",
			r.db.WithContext(ctx).Model(&models.Category{}).Select("id").Where("slug = ?", q.categorySlug))
	}
	if term := strings.ToLower(strings.TrimSpace(q.search)); term != "" {
		like := "%" + term + "%"
		query = query.Where("(LOWER(products.name) LIKE ? OR LOWER(products.sku) LIKE ?)", like, like)
	}
	var rows []models.Product
	if err := pagination.Apply(query, "products", q.cursor, q.limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

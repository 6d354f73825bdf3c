package carousels

import (
	"context"

	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns slides by position; activeOnly hides disabled slides.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]models.Carousel, error) {
	q := r.db.WithContext(ctx).Model(&models.Carousel{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var rows []models.Carousel
	if err := q.Order("position ASC").Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Carousel, error) {
	var slide models.Carousel
	if err := r.db.WithContext(ctx).First(&slide, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &slide, nil
}

func (r *Repository) Create(ctx context.Context, slide *models.Carousel) error {
	return r.db.WithContext(ctx).Create(slide).Error
}

func (r *Repository) Update(ctx context.Context, slide *models.Carousel) error {
	return r.db.WithContext(ctx).Omit("CreatedAt").Save(slide).Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.Carousel{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}

package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists one cart per user.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByUser loads the user's cart with lines in insertion order. A user
// without a cart gets gorm.ErrRecordNotFound.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// ReplaceLines creates the cart if needed and swaps its lines for lines.
func (r *Repository) ReplaceLines(ctx context.Context, userID uuid.UUID, lines []models.CartLine) (*models.Cart, error) {
	tx := r.db.WithContext(ctx)

	upsert := models.Cart{UserID: userID}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"updated_at": time.Now().UTC()}),
	}).Create(&upsert).Error; err != nil {
		return nil, err
	}
	// On conflict the generated id is not the stored one.
	var cart models.Cart
	if err := tx.Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return nil, err
	}

	if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartLine{}).Error; err != nil {
		return nil, err
	}
	for i := range lines {
		lines[i].CartID = cart.ID
		lines[i].Position = i
	}
	if len(lines) > 0 {
		if err := tx.Create(&lines).Error; err != nil {
			return nil, err
		}
	}
	cart.Lines = lines
	return &cart, nil
}

// CountLines reports how many distinct products are in the user's cart.
func (r *Repository) CountLines(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Joins("JOIN carts ON carts.id = cart_lines.cart_id").
		Where("carts.user_id = ?", userID).
		Count(&count).Error
	return int(count), err
}

// ClearByUser deletes every line of the user's cart. A missing cart is not an error.
func (r *Repository) ClearByUser(ctx context.Context, userID uuid.UUID) error {
	var cart models.Cart
	err := r.db.WithContext(ctx).Select("id").Where("user_id = ?", userID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("cart_id = ?", cart.ID).Delete(&models.CartLine{}).Error
}

// DeleteStale removes carts untouched since before, with their lines.
func (r *Repository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	stale := r.db.WithContext(ctx).Model(&models.Cart{}).Select("id").Where("updated_at < ?", before)
	if err := r.db.WithContext(ctx).Where("cart_id IN (?)", stale).Delete(&models.CartLine{}).Error; err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).Where("updated_at < ?", before).Delete(&models.Cart{})
	return res.RowsAffected, res.Error
}

package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/enums"
	"github.com/medmarket/medmarket-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository defines the persistence surface for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	SetPaymentIntent(ctx context.Context, orderID uuid.UUID, intentID string) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error)
	List(ctx context.Context, q ListQuery) ([]models.Order, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, paidAt *time.Time) (bool, error)
	ExpirePending(ctx context.Context, before time.Time) ([]uuid.UUID, error)
}

// ListQuery filters order listings. A nil UserID lists every user's orders.
type ListQuery struct {
	UserID *uuid.UUID
	Status enums.OrderStatus
	Cursor *pagination.Cursor
	Limit  int
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order and its line snapshots.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	lines := order.Lines
	order.Lines = nil
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return err
	}
	for i := range lines {
		lines[i].OrderID = order.ID
	}
	if len(lines) > 0 {
		if err := r.db.WithContext(ctx).Create(&lines).Error; err != nil {
			return err
		}
	}
	order.Lines = lines
	return nil
}

func (r *repository) SetPaymentIntent(ctx context.Context, orderID uuid.UUID, intentID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumns(map[string]any{"payment_intent_id": intentID, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.withLines(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error) {
	var order models.Order
	if err := r.withLines(ctx).Where("payment_intent_id = ?", intentID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// List returns newest orders first with one lookahead row.
func (r *repository) List(ctx context.Context, q ListQuery) ([]models.Order, error) {
	query := r.withLines(ctx).Model(&models.Order{})
	if q.UserID != nil {
		query = query.Where("user_id = ?", *q.UserID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	var rows []models.Order
	if err := pagination.Apply(query, "", q.Cursor, q.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TransitionStatus moves the order from one status to another. It reports
// false when the order was no longer in the from status.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, paidAt *time.Time) (bool, error) {
	updates := map[string]any{"status": to, "updated_at": time.Now().UTC()}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ExpirePending marks pending_payment orders created before the cutoff as
// expired. Only the ids this call moved are returned; an order paid in the
// meantime keeps its status and is left out. On error the ids expired so far
// are returned with it.
func (r *repository) ExpirePending(ctx context.Context, before time.Time) ([]uuid.UUID, error) {
	var candidates []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ? AND created_at < ?", enums.OrderStatusPendingPayment, before).
		Order("created_at ASC").
		Pluck("id", &candidates).Error
	if err != nil || len(candidates) == 0 {
		return nil, err
	}

	expired := make([]uuid.UUID, 0, len(candidates))
	for _, id := range candidates {
		moved, err := r.TransitionStatus(ctx, id, enums.OrderStatusPendingPayment, enums.OrderStatusExpired, nil)
		if err != nil {
			return expired, fmt.Errorf("expire order %s: %w", id, err)
		}
		if moved {
			expired = append(expired, id)
		}
	}
	return expired, nil
}

func (r *repository) withLines(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	})
}

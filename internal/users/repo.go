package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/enums"
	"github.com/medmarket/medmarket-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the user and, for doctors, the profile in one transaction.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	profile := user.DoctorProfile
	user.DoctorProfile = nil

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		if profile == nil {
			return nil
		}
		profile.UserID = user.ID
		return tx.Create(profile).Error
	})
	if err != nil {
		return nil, err
	}
	user.DoctorProfile = profile
	return user, nil
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("DoctorProfile").Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.FindByIDWithTx(r.db.WithContext(ctx), id)
}

func (r *Repository) FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := tx.Preload("DoctorProfile").First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// UpdatePasswordHash stores a re-encoded password hash.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("password_hash", hash).Error
}

// ListQuery filters users for back-office listings.
type ListQuery struct {
	Role     enums.UserRole
	Approval enums.ApprovalStatus
	Cursor   *pagination.Cursor
	Limit    int
}

// List returns newest users first with one lookahead row.
func (r *Repository) List(ctx context.Context, q ListQuery) ([]models.User, error) {
	query := r.db.WithContext(ctx).Model(&models.User{}).Preload("DoctorProfile")
	if q.Role != "" {
		query = query.Where("role = ?", q.Role)
	}
	if q.Approval != "" {
		query = query.Where("approval_status = ?", q.Approval)
	}
	var rows []models.User
	if err := pagination.Apply(query, "", q.Cursor, q.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SetApprovalWithTx moves a pending user to status. It reports false when the
// user was no longer pending.
func (r *Repository) SetApprovalWithTx(tx *gorm.DB, id uuid.UUID, status enums.ApprovalStatus) (bool, error) {
	res := tx.Model(&models.User{}).
		Where("id = ? AND approval_status = ?", id, enums.ApprovalStatusPending).
		UpdateColumns(map[string]any{"approval_status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RecordReviewWithTx stamps the reviewer on the doctor profile.
func (r *Repository) RecordReviewWithTx(tx *gorm.DB, userID, reviewer uuid.UUID, reason *string, at time.Time) error {
	return tx.Model(&models.DoctorProfile{}).
		Where("user_id = ?", userID).
		UpdateColumns(map[string]any{
			"reviewed_by":      reviewer,
			"reviewed_at":      at,
			"rejection_reason": reason,
			"updated_at":       at,
		}).Error
}

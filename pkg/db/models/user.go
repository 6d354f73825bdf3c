package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/pkg/enums"
	"gorm.io/gorm"
)

// User represents a shopper, doctor or administrator account.
type User struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email          string               `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash   string               `gorm:"column:password_hash;not null"`
	FirstName      string               `gorm:"column:first_name;not null"`
	LastName       string               `gorm:"column:last_name;not null"`
	Phone          *string              `gorm:"column:phone"`
	Role           enums.UserRole       `gorm:"column:role;type:user_role;not null"`
	ApprovalStatus enums.ApprovalStatus `gorm:"column:approval_status;type:approval_status;not null"`
	IsActive       bool                 `gorm:"column:is_active;not null"`
	LastLoginAt    *time.Time           `gorm:"column:last_login_at"`
	DoctorProfile  *DoctorProfile       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// DoctorProfile holds the professional details reviewed before a doctor may buy.
type DoctorProfile struct {
	UserID          uuid.UUID  `gorm:"column:user_id;type:uuid;primaryKey"`
	LicenseNumber   string     `gorm:"column:license_number;not null;uniqueIndex"`
	Specialty       string     `gorm:"column:specialty;not null"`
	ClinicName      *string    `gorm:"column:clinic_name"`
	RejectionReason *string    `gorm:"column:rejection_reason"`
	ReviewedBy      *uuid.UUID `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt      *time.Time `gorm:"column:reviewed_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

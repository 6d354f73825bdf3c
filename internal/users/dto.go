package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID             uuid.UUID            `json:"id"`
	Email          string               `json:"email"`
	FirstName      string               `json:"first_name"`
	LastName       string               `json:"last_name"`
	Phone          *string              `json:"phone,omitempty"`
	Role           enums.UserRole       `json:"role"`
	ApprovalStatus enums.ApprovalStatus `json:"approval_status"`
	IsActive       bool                 `json:"is_active"`
	LastLoginAt    *time.Time           `json:"last_login_at,omitempty"`
	DoctorProfile  *DoctorProfileDTO    `json:"doctor_profile,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

type DoctorProfileDTO struct {
	LicenseNumber   string     `json:"license_number"`
	Specialty       string     `json:"specialty"`
	ClinicName      *string    `json:"clinic_name,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	ReviewedBy      *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        *string
	Role         enums.UserRole
	Doctor       *DoctorProfileDTO
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	dto := &UserDTO{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Phone:          u.Phone,
		Role:           u.Role,
		ApprovalStatus: u.ApprovalStatus,
		IsActive:       u.IsActive,
		LastLoginAt:    u.LastLoginAt,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
	if p := u.DoctorProfile; p != nil {
		dto.DoctorProfile = &DoctorProfileDTO{
			LicenseNumber:   p.LicenseNumber,
			Specialty:       p.Specialty,
			ClinicName:      p.ClinicName,
			RejectionReason: p.RejectionReason,
			ReviewedBy:      p.ReviewedBy,
			ReviewedAt:      p.ReviewedAt,
		}
	}
	return dto
}

// ToModel builds an active user. Roles that require review start pending.
func (c CreateUserDTO) ToModel() *models.User {
	approval := enums.ApprovalStatusNotRequired
	if c.Role.RequiresApproval() {
		approval = enums.ApprovalStatusPending
	}

	user := &models.User{
		Email:          c.Email,
		PasswordHash:   c.PasswordHash,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Phone:          c.Phone,
		Role:           c.Role,
		ApprovalStatus: approval,
		IsActive:       true,
	}
	if c.Doctor != nil {
		user.DoctorProfile = &models.DoctorProfile{
			LicenseNumber: c.Doctor.LicenseNumber,
			Specialty:     c.Doctor.Specialty,
			ClinicName:    c.Doctor.ClinicName,
		}
	}
	return user
}

package auth

import (
	"github.com/medmarket/medmarket-backend/internal/users"
	"github.com/medmarket/medmarket-backend/pkg/enums"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the tokens and user produced by a successful login.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}

// RefreshRequest carries the presented tokens for rotation.
type RefreshRequest struct {
	AccessToken  string
	RefreshToken string
}

// TokenPair is issued by refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RegisterRequest onboards a customer or a doctor. Doctors must send the
// license details reviewed by an administrator.
type RegisterRequest struct {
	FirstName     string         `json:"first_name" validate:"required,max=100"`
	LastName      string         `json:"last_name" validate:"required,max=100"`
	Email         string         `json:"email" validate:"required,email"`
	Password      string         `json:"password" validate:"required,min=8"`
	Phone         *string        `json:"phone,omitempty"`
	Role          enums.UserRole `json:"role" validate:"required,oneof=customer doctor"`
	LicenseNumber *string        `json:"license_number,omitempty"`
	Specialty     *string        `json:"specialty,omitempty"`
	ClinicName    *string        `json:"clinic_name,omitempty"`
}

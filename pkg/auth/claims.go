package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	Role     enums.UserRole
	Approval enums.ApprovalStatus
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued to clients.
// Approval is a hint for clients only; checkout always re-reads the account.
type AccessTokenClaims struct {
	UserID   uuid.UUID            `json:"user_id"`
	Role     enums.UserRole       `json:"role"`
	Approval enums.ApprovalStatus `json:"approval_status,omitempty"`
	jwt.RegisteredClaims
}

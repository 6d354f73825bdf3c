package eligibility

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"gorm.io/gorm"
)

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// UserAccounts adapts the users repository to AccountLookup.
type UserAccounts struct {
	users userFinder
}

func NewUserAccounts(users userFinder) *UserAccounts {
	return &UserAccounts{users: users}
}

func (u *UserAccounts) LookupAccount(ctx context.Context, userID uuid.UUID) (*Account, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &Account{Active: user.IsActive, Approval: user.ApprovalStatus}, nil
}

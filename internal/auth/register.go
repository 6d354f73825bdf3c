package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/medmarket/medmarket-backend/internal/users"
	"github.com/medmarket/medmarket-backend/pkg/config"
	"github.com/medmarket/medmarket-backend/pkg/db"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/enums"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/medmarket/medmarket-backend/pkg/security"
	"gorm.io/gorm"
)

// RegisterService onboards customers and doctors.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
}

// AdminRegisterRequest is the body of the non-production admin bootstrap.
type AdminRegisterRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
}

// AdminRegisterService creates administrator accounts.
type AdminRegisterService interface {
	Register(ctx context.Context, req AdminRegisterRequest) (*users.UserDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type registerUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
}

type RegisterServiceParams struct {
	TxRunner       txRunner
	PasswordConfig config.PasswordConfig
	// UserRepoFactory binds the user repository to the registration transaction.
	UserRepoFactory func(tx *gorm.DB) registerUserRepository
}

// accountWriter holds what both registration flows share: hashing the
// password and inserting the user once the email is known to be free.
type accountWriter struct {
	tx          txRunner
	passwordCfg config.PasswordConfig
	repoFor     func(tx *gorm.DB) registerUserRepository
}

func newAccountWriter(params RegisterServiceParams) (accountWriter, error) {
	if params.TxRunner == nil {
		return accountWriter{}, fmt.Errorf("transaction runner required")
	}
	repoFor := params.UserRepoFactory
	if repoFor == nil {
		repoFor = func(tx *gorm.DB) registerUserRepository { return users.NewRepository(tx) }
	}
	return accountWriter{tx: params.TxRunner, passwordCfg: params.PasswordConfig, repoFor: repoFor}, nil
}

func (a accountWriter) create(ctx context.Context, password string, dto users.CreateUserDTO) (*users.UserDTO, error) {
	hash, err := security.HashPassword(password, a.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	dto.PasswordHash = hash

	var out *users.UserDTO
	err = a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := a.repoFor(tx)

		_, lookupErr := repo.FindByEmail(ctx, dto.Email)
		switch {
		case lookupErr == nil:
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		case !errors.Is(lookupErr, gorm.ErrRecordNotFound):
			return pkgerrors.Wrap(pkgerrors.CodeDependency, lookupErr, "check user email")
		}

		user, err := repo.Create(ctx, dto)
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, "email or license number already registered")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
		}
		out = users.FromModel(user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type registerService struct{ accounts accountWriter }

func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	w, err := newAccountWriter(params)
	if err != nil {
		return nil, err
	}
	return &registerService{accounts: w}, nil
}

// Register rejects any role other than customer or doctor. Doctors must
// supply license and specialty and are created pending review.
func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	dto := users.CreateUserDTO{
		Email:     email,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Phone:     req.Phone,
		Role:      req.Role,
	}
	switch req.Role {
	case enums.UserRoleCustomer:
	case enums.UserRoleDoctor:
		profile, err := doctorProfile(req)
		if err != nil {
			return nil, err
		}
		dto.Doctor = profile
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be customer or doctor")
	}

	return s.accounts.create(ctx, req.Password, dto)
}

func doctorProfile(req RegisterRequest) (*users.DoctorProfileDTO, error) {
	missing := map[string]string{}
	license := deref(req.LicenseNumber)
	if license == "" {
		missing["license_number"] = "required"
	}
	specialty := deref(req.Specialty)
	if specialty == "" {
		missing["specialty"] = "required"
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license_number and specialty are required for doctors").
			WithDetails(missing)
	}
	return &users.DoctorProfileDTO{LicenseNumber: license, Specialty: specialty, ClinicName: req.ClinicName}, nil
}

type adminRegisterService struct{ accounts accountWriter }

func NewAdminRegisterService(params RegisterServiceParams) (AdminRegisterService, error) {
	w, err := newAccountWriter(params)
	if err != nil {
		return nil, err
	}
	return &adminRegisterService{accounts: w}, nil
}

func (s *adminRegisterService) Register(ctx context.Context, req AdminRegisterRequest) (*users.UserDTO, error) {
	email := normalizeEmail(req.Email)
	first, last := strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)
	if email == "" || first == "" || last == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email, first_name and last_name are required")
	}
	return s.accounts.create(ctx, req.Password, users.CreateUserDTO{
		Email:     email,
		FirstName: first,
		LastName:  last,
		Role:      enums.UserRoleAdmin,
	})
}

func normalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

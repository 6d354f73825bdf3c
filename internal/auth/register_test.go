package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/internal/users"
	"github.com/medmarket/medmarket-backend/pkg/config"
	"github.com/medmarket/medmarket-backend/pkg/db"
	"github.com/medmarket/medmarket-backend/pkg/db/dbtest"
	pkgmodels "github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/enums"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/medmarket/medmarket-backend/pkg/security"
	"gorm.io/gorm"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubUserRepository struct {
	data      map[string]*pkgmodels.User
	created   *users.CreateUserDTO
	createErr error
}

func newStubUserRepository() *stubUserRepository {
	return &stubUserRepository{data: map[string]*pkgmodels.User{}}
}

func (s *stubUserRepository) FindByEmail(ctx context.Context, email string) (*pkgmodels.User, error) {
	if user, ok := s.data[email]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepository) Create(ctx context.Context, dto users.CreateUserDTO) (*pkgmodels.User, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = &dto
	user := dto.ToModel()
	user.ID = uuid.New()
	s.data[dto.Email] = user
	return user, nil
}

func newStubRegisterService(t *testing.T, repo *stubUserRepository) RegisterService {
	t.Helper()
	svc, err := NewRegisterService(RegisterServiceParams{
		TxRunner:        stubTxRunner{},
		UserRepoFactory: func(*gorm.DB) registerUserRepository { return repo },
	})
	if err != nil {
		t.Fatalf("new register service: %v", err)
	}
	return svc
}

func strPtr(value string) *string {
	return &value
}

func TestRegisterCustomerNotRequiringApproval(t *testing.T) {
	repo := newStubUserRepository()
	svc := newStubRegisterService(t, repo)

	user, err := svc.Register(context.Background(), RegisterRequest{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "  Grace@Example.com ",
		Password:  "supersecret",
		Role:      enums.UserRoleCustomer,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "grace@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.ApprovalStatus != enums.ApprovalStatusNotRequired {
		t.Fatalf("expected not_required, got %s", user.ApprovalStatus)
	}
	ok, err := security.VerifyPassword("supersecret", repo.created.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestRegisterDoctorRequiresLicense(t *testing.T) {
	svc := newStubRegisterService(t, newStubUserRepository())

	_, err := svc.Register(context.Background(), RegisterRequest{
		FirstName: "Doc",
		LastName:  "Brown",
		Email:     "doc@example.com",
		Password:  "supersecret",
		Role:      enums.UserRoleDoctor,
		Specialty: strPtr("cardiology"),
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRegisterRejectsAdminRoleAndDuplicates(t *testing.T) {
	repo := newStubUserRepository()
	svc := newStubRegisterService(t, repo)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "a@example.com", Password: "supersecret", Role: enums.UserRoleAdmin})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for admin role, got %v", err)
	}

	req := RegisterRequest{FirstName: "A", LastName: "B", Email: "dup@example.com", Password: "supersecret", Role: enums.UserRoleCustomer}
	if _, err := svc.Register(ctx, req); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, req); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterCreateFailureIsDependencyError(t *testing.T) {
	repo := newStubUserRepository()
	repo.createErr = errors.New("connection reset")
	svc := newStubRegisterService(t, repo)

	_, err := svc.Register(context.Background(), RegisterRequest{FirstName: "A", LastName: "B", Email: "x@example.com", Password: "supersecret", Role: enums.UserRoleCustomer})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestRegisterDoctorPersistsPendingProfile(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewRegisterService(RegisterServiceParams{TxRunner: db.NewFromGorm(conn), PasswordConfig: config.PasswordConfig{}})
	if err != nil {
		t.Fatalf("new register service: %v", err)
	}
	ctx := context.Background()

	req := RegisterRequest{
		FirstName:     "Doc",
		LastName:      "Brown",
		Email:         "doc@example.com",
		Password:      "supersecret",
		Role:          enums.UserRoleDoctor,
		LicenseNumber: strPtr("MED-42"),
		Specialty:     strPtr("cardiology"),
	}
	user, err := svc.Register(ctx, req)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ApprovalStatus != enums.ApprovalStatusPending || user.DoctorProfile == nil {
		t.Fatalf("expected pending doctor with profile, got %+v", user)
	}

	req.Email = "other@example.com"
	if _, err := svc.Register(ctx, req); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected duplicate license conflict, got %v", err)
	}
}

func TestAdminRegisterCreatesAdmin(t *testing.T) {
	repo := newStubUserRepository()
	svc, err := NewAdminRegisterService(RegisterServiceParams{
		TxRunner:        stubTxRunner{},
		UserRepoFactory: func(*gorm.DB) registerUserRepository { return repo },
	})
	if err != nil {
		t.Fatalf("new admin register service: %v", err)
	}

	user, err := svc.Register(context.Background(), AdminRegisterRequest{FirstName: "Root", LastName: "Admin", Email: "root@example.com", Password: "supersecret"})
	if err != nil {
		t.Fatalf("register admin: %v", err)
	}
	if user.Role != enums.UserRoleAdmin || user.ApprovalStatus != enums.ApprovalStatusNotRequired {
		t.Fatalf("unexpected admin %+v", user)
	}
}

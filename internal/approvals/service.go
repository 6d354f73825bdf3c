package approvals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/internal/users"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/enums"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/medmarket/medmarket-backend/pkg/logger"
	"github.com/medmarket/medmarket-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Service reviews doctor registrations.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Decide(ctx context.Context, input DecisionInput) (*users.UserDTO, error)
}

// ListParams filters the review queue. An empty status lists every doctor.
type ListParams struct {
	Status     enums.ApprovalStatus
	Pagination pagination.Params
}

type ListResult struct {
	Items      []users.UserDTO `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// DecisionInput records an administrator's review of one registration.
type DecisionInput struct {
	UserID   uuid.UUID
	Reviewer uuid.UUID
	Decision enums.ApprovalDecision
	Reason   string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// sessionRevoker ends live sessions so the next token carries the new status.
type sessionRevoker interface {
	RevokeUser(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo     *users.Repository
	tx       txRunner
	sessions sessionRevoker
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(repo *users.Repository, tx txRunner, sessions sessionRevoker, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		sessions: sessions,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Status != "" && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid approval status")
	}
	cursor, err := pagination.ParseCursor(params.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, users.ListQuery{
		Role:     enums.UserRoleDoctor,
		Approval: params.Status,
		Cursor:   cursor,
		Limit:    params.Pagination.Limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list registrations")
	}
	rows, next := pagination.Trim(rows, params.Pagination.Limit, func(u models.User) pagination.Cursor {
		return pagination.Cursor{CreatedAt: u.CreatedAt, ID: u.ID}
	})

	items := make([]users.UserDTO, len(rows))
	for i := range rows {
		items[i] = *users.FromModel(&rows[i])
	}
	return &ListResult{Items: items, NextCursor: next}, nil
}

func (s *service) Decide(ctx context.Context, input DecisionInput) (*users.UserDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.Decision.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid decision")
	}
	var reason *string
	if input.Decision == enums.ApprovalDecisionReject {
		trimmed := strings.TrimSpace(input.Reason)
		if trimmed == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required when rejecting")
		}
		reason = &trimmed
	}

	var reviewed *models.User
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		user, err := s.repo.FindByIDWithTx(tx, input.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "registration not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load registration")
		}
		if user.Role != enums.UserRoleDoctor {
			return pkgerrors.New(pkgerrors.CodeNotFound, "registration not found")
		}

		status := input.Decision.Status()
		updated, err := s.repo.SetApprovalWithTx(tx, user.ID, status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update approval status")
		}
		if !updated {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "registration already %s", user.ApprovalStatus)
		}
		if err := s.repo.RecordReviewWithTx(tx, user.ID, input.Reviewer, reason, s.now()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record review")
		}

		reviewed, err = s.repo.FindByIDWithTx(tx, user.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload registration")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.sessions != nil {
		if err := s.sessions.RevokeUser(ctx, reviewed.ID); err != nil && s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"user_id": reviewed.ID.String(), "error": err.Error()})
			s.logg.Warn(logCtx, "failed to revoke sessions after approval decision")
		}
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":         reviewed.ID.String(),
			"reviewer_id":     input.Reviewer.String(),
			"approval_status": reviewed.ApprovalStatus.String(),
		})
		s.logg.Info(logCtx, "doctor registration reviewed")
	}
	return users.FromModel(reviewed), nil
}

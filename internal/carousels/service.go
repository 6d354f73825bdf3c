package carousels

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/pkg/db"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
)

type CarouselDTO struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Subtitle *string   `json:"subtitle,omitempty"`
	ImageURL string    `json:"image_url"`
	LinkURL  *string   `json:"link_url,omitempty"`
	Position int       `json:"position"`
	IsActive bool      `json:"is_active"`
}

func FromModel(c models.Carousel) CarouselDTO {
	return CarouselDTO{
		ID:       c.ID,
		Title:    c.Title,
		Subtitle: c.Subtitle,
		ImageURL: c.ImageURL,
		LinkURL:  c.LinkURL,
		Position: c.Position,
		IsActive: c.IsActive,
	}
}

// Input holds slide values; nil pointers are left unchanged on update.
type Input struct {
	Title    *string
	Subtitle *string
	ImageURL *string
	LinkURL  *string
	Position *int
	IsActive *bool
}

type Service interface {
	ListActive(ctx context.Context) ([]CarouselDTO, error)
	ListAll(ctx context.Context) ([]CarouselDTO, error)
	Create(ctx context.Context, input Input) (*CarouselDTO, error)
	Update(ctx context.Context, id uuid.UUID, input Input) (*CarouselDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("carousel repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListActive(ctx context.Context) ([]CarouselDTO, error) {
	return s.list(ctx, true)
}

func (s *service) ListAll(ctx context.Context) ([]CarouselDTO, error) {
	return s.list(ctx, false)
}

func (s *service) list(ctx context.Context, activeOnly bool) ([]CarouselDTO, error) {
	rows, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list carousels")
	}
	out := make([]CarouselDTO, len(rows))
	for i, row := range rows {
		out[i] = FromModel(row)
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, input Input) (*CarouselDTO, error) {
	if input.Title == nil || strings.TrimSpace(*input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.ImageURL == nil || strings.TrimSpace(*input.ImageURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image_url is required")
	}
	slide := &models.Carousel{IsActive: true}
	apply(slide, input)
	if err := s.repo.Create(ctx, slide); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create carousel")
	}
	dto := FromModel(*slide)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input Input) (*CarouselDTO, error) {
	slide, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "carousel not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load carousel")
	}
	apply(slide, input)
	if err := s.repo.Update(ctx, slide); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update carousel")
	}
	dto := FromModel(*slide)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete carousel")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "carousel not found")
	}
	return nil
}

func apply(c *models.Carousel, input Input) {
	if input.Title != nil {
		c.Title = strings.TrimSpace(*input.Title)
	}
	if input.Subtitle != nil {
		c.Subtitle = input.Subtitle
	}
	if input.ImageURL != nil {
		c.ImageURL = strings.TrimSpace(*input.ImageURL)
	}
	if input.LinkURL != nil {
		c.LinkURL = input.LinkURL
	}
	if input.Position != nil {
		c.Position = *input.Position
	}
	if input.IsActive != nil {
		c.IsActive = *input.IsActive
	}
}

package promotion

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rch/portal/internal/platform/apperr"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ListActive returns the promotions still valid today.
func (s *Service) ListActive(ctx context.Context) ([]*Promotion, error) {
	return s.repo.List(ctx, s.now().Format(DateLayout))
}

func (s *Service) ListAll(ctx context.Context) ([]*Promotion, error) {
	return s.repo.List(ctx, "")
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Promotion, error) {
	return s.repo.GetByID(ctx, id)
}

// GetActive hides expired promotions.
func (s *Service) GetActive(ctx context.Context, id uuid.UUID) (*Promotion, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.ValidOn(s.now()) {
		return nil, apperr.NotFound("promotion not found")
	}
	return p, nil
}

type Input struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Includes    []string `json:"includes,omitempty"`
	ValidUntil  *string  `json:"validUntil,omitempty"`
	ImageURL    *string  `json:"imageUrl,omitempty"`
}

func apply(p *Promotion, in Input) error {
	if in.Title != nil {
		p.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return apperr.Validation("price cannot be negative")
		}
		p.Price = *in.Price
	}
	if in.Includes != nil {
		p.Includes = in.Includes
	}
	if in.ValidUntil != nil {
		if _, err := time.Parse(DateLayout, *in.ValidUntil); err != nil {
			return apperr.Validation("validUntil must be YYYY-MM-DD")
		}
		p.ValidUntil = *in.ValidUntil
	}
	if in.ImageURL != nil {
		p.ImageURL = in.ImageURL
	}
	if p.Title == "" || p.ValidUntil == "" {
		return apperr.Validation("Por favor completa todos los campos requeridos")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in Input) (*Promotion, error) {
	if in.Price == nil {
		return nil, apperr.Validation("Por favor completa todos los campos requeridos")
	}
	p := &Promotion{}
	if err := apply(p, in); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*Promotion, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(p, in); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) (*Promotion, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}

package membership

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rch/portal/internal/platform/apperr"
)

// Activator switches a user's membership on until a given time.
// MembershipExpiry returns the end of a running membership, or nil.
type Activator interface {
	ActivateMembership(ctx context.Context, userID uuid.UUID, planID *uuid.UUID, until time.Time) error
	MembershipExpiry(ctx context.Context, userID uuid.UUID) (*time.Time, error)
}

type Service struct {
	plans     PlanRepository
	activator Activator
	days      int
	now       func() time.Time
}

// NewService creates the membership service; days is the length of a
// subscription period.
func NewService(plans PlanRepository, activator Activator, days int) *Service {
	if days <= 0 {
		days = 30
	}
	return &Service{plans: plans, activator: activator, days: days, now: time.Now}
}

func (s *Service) ListPlans(ctx context.Context, activeOnly bool) ([]*Plan, error) {
	return s.plans.List(ctx, activeOnly)
}

func (s *Service) GetPlan(ctx context.Context, id uuid.UUID) (*Plan, error) {
	return s.plans.GetByID(ctx, id)
}

type PlanInput struct {
	Name     *string  `json:"name,omitempty"`
	Price    *float64 `json:"price,omitempty"`
	Duration *string  `json:"duration,omitempty"`
	Benefits []string `json:"benefits,omitempty"`
	Discount *float64 `json:"discount,omitempty"`
	Active   *bool    `json:"active,omitempty"`
}

func apply(p *Plan, in PlanInput) error {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return apperr.Validation("price cannot be negative")
		}
		p.Price = *in.Price
	}
	if in.Duration != nil {
		p.Duration = strings.TrimSpace(*in.Duration)
	}
	if in.Benefits != nil {
		p.Benefits = in.Benefits
	}
	if in.Discount != nil {
		if *in.Discount < 0 || *in.Discount > 100 {
			return apperr.Validation("discount must be between 0 and 100")
		}
		p.Discount = *in.Discount
	}
	if in.Active != nil {
		p.Active = *in.Active
	}
	if p.Name == "" {
		return apperr.Validation("name is required")
	}
	return nil
}

func (s *Service) CreatePlan(ctx context.Context, in PlanInput) (*Plan, error) {
	if in.Price == nil {
		return nil, apperr.Validation("price is required")
	}
	p := &Plan{Duration: "mensual", Active: true}
	if err := apply(p, in); err != nil {
		return nil, err
	}
	if err := s.plans.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdatePlan(ctx context.Context, id uuid.UUID, in PlanInput) (*Plan, error) {
	p, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(p, in); err != nil {
		return nil, err
	}
	if err := s.plans.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeletePlan(ctx context.Context, id uuid.UUID) (*Plan, error) {
	p, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.plans.Delete(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}

// Subscribe activates planID for the user for one subscription period. A
// running membership is extended from its current expiry.
func (s *Service) Subscribe(ctx context.Context, userID, planID uuid.UUID) (*Subscription, error) {
	p, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, apperr.Validation("plan %s is not available", p.Name)
	}
	from := s.now()
	current, err := s.activator.MembershipExpiry(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current != nil && current.After(from) {
		from = *current
	}
	until := from.AddDate(0, 0, s.days)
	if err := s.activator.ActivateMembership(ctx, userID, &p.ID, until); err != nil {
		return nil, err
	}
	return &Subscription{PlanID: p.ID, PlanName: p.Name, ExpiresAt: until}, nil
}

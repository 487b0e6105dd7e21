package promotion

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Promotion) error
	GetByID(ctx context.Context, id uuid.UUID) (*Promotion, error)
	Update(ctx context.Context, p *Promotion) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns promotions valid on or after validFrom (YYYY-MM-DD); an
	// empty validFrom returns all of them.
	List(ctx context.Context, validFrom string) ([]*Promotion, error)
}

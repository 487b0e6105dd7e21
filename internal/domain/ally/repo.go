package ally

import (
	"context"

	"github.com/google/uuid"
)

type AllyRepository interface {
	Create(ctx context.Context, a *Ally) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ally, error)
	Update(ctx context.Context, a *Ally) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Ally, int, error)
}

type ResultRepository interface {
	Create(ctx context.Context, r *LabResult) error
	// ListByPatient returns newest first; search matches the order code,
	// ally name or description.
	ListByPatient(ctx context.Context, patientID uuid.UUID, search string) ([]*LabResult, error)
}

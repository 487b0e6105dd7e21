package catalog

import (
	"context"

	"github.com/google/uuid"
)

type SpecialtyRepository interface {
	Create(ctx context.Context, s *Specialty) error
	GetByID(ctx context.Context, id uuid.UUID) (*Specialty, error)
	Update(ctx context.Context, s *Specialty) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*Specialty, error)
	Search(ctx context.Context, q string, limit int) ([]*Specialty, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter DoctorFilter, limit, offset int) ([]*Doctor, int, error)
	CountBySpecialty(ctx context.Context, specialtyID uuid.UUID) (int, error)
	SetSchedule(ctx context.Context, id uuid.UUID, schedule []ScheduleEntry) error
	// Search matches name or email.
	Search(ctx context.Context, q string, limit int) ([]*Doctor, error)
}

package booking

import (
	"context"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	// Create fails with a conflict when the doctor's slot is already taken
	// by a non-cancelled appointment.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	SetTransferProof(ctx context.Context, id uuid.UUID, proof string) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Appointment, int, error)
	// BookedTimes returns the taken HH:MM slots of doctorID on date.
	BookedTimes(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error)
	DoctorPatients(ctx context.Context, doctorID uuid.UUID, search, today string) ([]*DoctorPatient, error)
}

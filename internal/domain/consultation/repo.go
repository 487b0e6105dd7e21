package consultation

import (
	"context"

	"github.com/google/uuid"
)

type RecordRepository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*MedicalRecord, error)
	// ListByPatient returns the patient's records, newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*MedicalRecord, error)
}

// CodeRepository stores redeemable prescription and order codes.
type CodeRepository interface {
	Exists(ctx context.Context, code string) (bool, error)
	CreatePrescription(ctx context.Context, p *PrescriptionCode) error
	CreateOrder(ctx context.Context, o *OrderCode) error
	GetPrescription(ctx context.Context, code string) (*PrescriptionCode, error)
	GetOrder(ctx context.Context, code string) (*OrderCode, error)
	// RedeemPrescription and RedeemOrder mark an unused code as used by
	// allyID. A code that is already used yields a conflict.
	RedeemPrescription(ctx context.Context, code string, allyID uuid.UUID) (*PrescriptionCode, error)
	RedeemOrder(ctx context.Context, code string, allyID uuid.UUID) (*OrderCode, error)
}

type CIE10Repository interface {
	// Search matches q against code or description; an empty q lists codes
	// in code order. A limit of zero or less returns every row.
	Search(ctx context.Context, q string, limit int) ([]CIE10Code, error)
}

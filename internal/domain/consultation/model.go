package consultation

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type DiagnosisItem struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type PrescriptionItem struct {
	ID           string `json:"id"`
	Medication   string `json:"medication"`
	Dose         string `json:"dose"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

type OrderType string

const (
	OrderLaboratory    OrderType = "laboratory"
	OrderImaging       OrderType = "imaging"
	OrderPhysiotherapy OrderType = "physiotherapy"
)

func (t OrderType) Valid() bool {
	return t == OrderLaboratory || t == OrderImaging || t == OrderPhysiotherapy
}

// Code prefixes. Every redeemable code is PREFIX-NNNNNN.
const (
	PrefixPrescription  = "RX"
	PrefixLaboratory    = "LAB"
	PrefixImaging       = "IMG"
	PrefixPhysiotherapy = "FIS"
)

// Prefix returns the code prefix for orders of this type.
func (t OrderType) Prefix() string {
	switch t {
	case OrderLaboratory:
		return PrefixLaboratory
	case OrderImaging:
		return PrefixImaging
	case OrderPhysiotherapy:
		return PrefixPhysiotherapy
	}
	return ""
}

// NormalizeCode trims and upper-cases a code typed by an ally.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type MedicalOrder struct {
	ID          string     `json:"id"`
	Type        OrderType  `json:"type"`
	Description string     `json:"description"`
	Code        string     `json:"code"`
	Used        bool       `json:"used"`
	UsedAt      *time.Time `json:"usedAt,omitempty"`
}

type MedicalRecord struct {
	ID            uuid.UUID          `db:"id" json:"id"`
	AppointmentID uuid.UUID          `db:"appointment_id" json:"appointmentId"`
	PatientID     uuid.UUID          `db:"patient_id" json:"patientId"`
	PatientName   string             `db:"patient_name" json:"patientName"`
	PatientCedula string             `db:"patient_cedula" json:"patientCedula"`
	DoctorID      uuid.UUID          `db:"doctor_id" json:"doctorId"`
	DoctorName    string             `db:"doctor_name" json:"doctorName"`
	Date          string             `db:"date" json:"date"`
	Reason        string             `db:"reason" json:"reason"`
	Antecedents   string             `db:"antecedents" json:"antecedents"`
	PhysicalExam  string             `db:"physical_exam" json:"physicalExam"`
	Diagnosis     []DiagnosisItem    `db:"diagnosis" json:"diagnosis"`
	Evolution     string             `db:"evolution" json:"evolution"`
	Plan          string             `db:"plan" json:"plan"`
	Prescription  []PrescriptionItem `db:"prescription" json:"prescription"`
	Orders        []MedicalOrder     `db:"orders" json:"orders"`
	CreatedAt     time.Time          `db:"created_at" json:"createdAt"`
}

type PrescriptionCode struct {
	Code          string             `json:"code"`
	RecordID      uuid.UUID          `json:"recordId"`
	PatientID     uuid.UUID          `json:"patientId"`
	PatientName   string             `json:"patientName"`
	PatientCedula string             `json:"patientCedula"`
	DoctorID      uuid.UUID          `json:"doctorId"`
	DoctorName    string             `json:"doctorName"`
	Items         []PrescriptionItem `json:"items"`
	CreatedAt     time.Time          `json:"createdAt"`
	Used          bool               `json:"used"`
	UsedAt        *time.Time         `json:"usedAt,omitempty"`
	UsedByAllyID  *uuid.UUID         `json:"usedByAllyId,omitempty"`
}

type OrderCode struct {
	Code          string     `json:"code"`
	RecordID      uuid.UUID  `json:"recordId"`
	Type          OrderType  `json:"type"`
	PatientID     uuid.UUID  `json:"patientId"`
	PatientName   string     `json:"patientName"`
	PatientCedula string     `json:"patientCedula"`
	DoctorID      uuid.UUID  `json:"doctorId"`
	DoctorName    string     `json:"doctorName"`
	Description   string     `json:"description"`
	CreatedAt     time.Time  `json:"createdAt"`
	Used          bool       `json:"used"`
	UsedAt        *time.Time `json:"usedAt,omitempty"`
	UsedByAllyID  *uuid.UUID `json:"usedByAllyId,omitempty"`
}

type CIE10Code struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// OrderDraft is an order row of the consultation form. Unchecked or empty
// rows are dropped on save.
type OrderDraft struct {
	Type        OrderType `json:"type"`
	Description string    `json:"description"`
	Checked     bool      `json:"checked"`
}

// Form is the consultation form submitted by the attending doctor.
type Form struct {
	AppointmentID uuid.UUID          `json:"appointmentId" validate:"required"`
	Reason        string             `json:"reason"`
	Antecedents   string             `json:"antecedents"`
	PhysicalExam  string             `json:"physicalExam"`
	Diagnosis     []DiagnosisItem    `json:"diagnosis"`
	Evolution     string             `json:"evolution"`
	Plan          string             `json:"plan"`
	Prescription  []PrescriptionItem `json:"prescription"`
	Orders        []OrderDraft       `json:"orders"`
}

// SaveResult is the stored record and the codes issued with it.
type SaveResult struct {
	Record           *MedicalRecord    `json:"record"`
	PrescriptionCode *PrescriptionCode `json:"prescriptionCode,omitempty"`
	OrderCodes       []*OrderCode      `json:"orderCodes"`
}

package ally

import (
	"time"

	"github.com/google/uuid"

	"github.com/rch/portal/internal/domain/consultation"
)

type Type string

const (
	TypeMedical    Type = "medical"
	TypeLaboratory Type = "laboratory"
	TypeImaging    Type = "imaging"
	TypePharmacy   Type = "pharmacy"
	TypeDental     Type = "dental"
)

func (t Type) Valid() bool {
	switch t {
	case TypeMedical, TypeLaboratory, TypeImaging, TypePharmacy, TypeDental:
		return true
	}
	return false
}

// UploadsResults reports whether allies of this type deliver results.
func (t Type) UploadsResults() bool {
	return t == TypeLaboratory || t == TypeImaging
}

// Redeems reports whether an ally of this type may redeem order codes of
// orderType.
func (t Type) Redeems(orderType consultation.OrderType) bool {
	return (t == TypeLaboratory && orderType == consultation.OrderLaboratory) ||
		(t == TypeImaging && orderType == consultation.OrderImaging)
}

type Ally struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Type      Type      `db:"type" json:"type"`
	Sector    string    `db:"sector" json:"sector"`
	Address   string    `db:"address" json:"address"`
	Phone     string    `db:"phone" json:"phone"`
	Discount  float64   `db:"discount" json:"discount"`
	PhotoURL  *string   `db:"photo_url" json:"photoUrl,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type Filter struct {
	Search string
	Type   Type
	Sector string
}

// Lookup kinds.
const (
	KindPrescription = "prescription"
	KindOrder        = "order"
)

// LookupResult is what an ally sees after typing a code.
type LookupResult struct {
	Kind         string                         `json:"kind"`
	Prescription *consultation.PrescriptionCode `json:"prescription,omitempty"`
	Order        *consultation.OrderCode        `json:"order,omitempty"`
}

// Used reports whether the looked-up code was already redeemed.
func (r *LookupResult) Used() bool {
	if r.Prescription != nil {
		return r.Prescription.Used
	}
	return r.Order != nil && r.Order.Used
}

type LabResult struct {
	ID          uuid.UUID `db:"id" json:"id"`
	OrderCode   string    `db:"order_code" json:"orderCode"`
	PatientID   uuid.UUID `db:"patient_id" json:"patientId"`
	AllyID      uuid.UUID `db:"ally_id" json:"allyId"`
	AllyName    string    `db:"ally_name" json:"allyName"`
	Type        Type      `db:"type" json:"type"`
	FileName    string    `db:"file_name" json:"fileName"`
	Description string    `db:"description" json:"description"`
	UploadedAt  time.Time `db:"uploaded_at" json:"uploadedAt"`
}

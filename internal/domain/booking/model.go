package booking

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire and storage format of appointment dates.
const DateLayout = "2006-01-02"

type Status string

const (
	StatusPending             Status = "pending"
	StatusPaid                Status = "paid"
	StatusCompleted           Status = "completed"
	StatusCancelled           Status = "cancelled"
	StatusPendingVerification Status = "pending_verification"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCompleted, StatusCancelled, StatusPendingVerification:
		return true
	}
	return false
}

// Cancellable reports whether an appointment in this status may still be
// cancelled.
func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusPendingVerification || s == StatusPaid
}

type PaymentMethod string

const (
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCard || m == PaymentTransfer
}

type Appointment struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	PatientID     uuid.UUID     `db:"patient_id" json:"patientId"`
	PatientName   string        `db:"patient_name" json:"patientName"`
	PatientCedula string        `db:"patient_cedula" json:"patientCedula"`
	PatientEmail  string        `db:"patient_email" json:"patientEmail"`
	PatientPhone  string        `db:"patient_phone" json:"patientPhone"`
	DoctorID      uuid.UUID     `db:"doctor_id" json:"doctorId"`
	DoctorName    string        `db:"doctor_name" json:"doctorName"`
	Specialty     string        `db:"specialty" json:"specialty"`
	Date          string        `db:"date" json:"date"`
	Time          string        `db:"time" json:"time"`
	Sector        string        `db:"sector" json:"sector"`
	Modality      string        `db:"modality" json:"modality"`
	Reason        string        `db:"reason" json:"reason"`
	Status        Status        `db:"status" json:"status"`
	Price         float64       `db:"price" json:"price"`
	IsMember      bool          `db:"is_member" json:"isMember"`
	MembershipFee float64       `db:"membership_fee" json:"membershipFee"`
	PaymentMethod PaymentMethod `db:"payment_method" json:"paymentMethod"`
	TransferProof *string       `db:"transfer_proof" json:"transferProof,omitempty"`
	Address       *string       `db:"address" json:"address,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updatedAt"`
}

// Total is what the patient pays: consultation plus any membership upsell.
func (a *Appointment) Total() float64 {
	return round2(a.Price + a.MembershipFee)
}

// Upcoming reports whether the appointment is still ahead on today.
func (a *Appointment) Upcoming(today string) bool {
	return a.Date >= today && a.Status != StatusCancelled
}

// Quote is the price breakdown shown before payment.
type Quote struct {
	ConsultationPrice  float64 `json:"consultationPrice"`
	MembershipFee      float64 `json:"membershipFee"`
	Total              float64 `json:"total"`
	Savings            float64 `json:"savings"`
	IsMember           bool    `json:"isMember"`
	WillHaveMembership bool    `json:"willHaveMembership"`
}

// ComputeQuote prices a consultation. A patient who already is a member, or
// who buys the membership with this booking, pays the member price; the fee
// is charged only to non-members who opt in.
func ComputeQuote(priceNormal, priceMember float64, isMember, wantsMembership bool, membershipPrice float64) Quote {
	willHave := isMember || wantsMembership
	q := Quote{
		ConsultationPrice:  priceNormal,
		Savings:            round2(priceNormal - priceMember),
		IsMember:           isMember,
		WillHaveMembership: willHave,
	}
	if willHave {
		q.ConsultationPrice = priceMember
	}
	if wantsMembership && !isMember {
		q.MembershipFee = membershipPrice
	}
	q.Total = round2(q.ConsultationPrice + q.MembershipFee)
	return q
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// PatientInfo is step two of the booking wizard.
type PatientInfo struct {
	FullName string `json:"fullName"`
	Cedula   string `json:"cedula"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// Draft collects the booking wizard input.
type Draft struct {
	DoctorID        uuid.UUID     `json:"doctorId"`
	Date            string        `json:"date"`
	Time            string        `json:"time"`
	Sector          string        `json:"sector"`
	Modality        string        `json:"modality"`
	Reason          string        `json:"reason"`
	Patient         PatientInfo   `json:"patient"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
	WantsMembership bool          `json:"wantsMembership"`
	TransferProof   *string       `json:"transferProof,omitempty"`
}

// ListFilter narrows appointment listings.
type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Statuses  []Status
	Date      string
	Search    string // patient or doctor name
	Ascending bool
}

// DoctorPatient is one row of a doctor's patient list.
type DoctorPatient struct {
	PatientID       uuid.UUID `json:"patientId"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Cedula          string    `json:"cedula"`
	Visits          int       `json:"visits"`
	LastVisit       *string   `json:"lastVisit,omitempty"`
	NextAppointment *string   `json:"nextAppointment,omitempty"`
}

// Agenda is a patient's appointments split around today.
type Agenda struct {
	Upcoming []*Appointment `json:"upcoming"`
	Past     []*Appointment `json:"past"`
}

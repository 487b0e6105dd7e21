package reporting

import (
	"time"

	"github.com/rch/portal/internal/domain/ally"
	"github.com/rch/portal/internal/domain/booking"
)

type Totals struct {
	Patients          int     `json:"patients"`
	Doctors           int     `json:"doctors"`
	AppointmentsMonth int     `json:"appointmentsThisMonth"`
	Revenue           float64 `json:"revenue"`
}

// MonthCount is one bar of the appointments-per-month chart. Month is YYYY-MM.
type MonthCount struct {
	Month     string `json:"month"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
}

type SpecialtyShare struct {
	Specialty    string `json:"specialty"`
	Appointments int    `json:"appointments"`
}

type AdminDashboard struct {
	Totals                 Totals                 `json:"totals"`
	AppointmentsPerMonth   []MonthCount           `json:"appointmentsPerMonth"`
	SpecialtyDistribution  []SpecialtyShare       `json:"specialtyDistribution"`
	RecentAppointments     []*booking.Appointment `json:"recentAppointments"`
	PendingVerificationCnt int                    `json:"pendingVerification"`
}

type DoctorDashboard struct {
	Completed        int                    `json:"completed"`
	Today            []*booking.Appointment `json:"today"`
	PendingAttention []*booking.Appointment `json:"pendingAttention"`
}

type Membership struct {
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type PatientDashboard struct {
	Upcoming      []*booking.Appointment `json:"upcoming"`
	Membership    Membership             `json:"membership"`
	RecentResults []*ally.LabResult      `json:"recentResults"`
}

package reporting

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rch/portal/internal/domain/ally"
	"github.com/rch/portal/internal/domain/booking"
	"github.com/rch/portal/internal/domain/identity"
	"github.com/rch/portal/internal/platform/apperr"
)

const (
	dashboardMonths = 6
	recentCount     = 5
	patientUpcoming = 3
	patientResults  = 3
)

type Appointments interface {
	AdminList(ctx context.Context, status, search string, limit, offset int) ([]*booking.Appointment, int, error)
	DoctorAppointments(ctx context.Context, doctorID uuid.UUID, filter, date string) ([]*booking.Appointment, error)
	PatientAgenda(ctx context.Context, patientID uuid.UUID) (*booking.Agenda, error)
}

type Profiles interface {
	Me(ctx context.Context, userID uuid.UUID) (*identity.Profile, error)
}

type Results interface {
	PatientResults(ctx context.Context, patientID uuid.UUID, search string) ([]*ally.LabResult, error)
}

type Service struct {
	store        Store
	appointments Appointments
	profiles     Profiles
	results      Results
	now          func() time.Time
}

func NewService(store Store, appointments Appointments, profiles Profiles, results Results) *Service {
	return &Service{
		store:        store,
		appointments: appointments,
		profiles:     profiles,
		results:      results,
		now:          time.Now,
	}
}

// monthWindow returns the first day of the month n-1 months back and the
// YYYY-MM keys of the n months through the current one.
func monthWindow(now time.Time, n int) (string, []string) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	start := first.AddDate(0, -(n - 1), 0)
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = start.AddDate(0, i, 0).Format("2006-01")
	}
	return start.Format(booking.DateLayout), keys
}

func (s *Service) AdminDashboard(ctx context.Context) (*AdminDashboard, error) {
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format(booking.DateLayout)

	totals, err := s.store.Totals(ctx, monthStart)
	if err != nil {
		return nil, err
	}

	since, keys := monthWindow(now, dashboardMonths)
	counts, err := s.store.MonthlyAppointments(ctx, since)
	if err != nil {
		return nil, err
	}
	byMonth := make(map[string]MonthCount, len(counts))
	for _, m := range counts {
		byMonth[m.Month] = m
	}
	months := make([]MonthCount, len(keys))
	for i, k := range keys {
		m := byMonth[k]
		m.Month = k
		months[i] = m
	}

	shares, err := s.store.SpecialtyDistribution(ctx)
	if err != nil {
		return nil, err
	}
	if shares == nil {
		shares = []SpecialtyShare{}
	}

	recent, _, err := s.appointments.AdminList(ctx, "", "", recentCount, 0)
	if err != nil {
		return nil, err
	}
	if recent == nil {
		recent = []*booking.Appointment{}
	}
	_, pending, err := s.appointments.AdminList(ctx, string(booking.StatusPendingVerification), "", 1, 0)
	if err != nil {
		return nil, err
	}

	return &AdminDashboard{
		Totals:                 *totals,
		AppointmentsPerMonth:   months,
		SpecialtyDistribution:  shares,
		RecentAppointments:     recent,
		PendingVerificationCnt: pending,
	}, nil
}

func (s *Service) DoctorDashboard(ctx context.Context, doctorID uuid.UUID) (*DoctorDashboard, error) {
	items, err := s.appointments.DoctorAppointments(ctx, doctorID, booking.DoctorFilterAll, "")
	if err != nil {
		return nil, err
	}
	today := s.now().Format(booking.DateLayout)
	d := &DoctorDashboard{Today: []*booking.Appointment{}, PendingAttention: []*booking.Appointment{}}
	for _, a := range items {
		switch a.Status {
		case booking.StatusCompleted:
			d.Completed++
		case booking.StatusPaid:
			d.PendingAttention = append(d.PendingAttention, a)
		}
		if a.Date == today && (a.Status == booking.StatusPaid || a.Status == booking.StatusCompleted) {
			d.Today = append(d.Today, a)
		}
	}
	return d, nil
}

func (s *Service) PatientDashboard(ctx context.Context, patientID uuid.UUID) (*PatientDashboard, error) {
	agenda, err := s.appointments.PatientAgenda(ctx, patientID)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.Me(ctx, patientID)
	if err != nil {
		return nil, err
	}
	results, err := s.results.PatientResults(ctx, patientID, "")
	if err != nil {
		return nil, err
	}

	upcoming := agenda.Upcoming
	if len(upcoming) > patientUpcoming {
		upcoming = upcoming[:patientUpcoming]
	}
	if len(results) > patientResults {
		results = results[:patientResults]
	}
	if results == nil {
		results = []*ally.LabResult{}
	}
	return &PatientDashboard{
		Upcoming:      upcoming,
		Membership:    Membership{Active: profile.MembershipActive, ExpiresAt: profile.MembershipExpiresAt},
		RecentResults: results,
	}, nil
}

// -- Measures --

func (s *Service) Measures() []MeasureDefinition {
	return PredefinedMeasures
}

// Evaluate runs measure id. Parameters missing from params take their
// defaults; numeric parameters must be positive integers.
func (s *Service) Evaluate(ctx context.Context, id string, params map[string]string) (*MeasureReport, error) {
	m := FindMeasure(id)
	if m == nil {
		return nil, apperr.NotFound("measure not found")
	}
	used := make(map[string]string, len(m.Parameters))
	args := make([]interface{}, 0, len(m.Parameters))
	for _, p := range m.Parameters {
		v := params[p.Name]
		if v == "" {
			v = p.Default
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, apperr.Validation("invalid %s %q", p.Name, v)
		}
		used[p.Name] = v
		args = append(args, n)
	}
	results, err := s.store.Evaluate(ctx, m.SQL, args...)
	if err != nil {
		return nil, err
	}
	return &MeasureReport{
		MeasureID:   m.ID,
		MeasureName: m.Name,
		GeneratedAt: s.now(),
		Results:     results,
		Parameters:  used,
	}, nil
}

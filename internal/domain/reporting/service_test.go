package reporting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rch/portal/internal/domain/ally"
	"github.com/rch/portal/internal/domain/booking"
	"github.com/rch/portal/internal/domain/identity"
	"github.com/rch/portal/internal/platform/apperr"
)

// -- Mocks --

type mockStore struct {
	months   []MonthCount
	lastSQL  string
	lastArgs []interface{}
	since    string
}

func (m *mockStore) Totals(_ context.Context, monthStart string) (*Totals, error) {
	return &Totals{Patients: 12, Doctors: 3, AppointmentsMonth: 4, Revenue: 180}, nil
}

func (m *mockStore) MonthlyAppointments(_ context.Context, since string) ([]MonthCount, error) {
	m.since = since
	return m.months, nil
}

func (m *mockStore) SpecialtyDistribution(context.Context) ([]SpecialtyShare, error) {
	return nil, nil
}

func (m *mockStore) Evaluate(_ context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	m.lastSQL, m.lastArgs = sql, args
	return []map[string]interface{}{{"total": 1}}, nil
}

type mockAppointments struct {
	items []*booking.Appointment
}

func (m *mockAppointments) AdminList(_ context.Context, status, _ string, limit, _ int) ([]*booking.Appointment, int, error) {
	var out []*booking.Appointment
	for _, a := range m.items {
		if status == "" || string(a.Status) == status {
			out = append(out, a)
		}
	}
	total := len(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *mockAppointments) DoctorAppointments(_ context.Context, doctorID uuid.UUID, _, _ string) ([]*booking.Appointment, error) {
	var out []*booking.Appointment
	for _, a := range m.items {
		if a.DoctorID == doctorID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAppointments) PatientAgenda(_ context.Context, patientID uuid.UUID) (*booking.Agenda, error) {
	agenda := &booking.Agenda{Upcoming: []*booking.Appointment{}, Past: []*booking.Appointment{}}
	for _, a := range m.items {
		if a.PatientID == patientID {
			agenda.Upcoming = append(agenda.Upcoming, a)
		}
	}
	return agenda, nil
}

type mockProfiles struct{ active bool }

func (m mockProfiles) Me(_ context.Context, id uuid.UUID) (*identity.Profile, error) {
	return &identity.Profile{ID: id, MembershipActive: m.active}, nil
}

type mockResults struct{ items []*ally.LabResult }

func (m mockResults) PatientResults(context.Context, uuid.UUID, string) ([]*ally.LabResult, error) {
	return m.items, nil
}

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestService(store *mockStore, appts *mockAppointments, results mockResults) *Service {
	svc := NewService(store, appts, mockProfiles{active: true}, results)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

// -- Measures --

func TestPredefinedMeasures(t *testing.T) {
	expectedIDs := []string{
		"appointments-by-status",
		"revenue-by-month",
		"doctor-payouts",
		"appointments-by-modality",
		"code-redemption",
		"pending-verification",
	}
	if len(PredefinedMeasures) != len(expectedIDs) {
		t.Fatalf("expected %d predefined measures, got %d", len(expectedIDs), len(PredefinedMeasures))
	}
	for i, id := range expectedIDs {
		if PredefinedMeasures[i].ID != id {
			t.Errorf("expected measure[%d].ID = %s, got %s", i, id, PredefinedMeasures[i].ID)
		}
	}
}

func TestPredefinedMeasures_HaveSQL(t *testing.T) {
	for _, m := range PredefinedMeasures {
		if m.SQL == "" || m.Name == "" || m.Description == "" {
			t.Errorf("measure %s is incomplete", m.ID)
		}
		if got := strings.Count(m.SQL, "$"); got != len(m.Parameters) {
			t.Errorf("measure %s binds %d placeholders for %d parameters", m.ID, got, len(m.Parameters))
		}
	}
}

func TestFindMeasure(t *testing.T) {
	if m := FindMeasure("revenue-by-month"); m == nil || m.Name != "Ingresos por mes" {
		t.Errorf("expected revenue-by-month, got %+v", m)
	}
	if FindMeasure("nonexistent") != nil {
		t.Error("expected nil for nonexistent measure")
	}
}

func TestEvaluate_DoctorPayouts(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(store, &mockAppointments{}, mockResults{})

	if _, err := svc.Evaluate(context.Background(), "doctor-payouts", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.lastArgs) != 1 || store.lastArgs[0] != 1 {
		t.Errorf("expected default of one month, got %v", store.lastArgs)
	}
	if !strings.Contains(store.lastSQL, "retention_percentage") {
		t.Errorf("expected payout split by retention, got %q", store.lastSQL)
	}
}

func TestEvaluate_Parameters(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(store, &mockAppointments{}, mockResults{})
	ctx := context.Background()

	report, err := svc.Evaluate(ctx, "revenue-by-month", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.lastArgs) != 1 || store.lastArgs[0] != 6 {
		t.Errorf("expected default months 6, got %v", store.lastArgs)
	}
	if report.Parameters["months"] != "6" || !report.GeneratedAt.Equal(fixedNow) {
		t.Errorf("unexpected report %+v", report)
	}

	if _, err := svc.Evaluate(ctx, "revenue-by-month", map[string]string{"months": "12"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.lastArgs[0] != 12 {
		t.Errorf("expected months 12, got %v", store.lastArgs[0])
	}

	_, err = svc.Evaluate(ctx, "revenue-by-month", map[string]string{"months": "-1"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	_, err = svc.Evaluate(ctx, "nope", nil)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

// -- Dashboards --

func TestMonthWindow(t *testing.T) {
	since, keys := monthWindow(fixedNow, 6)
	if since != "2023-10-01" {
		t.Errorf("expected 2023-10-01, got %s", since)
	}
	if strings.Join(keys, ",") != "2023-10,2023-11,2023-12,2024-01,2024-02,2024-03" {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestAdminDashboard(t *testing.T) {
	store := &mockStore{months: []MonthCount{{Month: "2024-01", Total: 5, Completed: 2}}}
	appts := &mockAppointments{}
	for i := 0; i < 7; i++ {
		appts.items = append(appts.items, &booking.Appointment{ID: uuid.New(), Status: booking.StatusPaid})
	}
	appts.items = append(appts.items, &booking.Appointment{ID: uuid.New(), Status: booking.StatusPendingVerification})

	d, err := newTestService(store, appts, mockResults{}).AdminDashboard(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Totals.Patients != 12 || d.Totals.Revenue != 180 {
		t.Errorf("unexpected totals %+v", d.Totals)
	}
	if len(d.AppointmentsPerMonth) != 6 {
		t.Fatalf("expected 6 months, got %d", len(d.AppointmentsPerMonth))
	}
	if jan := d.AppointmentsPerMonth[3]; jan.Month != "2024-01" || jan.Total != 5 || jan.Completed != 2 {
		t.Errorf("unexpected january %+v", jan)
	}
	if d.AppointmentsPerMonth[5].Total != 0 {
		t.Errorf("expected empty month zero-filled, got %+v", d.AppointmentsPerMonth[5])
	}
	if len(d.RecentAppointments) != recentCount {
		t.Errorf("expected %d recent, got %d", recentCount, len(d.RecentAppointments))
	}
	if d.PendingVerificationCnt != 1 {
		t.Errorf("expected 1 pending verification, got %d", d.PendingVerificationCnt)
	}
	if d.SpecialtyDistribution == nil {
		t.Error("expected non-nil specialty distribution")
	}
	if store.since != "2023-10-01" {
		t.Errorf("expected window start 2023-10-01, got %s", store.since)
	}
}

func TestDoctorDashboard(t *testing.T) {
	doctorID := uuid.New()
	appts := &mockAppointments{items: []*booking.Appointment{
		{DoctorID: doctorID, Date: "2024-03-15", Status: booking.StatusPaid},
		{DoctorID: doctorID, Date: "2024-03-15", Status: booking.StatusCompleted},
		{DoctorID: doctorID, Date: "2024-03-15", Status: booking.StatusPendingVerification},
		{DoctorID: doctorID, Date: "2024-03-10", Status: booking.StatusCompleted},
		{DoctorID: doctorID, Date: "2024-03-20", Status: booking.StatusPaid},
		{DoctorID: uuid.New(), Date: "2024-03-15", Status: booking.StatusPaid},
	}}

	d, err := newTestService(&mockStore{}, appts, mockResults{}).DoctorDashboard(context.Background(), doctorID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Completed != 2 {
		t.Errorf("expected 2 completed, got %d", d.Completed)
	}
	if len(d.Today) != 2 {
		t.Errorf("expected 2 today, got %d", len(d.Today))
	}
	if len(d.PendingAttention) != 2 {
		t.Errorf("expected 2 paid awaiting consultation, got %d", len(d.PendingAttention))
	}
}

func TestPatientDashboard(t *testing.T) {
	patient := uuid.New()
	appts := &mockAppointments{}
	for i := 0; i < 5; i++ {
		appts.items = append(appts.items, &booking.Appointment{PatientID: patient, Status: booking.StatusPaid})
	}
	results := mockResults{items: []*ally.LabResult{{}, {}, {}, {}}}

	d, err := newTestService(&mockStore{}, appts, results).PatientDashboard(context.Background(), patient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Upcoming) != 3 || len(d.RecentResults) != 3 {
		t.Errorf("expected 3 upcoming and 3 results, got %d and %d", len(d.Upcoming), len(d.RecentResults))
	}
	if !d.Membership.Active {
		t.Error("expected active membership")
	}
}

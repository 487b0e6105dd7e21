package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rch/portal/internal/platform/apperr"
)

// -- Mock Specialty Repository --

type mockSpecialtyRepo struct {
	items map[uuid.UUID]*Specialty
}

func newMockSpecialtyRepo() *mockSpecialtyRepo {
	return &mockSpecialtyRepo{items: make(map[uuid.UUID]*Specialty)}
}

func (m *mockSpecialtyRepo) Create(_ context.Context, s *Specialty) error {
	for _, existing := range m.items {
		if strings.EqualFold(existing.Name, s.Name) {
			return apperr.Conflict("create specialty: already exists")
		}
	}
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	m.items[s.ID] = s
	return nil
}

func (m *mockSpecialtyRepo) GetByID(_ context.Context, id uuid.UUID) (*Specialty, error) {
	s, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("specialty not found")
	}
	cp := *s
	return &cp, nil
}

func (m *mockSpecialtyRepo) Update(_ context.Context, s *Specialty) error {
	cp := *s
	m.items[s.ID] = &cp
	return nil
}

func (m *mockSpecialtyRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockSpecialtyRepo) List(_ context.Context) ([]*Specialty, error) {
	var out []*Specialty
	for _, s := range m.items {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockSpecialtyRepo) Search(_ context.Context, q string, limit int) ([]*Specialty, error) {
	var out []*Specialty
	for _, s := range m.items {
		if strings.Contains(strings.ToLower(s.Name), strings.ToLower(q)) {
			out = append(out, s)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// -- Mock Doctor Repository --

type mockDoctorRepo struct {
	items       map[uuid.UUID]*Doctor
	specialties *mockSpecialtyRepo
}

func newMockDoctorRepo(specialties *mockSpecialtyRepo) *mockDoctorRepo {
	return &mockDoctorRepo{items: make(map[uuid.UUID]*Doctor), specialties: specialties}
}

func (m *mockDoctorRepo) Create(_ context.Context, d *Doctor) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	m.items[d.ID] = d
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("doctor not found")
	}
	cp := *d
	return &cp, nil
}

func (m *mockDoctorRepo) Update(_ context.Context, d *Doctor) error {
	cp := *d
	m.items[d.ID] = &cp
	return nil
}

func (m *mockDoctorRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockDoctorRepo) specialtyName(d *Doctor) string {
	if s, ok := m.specialties.items[d.SpecialtyID]; ok {
		return s.Name
	}
	return ""
}

func (m *mockDoctorRepo) List(_ context.Context, filter DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	var out []*Doctor
	q := strings.ToLower(filter.Search)
	for _, d := range m.items {
		spec := m.specialtyName(d)
		if filter.ActiveOnly && d.Status != DoctorActive {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(d.Name), q) && !strings.Contains(strings.ToLower(spec), q) {
			continue
		}
		if filter.Specialty != "" && !strings.EqualFold(spec, filter.Specialty) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := len(out)
	if offset >= len(out) {
		return []*Doctor{}, total, nil
	}
	if end := offset + limit; end < len(out) {
		out = out[offset:end]
	} else {
		out = out[offset:]
	}
	return out, total, nil
}

func (m *mockDoctorRepo) CountBySpecialty(_ context.Context, specialtyID uuid.UUID) (int, error) {
	n := 0
	for _, d := range m.items {
		if d.SpecialtyID == specialtyID {
			n++
		}
	}
	return n, nil
}

func (m *mockDoctorRepo) SetSchedule(_ context.Context, id uuid.UUID, schedule []ScheduleEntry) error {
	d, ok := m.items[id]
	if !ok {
		return apperr.NotFound("doctor not found")
	}
	d.Schedule = schedule
	return nil
}

func (m *mockDoctorRepo) Search(_ context.Context, q string, limit int) ([]*Doctor, error) {
	var out []*Doctor
	q = strings.ToLower(q)
	for _, d := range m.items {
		if strings.Contains(strings.ToLower(d.Name), q) || strings.Contains(d.Email, q) {
			out = append(out, d)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubUsers struct {
	hits []SearchHit
}

func (s *stubUsers) SearchUsers(_ context.Context, q string, limit int) ([]SearchHit, error) {
	var out []SearchHit
	for _, h := range s.hits {
		if strings.Contains(strings.ToLower(h.Title), strings.ToLower(q)) {
			out = append(out, h)
		}
	}
	return out, nil
}

type testEnv struct {
	svc         *Service
	specialties *mockSpecialtyRepo
	doctors     *mockDoctorRepo
	users       *stubUsers
}

func newTestEnv() *testEnv {
	specs := newMockSpecialtyRepo()
	docs := newMockDoctorRepo(specs)
	users := &stubUsers{}
	return &testEnv{svc: NewService(specs, docs, users), specialties: specs, doctors: docs, users: users}
}

func newTestService() *Service {
	return newTestEnv().svc
}

func ptr[T any](v T) *T { return &v }

func mustSpecialty(t *testing.T, svc *Service, name string) *Specialty {
	t.Helper()
	sp, err := svc.CreateSpecialty(context.Background(), SpecialtyInput{Name: ptr(name), Description: ptr(name + " general")})
	if err != nil {
		t.Fatalf("create specialty: %v", err)
	}
	return sp
}

func mustDoctor(t *testing.T, svc *Service, name string, specialtyID uuid.UUID) *Doctor {
	t.Helper()
	d, err := svc.CreateDoctor(context.Background(), DoctorInput{
		Name:        ptr(name),
		Email:       ptr(strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@rch.test"),
		SpecialtyID: &specialtyID,
		PriceNormal: ptr(40.0),
		PriceMember: ptr(25.0),
		Sectors:     []string{SectorNorte, SectorSur},
		Modalities:  []string{ModalityPresencial, ModalityTelemedicina},
		Addresses:   map[string]string{SectorNorte: "Av. Amazonas N34"},
	})
	if err != nil {
		t.Fatalf("create doctor: %v", err)
	}
	return d
}

func TestCreateSpecialty_RequiresFields(t *testing.T) {
	svc := newTestService()
	_, err := svc.CreateSpecialty(context.Background(), SpecialtyInput{Name: ptr("Cardiología")})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if apperr.Message(err) != "Por favor completa todos los campos requeridos" {
		t.Errorf("unexpected message %q", apperr.Message(err))
	}
}

func TestUpdateSpecialty_Partial(t *testing.T) {
	svc := newTestService()
	sp := mustSpecialty(t, svc, "Cardiología")

	updated, err := svc.UpdateSpecialty(context.Background(), sp.ID, SpecialtyInput{Description: ptr("Corazón")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Name != "Cardiología" || updated.Description != "Corazón" {
		t.Errorf("unexpected specialty %+v", updated)
	}
}

func TestDeleteSpecialty_RefusesWithDoctors(t *testing.T) {
	svc := newTestService()
	sp := mustSpecialty(t, svc, "Cardiología")
	mustDoctor(t, svc, "Juan Pérez", sp.ID)

	_, err := svc.DeleteSpecialty(context.Background(), sp.ID)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDeleteSpecialty_ReturnsDeleted(t *testing.T) {
	svc := newTestService()
	sp := mustSpecialty(t, svc, "Dermatología")

	deleted, err := svc.DeleteSpecialty(context.Background(), sp.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted.ID != sp.ID {
		t.Errorf("expected deleted specialty to be returned")
	}
}

func TestGetSpecialty_IncludesPublicDoctors(t *testing.T) {
	env := newTestEnv()
	sp := mustSpecialty(t, env.svc, "Cardiología")
	mustDoctor(t, env.svc, "Juan Pérez", sp.ID)
	off := mustDoctor(t, env.svc, "Ana Off", sp.ID)
	env.doctors.items[off.ID].Status = DoctorInactive

	got, err := env.svc.GetSpecialty(context.Background(), sp.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Doctors) != 1 {
		t.Fatalf("expected only the active doctor, got %d", len(got.Doctors))
	}
	if got.Doctors[0].Addresses != nil {
		t.Error("expected addresses to be hidden")
	}
}

func TestCreateDoctor_RequiresFields(t *testing.T) {
	svc := newTestService()
	_, err := svc.CreateDoctor(context.Background(), DoctorInput{Name: ptr("Juan")})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateDoctor_UnknownSpecialty(t *testing.T) {
	svc := newTestService()
	unknown := uuid.New()
	_, err := svc.CreateDoctor(context.Background(), DoctorInput{Name: ptr("Juan"), Email: ptr("j@rch.test"), SpecialtyID: &unknown})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateDoctor_InvalidSector(t *testing.T) {
	svc := newTestService()
	sp := mustSpecialty(t, svc, "Cardiología")
	_, err := svc.CreateDoctor(context.Background(), DoctorInput{
		Name: ptr("Juan"), Email: ptr("j@rch.test"), SpecialtyID: &sp.ID, Sectors: []string{"este"},
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateDoctor_Defaults(t *testing.T) {
	svc := newTestService()
	sp := mustSpecialty(t, svc, "Cardiología")
	d := mustDoctor(t, svc, "Juan Pérez", sp.ID)
	if d.Status != DoctorActive {
		t.Errorf("expected Activo, got %s", d.Status)
	}
	if d.Specialty.Name != "Cardiología" {
		t.Errorf("expected embedded specialty, got %+v", d.Specialty)
	}
}

func TestUpdateDoctor_Partial(t *testing.T) {
	svc := newTestService()
	sp := mustSpecialty(t, svc, "Cardiología")
	d := mustDoctor(t, svc, "Juan Pérez", sp.ID)

	status := DoctorVacation
	updated, err := svc.UpdateDoctor(context.Background(), d.ID, DoctorInput{Status: &status, Rating: ptr(4.5)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Name != "Juan Pérez" || updated.Status != DoctorVacation || updated.Rating != 4.5 {
		t.Errorf("unexpected doctor %+v", updated)
	}

	if _, err := svc.UpdateDoctor(context.Background(), d.ID, DoctorInput{Rating: ptr(7.0)}); err == nil {
		t.Error("expected error for rating above 5")
	}
}

func TestGetPublicDoctor_HidesNonActive(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sp := mustSpecialty(t, env.svc, "Cardiología")
	d := mustDoctor(t, env.svc, "Juan Pérez", sp.ID)

	if _, err := env.svc.GetPublicDoctor(ctx, d.ID); err != nil {
		t.Fatalf("expected active doctor to be visible, got %v", err)
	}
	for _, status := range []DoctorStatus{DoctorInactive, DoctorVacation} {
		env.doctors.items[d.ID].Status = status
		if _, err := env.svc.GetPublicDoctor(ctx, d.ID); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected %s doctor hidden from public read, got %v", status, err)
		}
		if _, err := env.svc.GetDoctor(ctx, d.ID); err != nil {
			t.Errorf("expected full read of %s doctor, got %v", status, err)
		}
	}
}

func TestListDoctors_PublicFilters(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	cardio := mustSpecialty(t, env.svc, "Cardiología")
	derma := mustSpecialty(t, env.svc, "Dermatología")
	mustDoctor(t, env.svc, "Juan Pérez", cardio.ID)
	mustDoctor(t, env.svc, "María López", derma.ID)
	off := mustDoctor(t, env.svc, "Pedro Ruiz", cardio.ID)
	env.doctors.items[off.ID].Status = DoctorInactive

	items, total, err := env.svc.ListDoctors(ctx, DoctorFilter{}, true, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 active doctors, got %d", total)
	}
	for _, d := range items {
		if d.Addresses != nil {
			t.Errorf("public listing leaked addresses for %s", d.Name)
		}
	}

	_, total, _ = env.svc.ListDoctors(ctx, DoctorFilter{}, false, 20, 0)
	if total != 3 {
		t.Errorf("expected admin to see 3 doctors, got %d", total)
	}

	items, _, _ = env.svc.ListDoctors(ctx, DoctorFilter{Search: "DERMA"}, true, 20, 0)
	if len(items) != 1 || items[0].Name != "María López" {
		t.Errorf("expected search over specialty name, got %v", items)
	}

	items, _, _ = env.svc.ListDoctors(ctx, DoctorFilter{Specialty: "cardiología"}, true, 20, 0)
	if len(items) != 1 || items[0].Name != "Juan Pérez" {
		t.Errorf("expected specialty filter, got %v", items)
	}
}

func TestSetSchedule(t *testing.T) {
	svc := newTestService()
	sp := mustSpecialty(t, svc, "Cardiología")
	d := mustDoctor(t, svc, "Juan Pérez", sp.ID)
	ctx := context.Background()

	schedule := []ScheduleEntry{{Day: 1, Sector: SectorNorte, Slots: []string{"09:00", "09:30"}}}
	got, err := svc.SetSchedule(ctx, d.ID, schedule)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Schedule) != 1 {
		t.Errorf("expected schedule to be stored")
	}

	bad := []ScheduleEntry{{Day: 1, Sector: SectorCentro, Slots: []string{"09:00"}}}
	if _, err := svc.SetSchedule(ctx, d.ID, bad); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for unattended sector, got %v", err)
	}
}

func TestGlobalSearch(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sp := mustSpecialty(t, env.svc, "Cardiología")
	for _, name := range []string{"Carla Uno", "Carla Dos", "Carla Tres"} {
		mustDoctor(t, env.svc, name, sp.ID)
	}
	env.users.hits = []SearchHit{{ID: uuid.New(), Title: "Carlos Paciente"}}

	res, err := env.svc.GlobalSearch(ctx, "car", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Doctors) != 2 {
		t.Errorf("expected doctors capped at 2, got %d", len(res.Doctors))
	}
	if len(res.Users) != 1 || len(res.Specialties) != 1 {
		t.Errorf("unexpected groups %+v", res)
	}

	for i := 0; i < MaxSearchLimit+5; i++ {
		mustDoctor(t, env.svc, fmt.Sprintf("Carla %02d", i), sp.ID)
	}
	wide, err := env.svc.GlobalSearch(ctx, "car", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(wide.Doctors) != MaxSearchLimit {
		t.Errorf("expected doctors capped at %d, got %d", MaxSearchLimit, len(wide.Doctors))
	}

	empty, err := env.svc.GlobalSearch(ctx, "  ", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(empty.Doctors)+len(empty.Users)+len(empty.Specialties) != 0 {
		t.Errorf("expected empty groups for blank query, got %+v", empty)
	}
}

package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/rch/portal/internal/platform/apperr"
)

const (
	msgRequiredFields      = "Por favor completa todos los campos requeridos"
	msgSpecialtyHasDoctors = "No se puede eliminar una especialidad con médicos asignados"

	DefaultSearchLimit = 5
	MaxSearchLimit     = 20
)

// UserSearcher finds accounts for the admin global search.
type UserSearcher interface {
	SearchUsers(ctx context.Context, q string, limit int) ([]SearchHit, error)
}

type Service struct {
	specialties SpecialtyRepository
	doctors     DoctorRepository
	users       UserSearcher
}

func NewService(specialties SpecialtyRepository, doctors DoctorRepository, users UserSearcher) *Service {
	return &Service{specialties: specialties, doctors: doctors, users: users}
}

// -- Specialty --

func (s *Service) ListSpecialties(ctx context.Context) ([]*Specialty, error) {
	return s.specialties.List(ctx)
}

// GetSpecialty returns the specialty with its active doctors.
func (s *Service) GetSpecialty(ctx context.Context, id uuid.UUID) (*Specialty, error) {
	sp, err := s.specialties.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	docs, _, err := s.doctors.List(ctx, DoctorFilter{Specialty: sp.Name, ActiveOnly: true}, 100, 0)
	if err != nil {
		return nil, err
	}
	sp.Doctors = make([]*Doctor, 0, len(docs))
	for _, d := range docs {
		sp.Doctors = append(sp.Doctors, d.Public())
	}
	return sp, nil
}

type SpecialtyInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"imageUrl,omitempty"`
}

func (s *Service) CreateSpecialty(ctx context.Context, in SpecialtyInput) (*Specialty, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" || in.Description == nil || strings.TrimSpace(*in.Description) == "" {
		return nil, apperr.Validation(msgRequiredFields)
	}
	sp := &Specialty{
		Name:        strings.TrimSpace(*in.Name),
		Description: strings.TrimSpace(*in.Description),
		ImageURL:    in.ImageURL,
	}
	if err := s.specialties.Create(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Service) UpdateSpecialty(ctx context.Context, id uuid.UUID, in SpecialtyInput) (*Specialty, error) {
	sp, err := s.specialties.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Validation(msgRequiredFields)
		}
		sp.Name = name
	}
	if in.Description != nil {
		sp.Description = strings.TrimSpace(*in.Description)
	}
	if in.ImageURL != nil {
		sp.ImageURL = in.ImageURL
	}
	if err := s.specialties.Update(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

// DeleteSpecialty refuses while any doctor still references the specialty.
func (s *Service) DeleteSpecialty(ctx context.Context, id uuid.UUID) (*Specialty, error) {
	sp, err := s.specialties.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := s.doctors.CountBySpecialty(ctx, id)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, apperr.Conflict(msgSpecialtyHasDoctors)
	}
	if err := s.specialties.Delete(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Conflict(msgSpecialtyHasDoctors)
		}
		return nil, err
	}
	return sp, nil
}

// -- Doctor --

// ListDoctors lists doctors; public callers only see active doctors and
// never see consultation addresses.
func (s *Service) ListDoctors(ctx context.Context, filter DoctorFilter, public bool, limit, offset int) ([]*Doctor, int, error) {
	if public {
		filter.ActiveOnly = true
	}
	items, total, err := s.doctors.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if public {
		for i, d := range items {
			items[i] = d.Public()
		}
	}
	return items, total, nil
}

// GetDoctor returns the full doctor record, addresses included.
func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

// GetPublicDoctor hides inactive and on-leave doctors the same way the
// public listing does.
func (s *Service) GetPublicDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status != DoctorActive {
		return nil, apperr.NotFound("doctor not found")
	}
	return d.Public(), nil
}

type DoctorInput struct {
	Name            *string           `json:"name,omitempty"`
	Email           *string           `json:"email,omitempty"`
	Phone           *string           `json:"phone,omitempty"`
	ExperienceYears *int              `json:"experienceYears,omitempty"`
	Rating          *float64          `json:"rating,omitempty"`
	Status          *DoctorStatus     `json:"status,omitempty"`
	SpecialtyID     *uuid.UUID        `json:"specialtyId,omitempty"`
	UserID          *uuid.UUID        `json:"userId,omitempty"`
	PhotoURL        *string           `json:"photoUrl,omitempty"`
	PriceNormal     *float64          `json:"priceNormal,omitempty"`
	PriceMember     *float64          `json:"priceMember,omitempty"`
	Sectors         []string          `json:"sectors,omitempty"`
	Modalities      []string          `json:"modalities,omitempty"`
	Addresses       map[string]string `json:"addresses,omitempty"`
	Schedule        []ScheduleEntry   `json:"schedule,omitempty"`
}

func (s *Service) applyDoctor(ctx context.Context, d *Doctor, in DoctorInput) error {
	if in.Name != nil {
		d.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		d.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.Phone != nil {
		d.Phone = in.Phone
	}
	if in.ExperienceYears != nil {
		if *in.ExperienceYears < 0 {
			return apperr.Validation("experienceYears cannot be negative")
		}
		d.ExperienceYears = *in.ExperienceYears
	}
	if in.Rating != nil {
		if *in.Rating < 0 || *in.Rating > 5 {
			return apperr.Validation("rating must be between 0 and 5")
		}
		d.Rating = *in.Rating
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return apperr.Validation("invalid status %q", *in.Status)
		}
		d.Status = *in.Status
	}
	if in.SpecialtyID != nil && *in.SpecialtyID != d.SpecialtyID {
		sp, err := s.specialties.GetByID(ctx, *in.SpecialtyID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.Validation("specialty %s does not exist", *in.SpecialtyID)
			}
			return err
		}
		d.SpecialtyID = sp.ID
		d.Specialty = SpecialtyRef{ID: sp.ID, Name: sp.Name, Description: sp.Description}
	}
	if in.UserID != nil {
		d.UserID = in.UserID
	}
	if in.PhotoURL != nil {
		d.PhotoURL = in.PhotoURL
	}
	if in.PriceNormal != nil {
		d.PriceNormal = *in.PriceNormal
	}
	if in.PriceMember != nil {
		d.PriceMember = *in.PriceMember
	}
	if d.PriceNormal < 0 || d.PriceMember < 0 {
		return apperr.Validation("prices cannot be negative")
	}
	if in.Sectors != nil {
		for _, sec := range in.Sectors {
			if !ValidSector(sec) {
				return apperr.Validation("invalid sector %q", sec)
			}
		}
		d.Sectors = in.Sectors
	}
	if in.Modalities != nil {
		for _, m := range in.Modalities {
			if !ValidModality(m) {
				return apperr.Validation("invalid modality %q", m)
			}
		}
		d.Modalities = in.Modalities
	}
	if in.Addresses != nil {
		for sec := range in.Addresses {
			if !ValidSector(sec) {
				return apperr.Validation("invalid sector %q", sec)
			}
		}
		d.Addresses = in.Addresses
	}
	if in.Schedule != nil {
		d.Schedule = in.Schedule
	}
	if err := ValidateSchedule(d, d.Schedule); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	return nil
}

func (s *Service) CreateDoctor(ctx context.Context, in DoctorInput) (*Doctor, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" ||
		in.Email == nil || strings.TrimSpace(*in.Email) == "" ||
		in.SpecialtyID == nil || *in.SpecialtyID == uuid.Nil {
		return nil, apperr.Validation(msgRequiredFields)
	}
	d := &Doctor{Status: DoctorActive}
	if err := s.applyDoctor(ctx, d, in); err != nil {
		return nil, err
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) UpdateDoctor(ctx context.Context, id uuid.UUID, in DoctorInput) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyDoctor(ctx, d, in); err != nil {
		return nil, err
	}
	if d.Name == "" || d.Email == "" {
		return nil, apperr.Validation(msgRequiredFields)
	}
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.doctors.Delete(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Conflict("doctor has appointments and cannot be deleted")
		}
		return nil, err
	}
	return d, nil
}

// SetSchedule replaces the doctor's weekly schedule.
func (s *Service) SetSchedule(ctx context.Context, id uuid.UUID, schedule []ScheduleEntry) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateSchedule(d, schedule); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	if err := s.doctors.SetSchedule(ctx, id, schedule); err != nil {
		return nil, err
	}
	d.Schedule = schedule
	return d, nil
}

// GlobalSearch matches q against doctors, users and specialties. Each group
// holds at most limit hits; an empty q yields empty groups.
func (s *Service) GlobalSearch(ctx context.Context, q string, limit int) (*SearchResults, error) {
	res := &SearchResults{Doctors: []SearchHit{}, Users: []SearchHit{}, Specialties: []SearchHit{}}
	q = strings.TrimSpace(q)
	if q == "" {
		return res, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	docs, err := s.doctors.Search(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		res.Doctors = append(res.Doctors, SearchHit{ID: d.ID, Title: d.Name, Subtitle: d.Specialty.Name})
	}

	if s.users != nil {
		users, err := s.users.SearchUsers(ctx, q, limit)
		if err != nil {
			return nil, err
		}
		res.Users = append(res.Users, users...)
	}

	specs, err := s.specialties.Search(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	for _, sp := range specs {
		res.Specialties = append(res.Specialties, SearchHit{ID: sp.ID, Title: sp.Name, Subtitle: sp.Description})
	}

	capHits(&res.Doctors, limit)
	capHits(&res.Users, limit)
	capHits(&res.Specialties, limit)
	return res, nil
}

func capHits(hits *[]SearchHit, limit int) {
	if len(*hits) > limit {
		*hits = (*hits)[:limit]
	}
}

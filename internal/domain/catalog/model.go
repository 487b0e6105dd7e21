package catalog

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

type Specialty struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	ImageURL    *string   `db:"image_url" json:"imageUrl,omitempty"`
	DoctorCount int       `db:"doctor_count" json:"doctorCount"`
	Doctors     []*Doctor `db:"-" json:"doctors,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

type DoctorStatus string

const (
	DoctorActive   DoctorStatus = "Activo"
	DoctorInactive DoctorStatus = "Inactivo"
	DoctorVacation DoctorStatus = "DeVacaciones"
)

func (s DoctorStatus) Valid() bool {
	switch s {
	case DoctorActive, DoctorInactive, DoctorVacation:
		return true
	}
	return false
}

// Sectors of the city a doctor attends.
const (
	SectorNorte  = "norte"
	SectorCentro = "centro"
	SectorSur    = "sur"
)

// Consultation modalities.
const (
	ModalityPresencial   = "presencial"
	ModalityTelemedicina = "telemedicina"
	ModalityDomicilio    = "domicilio"
)

func ValidSector(s string) bool {
	return s == SectorNorte || s == SectorCentro || s == SectorSur
}

func ValidModality(m string) bool {
	return m == ModalityPresencial || m == ModalityTelemedicina || m == ModalityDomicilio
}

// ScheduleEntry lists the bookable slots for one weekday in one sector.
// Day follows time.Weekday: 0 is Sunday.
type ScheduleEntry struct {
	Day    int      `json:"day"`
	Sector string   `json:"sector"`
	Slots  []string `json:"slots"`
}

// SpecialtyRef is the specialty summary embedded in doctor reads.
type SpecialtyRef struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

type Doctor struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	Name            string            `db:"name" json:"name"`
	Email           string            `db:"email" json:"email"`
	Phone           *string           `db:"phone" json:"phone,omitempty"`
	ExperienceYears int               `db:"experience_years" json:"experienceYears"`
	Rating          float64           `db:"rating" json:"rating"`
	Status          DoctorStatus      `db:"status" json:"status"`
	SpecialtyID     uuid.UUID         `db:"specialty_id" json:"specialtyId"`
	Specialty       SpecialtyRef      `db:"-" json:"specialty"`
	UserID          *uuid.UUID        `db:"user_id" json:"userId,omitempty"`
	PhotoURL        *string           `db:"photo_url" json:"photoUrl,omitempty"`
	PriceNormal     float64           `db:"price_normal" json:"priceNormal"`
	PriceMember     float64           `db:"price_member" json:"priceMember"`
	Sectors         []string          `db:"sectors" json:"sectors"`
	Modalities      []string          `db:"modalities" json:"modalities"`
	Addresses       map[string]string `db:"addresses" json:"addresses,omitempty"`
	Schedule        []ScheduleEntry   `db:"schedule" json:"schedule"`
	CreatedAt       time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updatedAt"`
}

// Public returns a copy safe for unauthenticated reads: consultation
// addresses are withheld until a presencial booking is confirmed.
func (d *Doctor) Public() *Doctor {
	cp := *d
	cp.Addresses = nil
	return &cp
}

func (d *Doctor) HasSector(sector string) bool {
	return contains(d.Sectors, sector)
}

func (d *Doctor) HasModality(modality string) bool {
	return contains(d.Modalities, modality)
}

// SlotsFor returns the configured slots for sector on the weekday of day.
func (d *Doctor) SlotsFor(day time.Time, sector string) []string {
	wd := int(day.Weekday())
	for _, e := range d.Schedule {
		if e.Day == wd && e.Sector == sector {
			return append([]string(nil), e.Slots...)
		}
	}
	return nil
}

// AddressFor returns the consultation address for sector, if any.
func (d *Doctor) AddressFor(sector string) *string {
	addr, ok := d.Addresses[sector]
	if !ok || addr == "" {
		return nil
	}
	return &addr
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

var slotPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidSlot reports whether s is a HH:MM time.
func ValidSlot(s string) bool {
	return slotPattern.MatchString(s)
}

// ValidateSchedule checks day range, that each sector is one the doctor
// attends and that every slot is HH:MM. Duplicate slots are an error.
func ValidateSchedule(d *Doctor, schedule []ScheduleEntry) error {
	seen := make(map[string]bool)
	for _, e := range schedule {
		if e.Day < 0 || e.Day > 6 {
			return fmt.Errorf("invalid day %d", e.Day)
		}
		if !d.HasSector(e.Sector) {
			return fmt.Errorf("doctor does not attend sector %q", e.Sector)
		}
		key := fmt.Sprintf("%d/%s", e.Day, e.Sector)
		if seen[key] {
			return fmt.Errorf("duplicate schedule entry for day %d sector %s", e.Day, e.Sector)
		}
		seen[key] = true
		slots := make(map[string]bool, len(e.Slots))
		for _, s := range e.Slots {
			if !ValidSlot(s) {
				return fmt.Errorf("invalid slot %q", s)
			}
			if slots[s] {
				return fmt.Errorf("duplicate slot %q", s)
			}
			slots[s] = true
		}
	}
	return nil
}

type DoctorFilter struct {
	Search     string // name or specialty name
	Specialty  string // specialty name, case-insensitive
	ActiveOnly bool
}

// SearchHit is one row of a global search group.
type SearchHit struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Subtitle string    `json:"subtitle,omitempty"`
}

type SearchResults struct {
	Doctors     []SearchHit `json:"doctors"`
	Users       []SearchHit `json:"users"`
	Specialties []SearchHit `json:"specialties"`
}

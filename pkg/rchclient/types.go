package rchclient

import (
	"encoding/json"
	"time"
)

type User struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	Role                string     `json:"role,omitempty"`
	Status              string     `json:"status,omitempty"`
	Cedula              *string    `json:"cedula,omitempty"`
	Phone               *string    `json:"phone,omitempty"`
	MembershipActive    bool       `json:"membershipActive"`
	MembershipExpiresAt *time.Time `json:"membershipExpiresAt,omitempty"`
	DoctorID            *string    `json:"doctorId,omitempty"`
	AllyID              *string    `json:"allyId,omitempty"`
}

type Session struct {
	User         User      `json:"user"`
	BackendToken string    `json:"backendToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
}

type Specialty struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    *string   `json:"imageUrl,omitempty"`
	DoctorCount int       `json:"doctorCount"`
	Doctors     []*Doctor `json:"doctors,omitempty"`
}

type Schedule struct {
	Day    int      `json:"day"`
	Sector string   `json:"sector"`
	Slots  []string `json:"slots"`
}

type Doctor struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Phone           *string    `json:"phone,omitempty"`
	ExperienceYears int        `json:"experienceYears"`
	Rating          float64    `json:"rating"`
	Status          string     `json:"status"`
	SpecialtyID     string     `json:"specialtyId"`
	PriceNormal     float64    `json:"priceNormal"`
	PriceMember     float64    `json:"priceMember"`
	Sectors         []string   `json:"sectors"`
	Schedule        []Schedule `json:"schedule,omitempty"`
}

// CodeLookup is the ally view of a prescription or medical order code.
// Exactly one of Prescription and Order is set, according to Kind.
type CodeLookup struct {
	Kind         string          `json:"kind"`
	Prescription json.RawMessage `json:"prescription,omitempty"`
	Order        json.RawMessage `json:"order,omitempty"`
}

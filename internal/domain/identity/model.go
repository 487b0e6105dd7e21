package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/rch/portal/internal/platform/auth"
)

type UserStatus string

const (
	StatusActive    UserStatus = "Activo"
	StatusInactive  UserStatus = "Inactivo"
	StatusSuspended UserStatus = "Suspendido"
)

func (s UserStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

type User struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	Name                string     `db:"name" json:"name"`
	Email               string     `db:"email" json:"email"`
	PasswordHash        string     `db:"password_hash" json:"-"`
	Status              UserStatus `db:"status" json:"status"`
	Cedula              *string    `db:"cedula" json:"cedula,omitempty"`
	Phone               *string    `db:"phone" json:"phone,omitempty"`
	Image               *string    `db:"image" json:"image,omitempty"`
	MembershipPlanID    *uuid.UUID `db:"membership_plan_id" json:"membershipPlanId,omitempty"`
	MembershipActive    bool       `db:"membership_active" json:"membershipActive"`
	MembershipExpiresAt *time.Time `db:"membership_expires_at" json:"membershipExpiresAt,omitempty"`
	AllyID              *uuid.UUID `db:"ally_id" json:"allyId,omitempty"`
	AdminID             *uuid.UUID `db:"admin_id" json:"adminId,omitempty"`
	DoctorID            *uuid.UUID `db:"doctor_id" json:"doctorId,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updatedAt"`
}

// Role derives the portal role from the account's links: an admin row wins,
// then a doctor row, then an ally link; everyone else is a patient.
func (u *User) Role() auth.Role {
	switch {
	case u.AdminID != nil:
		return auth.RoleAdmin
	case u.DoctorID != nil:
		return auth.RoleDoctor
	case u.AllyID != nil:
		return auth.RoleAlly
	default:
		return auth.RolePatient
	}
}

func (u *User) accountState() *auth.AccountState {
	st := &auth.AccountState{Active: u.Status == StatusActive, Role: u.Role()}
	if u.DoctorID != nil {
		st.DoctorID = u.DoctorID.String()
	}
	if u.AllyID != nil {
		st.AllyID = u.AllyID.String()
	}
	return st
}

// HasMembership reports whether the membership is active at now.
func (u *User) HasMembership(now time.Time) bool {
	if !u.MembershipActive {
		return false
	}
	return u.MembershipExpiresAt == nil || now.Before(*u.MembershipExpiresAt)
}

// UserFilter narrows the admin user list.
type UserFilter struct {
	Search string
	Role   string // all, admin, doctor, ally, patient
}

// Profile is the public view of an account returned by /me and login.
type Profile struct {
	ID                  uuid.UUID  `json:"id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	Role                auth.Role  `json:"role"`
	Status              UserStatus `json:"status"`
	Cedula              *string    `json:"cedula,omitempty"`
	Phone               *string    `json:"phone,omitempty"`
	Image               *string    `json:"image,omitempty"`
	MembershipActive    bool       `json:"membershipActive"`
	MembershipExpiresAt *time.Time `json:"membershipExpiresAt,omitempty"`
	AdminID             *uuid.UUID `json:"adminId,omitempty"`
	DoctorID            *uuid.UUID `json:"doctorId,omitempty"`
	AllyID              *uuid.UUID `json:"allyId,omitempty"`
}

func (u *User) Profile(now time.Time) Profile {
	return Profile{
		ID:                  u.ID,
		Name:                u.Name,
		Email:               u.Email,
		Role:                u.Role(),
		Status:              u.Status,
		Cedula:              u.Cedula,
		Phone:               u.Phone,
		Image:               u.Image,
		MembershipActive:    u.HasMembership(now),
		MembershipExpiresAt: u.MembershipExpiresAt,
		AdminID:             u.AdminID,
		DoctorID:            u.DoctorID,
		AllyID:              u.AllyID,
	}
}

// Session is returned by a successful login.
type Session struct {
	User         Profile   `json:"user"`
	BackendToken string    `json:"backendToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// SignupResult is the minimal account view returned after registration.
type SignupResult struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}


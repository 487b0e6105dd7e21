package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rch/portal/internal/platform/apperr"
	"github.com/rch/portal/internal/platform/auth"
	"github.com/rch/portal/internal/platform/notification"
)

const (
	msgCredentialsRequired = "Email y contraseña son requeridos"
	msgEmailTaken          = "El email ya está registrado"
	msgPasswordTooShort    = "La contraseña debe tener al menos 6 caracteres"
	msgPasswordMismatch    = "Las contraseñas no coinciden"
	msgBadCredentials      = "Correo o contraseña incorrectos"
	msgInactive            = "Usuario inactivo o suspendido"
)

type Service struct {
	users      UserRepository
	issuer     *auth.TokenIssuer
	revocation auth.RevocationStore
	mail       *notification.Manager
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(users UserRepository, issuer *auth.TokenIssuer, revocation auth.RevocationStore, mail *notification.Manager, logger zerolog.Logger) *Service {
	return &Service{
		users:      users,
		issuer:     issuer,
		revocation: revocation,
		mail:       mail,
		logger:     logger,
		now:        time.Now,
	}
}

// SignupRequest is the self-registration form.
type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkPassword(password string) error {
	if len(password) < auth.MinPasswordLength {
		return apperr.Validation(msgPasswordTooShort)
	}
	return nil
}

// Signup registers a patient account.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperr.Validation(msgCredentialsRequired)
	}
	if err := checkPassword(req.Password); err != nil {
		return nil, err
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		return nil, apperr.Validation(msgPasswordMismatch)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperr.Validation(msgEmailTaken)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
		Status:       StatusActive,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Validation(msgEmailTaken)
		}
		return nil, err
	}

	if s.mail != nil {
		s.mail.Notify(ctx, notification.TemplateWelcome, u.Email, map[string]string{"name": u.Name})
	}
	return &SignupResult{ID: u.ID, Email: u.Email, Name: u.Name}, nil
}

// Login checks credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation(msgCredentialsRequired)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Unauthorized(msgBadCredentials)
		}
		return nil, err
	}
	if u.PasswordHash == "" || !auth.VerifyPassword(u.PasswordHash, password) {
		return nil, apperr.Unauthorized(msgBadCredentials)
	}
	if u.Status != StatusActive {
		return nil, apperr.Forbidden(msgInactive)
	}

	state := u.accountState()
	claims := auth.Claims{UserID: u.ID.String(), Role: state.Role, Email: u.Email, DoctorID: state.DoctorID, AllyID: state.AllyID}
	tok, err := s.issuer.Issue(claims)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", u.ID.String()).Str("role", string(claims.Role)).Msg("login")
	return &Session{User: u.Profile(s.now()), BackendToken: tok.Value, ExpiresAt: tok.ExpiresAt}, nil
}

// Logout revokes the presented token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return apperr.Unauthorized("authentication required")
	}
	until := s.now().Add(time.Hour)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return s.revocation.Revoke(ctx, claims.ID, until)
}

// AccountState implements auth.StatusChecker. Role and links are derived
// from the stored account so a changed link invalidates older tokens.
func (s *Service) AccountState(ctx context.Context, userID string) (*auth.AccountState, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, nil
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return u.accountState(), nil
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := u.Profile(s.now())
	return &p, nil
}

// ProfileUpdate carries the fields a user may change on their own account.
type ProfileUpdate struct {
	Name   *string `json:"name,omitempty"`
	Cedula *string `json:"cedula,omitempty"`
	Phone  *string `json:"phone,omitempty"`
	Image  *string `json:"image,omitempty"`
}

func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, upd ProfileUpdate) (*Profile, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, apperr.Validation("name cannot be empty")
		}
		u.Name = name
	}
	if upd.Cedula != nil {
		u.Cedula = upd.Cedula
	}
	if upd.Phone != nil {
		u.Phone = upd.Phone
	}
	if upd.Image != nil {
		u.Image = upd.Image
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	p := u.Profile(s.now())
	return &p, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(u.PasswordHash, current) {
		return apperr.Validation("La contraseña actual es incorrecta")
	}
	if err := checkPassword(next); err != nil {
		return err
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return s.users.Update(ctx, u)
}

// -- Admin user management --

func (s *Service) ListUsers(ctx context.Context, filter UserFilter, limit, offset int) ([]*User, int, error) {
	if filter.Role == "all" {
		filter.Role = ""
	}
	return s.users.List(ctx, filter, limit, offset)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// UserInput is the admin create/update form. Nil fields are left unchanged
// on update.
type UserInput struct {
	Name     *string     `json:"name,omitempty"`
	Email    *string     `json:"email,omitempty"`
	Password *string     `json:"password,omitempty"`
	Status   *UserStatus `json:"status,omitempty"`
	Cedula   *string     `json:"cedula,omitempty"`
	Phone    *string     `json:"phone,omitempty"`
	Image    *string     `json:"image,omitempty"`
}

func (s *Service) applyInput(u *User, in UserInput) error {
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if email == "" {
			return apperr.Validation("email is required")
		}
		u.Email = email
	}
	if in.Password != nil && *in.Password != "" {
		if err := checkPassword(*in.Password); err != nil {
			return err
		}
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return apperr.Validation("invalid status %q", *in.Status)
		}
		u.Status = *in.Status
	}
	if in.Cedula != nil {
		u.Cedula = in.Cedula
	}
	if in.Phone != nil {
		u.Phone = in.Phone
	}
	if in.Image != nil {
		u.Image = in.Image
	}
	return nil
}

// CreateUser adds an account on behalf of an admin. The password is optional;
// an account without one cannot log in until it is set.
func (s *Service) CreateUser(ctx context.Context, in UserInput) (*User, error) {
	if in.Email == nil || normalizeEmail(*in.Email) == "" {
		return nil, apperr.Validation("email is required")
	}
	u := &User{Status: StatusActive}
	if err := s.applyInput(u, in); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Conflict(msgEmailTaken)
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, in UserInput) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyInput(u, in); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Conflict(msgEmailTaken)
		}
		return nil, err
	}
	return u, nil
}

// DeleteUser removes the account and returns it as it was before deletion.
func (s *Service) DeleteUser(ctx context.Context, actor, id uuid.UUID) (*User, error) {
	if actor == id {
		return nil, apperr.Validation("cannot delete your own account")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return nil, err
	}
	return u, nil
}

// PromoteAdmin links the account to an admin row.
func (s *Service) PromoteAdmin(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}
	return s.users.SetAdmin(ctx, userID, true)
}

// BootstrapAdmin creates an administrator, or promotes the existing account
// with that email.
func (s *Service) BootstrapAdmin(ctx context.Context, name, email, password string) (*User, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrNotFound):
		u, err = s.CreateUser(ctx, UserInput{Name: &name, Email: &email, Password: &password})
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	if err := s.users.SetAdmin(ctx, u.ID, true); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, u.ID)
}

// LinkAlly attaches the account to an ally; nil detaches it.
func (s *Service) LinkAlly(ctx context.Context, userID uuid.UUID, allyID *uuid.UUID) (*User, error) {
	if err := s.users.SetAlly(ctx, userID, allyID); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

// ActivateMembership marks the membership active until the given time.
func (s *Service) ActivateMembership(ctx context.Context, userID uuid.UUID, planID *uuid.UUID, until time.Time) error {
	return s.users.SetMembership(ctx, userID, planID, until)
}

// MembershipExpiry returns the end of the user's running membership, or nil
// when there is none or it has no end date.
func (s *Service) MembershipExpiry(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.HasMembership(s.now()) {
		return nil, nil
	}
	return u.MembershipExpiresAt, nil
}

// IsMember reports whether the user's membership is active now.
func (s *Service) IsMember(ctx context.Context, userID uuid.UUID) (bool, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.HasMembership(s.now()), nil
}

// EmailOf returns the address notifications for userID go to.
func (s *Service) EmailOf(ctx context.Context, userID uuid.UUID) (string, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Email, nil
}

// Summary is the compact user view used by global search.
type Summary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  auth.Role `json:"role"`
}

// SearchUsers matches name or email, capped at limit.
func (s *Service) SearchUsers(ctx context.Context, q string, limit int) ([]Summary, error) {
	users, _, err := s.users.List(ctx, UserFilter{Search: q}, limit, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(users))
	for _, u := range users {
		out = append(out, Summary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role()})
	}
	return out, nil
}

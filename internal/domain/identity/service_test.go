package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rch/portal/internal/platform/apperr"
	"github.com/rch/portal/internal/platform/auth"
	"github.com/rch/portal/internal/platform/notification"
)

// -- Mock User Repository --

type mockUserRepo struct {
	users map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperr.Conflict("create user: already exists")
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = time.Now()
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (m *mockUserRepo) Update(_ context.Context, u *User) error {
	if _, ok := m.users[u.ID]; !ok {
		return apperr.NotFound("user not found")
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.users[id]; !ok {
		return apperr.NotFound("user not found")
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) List(_ context.Context, filter UserFilter, limit, offset int) ([]*User, int, error) {
	var result []*User
	q := strings.ToLower(filter.Search)
	for _, u := range m.users {
		if q != "" && !strings.Contains(strings.ToLower(u.Name), q) && !strings.Contains(u.Email, q) {
			continue
		}
		if filter.Role != "" && string(u.Role()) != filter.Role {
			continue
		}
		result = append(result, u)
	}
	total := len(result)
	if offset >= len(result) {
		return []*User{}, total, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

func (m *mockUserRepo) SetAdmin(_ context.Context, userID uuid.UUID, admin bool) error {
	u, ok := m.users[userID]
	if !ok {
		return apperr.NotFound("user not found")
	}
	if admin {
		id := uuid.New()
		u.AdminID = &id
	} else {
		u.AdminID = nil
	}
	return nil
}

func (m *mockUserRepo) SetAlly(_ context.Context, userID uuid.UUID, allyID *uuid.UUID) error {
	u, ok := m.users[userID]
	if !ok {
		return apperr.NotFound("user not found")
	}
	u.AllyID = allyID
	return nil
}

func (m *mockUserRepo) SetMembership(_ context.Context, userID uuid.UUID, planID *uuid.UUID, expiresAt time.Time) error {
	u, ok := m.users[userID]
	if !ok {
		return apperr.NotFound("user not found")
	}
	u.MembershipActive = true
	if planID != nil {
		u.MembershipPlanID = planID
	}
	u.MembershipExpiresAt = &expiresAt
	return nil
}

type testEnv struct {
	svc        *Service
	repo       *mockUserRepo
	issuer     *auth.TokenIssuer
	revocation *auth.MemoryRevocationStore
	mail       *notification.MockEmailSender
}

func newTestEnv() *testEnv {
	repo := newMockUserRepo()
	issuer := auth.NewTokenIssuer("test-secret-test-secret-test-secret", time.Hour)
	revocation := auth.NewMemoryRevocationStore(0)
	sender := &notification.MockEmailSender{}
	mail := notification.NewManager(sender, notification.NewTemplateEngine(), zerolog.Nop())
	return &testEnv{
		svc:        NewService(repo, issuer, revocation, mail, zerolog.Nop()),
		repo:       repo,
		issuer:     issuer,
		revocation: revocation,
		mail:       sender,
	}
}

func newTestService() *Service {
	return newTestEnv().svc
}

func ptr[T any](v T) *T { return &v }

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", kind)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

// -- Signup --

func TestSignup_Success(t *testing.T) {
	env := newTestEnv()
	res, err := env.svc.Signup(context.Background(), SignupRequest{Name: "Ana Pérez", Email: " Ana@Example.com ", Password: "secret1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Email != "ana@example.com" {
		t.Errorf("expected normalized email, got %q", res.Email)
	}
	u := env.repo.users[res.ID]
	if u.Status != StatusActive {
		t.Errorf("expected status Activo, got %s", u.Status)
	}
	if u.PasswordHash == "secret1" || !auth.VerifyPassword(u.PasswordHash, "secret1") {
		t.Error("expected password to be hashed")
	}
	if u.Role() != auth.RolePatient {
		t.Errorf("expected patient role, got %s", u.Role())
	}
	if msgs := env.mail.Messages(); len(msgs) != 1 || msgs[0].To != "ana@example.com" {
		t.Errorf("expected welcome mail, got %+v", msgs)
	}
}

func TestSignup_MissingCredentials(t *testing.T) {
	svc := newTestService()
	_, err := svc.Signup(context.Background(), SignupRequest{Name: "Ana", Email: "", Password: "secret1"})
	assertKind(t, err, apperr.ErrValidation)
	if apperr.Message(err) != "Email y contraseña son requeridos" {
		t.Errorf("unexpected message %q", apperr.Message(err))
	}
}

func TestSignup_ShortPassword(t *testing.T) {
	svc := newTestService()
	_, err := svc.Signup(context.Background(), SignupRequest{Email: "a@b.com", Password: "12345"})
	assertKind(t, err, apperr.ErrValidation)
}

func TestSignup_PasswordMismatch(t *testing.T) {
	svc := newTestService()
	_, err := svc.Signup(context.Background(), SignupRequest{Email: "a@b.com", Password: "123456", ConfirmPassword: "654321"})
	assertKind(t, err, apperr.ErrValidation)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	if _, err := svc.Signup(ctx, SignupRequest{Email: "a@b.com", Password: "123456"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.Signup(ctx, SignupRequest{Email: "A@B.com", Password: "123456"})
	assertKind(t, err, apperr.ErrValidation)
	if apperr.Message(err) != "El email ya está registrado" {
		t.Errorf("unexpected message %q", apperr.Message(err))
	}
}

// -- Login --

func signupUser(t *testing.T, env *testEnv, email string) *User {
	t.Helper()
	res, err := env.svc.Signup(context.Background(), SignupRequest{Name: "Test", Email: email, Password: "secret1"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	return env.repo.users[res.ID]
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv()
	u := signupUser(t, env, "doc@rch.test")
	doctorID := uuid.New()
	u.DoctorID = &doctorID

	sess, err := env.svc.Login(context.Background(), "DOC@rch.test", "secret1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.User.Role != auth.RoleDoctor {
		t.Errorf("expected doctor role, got %s", sess.User.Role)
	}
	claims, err := env.issuer.Parse(sess.BackendToken)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.UserID != u.ID.String() || claims.DoctorID != doctorID.String() {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv()
	signupUser(t, env, "a@b.com")
	_, err := env.svc.Login(context.Background(), "a@b.com", "nope123")
	assertKind(t, err, apperr.ErrUnauthorized)
}

func TestLogin_UnknownUser(t *testing.T) {
	svc := newTestService()
	_, err := svc.Login(context.Background(), "ghost@b.com", "secret1")
	assertKind(t, err, apperr.ErrUnauthorized)
}

func TestLogin_InactiveUser(t *testing.T) {
	env := newTestEnv()
	u := signupUser(t, env, "a@b.com")
	u.Status = StatusSuspended

	_, err := env.svc.Login(context.Background(), "a@b.com", "secret1")
	assertKind(t, err, apperr.ErrForbidden)
	if apperr.Message(err) != "Usuario inactivo o suspendido" {
		t.Errorf("unexpected message %q", apperr.Message(err))
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newTestEnv()
	signupUser(t, env, "a@b.com")
	ctx := context.Background()

	sess, err := env.svc.Login(ctx, "a@b.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := env.issuer.Parse(sess.BackendToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := env.svc.Logout(ctx, claims); err != nil {
		t.Fatalf("logout: %v", err)
	}
	revoked, err := env.revocation.IsRevoked(ctx, claims.ID)
	if err != nil || !revoked {
		t.Errorf("expected token to be revoked, got %v %v", revoked, err)
	}
}

func TestAccountState(t *testing.T) {
	env := newTestEnv()
	u := signupUser(t, env, "a@b.com")
	ctx := context.Background()

	st, err := env.svc.AccountState(ctx, u.ID.String())
	if err != nil || st == nil || !st.Active || st.Role != auth.RolePatient {
		t.Fatalf("expected active patient, got %+v %v", st, err)
	}
	env.repo.users[u.ID].Status = StatusInactive
	if st, _ := env.svc.AccountState(ctx, u.ID.String()); st == nil || st.Active {
		t.Errorf("expected inactive state, got %+v", st)
	}
	if st, _ := env.svc.AccountState(ctx, uuid.NewString()); st != nil {
		t.Errorf("expected unknown user to have no state, got %+v", st)
	}
	if st, _ := env.svc.AccountState(ctx, "not-a-uuid"); st != nil {
		t.Errorf("expected malformed id to have no state, got %+v", st)
	}
}

func TestUnlinkedAllyTokenRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	u := signupUser(t, env, "lab@b.com")
	allyID := uuid.New()
	if _, err := env.svc.LinkAlly(ctx, u.ID, &allyID); err != nil {
		t.Fatalf("link: %v", err)
	}
	sess, err := env.svc.Login(ctx, "lab@b.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	call := func() error {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ally/codes/X", nil)
		req.Header.Set("Authorization", "Bearer "+sess.BackendToken)
		c := e.NewContext(req, httptest.NewRecorder())
		mw := auth.Middleware(auth.MiddlewareConfig{Issuer: env.issuer, Status: env.svc, Logger: zerolog.Nop()})
		h := mw(auth.RequireRole(auth.RoleAlly)(func(c echo.Context) error {
			_, err := auth.CurrentAlly(c)
			return err
		}))
		return h(c)
	}
	if err := call(); err != nil {
		t.Fatalf("expected linked ally to pass, got %v", err)
	}

	if _, err := env.svc.LinkAlly(ctx, u.ID, nil); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	err = call()
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for token issued before unlink, got %v", err)
	}
}

// -- Profile --

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv()
	u := signupUser(t, env, "a@b.com")

	p, err := env.svc.UpdateProfile(context.Background(), u.ID, ProfileUpdate{Name: ptr("Ana María"), Phone: ptr("0999999999")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Ana María" || p.Phone == nil || *p.Phone != "0999999999" {
		t.Errorf("unexpected profile %+v", p)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv()
	u := signupUser(t, env, "a@b.com")
	ctx := context.Background()

	if err := env.svc.ChangePassword(ctx, u.ID, "wrong1", "newpass1"); err == nil {
		t.Error("expected error for wrong current password")
	}
	if err := env.svc.ChangePassword(ctx, u.ID, "secret1", "newpass1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.svc.Login(ctx, "a@b.com", "newpass1"); err != nil {
		t.Errorf("expected login with new password, got %v", err)
	}
}

// -- Admin --

func TestCreateUser_PasswordOptional(t *testing.T) {
	svc := newTestService()
	u, err := svc.CreateUser(context.Background(), UserInput{Name: ptr("Paciente"), Email: ptr("p@rch.test")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.PasswordHash != "" {
		t.Error("expected empty password hash")
	}
	if _, err := svc.Login(context.Background(), "p@rch.test", "anything"); err == nil {
		t.Error("expected login without password to fail")
	}
}

func TestCreateUser_RequiresEmail(t *testing.T) {
	svc := newTestService()
	_, err := svc.CreateUser(context.Background(), UserInput{Name: ptr("Nobody")})
	assertKind(t, err, apperr.ErrValidation)
}

func TestUpdateUser_Partial(t *testing.T) {
	env := newTestEnv()
	u := signupUser(t, env, "a@b.com")
	ctx := context.Background()

	status := StatusSuspended
	updated, err := env.svc.UpdateUser(ctx, u.ID, UserInput{Status: &status, Password: ptr("another1")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Email != "a@b.com" || updated.Name != "Test" {
		t.Errorf("expected untouched fields to survive, got %+v", updated)
	}
	if updated.Status != StatusSuspended {
		t.Errorf("expected Suspendido, got %s", updated.Status)
	}
	if !auth.VerifyPassword(updated.PasswordHash, "another1") {
		t.Error("expected password to be re-hashed")
	}

	bad := UserStatus("Borrado")
	_, err = env.svc.UpdateUser(ctx, u.ID, UserInput{Status: &bad})
	assertKind(t, err, apperr.ErrValidation)
}

func TestDeleteUser_ReturnsDeleted(t *testing.T) {
	env := newTestEnv()
	u := signupUser(t, env, "a@b.com")
	ctx := context.Background()

	deleted, err := env.svc.DeleteUser(ctx, uuid.New(), u.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted.ID != u.ID || deleted.Email != "a@b.com" {
		t.Errorf("unexpected deleted user %+v", deleted)
	}
	_, err = env.svc.GetUser(ctx, u.ID)
	assertKind(t, err, apperr.ErrNotFound)
}

func TestDeleteUser_RefusesSelf(t *testing.T) {
	env := newTestEnv()
	u := signupUser(t, env, "a@b.com")
	_, err := env.svc.DeleteUser(context.Background(), u.ID, u.ID)
	assertKind(t, err, apperr.ErrValidation)
}

func TestListUsers_RoleFilter(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	admin := signupUser(t, env, "admin@rch.test")
	signupUser(t, env, "p1@rch.test")
	signupUser(t, env, "p2@rch.test")
	if err := env.svc.PromoteAdmin(ctx, admin.ID); err != nil {
		t.Fatalf("promote: %v", err)
	}

	admins, total, err := env.svc.ListUsers(ctx, UserFilter{Role: "admin"}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || admins[0].ID != admin.ID {
		t.Errorf("expected only the admin, got %d", total)
	}
	_, total, _ = env.svc.ListUsers(ctx, UserFilter{Role: "all"}, 20, 0)
	if total != 3 {
		t.Errorf("expected 3 users for role=all, got %d", total)
	}
}

func TestBootstrapAdmin(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	u, err := env.svc.BootstrapAdmin(ctx, "Root", "root@rch.test", "rootpass")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role() != auth.RoleAdmin {
		t.Errorf("expected admin role, got %s", u.Role())
	}
	again, err := env.svc.BootstrapAdmin(ctx, "Root", "root@rch.test", "rootpass")
	if err != nil || again.ID != u.ID {
		t.Errorf("expected existing account to be reused, got %v %v", again, err)
	}
}

func TestLinkAlly(t *testing.T) {
	env := newTestEnv()
	u := signupUser(t, env, "lab@rch.test")
	allyID := uuid.New()

	linked, err := env.svc.LinkAlly(context.Background(), u.ID, &allyID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if linked.Role() != auth.RoleAlly {
		t.Errorf("expected ally role, got %s", linked.Role())
	}
}

func TestMembership(t *testing.T) {
	env := newTestEnv()
	u := signupUser(t, env, "a@b.com")
	ctx := context.Background()
	fixed := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	env.svc.now = func() time.Time { return fixed }

	if member, _ := env.svc.IsMember(ctx, u.ID); member {
		t.Error("expected no membership before activation")
	}
	if err := env.svc.ActivateMembership(ctx, u.ID, nil, fixed.AddDate(0, 0, 30)); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if member, _ := env.svc.IsMember(ctx, u.ID); !member {
		t.Error("expected active membership")
	}
	if at, err := env.svc.MembershipExpiry(ctx, u.ID); err != nil || at == nil || !at.Equal(fixed.AddDate(0, 0, 30)) {
		t.Errorf("expected running expiry, got %v %v", at, err)
	}
	env.svc.now = func() time.Time { return fixed.AddDate(0, 0, 31) }
	if member, _ := env.svc.IsMember(ctx, u.ID); member {
		t.Error("expected membership to lapse after expiry")
	}
	if at, _ := env.svc.MembershipExpiry(ctx, u.ID); at != nil {
		t.Errorf("expected no expiry for lapsed membership, got %v", at)
	}
}

func TestSearchUsers(t *testing.T) {
	env := newTestEnv()
	signupUser(t, env, "maria@rch.test")
	signupUser(t, env, "jose@rch.test")

	got, err := env.svc.SearchUsers(context.Background(), "maria", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Email != "maria@rch.test" {
		t.Errorf("unexpected results %+v", got)
	}
}

func TestEmailOf(t *testing.T) {
	env := newTestEnv()
	u := signupUser(t, env, "paciente@rch.test")

	email, err := env.svc.EmailOf(context.Background(), u.ID)
	if err != nil || email != "paciente@rch.test" {
		t.Errorf("expected paciente@rch.test, got %q %v", email, err)
	}
	_, err = env.svc.EmailOf(context.Background(), uuid.New())
	assertKind(t, err, apperr.ErrNotFound)
}

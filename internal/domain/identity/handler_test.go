package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rch/portal/internal/platform/auth"
	"github.com/rch/portal/internal/platform/httpx"
)

func newTestHandler() (*Handler, *testEnv, *echo.Echo) {
	env := newTestEnv()
	e := echo.New()
	e.Validator = httpx.NewValidator()
	return NewHandler(env.svc), env, e
}

func jsonContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func asUser(c echo.Context, id uuid.UUID, role auth.Role) {
	req := c.Request()
	c.SetRequest(req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{UserID: id.String(), Role: role})))
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T %v", err, err)
	}
	return he.Code
}

func TestHandler_Signup(t *testing.T) {
	h, _, e := newTestHandler()
	c, rec := jsonContext(e, http.MethodPost, "/api/v1/auth/signup", `{"name":"Ana","email":"ana@rch.test","password":"secret1"}`)

	if err := h.Signup(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var env struct {
		Data       SignupResult `json:"data"`
		StatusCode int          `json:"statusCode"`
	}
	json.Unmarshal(rec.Body.Bytes(), &env)
	if env.Data.Email != "ana@rch.test" || env.StatusCode != http.StatusCreated {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_Signup_Duplicate(t *testing.T) {
	h, env, e := newTestHandler()
	signupUser(t, env, "ana@rch.test")

	c, _ := jsonContext(e, http.MethodPost, "/api/v1/auth/signup", `{"email":"ana@rch.test","password":"secret1"}`)
	err := h.Signup(c)
	if code := httpCode(t, err); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_Login(t *testing.T) {
	h, env, e := newTestHandler()
	signupUser(t, env, "ana@rch.test")

	c, rec := jsonContext(e, http.MethodPost, "/api/v1/auth/login", `{"email":"ana@rch.test","password":"secret1"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data Session `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Data.BackendToken == "" || body.Data.User.Role != auth.RolePatient {
		t.Errorf("unexpected session %s", rec.Body.String())
	}
}

func TestHandler_Login_BadPassword(t *testing.T) {
	h, env, e := newTestHandler()
	signupUser(t, env, "ana@rch.test")

	c, _ := jsonContext(e, http.MethodPost, "/api/v1/auth/login", `{"email":"ana@rch.test","password":"wrong12"}`)
	if code := httpCode(t, h.Login(c)); code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", code)
	}
}

func TestHandler_Me(t *testing.T) {
	h, env, e := newTestHandler()
	u := signupUser(t, env, "ana@rch.test")

	c, rec := jsonContext(e, http.MethodGet, "/api/v1/me", "")
	asUser(c, u.ID, auth.RolePatient)
	if err := h.Me(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"email":"ana@rch.test"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_Me_Anonymous(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := jsonContext(e, http.MethodGet, "/api/v1/me", "")
	if code := httpCode(t, h.Me(c)); code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", code)
	}
}

func TestHandler_GetUser_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := jsonContext(e, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	if code := httpCode(t, h.GetUser(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_GetUser_InvalidID(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := jsonContext(e, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("abc")
	if code := httpCode(t, h.GetUser(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_ListUsers(t *testing.T) {
	h, env, e := newTestHandler()
	signupUser(t, env, "a@rch.test")
	signupUser(t, env, "b@rch.test")

	c, rec := jsonContext(e, http.MethodGet, "/api/v1/users?limit=1", "")
	if err := h.ListUsers(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":2`) || !strings.Contains(rec.Body.String(), `"hasMore":true`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_DeleteUser(t *testing.T) {
	h, env, e := newTestHandler()
	u := signupUser(t, env, "a@rch.test")

	c, rec := jsonContext(e, http.MethodDelete, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(u.ID.String())
	asUser(c, uuid.New(), auth.RoleAdmin)
	if err := h.DeleteUser(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), u.ID.String()) {
		t.Errorf("expected deleted user in body, got %d %s", rec.Code, rec.Body.String())
	}
	if _, err := env.svc.GetUser(context.Background(), u.ID); err == nil {
		t.Error("expected user to be gone")
	}
}

func TestHandler_UpdateUser(t *testing.T) {
	h, env, e := newTestHandler()
	u := signupUser(t, env, "a@rch.test")

	c, rec := jsonContext(e, http.MethodPatch, "/", `{"status":"Inactivo"}`)
	c.SetParamNames("id")
	c.SetParamValues(u.ID.String())
	if err := h.UpdateUser(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"Inactivo"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

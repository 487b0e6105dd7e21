package catalog

import (
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

func newJSONContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func asAdmin(c echo.Context) {
	req := c.Request()
	c.SetRequest(req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{UserID: uuid.NewString(), Role: auth.RoleAdmin})))
}

func TestHandler_CreateSpecialty(t *testing.T) {
	h, _, e := newTestHandler()
	c, rec := newJSONContext(e, http.MethodPost, "/api/v1/specialties", `{"name":"Pediatría","description":"Niños"}`)

	if err := h.CreateSpecialty(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"name":"Pediatría"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_DeleteSpecialty_Conflict(t *testing.T) {
	h, env, e := newTestHandler()
	sp := mustSpecialty(t, env.svc, "Cardiología")
	mustDoctor(t, env.svc, "Juan Pérez", sp.ID)

	c, _ := newJSONContext(e, http.MethodDelete, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(sp.ID.String())
	err := h.DeleteSpecialty(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestHandler_GetDoctor_PublicHidesAddresses(t *testing.T) {
	h, env, e := newTestHandler()
	sp := mustSpecialty(t, env.svc, "Cardiología")
	d := mustDoctor(t, env.svc, "Juan Pérez", sp.ID)

	c, rec := newJSONContext(e, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.GetDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(rec.Body.String(), "Amazonas") {
		t.Errorf("public read leaked address: %s", rec.Body.String())
	}

	c, rec = newJSONContext(e, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	asAdmin(c)
	if err := h.GetDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Amazonas") {
		t.Errorf("admin read should include address: %s", rec.Body.String())
	}
}

func TestHandler_ListDoctors(t *testing.T) {
	h, env, e := newTestHandler()
	sp := mustSpecialty(t, env.svc, "Cardiología")
	mustDoctor(t, env.svc, "Juan Pérez", sp.ID)

	c, rec := newJSONContext(e, http.MethodGet, "/api/v1/doctors?search=juan", "")
	if err := h.ListDoctors(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_CreateDoctor_MissingFields(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := newJSONContext(e, http.MethodPost, "/api/v1/doctors", `{"name":"Juan"}`)
	err := h.CreateDoctor(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if he.Message != "Por favor completa todos los campos requeridos" {
		t.Errorf("unexpected message %v", he.Message)
	}
}

func TestHandler_GlobalSearch(t *testing.T) {
	h, env, e := newTestHandler()
	mustSpecialty(t, env.svc, "Neurología")

	c, rec := newJSONContext(e, http.MethodGet, "/api/v1/admin/search?q=neuro", "")
	if err := h.GlobalSearch(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Neurología") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

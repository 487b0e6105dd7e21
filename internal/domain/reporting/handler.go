package reporting

import (
	"github.com/labstack/echo/v4"

	"github.com/rch/portal/internal/platform/auth"
	"github.com/rch/portal/internal/platform/httpx"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/admin/dashboard", h.AdminDashboard)
	admin.GET("/reports/measures", h.ListMeasures)
	admin.GET("/reports/measures/:id/evaluate", h.EvaluateMeasure)

	api.GET("/doctor/dashboard", h.DoctorDashboard, auth.RequireRole(auth.RoleDoctor))
	api.GET("/me/dashboard", h.PatientDashboard, auth.RequireAuth())
}

func (h *Handler) AdminDashboard(c echo.Context) error {
	d, err := h.svc.AdminDashboard(c.Request().Context())
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, d)
}

func (h *Handler) DoctorDashboard(c echo.Context) error {
	doctorID, err := auth.CurrentDoctor(c)
	if err != nil {
		return err
	}
	d, err := h.svc.DoctorDashboard(c.Request().Context(), doctorID)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, d)
}

func (h *Handler) PatientDashboard(c echo.Context) error {
	userID, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	d, err := h.svc.PatientDashboard(c.Request().Context(), userID)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, d)
}

func (h *Handler) ListMeasures(c echo.Context) error {
	return httpx.OK(c, h.svc.Measures())
}

func (h *Handler) EvaluateMeasure(c echo.Context) error {
	params := map[string]string{}
	for k, v := range c.QueryParams() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	report, err := h.svc.Evaluate(c.Request().Context(), c.Param("id"), params)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, report)
}

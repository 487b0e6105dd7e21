package membership

import (
	"net/http"

	"github.com/google/uuid"
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
	api.GET("/memberships", h.ListPlans)
	api.GET("/memberships/:id", h.GetPlan)
	api.POST("/memberships/:id/subscribe", h.Subscribe, auth.RequireRole(auth.RolePatient))

	admin := api.Group("/memberships", auth.RequireRole(auth.RoleAdmin))
	admin.POST("", h.CreatePlan)
	admin.PATCH("/:id", h.UpdatePlan)
	admin.PUT("/:id", h.UpdatePlan)
	admin.DELETE("/:id", h.DeletePlan)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// ListPlans returns active plans; admins also see retired ones.
func (h *Handler) ListPlans(c echo.Context) error {
	activeOnly := auth.RoleFromContext(c.Request().Context()) != auth.RoleAdmin
	plans, err := h.svc.ListPlans(c.Request().Context(), activeOnly)
	if err != nil {
		return httpx.Fail(err)
	}
	if plans == nil {
		plans = []*Plan{}
	}
	return httpx.OK(c, plans)
}

func (h *Handler) GetPlan(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPlan(c.Request().Context(), id)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, p)
}

func (h *Handler) CreatePlan(c echo.Context) error {
	var in PlanInput
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	p, err := h.svc.CreatePlan(c.Request().Context(), in)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.Created(c, p)
}

func (h *Handler) UpdatePlan(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in PlanInput
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	p, err := h.svc.UpdatePlan(c.Request().Context(), id, in)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, p)
}

func (h *Handler) DeletePlan(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.DeletePlan(c.Request().Context(), id)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, p)
}

func (h *Handler) Subscribe(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	userID, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	sub, err := h.svc.Subscribe(c.Request().Context(), userID, id)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, sub)
}

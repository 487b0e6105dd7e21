package catalog

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rch/portal/internal/platform/auth"
	"github.com/rch/portal/internal/platform/httpx"
	"github.com/rch/portal/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Public reads; admins get the unfiltered view on the same paths.
	api.GET("/specialties", h.ListSpecialties)
	api.GET("/specialties/:id", h.GetSpecialty)
	api.GET("/doctors", h.ListDoctors)
	api.GET("/doctors/:id", h.GetDoctor)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/specialties", h.CreateSpecialty)
	admin.PATCH("/specialties/:id", h.UpdateSpecialty)
	admin.PUT("/specialties/:id", h.UpdateSpecialty)
	admin.DELETE("/specialties/:id", h.DeleteSpecialty)
	admin.POST("/doctors", h.CreateDoctor)
	admin.PATCH("/doctors/:id", h.UpdateDoctor)
	admin.PUT("/doctors/:id", h.UpdateDoctor)
	admin.DELETE("/doctors/:id", h.DeleteDoctor)
	admin.PUT("/doctors/:id/schedule", h.SetSchedule)
	admin.GET("/admin/search", h.GlobalSearch)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func isAdmin(c echo.Context) bool {
	return auth.RoleFromContext(c.Request().Context()) == auth.RoleAdmin
}

// -- Specialty --

func (h *Handler) ListSpecialties(c echo.Context) error {
	items, err := h.svc.ListSpecialties(c.Request().Context())
	if err != nil {
		return httpx.Fail(err)
	}
	if items == nil {
		items = []*Specialty{}
	}
	return httpx.OK(c, items)
}

func (h *Handler) GetSpecialty(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	sp, err := h.svc.GetSpecialty(c.Request().Context(), id)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, sp)
}

func (h *Handler) CreateSpecialty(c echo.Context) error {
	var in SpecialtyInput
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	sp, err := h.svc.CreateSpecialty(c.Request().Context(), in)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.Created(c, sp)
}

func (h *Handler) UpdateSpecialty(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in SpecialtyInput
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	sp, err := h.svc.UpdateSpecialty(c.Request().Context(), id, in)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, sp)
}

func (h *Handler) DeleteSpecialty(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	sp, err := h.svc.DeleteSpecialty(c.Request().Context(), id)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, sp)
}

// -- Doctor --

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := DoctorFilter{Search: c.QueryParam("search"), Specialty: c.QueryParam("specialty")}
	items, total, err := h.svc.ListDoctors(c.Request().Context(), filter, !isAdmin(c), pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Fail(err)
	}
	if items == nil {
		items = []*Doctor{}
	}
	return httpx.Page(c, items, total, pg)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var d *Doctor
	if isAdmin(c) {
		d, err = h.svc.GetDoctor(c.Request().Context(), id)
	} else {
		d, err = h.svc.GetPublicDoctor(c.Request().Context(), id)
	}
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, d)
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var in DoctorInput
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	d, err := h.svc.CreateDoctor(c.Request().Context(), in)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.Created(c, d)
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in DoctorInput
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	d, err := h.svc.UpdateDoctor(c.Request().Context(), id, in)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, d)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.DeleteDoctor(c.Request().Context(), id)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, d)
}

type scheduleRequest struct {
	Schedule []ScheduleEntry `json:"schedule"`
}

func (h *Handler) SetSchedule(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req scheduleRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	d, err := h.svc.SetSchedule(c.Request().Context(), id, req.Schedule)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, d)
}

func (h *Handler) GlobalSearch(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	res, err := h.svc.GlobalSearch(c.Request().Context(), c.QueryParam("q"), limit)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, res)
}

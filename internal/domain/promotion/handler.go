package promotion

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
	api.GET("/promotions", h.List)
	api.GET("/promotions/:id", h.Get)

	admin := api.Group("/promotions", auth.RequireRole(auth.RoleAdmin))
	admin.POST("", h.Create)
	admin.PATCH("/:id", h.Update)
	admin.PUT("/:id", h.Update)
	admin.DELETE("/:id", h.Delete)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// List returns current promotions; admins see expired ones too.
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	var items []*Promotion
	var err error
	if auth.RoleFromContext(ctx) == auth.RoleAdmin {
		items, err = h.svc.ListAll(ctx)
	} else {
		items, err = h.svc.ListActive(ctx)
	}
	if err != nil {
		return httpx.Fail(err)
	}
	if items == nil {
		items = []*Promotion{}
	}
	return httpx.OK(c, items)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var p *Promotion
	if auth.RoleFromContext(c.Request().Context()) == auth.RoleAdmin {
		p, err = h.svc.Get(c.Request().Context(), id)
	} else {
		p, err = h.svc.GetActive(c.Request().Context(), id)
	}
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, p)
}

func (h *Handler) Create(c echo.Context) error {
	var in Input
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	p, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.Created(c, p)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in Input
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	p, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, p)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Delete(c.Request().Context(), id)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, p)
}

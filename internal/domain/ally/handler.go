package ally

import (
	"net/http"

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
	api.GET("/allies", h.List)
	api.GET("/allies/:id", h.Get)

	admin := api.Group("/allies", auth.RequireRole(auth.RoleAdmin))
	admin.POST("", h.Create)
	admin.PATCH("/:id", h.Update)
	admin.PUT("/:id", h.Update)
	admin.DELETE("/:id", h.Delete)

	portal := api.Group("/ally", auth.RequireRole(auth.RoleAlly))
	portal.GET("/profile", h.Profile)
	portal.GET("/codes/:code", h.Lookup)
	portal.POST("/codes/:code/redeem", h.Redeem)
	portal.POST("/results", h.UploadResult)

	api.GET("/results/mine", h.MyResults, auth.RequireAuth())
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := Filter{
		Search: c.QueryParam("search"),
		Type:   Type(c.QueryParam("type")),
		Sector: c.QueryParam("sector"),
	}
	items, total, err := h.svc.List(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Fail(err)
	}
	if items == nil {
		items = []*Ally{}
	}
	return httpx.Page(c, items, total, pg)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, a)
}

func (h *Handler) Create(c echo.Context) error {
	var in Input
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	a, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.Created(c, a)
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
	a, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, a)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Delete(c.Request().Context(), id)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, a)
}

func (h *Handler) Profile(c echo.Context) error {
	allyID, err := auth.CurrentAlly(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), allyID)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, a)
}

func (h *Handler) Lookup(c echo.Context) error {
	if _, err := auth.CurrentAlly(c); err != nil {
		return err
	}
	res, err := h.svc.Lookup(c.Request().Context(), c.Param("code"))
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, res)
}

func (h *Handler) Redeem(c echo.Context) error {
	allyID, err := auth.CurrentAlly(c)
	if err != nil {
		return err
	}
	res, err := h.svc.Redeem(c.Request().Context(), allyID, c.Param("code"))
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, res)
}

func (h *Handler) UploadResult(c echo.Context) error {
	allyID, err := auth.CurrentAlly(c)
	if err != nil {
		return err
	}
	var req UploadRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.UploadResult(c.Request().Context(), allyID, req)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.Created(c, res)
}

func (h *Handler) MyResults(c echo.Context) error {
	userID, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	items, err := h.svc.PatientResults(c.Request().Context(), userID, c.QueryParam("search"))
	if err != nil {
		return httpx.Fail(err)
	}
	if items == nil {
		items = []*LabResult{}
	}
	return httpx.OK(c, items)
}

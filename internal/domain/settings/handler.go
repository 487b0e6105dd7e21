package settings

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
	// Bank details are needed by any patient paying by transfer.
	api.GET("/settings/payment", h.GetPayment, auth.RequireAuth())

	admin := api.Group("/settings", auth.RequireRole(auth.RoleAdmin))
	admin.PATCH("/payment", h.UpdatePayment)
	admin.GET("/platform", h.GetPlatform)
	admin.PATCH("/platform", h.UpdatePlatform)
}

func (h *Handler) GetPayment(c echo.Context) error {
	p, err := h.svc.Payment(c.Request().Context())
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, p)
}

func (h *Handler) UpdatePayment(c echo.Context) error {
	var upd PaymentUpdate
	if err := httpx.Bind(c, &upd); err != nil {
		return err
	}
	p, err := h.svc.UpdatePayment(c.Request().Context(), upd)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, p)
}

func (h *Handler) GetPlatform(c echo.Context) error {
	p, err := h.svc.Platform(c.Request().Context())
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, p)
}

func (h *Handler) UpdatePlatform(c echo.Context) error {
	var upd PlatformUpdate
	if err := httpx.Bind(c, &upd); err != nil {
		return err
	}
	p, err := h.svc.UpdatePlatform(c.Request().Context(), upd)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, p)
}

package contact

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rch/portal/internal/platform/httpx"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, limit ...echo.MiddlewareFunc) {
	api.POST("/contact", h.Send, limit...)
}

func (h *Handler) Send(c echo.Context) error {
	var msg Message
	if err := httpx.Bind(c, &msg); err != nil {
		return err
	}
	if err := h.svc.Send(c.Request().Context(), msg); err != nil {
		return httpx.Fail(err)
	}
	return httpx.Respond(c, http.StatusAccepted, map[string]string{"status": "sent"})
}

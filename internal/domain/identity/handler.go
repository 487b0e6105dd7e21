package identity

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

// RegisterRoutes mounts the auth, profile and user management endpoints.
// loginLimit guards the credential endpoints.
func (h *Handler) RegisterRoutes(api *echo.Group, loginLimit ...echo.MiddlewareFunc) {
	public := api.Group("/auth", loginLimit...)
	public.POST("/signup", h.Signup)
	public.POST("/login", h.Login)

	session := api.Group("", auth.RequireAuth())
	session.POST("/auth/logout", h.Logout)
	session.GET("/me", h.Me)
	session.PATCH("/me", h.UpdateProfile)
	session.PUT("/me/password", h.ChangePassword)

	admin := api.Group("/users", auth.RequireRole(auth.RoleAdmin))
	admin.GET("", h.ListUsers)
	admin.GET("/:id", h.GetUser)
	admin.POST("", h.CreateUser)
	admin.PATCH("/:id", h.UpdateUser)
	admin.PUT("/:id", h.UpdateUser)
	admin.DELETE("/:id", h.DeleteUser)
	admin.PUT("/:id/ally", h.LinkAlly)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Signup(c.Request().Context(), req)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.Created(c, res)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	sess, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, sess)
}

func (h *Handler) Logout(c echo.Context) error {
	if err := h.svc.Logout(c.Request().Context(), auth.ClaimsFromContext(c.Request().Context())); err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, map[string]bool{"loggedOut": true})
}

func (h *Handler) Me(c echo.Context) error {
	userID, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Me(c.Request().Context(), userID)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, p)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	userID, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var upd ProfileUpdate
	if err := httpx.Bind(c, &upd); err != nil {
		return err
	}
	p, err := h.svc.UpdateProfile(c.Request().Context(), userID, upd)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, p)
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

func (h *Handler) ChangePassword(c echo.Context) error {
	userID, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req passwordRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.ChangePassword(c.Request().Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, map[string]bool{"updated": true})
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := UserFilter{Search: c.QueryParam("search"), Role: c.QueryParam("role")}
	users, total, err := h.svc.ListUsers(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Fail(err)
	}
	if users == nil {
		users = []*User{}
	}
	return httpx.Page(c, users, total, pg)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, u)
}

func (h *Handler) CreateUser(c echo.Context) error {
	var in UserInput
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	u, err := h.svc.CreateUser(c.Request().Context(), in)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.Created(c, u)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in UserInput
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	u, err := h.svc.UpdateUser(c.Request().Context(), id, in)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, u)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	u, err := h.svc.DeleteUser(c.Request().Context(), actor, id)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, u)
}

type linkAllyRequest struct {
	AllyID *uuid.UUID `json:"allyId"`
}

func (h *Handler) LinkAlly(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req linkAllyRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	u, err := h.svc.LinkAlly(c.Request().Context(), id, req.AllyID)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, u)
}

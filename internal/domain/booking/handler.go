package booking

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
	api.GET("/doctors/:id/slots", h.Slots)

	patient := api.Group("/appointments", auth.RequireRole(auth.RolePatient))
	patient.POST("/quote", h.Quote)
	patient.POST("/validate", h.Validate)
	patient.POST("", h.Book)
	patient.POST("/:id/transfer-proof", h.AttachTransferProof)

	authed := api.Group("/appointments", auth.RequireAuth())
	authed.GET("/mine", h.Mine)
	authed.GET("/:id", h.Get)
	authed.POST("/:id/cancel", h.Cancel)
	authed.GET("/:id/receipt", h.Receipt)

	admin := api.Group("/appointments", auth.RequireRole(auth.RoleAdmin))
	admin.GET("", h.AdminList)
	admin.POST("/:id/verify", h.Verify)

	doctor := api.Group("/doctor", auth.RequireRole(auth.RoleDoctor))
	doctor.GET("/appointments", h.DoctorAppointments)
	doctor.GET("/patients", h.DoctorPatients)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func actorFrom(c echo.Context) (Actor, error) {
	userID, err := auth.CurrentUser(c)
	if err != nil {
		return Actor{}, err
	}
	a := Actor{UserID: userID, Role: auth.RoleFromContext(c.Request().Context())}
	if doctorID, err := auth.CurrentDoctor(c); err == nil {
		a.DoctorID = &doctorID
	}
	return a, nil
}

func (h *Handler) Slots(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	slots, err := h.svc.AvailableSlots(c.Request().Context(), id, c.QueryParam("date"), c.QueryParam("sector"))
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, slots)
}

type quoteRequest struct {
	DoctorID        uuid.UUID `json:"doctorId" validate:"required"`
	WantsMembership bool      `json:"wantsMembership"`
}

func (h *Handler) Quote(c echo.Context) error {
	userID, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req quoteRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	q, err := h.svc.QuoteFor(c.Request().Context(), userID, req.DoctorID, req.WantsMembership)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, q)
}

type validateRequest struct {
	Step  int   `json:"step" validate:"min=1,max=3"`
	Draft Draft `json:"draft"`
}

type validateResponse struct {
	Step  int  `json:"step"`
	Valid bool `json:"valid"`
}

func (h *Handler) Validate(c echo.Context) error {
	var req validateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.ValidateStep(c.Request().Context(), req.Step, req.Draft); err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, validateResponse{Step: req.Step, Valid: true})
}

func (h *Handler) Book(c echo.Context) error {
	userID, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var d Draft
	if err := httpx.Bind(c, &d); err != nil {
		return err
	}
	a, err := h.svc.Book(c.Request().Context(), userID, d)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.Created(c, a)
}

type transferProofRequest struct {
	FileName string `json:"fileName" validate:"required"`
}

func (h *Handler) AttachTransferProof(c echo.Context) error {
	userID, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req transferProofRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	a, err := h.svc.AttachTransferProof(c.Request().Context(), userID, id, req.FileName)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, a)
}

func (h *Handler) Mine(c echo.Context) error {
	userID, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	agenda, err := h.svc.PatientAgenda(c.Request().Context(), userID)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, agenda)
}

func (h *Handler) Get(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, a)
}

func (h *Handler) Cancel(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Cancel(c.Request().Context(), actor, id)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, a)
}

func (h *Handler) Receipt(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	name, pdf, err := h.svc.Receipt(c.Request().Context(), actor, id)
	if err != nil {
		return httpx.Fail(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

func (h *Handler) AdminList(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.AdminList(c.Request().Context(), c.QueryParam("status"), c.QueryParam("search"), pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Fail(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return httpx.Page(c, items, total, pg)
}

func (h *Handler) Verify(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.VerifyPayment(c.Request().Context(), id)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, a)
}

func (h *Handler) DoctorAppointments(c echo.Context) error {
	doctorID, err := auth.CurrentDoctor(c)
	if err != nil {
		return err
	}
	items, err := h.svc.DoctorAppointments(c.Request().Context(), doctorID, c.QueryParam("filter"), c.QueryParam("date"))
	if err != nil {
		return httpx.Fail(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return httpx.OK(c, items)
}

func (h *Handler) DoctorPatients(c echo.Context) error {
	doctorID, err := auth.CurrentDoctor(c)
	if err != nil {
		return err
	}
	items, err := h.svc.DoctorPatients(c.Request().Context(), doctorID, c.QueryParam("search"))
	if err != nil {
		return httpx.Fail(err)
	}
	if items == nil {
		items = []*DoctorPatient{}
	}
	return httpx.OK(c, items)
}

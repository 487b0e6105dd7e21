package consultation

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rch/portal/internal/domain/booking"
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
	doctor := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.GET("/cie10", h.SearchCIE10)
	doctor.POST("/consultations", h.Save)

	staff := api.Group("/records", auth.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
	staff.GET("/patient/:id", h.PatientRecords)

	authed := api.Group("", auth.RequireAuth())
	authed.GET("/records/mine", h.MyRecords)
	authed.GET("/records/:id", h.Get)
	authed.GET("/records/appointment/:id", h.ForAppointment)
	authed.GET("/prescriptions/:code/pdf", h.PrescriptionPDF)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func actorFrom(c echo.Context) (booking.Actor, error) {
	userID, err := auth.CurrentUser(c)
	if err != nil {
		return booking.Actor{}, err
	}
	a := booking.Actor{UserID: userID, Role: auth.RoleFromContext(c.Request().Context())}
	if doctorID, err := auth.CurrentDoctor(c); err == nil {
		a.DoctorID = &doctorID
	}
	return a, nil
}

func (h *Handler) SearchCIE10(c echo.Context) error {
	items, err := h.svc.SearchCIE10(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return httpx.Fail(err)
	}
	if items == nil {
		items = []CIE10Code{}
	}
	return httpx.OK(c, items)
}

func (h *Handler) Save(c echo.Context) error {
	doctorID, err := auth.CurrentDoctor(c)
	if err != nil {
		return err
	}
	var form Form
	if err := httpx.Bind(c, &form); err != nil {
		return err
	}
	res, err := h.svc.Save(c.Request().Context(), doctorID, form)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.Created(c, res)
}

func (h *Handler) records(c echo.Context, patientID uuid.UUID, actor booking.Actor) error {
	items, err := h.svc.PatientRecords(c.Request().Context(), actor, patientID)
	if err != nil {
		return httpx.Fail(err)
	}
	if items == nil {
		items = []*MedicalRecord{}
	}
	return httpx.OK(c, items)
}

func (h *Handler) MyRecords(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	return h.records(c, actor.UserID, actor)
}

func (h *Handler) PatientRecords(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	return h.records(c, patientID, actor)
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
	rec, err := h.svc.Record(c.Request().Context(), actor, id)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, rec)
}

func (h *Handler) ForAppointment(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.RecordForAppointment(c.Request().Context(), actor, id)
	if err != nil {
		return httpx.Fail(err)
	}
	return httpx.OK(c, rec)
}

func (h *Handler) PrescriptionPDF(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	name, pdf, err := h.svc.PrescriptionPDF(c.Request().Context(), actor, c.Param("code"))
	if err != nil {
		return httpx.Fail(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

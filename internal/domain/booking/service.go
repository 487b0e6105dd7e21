package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rch/portal/internal/domain/catalog"
	"github.com/rch/portal/internal/domain/settings"
	"github.com/rch/portal/internal/platform/apperr"
	"github.com/rch/portal/internal/platform/auth"
	"github.com/rch/portal/internal/platform/db"
	"github.com/rch/portal/internal/platform/notification"
	"github.com/rch/portal/internal/platform/receipt"
)

const (
	msgRequiredFields   = "Por favor completa todos los campos requeridos"
	msgDateOutOfRange   = "La fecha seleccionada está fuera del rango permitido"
	msgSectorInvalid    = "El médico no atiende en el sector seleccionado"
	msgModalityInvalid  = "El médico no ofrece la modalidad seleccionada"
	msgSlotUnavailable  = msgSlotTaken
	msgMethodDisabled   = "El método de pago seleccionado no está habilitado"
	msgDoctorInactive   = "El médico no está disponible para nuevas citas"
	msgMaintenance      = "La plataforma está en mantenimiento. Intenta más tarde"
	msgNotYourBooking   = "No tienes acceso a esta cita"
	msgStatusTransition = "La cita no puede pasar de %s a %s"
)

// DoctorCatalog resolves doctors with their full schedule and addresses.
type DoctorCatalog interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*catalog.Doctor, error)
}

type SettingsProvider interface {
	Payment(ctx context.Context) (*settings.PaymentSettings, error)
	Platform(ctx context.Context) (*settings.PlatformSettings, error)
}

// Members reads and grants patient memberships.
type Members interface {
	IsMember(ctx context.Context, userID uuid.UUID) (bool, error)
	ActivateMembership(ctx context.Context, userID uuid.UUID, planID *uuid.UUID, until time.Time) error
}

// Actor is the caller of an appointment operation.
type Actor struct {
	UserID   uuid.UUID
	Role     auth.Role
	DoctorID *uuid.UUID
}

func (a Actor) isAdmin() bool { return a.Role == auth.RoleAdmin }

// Pricing holds the membership upsell terms.
type Pricing struct {
	MembershipPrice float64
	MembershipDays  int
}

type Service struct {
	repo     AppointmentRepository
	doctors  DoctorCatalog
	settings SettingsProvider
	members  Members
	tx       db.TxRunner
	mail     *notification.Manager
	pricing  Pricing
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo AppointmentRepository, doctors DoctorCatalog, settings SettingsProvider, members Members,
	tx db.TxRunner, mail *notification.Manager, pricing Pricing, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		doctors:  doctors,
		settings: settings,
		members:  members,
		tx:       tx,
		mail:     mail,
		pricing:  pricing,
		logger:   logger.With().Str("component", "booking").Logger(),
		now:      time.Now,
	}
}

func (s *Service) today() string {
	return s.now().Format(DateLayout)
}

// -- Pricing and availability --

func (s *Service) QuoteFor(ctx context.Context, patientID, doctorID uuid.UUID, wantsMembership bool) (*Quote, error) {
	doc, err := s.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	isMember, err := s.members.IsMember(ctx, patientID)
	if err != nil {
		return nil, err
	}
	platform, err := s.settings.Platform(ctx)
	if err != nil {
		return nil, err
	}
	normal, member := pricesFor(doc, platform)
	q := ComputeQuote(normal, member, isMember, wantsMembership, s.pricing.MembershipPrice)
	return &q, nil
}

// pricesFor falls back to the platform consultation fee for a doctor with
// no price of their own.
func pricesFor(doc *catalog.Doctor, platform *settings.PlatformSettings) (normal, member float64) {
	normal, member = doc.PriceNormal, doc.PriceMember
	if normal <= 0 {
		normal = platform.ConsultationFee
		if member <= 0 {
			member = normal
		}
	}
	return normal, member
}

// AvailableSlots returns the doctor's configured slots for the weekday of date
// in sector, minus those already taken. Missing date or sector yields none.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date, sector string) ([]string, error) {
	doc, err := s.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return s.availableFor(ctx, doc, date, sector)
}

func (s *Service) availableFor(ctx context.Context, doc *catalog.Doctor, date, sector string) ([]string, error) {
	if date == "" || sector == "" {
		return []string{}, nil
	}
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return nil, apperr.Validation("invalid date %q", date)
	}
	slots := doc.SlotsFor(day, sector)
	if len(slots) == 0 {
		return []string{}, nil
	}
	booked, err := s.repo.BookedTimes(ctx, doc.ID, date)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(booked))
	for _, t := range booked {
		taken[t] = true
	}
	out := make([]string, 0, len(slots))
	for _, slot := range slots {
		if !taken[slot] {
			out = append(out, slot)
		}
	}
	sort.Strings(out)
	return out, nil
}

// -- Wizard validation --

// ValidateStep checks one step of the booking wizard. Step 3 (payment) is
// validated by Book.
func (s *Service) ValidateStep(ctx context.Context, step int, d Draft) error {
	switch step {
	case 1:
		doc, err := s.doctors.GetDoctor(ctx, d.DoctorID)
		if err != nil {
			return err
		}
		return s.validateSchedule(ctx, doc, d)
	case 2:
		return validatePatient(d.Patient)
	case 3:
		return s.validatePayment(ctx, d)
	}
	return apperr.Validation("unknown step %d", step)
}

func (s *Service) validateSchedule(ctx context.Context, doc *catalog.Doctor, d Draft) error {
	if d.Date == "" || d.Time == "" || d.Sector == "" || d.Modality == "" {
		return apperr.Validation(msgRequiredFields)
	}
	day, err := time.Parse(DateLayout, d.Date)
	if err != nil {
		return apperr.Validation("invalid date %q", d.Date)
	}
	platform, err := s.settings.Platform(ctx)
	if err != nil {
		return err
	}
	today, _ := time.Parse(DateLayout, s.today())
	if day.Before(today) || day.After(today.AddDate(0, 0, platform.MaxBookingDays)) {
		return apperr.Validation(msgDateOutOfRange)
	}
	if !doc.HasSector(d.Sector) {
		return apperr.Validation(msgSectorInvalid)
	}
	if !doc.HasModality(d.Modality) {
		return apperr.Validation(msgModalityInvalid)
	}
	slots, err := s.availableFor(ctx, doc, d.Date, d.Sector)
	if err != nil {
		return err
	}
	for _, slot := range slots {
		if slot == d.Time {
			return nil
		}
	}
	return apperr.Validation(msgSlotUnavailable)
}

func validatePatient(p PatientInfo) error {
	if strings.TrimSpace(p.FullName) == "" || strings.TrimSpace(p.Cedula) == "" ||
		strings.TrimSpace(p.Email) == "" || strings.TrimSpace(p.Phone) == "" {
		return apperr.Validation(msgRequiredFields)
	}
	return nil
}

func (s *Service) validatePayment(ctx context.Context, d Draft) error {
	if !d.PaymentMethod.Valid() {
		return apperr.Validation(msgRequiredFields)
	}
	payment, err := s.settings.Payment(ctx)
	if err != nil {
		return err
	}
	if !payment.Enabled(string(d.PaymentMethod)) {
		return apperr.Validation(msgMethodDisabled)
	}
	return nil
}

// -- Booking --

// Book runs every wizard step and creates the appointment. A membership
// purchased with the booking is activated in the same transaction.
func (s *Service) Book(ctx context.Context, patientID uuid.UUID, d Draft) (*Appointment, error) {
	platform, err := s.settings.Platform(ctx)
	if err != nil {
		return nil, err
	}
	if platform.MaintenanceMode {
		return nil, apperr.Unavailable(msgMaintenance)
	}

	doc, err := s.doctors.GetDoctor(ctx, d.DoctorID)
	if err != nil {
		return nil, err
	}
	if doc.Status != catalog.DoctorActive {
		return nil, apperr.Validation(msgDoctorInactive)
	}
	if err := s.validateSchedule(ctx, doc, d); err != nil {
		return nil, err
	}
	if err := validatePatient(d.Patient); err != nil {
		return nil, err
	}
	if err := s.validatePayment(ctx, d); err != nil {
		return nil, err
	}

	isMember, err := s.members.IsMember(ctx, patientID)
	if err != nil {
		return nil, err
	}
	normal, member := pricesFor(doc, platform)
	quote := ComputeQuote(normal, member, isMember, d.WantsMembership, s.pricing.MembershipPrice)

	a := &Appointment{
		PatientID:     patientID,
		PatientName:   strings.TrimSpace(d.Patient.FullName),
		PatientCedula: strings.TrimSpace(d.Patient.Cedula),
		PatientEmail:  strings.TrimSpace(d.Patient.Email),
		PatientPhone:  strings.TrimSpace(d.Patient.Phone),
		DoctorID:      doc.ID,
		DoctorName:    doc.Name,
		Specialty:     doc.Specialty.Name,
		Date:          d.Date,
		Time:          d.Time,
		Sector:        d.Sector,
		Modality:      d.Modality,
		Reason:        strings.TrimSpace(d.Reason),
		Price:         quote.ConsultationPrice,
		IsMember:      quote.WillHaveMembership,
		MembershipFee: quote.MembershipFee,
		PaymentMethod: d.PaymentMethod,
		Status:        StatusPaid,
	}
	if d.PaymentMethod == PaymentTransfer {
		a.Status = StatusPendingVerification
		a.TransferProof = d.TransferProof
	}
	if d.Modality == catalog.ModalityPresencial {
		a.Address = doc.AddressFor(d.Sector)
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if quote.MembershipFee > 0 {
			until := s.now().AddDate(0, 0, s.pricing.MembershipDays)
			if err := s.members.ActivateMembership(ctx, patientID, nil, until); err != nil {
				return err
			}
		}
		return s.repo.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("doctor_id", a.DoctorID.String()).
		Str("status", string(a.Status)).
		Msg("appointment booked")

	if a.Status == StatusPaid {
		s.notifyWithReceipt(ctx, notification.TemplateBookingConfirmed, a)
	} else {
		s.notify(ctx, notification.TemplateTransferPending, a)
	}
	return a, nil
}

func mailData(a *Appointment) map[string]string {
	data := map[string]string{
		"patient":   a.PatientName,
		"doctor":    a.DoctorName,
		"specialty": a.Specialty,
		"date":      a.Date,
		"time":      a.Time,
		"modality":  a.Modality,
		"sector":    a.Sector,
		"total":     fmt.Sprintf("%.2f", a.Total()),
	}
	if a.Address != nil {
		data["address_line"] = "Dirección: " + *a.Address
	}
	return data
}

func (s *Service) notify(ctx context.Context, templateID string, a *Appointment) {
	if s.mail == nil {
		return
	}
	s.mail.Notify(ctx, templateID, a.PatientEmail, mailData(a))
}

func (s *Service) notifyWithReceipt(ctx context.Context, templateID string, a *Appointment) {
	if s.mail == nil {
		return
	}
	pdf, err := receipt.AppointmentPDF(s.receiptFor(ctx, a))
	if err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("receipt render failed")
		s.mail.Notify(ctx, templateID, a.PatientEmail, mailData(a))
		return
	}
	s.mail.Notify(ctx, templateID, a.PatientEmail, mailData(a), notification.Attachment{
		Name:        receiptName(a),
		ContentType: "application/pdf",
		Data:        pdf,
	})
}

func receiptName(a *Appointment) string {
	return "comprobante-" + strings.ToUpper(a.ID.String()[:8]) + ".pdf"
}

// receiptFor prints the configured site name as the receipt issuer.
func (s *Service) receiptFor(ctx context.Context, a *Appointment) receipt.Appointment {
	r := toReceipt(a, s.now())
	if platform, err := s.settings.Platform(ctx); err == nil {
		r.Issuer = platform.SiteName
	}
	return r
}

func toReceipt(a *Appointment, issued time.Time) receipt.Appointment {
	r := receipt.Appointment{
		Number:            strings.ToUpper(a.ID.String()[:8]),
		PatientName:       a.PatientName,
		PatientCedula:     a.PatientCedula,
		DoctorName:        a.DoctorName,
		Specialty:         a.Specialty,
		Date:              a.Date,
		Time:              a.Time,
		Modality:          a.Modality,
		Sector:            a.Sector,
		Status:            string(a.Status),
		PaymentMethod:     string(a.PaymentMethod),
		ConsultationPrice: a.Price,
		MembershipFee:     a.MembershipFee,
		Total:             a.Total(),
		IssuedAt:          issued,
	}
	if a.Address != nil {
		r.Address = *a.Address
	}
	return r
}

// -- Lifecycle --

func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canRead(actor, a) {
		return nil, apperr.Forbidden(msgNotYourBooking)
	}
	return a, nil
}

func canRead(actor Actor, a *Appointment) bool {
	if actor.isAdmin() || a.PatientID == actor.UserID {
		return true
	}
	return actor.DoctorID != nil && *actor.DoctorID == a.DoctorID
}

func (s *Service) transition(ctx context.Context, a *Appointment, to Status, allowed ...Status) error {
	ok := false
	for _, from := range allowed {
		if a.Status == from {
			ok = true
			break
		}
	}
	if !ok {
		return apperr.Conflict(msgStatusTransition, a.Status, to)
	}
	if err := s.repo.UpdateStatus(ctx, a.ID, to); err != nil {
		return err
	}
	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("from", string(a.Status)).
		Str("to", string(to)).
		Msg("appointment status changed")
	a.Status = to
	a.UpdatedAt = s.now()
	return nil
}

// AttachTransferProof records the uploaded transfer receipt of a booking
// awaiting verification. Only the patient who booked may attach it.
func (s *Service) AttachTransferProof(ctx context.Context, patientID, id uuid.UUID, fileName string) (*Appointment, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, apperr.Validation(msgRequiredFields)
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.PatientID != patientID {
		return nil, apperr.Forbidden(msgNotYourBooking)
	}
	if a.Status != StatusPendingVerification {
		return nil, apperr.Conflict("Solo se puede adjuntar el comprobante a citas en verificación")
	}
	if err := s.repo.SetTransferProof(ctx, id, fileName); err != nil {
		return nil, err
	}
	a.TransferProof = &fileName
	return a, nil
}

func (s *Service) VerifyPayment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, a, StatusPaid, StatusPending, StatusPendingVerification); err != nil {
		return nil, err
	}
	s.notifyWithReceipt(ctx, notification.TemplatePaymentVerified, a)
	return a, nil
}

func (s *Service) Cancel(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.isAdmin() && a.PatientID != actor.UserID {
		return nil, apperr.Forbidden(msgNotYourBooking)
	}
	if !a.Status.Cancellable() {
		return nil, apperr.Conflict(msgStatusTransition, a.Status, StatusCancelled)
	}
	if err := s.transition(ctx, a, StatusCancelled, a.Status); err != nil {
		return nil, err
	}
	s.notify(ctx, notification.TemplateAppointmentCanceled, a)
	return a, nil
}

// Lookup returns an appointment without an access check, for services that
// enforce their own.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// Treats reports whether the doctor has any non-cancelled appointment with
// the patient.
func (s *Service) Treats(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	statuses := []Status{StatusPending, StatusPendingVerification, StatusPaid, StatusCompleted}
	_, total, err := s.repo.List(ctx, ListFilter{DoctorID: &doctorID, PatientID: &patientID, Statuses: statuses}, 1, 0)
	if err != nil {
		return false, err
	}
	return total > 0, nil
}

// Complete closes a paid appointment once its consultation is recorded.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.transition(ctx, a, StatusCompleted, StatusPaid)
}

// -- Listings --

// listBatch is the page size used when a listing needs every row.
var listBatch = 500

// listEvery pages through the repository until every matching row is read.
func (s *Service) listEvery(ctx context.Context, f ListFilter) ([]*Appointment, error) {
	var out []*Appointment
	for offset := 0; ; offset += listBatch {
		page, total, err := s.repo.List(ctx, f, listBatch, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < listBatch || len(out) >= total {
			return out, nil
		}
	}
}

// PatientAgenda returns the patient's appointments split into upcoming
// (ascending) and past (most recent first).
func (s *Service) PatientAgenda(ctx context.Context, patientID uuid.UUID) (*Agenda, error) {
	items, err := s.listEvery(ctx, ListFilter{PatientID: &patientID, Ascending: true})
	if err != nil {
		return nil, err
	}
	today := s.today()
	agenda := &Agenda{Upcoming: []*Appointment{}, Past: []*Appointment{}}
	for _, a := range items {
		if a.Upcoming(today) {
			agenda.Upcoming = append(agenda.Upcoming, a)
		} else {
			agenda.Past = append(agenda.Past, a)
		}
	}
	sortAppointments(agenda.Upcoming, true)
	sortAppointments(agenda.Past, false)
	return agenda, nil
}

// DoctorFilter values accepted by DoctorAppointments.
const (
	DoctorFilterPaid    = "paid"
	DoctorFilterPending = "pending"
	DoctorFilterAll     = "all"
)

func doctorStatuses(filter string) ([]Status, error) {
	switch filter {
	case "", DoctorFilterAll:
		return nil, nil
	case DoctorFilterPaid:
		return []Status{StatusPaid}, nil
	case DoctorFilterPending:
		return []Status{StatusPending, StatusPendingVerification}, nil
	}
	return nil, apperr.Validation("invalid filter %q", filter)
}

func (s *Service) DoctorAppointments(ctx context.Context, doctorID uuid.UUID, filter, date string) ([]*Appointment, error) {
	statuses, err := doctorStatuses(filter)
	if err != nil {
		return nil, err
	}
	items, err := s.listEvery(ctx, ListFilter{DoctorID: &doctorID, Statuses: statuses, Date: date, Ascending: true})
	if err != nil {
		return nil, err
	}
	sortAppointments(items, true)
	return items, nil
}

func (s *Service) AdminList(ctx context.Context, status, search string, limit, offset int) ([]*Appointment, int, error) {
	filter := ListFilter{Search: search}
	if status != "" && status != "all" {
		st := Status(status)
		if !st.Valid() {
			return nil, 0, apperr.Validation("invalid status %q", status)
		}
		filter.Statuses = []Status{st}
	}
	return s.repo.List(ctx, filter, limit, offset)
}

func (s *Service) DoctorPatients(ctx context.Context, doctorID uuid.UUID, search string) ([]*DoctorPatient, error) {
	return s.repo.DoctorPatients(ctx, doctorID, search, s.today())
}

// Receipt renders the appointment receipt PDF for the patient, the
// attending doctor or an admin.
func (s *Service) Receipt(ctx context.Context, actor Actor, id uuid.UUID) (string, []byte, error) {
	a, err := s.Get(ctx, actor, id)
	if err != nil {
		return "", nil, err
	}
	if a.Status == StatusCancelled {
		return "", nil, apperr.Conflict("La cita está cancelada")
	}
	pdf, err := receipt.AppointmentPDF(s.receiptFor(ctx, a))
	if err != nil {
		return "", nil, fmt.Errorf("render receipt: %w", err)
	}
	return receiptName(a), pdf, nil
}

func sortAppointments(items []*Appointment, asc bool) {
	sort.SliceStable(items, func(i, j int) bool {
		ki, kj := items[i].Date+" "+items[i].Time, items[j].Date+" "+items[j].Time
		if asc {
			return ki < kj
		}
		return ki > kj
	})
}

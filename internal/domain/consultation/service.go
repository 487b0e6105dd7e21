package consultation

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rch/portal/internal/domain/booking"
	"github.com/rch/portal/internal/platform/apperr"
	"github.com/rch/portal/internal/platform/auth"
	"github.com/rch/portal/internal/platform/db"
	"github.com/rch/portal/internal/platform/receipt"
)

const (
	msgNoDiagnosis       = "Debes agregar al menos un diagnóstico"
	msgPrescriptionItem  = "Cada medicamento necesita nombre y dosis"
	msgNotYourPatient    = "No tienes acceso a la historia clínica de este paciente"
	msgNotYourAppt       = "Solo el médico de la cita puede registrar la consulta"
	msgAlreadyRecorded   = "La consulta de esta cita ya fue registrada"
	msgAppointmentUnpaid = "La cita debe estar pagada para registrar la consulta"
	msgCodeUsed          = "Este código ya fue utilizado"

	DefaultCIE10Limit = 10
	maxCodeAttempts   = 10
)

// Appointments is the booking surface the consultation flow depends on.
type Appointments interface {
	Lookup(ctx context.Context, id uuid.UUID) (*booking.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID) error
	Treats(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
}

type Service struct {
	records      RecordRepository
	codes        CodeRepository
	cie10        CIE10Repository
	appointments Appointments
	tx           db.TxRunner
	logger       zerolog.Logger
	newCode      func(prefix string) string
}

func NewService(records RecordRepository, codes CodeRepository, cie10 CIE10Repository,
	appointments Appointments, tx db.TxRunner, logger zerolog.Logger) *Service {
	return &Service{
		records:      records,
		codes:        codes,
		cie10:        cie10,
		appointments: appointments,
		tx:           tx,
		logger:       logger.With().Str("component", "consultation").Logger(),
		newCode:      randomCode,
	}
}

// randomCode returns prefix-NNNNNN with six random digits.
func randomCode(prefix string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		n = big.NewInt(time.Now().UnixNano() % 1_000_000)
	}
	return fmt.Sprintf("%s-%06d", prefix, n.Int64())
}

// SearchCIE10 returns every code matching q. An empty q lists only the
// first DefaultCIE10Limit codes.
func (s *Service) SearchCIE10(ctx context.Context, q string) ([]CIE10Code, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return s.cie10.Search(ctx, "", DefaultCIE10Limit)
	}
	return s.cie10.Search(ctx, q, 0)
}

// uniqueCode draws codes until one is free. Issued is the set already drawn
// in this save, which the database cannot see yet.
func (s *Service) uniqueCode(ctx context.Context, prefix string, issued map[string]bool) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := s.newCode(prefix)
		if issued[code] {
			continue
		}
		exists, err := s.codes.Exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			issued[code] = true
			return code, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique %s code", prefix)
}

func cleanDiagnosis(items []DiagnosisItem) []DiagnosisItem {
	seen := make(map[string]bool, len(items))
	out := make([]DiagnosisItem, 0, len(items))
	for _, d := range items {
		code := strings.ToUpper(strings.TrimSpace(d.Code))
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, DiagnosisItem{Code: code, Description: strings.TrimSpace(d.Description)})
	}
	return out
}

func cleanPrescription(items []PrescriptionItem) ([]PrescriptionItem, error) {
	out := make([]PrescriptionItem, 0, len(items))
	for _, p := range items {
		p.Medication = strings.TrimSpace(p.Medication)
		p.Dose = strings.TrimSpace(p.Dose)
		if p.Medication == "" || p.Dose == "" {
			return nil, apperr.Validation(msgPrescriptionItem)
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		out = append(out, p)
	}
	return out, nil
}

func cleanOrders(drafts []OrderDraft) ([]OrderDraft, error) {
	var out []OrderDraft
	for _, o := range drafts {
		o.Description = strings.TrimSpace(o.Description)
		if !o.Checked || o.Description == "" {
			continue
		}
		if !o.Type.Valid() {
			return nil, apperr.Validation("invalid order type %q", o.Type)
		}
		out = append(out, o)
	}
	return out, nil
}

// Save records the consultation of a paid appointment, issues the
// prescription and order codes and completes the appointment, atomically.
func (s *Service) Save(ctx context.Context, doctorID uuid.UUID, form Form) (*SaveResult, error) {
	appt, err := s.appointments.Lookup(ctx, form.AppointmentID)
	if err != nil {
		return nil, err
	}
	if appt.DoctorID != doctorID {
		return nil, apperr.Forbidden(msgNotYourAppt)
	}
	switch appt.Status {
	case booking.StatusPaid:
	case booking.StatusCompleted:
		return nil, apperr.Conflict(msgAlreadyRecorded)
	default:
		return nil, apperr.Validation(msgAppointmentUnpaid)
	}

	diagnosis := cleanDiagnosis(form.Diagnosis)
	if len(diagnosis) == 0 {
		return nil, apperr.Validation(msgNoDiagnosis)
	}
	prescription, err := cleanPrescription(form.Prescription)
	if err != nil {
		return nil, err
	}
	orders, err := cleanOrders(form.Orders)
	if err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(form.Reason)
	if reason == "" {
		reason = appt.Reason
	}
	rec := &MedicalRecord{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		PatientName:   appt.PatientName,
		PatientCedula: appt.PatientCedula,
		DoctorID:      appt.DoctorID,
		DoctorName:    appt.DoctorName,
		Date:          appt.Date,
		Reason:        reason,
		Antecedents:   strings.TrimSpace(form.Antecedents),
		PhysicalExam:  strings.TrimSpace(form.PhysicalExam),
		Diagnosis:     diagnosis,
		Evolution:     strings.TrimSpace(form.Evolution),
		Plan:          strings.TrimSpace(form.Plan),
		Prescription:  prescription,
		Orders:        []MedicalOrder{},
	}
	result := &SaveResult{Record: rec, OrderCodes: []*OrderCode{}}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		issued := make(map[string]bool)
		for _, o := range orders {
			code, err := s.uniqueCode(ctx, o.Type.Prefix(), issued)
			if err != nil {
				return err
			}
			rec.Orders = append(rec.Orders, MedicalOrder{
				ID:          uuid.NewString(),
				Type:        o.Type,
				Description: o.Description,
				Code:        code,
			})
		}
		if err := s.records.Create(ctx, rec); err != nil {
			return err
		}

		if len(prescription) > 0 {
			code, err := s.uniqueCode(ctx, PrefixPrescription, issued)
			if err != nil {
				return err
			}
			pc := &PrescriptionCode{
				Code:          code,
				RecordID:      rec.ID,
				PatientID:     rec.PatientID,
				PatientName:   rec.PatientName,
				PatientCedula: rec.PatientCedula,
				DoctorID:      rec.DoctorID,
				DoctorName:    rec.DoctorName,
				Items:         prescription,
			}
			if err := s.codes.CreatePrescription(ctx, pc); err != nil {
				return err
			}
			result.PrescriptionCode = pc
		}

		for _, o := range rec.Orders {
			oc := &OrderCode{
				Code:          o.Code,
				RecordID:      rec.ID,
				Type:          o.Type,
				PatientID:     rec.PatientID,
				PatientName:   rec.PatientName,
				PatientCedula: rec.PatientCedula,
				DoctorID:      rec.DoctorID,
				DoctorName:    rec.DoctorName,
				Description:   o.Description,
			}
			if err := s.codes.CreateOrder(ctx, oc); err != nil {
				return err
			}
			result.OrderCodes = append(result.OrderCodes, oc)
		}

		return s.appointments.Complete(ctx, appt.ID)
	})
	if err != nil {
		return nil, err
	}

	ev := s.logger.Info().
		Str("record_id", rec.ID.String()).
		Str("appointment_id", appt.ID.String()).
		Int("orders", len(result.OrderCodes))
	if result.PrescriptionCode != nil {
		ev = ev.Str("prescription_code", result.PrescriptionCode.Code)
	}
	ev.Msg("consultation recorded")
	return result, nil
}

// -- Reads --

// canReadPatient allows the patient, admins and doctors who treat them.
func (s *Service) canReadPatient(ctx context.Context, actor booking.Actor, patientID uuid.UUID) error {
	if actor.Role == auth.RoleAdmin || actor.UserID == patientID {
		return nil
	}
	if actor.DoctorID != nil {
		ok, err := s.appointments.Treats(ctx, *actor.DoctorID, patientID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return apperr.Forbidden(msgNotYourPatient)
}

func (s *Service) PatientRecords(ctx context.Context, actor booking.Actor, patientID uuid.UUID) ([]*MedicalRecord, error) {
	if err := s.canReadPatient(ctx, actor, patientID); err != nil {
		return nil, err
	}
	return s.records.ListByPatient(ctx, patientID)
}

func (s *Service) Record(ctx context.Context, actor booking.Actor, id uuid.UUID) (*MedicalRecord, error) {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canReadPatient(ctx, actor, rec.PatientID); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) RecordForAppointment(ctx context.Context, actor booking.Actor, appointmentID uuid.UUID) (*MedicalRecord, error) {
	rec, err := s.records.GetByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if err := s.canReadPatient(ctx, actor, rec.PatientID); err != nil {
		return nil, err
	}
	return rec, nil
}

// -- Codes --

func (s *Service) Prescription(ctx context.Context, code string) (*PrescriptionCode, error) {
	return s.codes.GetPrescription(ctx, NormalizeCode(code))
}

func (s *Service) Order(ctx context.Context, code string) (*OrderCode, error) {
	return s.codes.GetOrder(ctx, NormalizeCode(code))
}

func (s *Service) RedeemPrescription(ctx context.Context, code string, allyID uuid.UUID) (*PrescriptionCode, error) {
	return s.codes.RedeemPrescription(ctx, NormalizeCode(code), allyID)
}

func (s *Service) RedeemOrder(ctx context.Context, code string, allyID uuid.UUID) (*OrderCode, error) {
	return s.codes.RedeemOrder(ctx, NormalizeCode(code), allyID)
}

// PrescriptionPDF renders a prescription for its patient, its doctor, an
// admin, or any pharmacy holding the code.
func (s *Service) PrescriptionPDF(ctx context.Context, actor booking.Actor, code string) (string, []byte, error) {
	pc, err := s.Prescription(ctx, code)
	if err != nil {
		return "", nil, err
	}
	allowed := actor.Role == auth.RoleAdmin || actor.Role == auth.RoleAlly || actor.UserID == pc.PatientID ||
		(actor.DoctorID != nil && *actor.DoctorID == pc.DoctorID)
	if !allowed {
		return "", nil, apperr.Forbidden(msgNotYourPatient)
	}

	var diagnoses []string
	if rec, err := s.records.GetByID(ctx, pc.RecordID); err == nil {
		for _, d := range rec.Diagnosis {
			diagnoses = append(diagnoses, d.Code+" "+d.Description)
		}
	}
	lines := make([]receipt.PrescriptionLine, 0, len(pc.Items))
	for _, it := range pc.Items {
		lines = append(lines, receipt.PrescriptionLine{
			Medication:   it.Medication,
			Dose:         it.Dose,
			Frequency:    it.Frequency,
			Duration:     it.Duration,
			Instructions: it.Instructions,
		})
	}
	pdf, err := receipt.PrescriptionPDF(receipt.Prescription{
		Code:          pc.Code,
		PatientName:   pc.PatientName,
		PatientCedula: pc.PatientCedula,
		DoctorName:    pc.DoctorName,
		Diagnoses:     diagnoses,
		Lines:         lines,
		IssuedAt:      pc.CreatedAt,
	})
	if err != nil {
		return "", nil, fmt.Errorf("render prescription: %w", err)
	}
	return "receta-" + pc.Code + ".pdf", pdf, nil
}

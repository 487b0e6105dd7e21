package ally

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rch/portal/internal/domain/catalog"
	"github.com/rch/portal/internal/domain/consultation"
	"github.com/rch/portal/internal/platform/apperr"
	"github.com/rch/portal/internal/platform/db"
	"github.com/rch/portal/internal/platform/notification"
)

const (
	msgRequiredFields    = "Por favor completa todos los campos requeridos"
	msgCodeNotFound      = "Código no encontrado"
	msgCodeUsed          = "Este código ya fue utilizado"
	msgCannotRedeem      = "Tu establecimiento no puede canjear este código"
	msgCannotUpload      = "Solo laboratorios y centros de imagen pueden cargar resultados"
	msgOrderTypeMismatch = "La orden no corresponde al tipo de tu establecimiento"
)

// Codes resolves and redeems prescription and order codes.
type Codes interface {
	Prescription(ctx context.Context, code string) (*consultation.PrescriptionCode, error)
	Order(ctx context.Context, code string) (*consultation.OrderCode, error)
	RedeemPrescription(ctx context.Context, code string, allyID uuid.UUID) (*consultation.PrescriptionCode, error)
	RedeemOrder(ctx context.Context, code string, allyID uuid.UUID) (*consultation.OrderCode, error)
}

// Recipients resolves where patient notifications are sent.
type Recipients interface {
	EmailOf(ctx context.Context, userID uuid.UUID) (string, error)
}

type Service struct {
	allies     AllyRepository
	results    ResultRepository
	codes      Codes
	recipients Recipients
	tx         db.TxRunner
	mail       *notification.Manager
	logger     zerolog.Logger
}

func NewService(allies AllyRepository, results ResultRepository, codes Codes, recipients Recipients,
	tx db.TxRunner, mail *notification.Manager, logger zerolog.Logger) *Service {
	return &Service{
		allies:     allies,
		results:    results,
		codes:      codes,
		recipients: recipients,
		tx:         tx,
		mail:       mail,
		logger:     logger.With().Str("component", "ally").Logger(),
	}
}

// -- Directory --

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]*Ally, int, error) {
	if filter.Type == "all" {
		filter.Type = ""
	}
	if filter.Sector == "all" {
		filter.Sector = ""
	}
	return s.allies.List(ctx, filter, limit, offset)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Ally, error) {
	return s.allies.GetByID(ctx, id)
}

type Input struct {
	Name     *string  `json:"name,omitempty"`
	Type     *Type    `json:"type,omitempty"`
	Sector   *string  `json:"sector,omitempty"`
	Address  *string  `json:"address,omitempty"`
	Phone    *string  `json:"phone,omitempty"`
	Discount *float64 `json:"discount,omitempty"`
	PhotoURL *string  `json:"photoUrl,omitempty"`
}

func apply(a *Ally, in Input) error {
	if in.Name != nil {
		a.Name = strings.TrimSpace(*in.Name)
	}
	if in.Type != nil {
		if !in.Type.Valid() {
			return apperr.Validation("invalid ally type %q", *in.Type)
		}
		a.Type = *in.Type
	}
	if in.Sector != nil {
		if !catalog.ValidSector(*in.Sector) {
			return apperr.Validation("invalid sector %q", *in.Sector)
		}
		a.Sector = *in.Sector
	}
	if in.Address != nil {
		a.Address = strings.TrimSpace(*in.Address)
	}
	if in.Phone != nil {
		a.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Discount != nil {
		if *in.Discount < 0 || *in.Discount > 100 {
			return apperr.Validation("discount must be between 0 and 100")
		}
		a.Discount = *in.Discount
	}
	if in.PhotoURL != nil {
		a.PhotoURL = in.PhotoURL
	}
	if a.Name == "" {
		return apperr.Validation(msgRequiredFields)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in Input) (*Ally, error) {
	if in.Name == nil || in.Type == nil || in.Sector == nil {
		return nil, apperr.Validation(msgRequiredFields)
	}
	a := &Ally{}
	if err := apply(a, in); err != nil {
		return nil, err
	}
	if err := s.allies.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*Ally, error) {
	a, err := s.allies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(a, in); err != nil {
		return nil, err
	}
	if err := s.allies.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) (*Ally, error) {
	a, err := s.allies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.allies.Delete(ctx, id); err != nil {
		return nil, err
	}
	return a, nil
}

// -- Codes --

// Lookup resolves a code typed at the counter. Prescriptions are checked
// before orders.
func (s *Service) Lookup(ctx context.Context, code string) (*LookupResult, error) {
	code = consultation.NormalizeCode(code)
	if code == "" {
		return nil, apperr.Validation(msgRequiredFields)
	}
	p, err := s.codes.Prescription(ctx, code)
	if err == nil {
		return &LookupResult{Kind: KindPrescription, Prescription: p}, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	o, err := s.codes.Order(ctx, code)
	if err == nil {
		return &LookupResult{Kind: KindOrder, Order: o}, nil
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound(msgCodeNotFound)
	}
	return nil, err
}

// Redeem marks a code as used by the ally. Pharmacies redeem prescriptions;
// laboratories and imaging centers redeem orders of their own type.
func (s *Service) Redeem(ctx context.Context, allyID uuid.UUID, code string) (*LookupResult, error) {
	a, err := s.allies.GetByID(ctx, allyID)
	if err != nil {
		return nil, err
	}
	found, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	switch found.Kind {
	case KindPrescription:
		if a.Type != TypePharmacy {
			return nil, apperr.Forbidden(msgCannotRedeem)
		}
		p, err := s.codes.RedeemPrescription(ctx, found.Prescription.Code, a.ID)
		if err != nil {
			return nil, usedConflict(err)
		}
		found.Prescription = p
	default:
		if !a.Type.Redeems(found.Order.Type) {
			return nil, apperr.Forbidden(msgCannotRedeem)
		}
		o, err := s.codes.RedeemOrder(ctx, found.Order.Code, a.ID)
		if err != nil {
			return nil, usedConflict(err)
		}
		found.Order = o
	}

	s.logger.Info().
		Str("ally_id", a.ID.String()).
		Str("kind", found.Kind).
		Msg("code redeemed")
	return found, nil
}

func usedConflict(err error) error {
	if errors.Is(err, apperr.ErrConflict) {
		return apperr.Conflict(msgCodeUsed)
	}
	return err
}

// -- Results --

type UploadRequest struct {
	OrderCode   string `json:"orderCode" validate:"required"`
	FileName    string `json:"fileName" validate:"required"`
	Description string `json:"description"`
}

// UploadResult attaches a result file to an order. The order is redeemed
// by the uploading ally if it was not already; an order redeemed by another
// ally is refused.
func (s *Service) UploadResult(ctx context.Context, allyID uuid.UUID, req UploadRequest) (*LabResult, error) {
	req.FileName = strings.TrimSpace(req.FileName)
	if req.FileName == "" || strings.TrimSpace(req.OrderCode) == "" {
		return nil, apperr.Validation(msgRequiredFields)
	}
	a, err := s.allies.GetByID(ctx, allyID)
	if err != nil {
		return nil, err
	}
	if !a.Type.UploadsResults() {
		return nil, apperr.Forbidden(msgCannotUpload)
	}
	order, err := s.codes.Order(ctx, req.OrderCode)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound(msgCodeNotFound)
		}
		return nil, err
	}
	if !a.Type.Redeems(order.Type) {
		return nil, apperr.Forbidden(msgOrderTypeMismatch)
	}
	if order.Used && (order.UsedByAllyID == nil || *order.UsedByAllyID != a.ID) {
		return nil, apperr.Conflict(msgCodeUsed)
	}

	res := &LabResult{
		OrderCode:   order.Code,
		PatientID:   order.PatientID,
		AllyID:      a.ID,
		AllyName:    a.Name,
		Type:        a.Type,
		FileName:    req.FileName,
		Description: strings.TrimSpace(req.Description),
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if !order.Used {
			if _, err := s.codes.RedeemOrder(ctx, order.Code, a.ID); err != nil {
				return usedConflict(err)
			}
		}
		return s.results.Create(ctx, res)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("ally_id", a.ID.String()).
		Str("result_id", res.ID.String()).
		Msg("lab result uploaded")
	s.notifyPatient(ctx, order, a)
	return res, nil
}

func (s *Service) notifyPatient(ctx context.Context, order *consultation.OrderCode, a *Ally) {
	if s.mail == nil || s.recipients == nil {
		return
	}
	email, err := s.recipients.EmailOf(ctx, order.PatientID)
	if err != nil {
		s.logger.Warn().Err(err).Str("patient_id", order.PatientID.String()).Msg("result notification skipped")
		return
	}
	s.mail.Notify(ctx, notification.TemplateLabResultReady, email, map[string]string{
		"patient": order.PatientName,
		"ally":    a.Name,
		"code":    order.Code,
	})
}

func (s *Service) PatientResults(ctx context.Context, patientID uuid.UUID, search string) ([]*LabResult, error) {
	return s.results.ListByPatient(ctx, patientID, search)
}

package settings

import (
	"context"
	"errors"
	"strings"

	"github.com/rch/portal/internal/platform/apperr"
	"github.com/rch/portal/internal/platform/notification"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Payment returns the stored payment settings, or the defaults when the row
// has not been written yet.
func (s *Service) Payment(ctx context.Context) (*PaymentSettings, error) {
	p, err := s.repo.GetPayment(ctx)
	if errors.Is(err, apperr.ErrNotFound) {
		return DefaultPayment(), nil
	}
	return p, err
}

func (s *Service) Platform(ctx context.Context) (*PlatformSettings, error) {
	p, err := s.repo.GetPlatform(ctx)
	if errors.Is(err, apperr.ErrNotFound) {
		return DefaultPlatform(), nil
	}
	return p, err
}

// Allow implements notification.Policy from the platform toggles. With
// email notifications off no automatic mail goes out; with registrations off
// the welcome mail is skipped. Settings that cannot be read allow delivery.
func (s *Service) Allow(ctx context.Context, templateID string) bool {
	p, err := s.Platform(ctx)
	if err != nil {
		return true
	}
	if !p.Notifications.Email {
		return false
	}
	if templateID == notification.TemplateWelcome {
		return p.Notifications.Registrations
	}
	return true
}

type MethodsUpdate struct {
	Transfer *bool `json:"transfer,omitempty"`
	Card     *bool `json:"card,omitempty"`
}

type BankUpdate struct {
	BankName      *string `json:"bankName,omitempty"`
	AccountNumber *string `json:"accountNumber,omitempty"`
	AccountType   *string `json:"accountType,omitempty"`
	OwnerName     *string `json:"ownerName,omitempty"`
	OwnerID       *string `json:"ownerId,omitempty"`
}

type PaymentUpdate struct {
	RetentionPercentage *float64       `json:"retentionPercentage,omitempty"`
	Methods             *MethodsUpdate `json:"paymentMethods,omitempty"`
	Bank                *BankUpdate    `json:"bankInfo,omitempty"`
}

func setStr(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// UpdatePayment merges upd into the current settings. Retention stays within
// 0..100 and at least one payment method remains enabled.
func (s *Service) UpdatePayment(ctx context.Context, upd PaymentUpdate) (*PaymentSettings, error) {
	p, err := s.Payment(ctx)
	if err != nil {
		return nil, err
	}
	if upd.RetentionPercentage != nil {
		if *upd.RetentionPercentage < 0 || *upd.RetentionPercentage > 100 {
			return nil, apperr.Validation("retentionPercentage must be between 0 and 100")
		}
		p.RetentionPercentage = *upd.RetentionPercentage
	}
	if m := upd.Methods; m != nil {
		if m.Transfer != nil {
			p.Methods.Transfer = *m.Transfer
		}
		if m.Card != nil {
			p.Methods.Card = *m.Card
		}
	}
	if !p.Methods.Transfer && !p.Methods.Card {
		return nil, apperr.Validation("at least one payment method must stay enabled")
	}
	if b := upd.Bank; b != nil {
		setStr(&p.Bank.BankName, b.BankName)
		setStr(&p.Bank.AccountNumber, b.AccountNumber)
		setStr(&p.Bank.AccountType, b.AccountType)
		setStr(&p.Bank.OwnerName, b.OwnerName)
		setStr(&p.Bank.OwnerID, b.OwnerID)
	}
	if err := s.repo.SavePayment(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

type PlatformUpdate struct {
	SiteName        *string              `json:"siteName,omitempty"`
	SiteEmail       *string              `json:"siteEmail,omitempty"`
	ConsultationFee *float64             `json:"consultationFee,omitempty"`
	MaxBookingDays  *int                 `json:"maxBookingDays,omitempty"`
	MaintenanceMode *bool                `json:"maintenanceMode,omitempty"`
	Notifications   *NotificationsUpdate `json:"notifications,omitempty"`
}

type NotificationsUpdate struct {
	Email         *bool `json:"emailNotifications,omitempty"`
	SMS           *bool `json:"smsNotifications,omitempty"`
	Reminders     *bool `json:"appointmentReminders,omitempty"`
	Registrations *bool `json:"newUserRegistrations,omitempty"`
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func (s *Service) UpdatePlatform(ctx context.Context, upd PlatformUpdate) (*PlatformSettings, error) {
	p, err := s.Platform(ctx)
	if err != nil {
		return nil, err
	}
	setStr(&p.SiteName, upd.SiteName)
	setStr(&p.SiteEmail, upd.SiteEmail)
	if upd.ConsultationFee != nil {
		if *upd.ConsultationFee < 0 {
			return nil, apperr.Validation("consultationFee cannot be negative")
		}
		p.ConsultationFee = *upd.ConsultationFee
	}
	if upd.MaxBookingDays != nil {
		if *upd.MaxBookingDays <= 0 {
			return nil, apperr.Validation("maxBookingDays must be positive")
		}
		p.MaxBookingDays = *upd.MaxBookingDays
	}
	setBool(&p.MaintenanceMode, upd.MaintenanceMode)
	if n := upd.Notifications; n != nil {
		setBool(&p.Notifications.Email, n.Email)
		setBool(&p.Notifications.SMS, n.SMS)
		setBool(&p.Notifications.Reminders, n.Reminders)
		setBool(&p.Notifications.Registrations, n.Registrations)
	}
	if err := s.repo.SavePlatform(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

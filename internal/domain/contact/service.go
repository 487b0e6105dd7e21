package contact

import (
	"context"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rch/portal/internal/platform/apperr"
	"github.com/rch/portal/internal/platform/notification"
)

const (
	msgInvalidEmail = "Ingresa un correo electrónico válido"
	msgNotDelivered = "No pudimos enviar tu mensaje, intenta nuevamente"
)

// Message is a visitor inquiry from the public contact form.
type Message struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required"`
	Phone   string `json:"phone"`
	Message string `json:"message" validate:"required"`
}

// Service forwards contact form submissions to the clinic inbox.
type Service struct {
	mail      *notification.Manager
	recipient string
	logger    zerolog.Logger
}

func NewService(mail *notification.Manager, recipient string, logger zerolog.Logger) *Service {
	return &Service{
		mail:      mail,
		recipient: recipient,
		logger:    logger.With().Str("component", "contact").Logger(),
	}
}

func (s *Service) Send(ctx context.Context, m Message) error {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Message = strings.TrimSpace(m.Message)
	if m.Name == "" || m.Email == "" || m.Message == "" {
		return apperr.Validation("Por favor completa todos los campos requeridos")
	}
	if _, err := mail.ParseAddress(m.Email); err != nil {
		return apperr.Validation(msgInvalidEmail)
	}
	if s.recipient == "" {
		s.logger.Warn().Msg("contact message dropped: CONTACT_EMAIL not configured")
		return apperr.Unavailable(msgNotDelivered)
	}

	err := s.mail.Send(ctx, notification.TemplateContactMessage, s.recipient, map[string]string{
		"name":    m.Name,
		"email":   m.Email,
		"phone":   strings.TrimSpace(m.Phone),
		"message": m.Message,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("from", m.Email).Msg("contact message not delivered")
		return apperr.Unavailable(msgNotDelivered)
	}
	s.logger.Info().Str("from", m.Email).Msg("contact message forwarded")
	return nil
}

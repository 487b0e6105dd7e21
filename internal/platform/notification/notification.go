// Package notification renders portal e-mail templates and delivers them
// through an EmailSender (SMTP in production, the log otherwise).
package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Attachment is an in-memory file attached to a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is a fully rendered e-mail.
type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// EmailSender delivers a rendered message.
type EmailSender interface {
	Send(ctx context.Context, msg Message) error
}

// Template IDs.
const (
	TemplateBookingConfirmed    = "booking-confirmed"
	TemplateTransferPending     = "transfer-pending"
	TemplatePaymentVerified     = "payment-verified"
	TemplateAppointmentCanceled = "appointment-canceled"
	TemplateLabResultReady      = "lab-result-ready"
	TemplateContactMessage      = "contact-message"
	TemplateWelcome             = "welcome"
)

// Template defines a reusable e-mail with {{key}} placeholders.
type Template struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the portal templates registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	for _, t := range builtIn {
		e.RegisterTemplate(t)
	}
	return e
}

var builtIn = []Template{
	{
		ID:      TemplateBookingConfirmed,
		Subject: "Cita confirmada con {{doctor}}",
		Body: "Hola {{patient}},\n\nTu cita con {{doctor}} ({{specialty}}) quedó confirmada para el {{date}} a las {{time}}.\n" +
			"Modalidad: {{modality}}. Sector: {{sector}}.\n{{address_line}}\nTotal pagado: ${{total}}.\n\n" +
			"Adjuntamos tu comprobante.",
	},
	{
		ID:      TemplateTransferPending,
		Subject: "Cita reservada: pago por transferencia en verificación",
		Body: "Hola {{patient}},\n\nReservamos tu cita con {{doctor}} para el {{date}} a las {{time}}.\n" +
			"Tu transferencia de ${{total}} está en verificación. Te avisaremos cuando sea aprobada.",
	},
	{
		ID:      TemplatePaymentVerified,
		Subject: "Pago verificado",
		Body:    "Hola {{patient}},\n\nVerificamos tu pago. Tu cita con {{doctor}} el {{date}} a las {{time}} está confirmada.\n{{address_line}}",
	},
	{
		ID:      TemplateAppointmentCanceled,
		Subject: "Cita cancelada",
		Body:    "Hola {{patient}},\n\nTu cita con {{doctor}} del {{date}} a las {{time}} fue cancelada.",
	},
	{
		ID:      TemplateLabResultReady,
		Subject: "Tus resultados están disponibles",
		Body:    "Hola {{patient}},\n\n{{ally}} cargó el resultado de tu orden {{code}}. Ingresa al portal para consultarlo.",
	},
	{
		ID:      TemplateContactMessage,
		Subject: "Mensaje de contacto de {{name}}",
		Body:    "Nombre: {{name}}\nEmail: {{email}}\nTeléfono: {{phone}}\n\n{{message}}",
	},
	{
		ID:      TemplateWelcome,
		Subject: "Bienvenido a RCH",
		Body:    "Hola {{name}},\n\nTu cuenta fue creada. Ya puedes reservar citas desde el portal.",
	},
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// IDs lists the registered template ids in order.
func (e *TemplateEngine) IDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.templates))
	for id := range e.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Render performs {{key}} replacement. Placeholders without data are
// removed so that optional lines render empty.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return stripPlaceholders(subject), stripPlaceholders(body), nil
}

func stripPlaceholders(s string) string {
	for {
		start := strings.Index(s, "{{")
		if start < 0 {
			return s
		}
		end := strings.Index(s[start:], "}}")
		if end < 0 {
			return s
		}
		s = s[:start] + s[start+end+2:]
	}
}

// Policy decides whether an automatic notification may go out. It is
// consulted by Notify only; Send always delivers.
type Policy interface {
	Allow(ctx context.Context, templateID string) bool
}

// Manager renders templates and hands the result to the sender.
type Manager struct {
	sender    EmailSender
	templates *TemplateEngine
	policy    Policy
	logger    zerolog.Logger
}

func NewManager(sender EmailSender, templates *TemplateEngine, logger zerolog.Logger) *Manager {
	return &Manager{sender: sender, templates: templates, logger: logger}
}

// SetPolicy installs the gate applied by Notify. A nil policy allows all.
func (m *Manager) SetPolicy(p Policy) {
	m.policy = p
}

// Send renders templateID and delivers it to recipient.
func (m *Manager) Send(ctx context.Context, templateID, recipient string, data map[string]string, attachments ...Attachment) error {
	if strings.TrimSpace(recipient) == "" {
		return errors.New("notification: recipient is required")
	}
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}
	msg := Message{To: recipient, Subject: subject, Body: body, Attachments: attachments}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s to %s: %w", templateID, recipient, err)
	}
	return nil
}

// Notify is Send for side-channel mail that must not fail the caller: errors
// are logged and dropped, and mail the policy refuses is skipped.
func (m *Manager) Notify(ctx context.Context, templateID, recipient string, data map[string]string, attachments ...Attachment) {
	if m.policy != nil && !m.policy.Allow(ctx, templateID) {
		m.logger.Debug().Str("template", templateID).Msg("notification disabled by settings")
		return
	}
	if err := m.Send(ctx, templateID, recipient, data, attachments...); err != nil {
		m.logger.Warn().Err(err).Str("template", templateID).Msg("notification not delivered")
	}
}

// MockEmailSender records messages. Used by tests across the module.
type MockEmailSender struct {
	mu         sync.Mutex
	messages   []Message
	ShouldFail bool
}

func (m *MockEmailSender) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("smtp unavailable")
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (m *MockEmailSender) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

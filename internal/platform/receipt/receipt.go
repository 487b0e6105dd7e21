// Package receipt renders appointment receipts and prescription sheets as PDF.
package receipt

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const title = "RCH - Red de Consultas y Salud"

// Appointment is the data printed on a booking receipt. An empty Issuer
// prints the default title.
type Appointment struct {
	Issuer            string
	Number            string
	PatientName       string
	PatientCedula     string
	DoctorName        string
	Specialty         string
	Date              string
	Time              string
	Modality          string
	Sector            string
	Address           string
	Status            string
	PaymentMethod     string
	ConsultationPrice float64
	MembershipFee     float64
	Total             float64
	IssuedAt          time.Time
}

// PrescriptionLine is one medication on a prescription sheet.
type PrescriptionLine struct {
	Medication   string
	Dose         string
	Frequency    string
	Duration     string
	Instructions string
}

// Prescription is the data printed on a prescription sheet.
type Prescription struct {
	Code          string
	PatientName   string
	PatientCedula string
	DoctorName    string
	Diagnoses     []string
	Lines         []PrescriptionLine
	IssuedAt      time.Time
}

type writer struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func newWriter() *writer {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()
	return &writer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func heading(issuer string) string {
	if issuer = strings.TrimSpace(issuer); issuer != "" {
		return issuer
	}
	return title
}

func (w *writer) header(issuer, subtitle string) {
	w.pdf.SetFont("Arial", "B", 14)
	w.pdf.SetTextColor(0, 82, 147)
	w.pdf.CellFormat(0, 10, w.tr(heading(issuer)), "", 1, "C", false, 0, "")
	w.pdf.SetFont("Arial", "B", 12)
	w.pdf.SetTextColor(0, 0, 0)
	w.pdf.CellFormat(0, 10, w.tr(subtitle), "1", 1, "C", false, 0, "")
}

func (w *writer) detail(label, value string, bold bool) {
	if bold {
		w.pdf.SetFont("Arial", "B", 11)
	} else {
		w.pdf.SetFont("Arial", "", 10)
	}
	w.pdf.CellFormat(50, 9, w.tr(label), "1", 0, "", false, 0, "")
	w.pdf.CellFormat(0, 9, w.tr(value), "1", 1, "", false, 0, "")
}

func (w *writer) footer(note string, issued time.Time) {
	w.pdf.SetFont("Arial", "", 9)
	w.pdf.SetY(w.pdf.GetY() + 8)
	w.pdf.MultiCell(0, 5, w.tr(note), "", "L", false)
	w.pdf.CellFormat(0, 8, w.tr("Emitido: "+issued.Format("2006-01-02 15:04")), "", 1, "R", false, 0, "")
}

func (w *writer) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// AppointmentPDF renders a booking receipt.
func AppointmentPDF(a Appointment) ([]byte, error) {
	w := newWriter()
	w.header(a.Issuer, "Comprobante de cita")

	w.detail("Comprobante", a.Number, true)
	w.detail("Paciente", a.PatientName, true)
	w.detail("Cédula", a.PatientCedula, false)
	w.detail("Médico", a.DoctorName, true)
	w.detail("Especialidad", a.Specialty, false)
	w.detail("Fecha", a.Date, false)
	w.detail("Hora", a.Time, false)
	w.detail("Modalidad", a.Modality, false)
	w.detail("Sector", a.Sector, false)
	if a.Address != "" {
		w.detail("Dirección", a.Address, false)
	}
	w.detail("Estado", a.Status, false)
	w.detail("Método de pago", a.PaymentMethod, false)

	w.pdf.CellFormat(0, 10, w.tr("Detalle del pago"), "1", 1, "C", false, 0, "")
	w.detail("Consulta", money(a.ConsultationPrice), false)
	if a.MembershipFee > 0 {
		w.detail("Membresía (30 días)", money(a.MembershipFee), false)
	}
	w.detail("Total", money(a.Total), true)

	w.footer("Presenta este comprobante el día de tu cita. Documento generado electrónicamente.", a.IssuedAt)
	return w.bytes()
}

// PrescriptionPDF renders a prescription sheet with its redemption code.
func PrescriptionPDF(p Prescription) ([]byte, error) {
	if len(p.Lines) == 0 {
		return nil, fmt.Errorf("prescription %s has no items", p.Code)
	}
	w := newWriter()
	w.header("", "Receta médica")

	w.detail("Código", p.Code, true)
	w.detail("Paciente", p.PatientName, true)
	w.detail("Cédula", p.PatientCedula, false)
	w.detail("Médico", p.DoctorName, true)
	if len(p.Diagnoses) > 0 {
		w.detail("Diagnóstico", strings.Join(p.Diagnoses, "; "), false)
	}

	for i, line := range p.Lines {
		w.pdf.SetFont("Arial", "B", 11)
		w.pdf.CellFormat(0, 9, w.tr(fmt.Sprintf("%d. %s", i+1, line.Medication)), "1", 1, "", false, 0, "")
		w.pdf.SetFont("Arial", "", 10)
		text := fmt.Sprintf("Dosis: %s  Frecuencia: %s  Duración: %s", line.Dose, line.Frequency, line.Duration)
		if line.Instructions != "" {
			text += "\nIndicaciones: " + line.Instructions
		}
		w.pdf.MultiCell(0, 6, w.tr(text), "1", "L", false)
	}

	w.footer("Presenta el código en una farmacia aliada para validar la receta. Cada código puede usarse una sola vez.", p.IssuedAt)
	return w.bytes()
}

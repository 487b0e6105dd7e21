package reporting

import "time"

// Parameter is a named measure input bound positionally into the SQL.
type Parameter struct {
	Name    string `json:"name"`
	Default string `json:"default"`
}

// MeasureDefinition is a named aggregation evaluated on demand.
type MeasureDefinition struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	SQL         string      `json:"-"`
	Parameters  []Parameter `json:"parameters"`
}

type MeasureReport struct {
	MeasureID   string                   `json:"measureId"`
	MeasureName string                   `json:"measureName"`
	GeneratedAt time.Time                `json:"generatedAt"`
	Results     []map[string]interface{} `json:"results"`
	Parameters  map[string]string        `json:"parameters,omitempty"`
}

var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "appointments-by-status",
		Name:        "Citas por estado",
		Description: "Número de citas agrupadas por estado",
		SQL:         `SELECT status, COUNT(*) AS total FROM appointments GROUP BY status ORDER BY total DESC`,
	},
	{
		ID:          "revenue-by-month",
		Name:        "Ingresos por mes",
		Description: "Ingresos de citas pagadas o completadas en los últimos N meses",
		SQL: `SELECT to_char(date_trunc('month', date), 'YYYY-MM') AS month,
			COUNT(*) AS appointments, SUM(price + membership_fee)::float8 AS revenue
			FROM appointments
			WHERE status IN ('paid','completed')
			  AND date >= date_trunc('month', CURRENT_DATE) - make_interval(months => $1::int - 1)
			GROUP BY 1 ORDER BY 1`,
		Parameters: []Parameter{{Name: "months", Default: "6"}},
	},
	{
		ID:          "doctor-payouts",
		Name:        "Liquidación a médicos",
		Description: "Consultas cobradas por médico en los últimos N meses, separadas en retención de la plataforma y pago al médico",
		SQL: `SELECT a.doctor_name,
			COUNT(*) AS appointments,
			SUM(a.price)::float8 AS consultations,
			(SUM(a.price) * ps.retention_percentage / 100)::float8 AS platform_share,
			(SUM(a.price) * (100 - ps.retention_percentage) / 100)::float8 AS doctor_payout
			FROM appointments a
			JOIN payment_settings ps ON ps.id = 1
			WHERE a.status IN ('paid','completed')
			  AND a.date >= date_trunc('month', CURRENT_DATE) - make_interval(months => $1::int - 1)
			GROUP BY a.doctor_id, a.doctor_name, ps.retention_percentage
			ORDER BY consultations DESC`,
		Parameters: []Parameter{{Name: "months", Default: "1"}},
	},
	{
		ID:          "appointments-by-modality",
		Name:        "Citas por modalidad",
		Description: "Distribución de citas no canceladas por modalidad",
		SQL: `SELECT modality, COUNT(*) AS total FROM appointments
			WHERE status <> 'cancelled' GROUP BY modality ORDER BY total DESC`,
	},
	{
		ID:          "code-redemption",
		Name:        "Canje de códigos",
		Description: "Códigos emitidos y canjeados por tipo",
		SQL: `SELECT 'prescription' AS kind, COUNT(*) AS issued, COUNT(*) FILTER (WHERE used) AS used FROM prescription_codes
			UNION ALL
			SELECT type, COUNT(*), COUNT(*) FILTER (WHERE used) FROM order_codes GROUP BY type
			ORDER BY kind`,
	},
	{
		ID:          "pending-verification",
		Name:        "Pagos por verificar",
		Description: "Transferencias pendientes de verificación por antigüedad",
		SQL: `SELECT id, patient_name, doctor_name, to_char(date, 'YYYY-MM-DD') AS date, time,
			(price + membership_fee)::float8 AS total, transfer_proof IS NOT NULL AS has_proof, created_at
			FROM appointments WHERE status = 'pending_verification' ORDER BY created_at`,
	},
}

func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}

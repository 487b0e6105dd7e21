package consultation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rch/portal/internal/platform/apperr"
	"github.com/rch/portal/internal/platform/db"
)

// -- Medical records --

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepo(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const recordCols = `id, appointment_id, patient_id, patient_name, patient_cedula, doctor_id, doctor_name,
	to_char(date, 'YYYY-MM-DD'), reason, antecedents, physical_exam, diagnosis, evolution, plan,
	prescription, orders, created_at`

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var m MedicalRecord
	err := row.Scan(&m.ID, &m.AppointmentID, &m.PatientID, &m.PatientName, &m.PatientCedula, &m.DoctorID,
		&m.DoctorName, &m.Date, &m.Reason, &m.Antecedents, &m.PhysicalExam, &m.Diagnosis, &m.Evolution,
		&m.Plan, &m.Prescription, &m.Orders, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *recordRepoPG) Create(ctx context.Context, m *MedicalRecord) error {
	m.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_records (id, appointment_id, patient_id, patient_name, patient_cedula,
			doctor_id, doctor_name, date, reason, antecedents, physical_exam, diagnosis, evolution,
			plan, prescription, orders)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::date, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at`,
		m.ID, m.AppointmentID, m.PatientID, m.PatientName, m.PatientCedula, m.DoctorID, m.DoctorName,
		m.Date, m.Reason, m.Antecedents, m.PhysicalExam, m.Diagnosis, m.Evolution, m.Plan,
		m.Prescription, m.Orders,
	).Scan(&m.CreatedAt)
	return apperr.FromPG("create medical record", err)
}

func (r *recordRepoPG) get(ctx context.Context, where string, arg interface{}) (*MedicalRecord, error) {
	m, err := scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM medical_records WHERE `+where, arg))
	if err != nil {
		return nil, apperr.FromPG("get medical record", err)
	}
	if err := r.attachOrderState(ctx, []*MedicalRecord{m}); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *recordRepoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*MedicalRecord, error) {
	return r.get(ctx, "appointment_id = $1", appointmentID)
}

func (r *recordRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*MedicalRecord, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM medical_records WHERE patient_id = $1 ORDER BY date DESC, created_at DESC`, patientID)
	if err != nil {
		return nil, apperr.FromPG("list medical records", err)
	}
	defer rows.Close()
	var items []*MedicalRecord
	for rows.Next() {
		m, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, r.attachOrderState(ctx, items)
}

// attachOrderState refreshes the used flags of embedded orders from
// order_codes, which is where redemptions are recorded.
func (r *recordRepoPG) attachOrderState(ctx context.Context, records []*MedicalRecord) error {
	ids := make([]uuid.UUID, 0, len(records))
	for _, m := range records {
		if len(m.Orders) > 0 {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT code, used, used_at FROM order_codes WHERE record_id = ANY($1)`, ids)
	if err != nil {
		return apperr.FromPG("order state", err)
	}
	defer rows.Close()

	type state struct {
		used bool
		at   *time.Time
	}
	byCode := make(map[string]state)
	for rows.Next() {
		var code string
		var st state
		if err := rows.Scan(&code, &st.used, &st.at); err != nil {
			return err
		}
		byCode[code] = st
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, m := range records {
		for i := range m.Orders {
			if st, ok := byCode[m.Orders[i].Code]; ok {
				m.Orders[i].Used = st.used
				m.Orders[i].UsedAt = st.at
			}
		}
	}
	return nil
}

// -- Redeemable codes --

type codeRepoPG struct{ pool *pgxpool.Pool }

func NewCodeRepo(pool *pgxpool.Pool) CodeRepository {
	return &codeRepoPG{pool: pool}
}

func (r *codeRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *codeRepoPG) Exists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM prescription_codes WHERE code = $1)
		    OR EXISTS (SELECT 1 FROM order_codes WHERE code = $1)`, code).Scan(&exists)
	return exists, apperr.FromPG("code exists", err)
}

func (r *codeRepoPG) CreatePrescription(ctx context.Context, p *PrescriptionCode) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescription_codes (code, record_id, patient_id, patient_name, patient_cedula,
			doctor_id, doctor_name, items)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		p.Code, p.RecordID, p.PatientID, p.PatientName, p.PatientCedula, p.DoctorID, p.DoctorName, p.Items,
	).Scan(&p.CreatedAt)
	return apperr.FromPG("create prescription code", err)
}

func (r *codeRepoPG) CreateOrder(ctx context.Context, o *OrderCode) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO order_codes (code, record_id, type, patient_id, patient_name, patient_cedula,
			doctor_id, doctor_name, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		o.Code, o.RecordID, o.Type, o.PatientID, o.PatientName, o.PatientCedula, o.DoctorID, o.DoctorName, o.Description,
	).Scan(&o.CreatedAt)
	return apperr.FromPG("create order code", err)
}

const prescriptionCols = `code, record_id, patient_id, patient_name, patient_cedula, doctor_id, doctor_name,
	items, created_at, used, used_at, used_by_ally_id`

func scanPrescription(row pgx.Row) (*PrescriptionCode, error) {
	var p PrescriptionCode
	err := row.Scan(&p.Code, &p.RecordID, &p.PatientID, &p.PatientName, &p.PatientCedula, &p.DoctorID,
		&p.DoctorName, &p.Items, &p.CreatedAt, &p.Used, &p.UsedAt, &p.UsedByAllyID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const orderCols = `code, record_id, type, patient_id, patient_name, patient_cedula, doctor_id, doctor_name,
	description, created_at, used, used_at, used_by_ally_id`

func scanOrder(row pgx.Row) (*OrderCode, error) {
	var o OrderCode
	err := row.Scan(&o.Code, &o.RecordID, &o.Type, &o.PatientID, &o.PatientName, &o.PatientCedula, &o.DoctorID,
		&o.DoctorName, &o.Description, &o.CreatedAt, &o.Used, &o.UsedAt, &o.UsedByAllyID)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *codeRepoPG) GetPrescription(ctx context.Context, code string) (*PrescriptionCode, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM prescription_codes WHERE code = $1`, code))
	return p, apperr.FromPG("get prescription code", err)
}

func (r *codeRepoPG) GetOrder(ctx context.Context, code string) (*OrderCode, error) {
	o, err := scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM order_codes WHERE code = $1`, code))
	return o, apperr.FromPG("get order code", err)
}

// The conditional UPDATE makes redemption single-use under concurrency: a
// second caller matches no row and is told the code was already used.

func (r *codeRepoPG) RedeemPrescription(ctx context.Context, code string, allyID uuid.UUID) (*PrescriptionCode, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx, `
		UPDATE prescription_codes SET used = TRUE, used_at = NOW(), used_by_ally_id = $2
		WHERE code = $1 AND NOT used
		RETURNING `+prescriptionCols, code, allyID))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetPrescription(ctx, code); getErr != nil {
			return nil, getErr
		}
		return nil, apperr.Conflict(msgCodeUsed)
	}
	return p, apperr.FromPG("redeem prescription code", err)
}

func (r *codeRepoPG) RedeemOrder(ctx context.Context, code string, allyID uuid.UUID) (*OrderCode, error) {
	o, err := scanOrder(r.conn(ctx).QueryRow(ctx, `
		UPDATE order_codes SET used = TRUE, used_at = NOW(), used_by_ally_id = $2
		WHERE code = $1 AND NOT used
		RETURNING `+orderCols, code, allyID))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetOrder(ctx, code); getErr != nil {
			return nil, getErr
		}
		return nil, apperr.Conflict(msgCodeUsed)
	}
	return o, apperr.FromPG("redeem order code", err)
}

// -- CIE-10 --

type cie10RepoPG struct{ pool *pgxpool.Pool }

func NewCIE10Repo(pool *pgxpool.Pool) CIE10Repository {
	return &cie10RepoPG{pool: pool}
}

func (r *cie10RepoPG) Search(ctx context.Context, q string, limit int) ([]CIE10Code, error) {
	query := `SELECT code, description FROM cie10_codes`
	var args []interface{}
	if q != "" {
		args = append(args, db.Contains(q))
		query += ` WHERE code ILIKE $1 OR description ILIKE $1`
	}
	query += ` ORDER BY code`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.FromPG("search cie10", err)
	}
	defer rows.Close()
	var out []CIE10Code
	for rows.Next() {
		var c CIE10Code
		if err := rows.Scan(&c.Code, &c.Description); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rch/portal/internal/platform/apperr"
	"github.com/rch/portal/internal/platform/db"
)

const msgSlotTaken = "El horario seleccionado ya no está disponible"

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepo(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const apptCols = `id, patient_id, patient_name, patient_cedula, patient_email, patient_phone,
	doctor_id, doctor_name, specialty, to_char(date, 'YYYY-MM-DD'), time, sector, modality, reason,
	status, price, is_member, membership_fee, payment_method, transfer_proof, address,
	created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.PatientName, &a.PatientCedula, &a.PatientEmail, &a.PatientPhone,
		&a.DoctorID, &a.DoctorName, &a.Specialty, &a.Date, &a.Time, &a.Sector, &a.Modality, &a.Reason,
		&a.Status, &a.Price, &a.IsMember, &a.MembershipFee, &a.PaymentMethod, &a.TransferProof, &a.Address,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, patient_name, patient_cedula, patient_email, patient_phone,
			doctor_id, doctor_name, specialty, date, time, sector, modality, reason,
			status, price, is_member, membership_fee, payment_method, transfer_proof, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::date, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.PatientName, a.PatientCedula, a.PatientEmail, a.PatientPhone,
		a.DoctorID, a.DoctorName, a.Specialty, a.Date, a.Time, a.Sector, a.Modality, a.Reason,
		a.Status, a.Price, a.IsMember, a.MembershipFee, a.PaymentMethod, a.TransferProof, a.Address,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	err = apperr.FromPG("create appointment", err)
	if errors.Is(err, apperr.ErrConflict) {
		return apperr.Conflict(msgSlotTaken)
	}
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
	return a, apperr.FromPG("get appointment", err)
}

func (r *appointmentRepoPG) exec(ctx context.Context, op, query string, args ...interface{}) error {
	tag, err := r.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return apperr.FromPG(op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment not found")
	}
	return nil
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	return r.exec(ctx, "update appointment status",
		`UPDATE appointments SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
}

func (r *appointmentRepoPG) SetTransferProof(ctx context.Context, id uuid.UUID, proof string) error {
	return r.exec(ctx, "set transfer proof",
		`UPDATE appointments SET transfer_proof = $2, updated_at = NOW() WHERE id = $1`, id, proof)
}

func (r *appointmentRepoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Appointment, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	idx := 1

	if filter.PatientID != nil {
		where += fmt.Sprintf(" AND patient_id = $%d", idx)
		args = append(args, *filter.PatientID)
		idx++
	}
	if filter.DoctorID != nil {
		where += fmt.Sprintf(" AND doctor_id = $%d", idx)
		args = append(args, *filter.DoctorID)
		idx++
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		where += fmt.Sprintf(" AND status = ANY($%d)", idx)
		args = append(args, statuses)
		idx++
	}
	if filter.Date != "" {
		where += fmt.Sprintf(" AND date = $%d::date", idx)
		args = append(args, filter.Date)
		idx++
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		where += fmt.Sprintf(" AND (patient_name ILIKE $%d OR doctor_name ILIKE $%d)", idx, idx)
		args = append(args, db.Contains(s))
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM appointments"+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.FromPG("count appointments", err)
	}

	order := " ORDER BY date DESC, time DESC"
	if filter.Ascending {
		order = " ORDER BY date, time"
	}
	query := "SELECT " + apptCols + " FROM appointments" + where + order + fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.FromPG("list appointments", err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *appointmentRepoPG) BookedTimes(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT time FROM appointments
		WHERE doctor_id = $1 AND date = $2::date AND status <> 'cancelled'`, doctorID, date)
	if err != nil {
		return nil, apperr.FromPG("booked times", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *appointmentRepoPG) DoctorPatients(ctx context.Context, doctorID uuid.UUID, search, today string) ([]*DoctorPatient, error) {
	query := `
		SELECT a.patient_id, MAX(a.patient_name), MAX(a.patient_email), MAX(a.patient_phone), MAX(a.patient_cedula),
			COUNT(*) FILTER (WHERE a.status = 'completed'),
			to_char(MAX(a.date) FILTER (WHERE a.status = 'completed'), 'YYYY-MM-DD'),
			to_char(MIN(a.date) FILTER (WHERE a.date >= $2::date AND a.status IN ('paid','pending','pending_verification')), 'YYYY-MM-DD')
		FROM appointments a
		WHERE a.doctor_id = $1 AND a.status <> 'cancelled'`
	args := []interface{}{doctorID, today}
	if s := strings.TrimSpace(search); s != "" {
		query += ` AND (a.patient_name ILIKE $3 OR a.patient_email ILIKE $3)`
		args = append(args, db.Contains(s))
	}
	query += ` GROUP BY a.patient_id ORDER BY MAX(a.patient_name)`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.FromPG("doctor patients", err)
	}
	defer rows.Close()
	var out []*DoctorPatient
	for rows.Next() {
		var p DoctorPatient
		if err := rows.Scan(&p.PatientID, &p.Name, &p.Email, &p.Phone, &p.Cedula, &p.Visits, &p.LastVisit, &p.NextAppointment); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

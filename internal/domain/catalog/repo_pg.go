package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rch/portal/internal/platform/apperr"
	"github.com/rch/portal/internal/platform/db"
)

// -- Specialty --

type specialtyRepoPG struct{ pool *pgxpool.Pool }

func NewSpecialtyRepo(pool *pgxpool.Pool) SpecialtyRepository {
	return &specialtyRepoPG{pool: pool}
}

func (r *specialtyRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const specCols = `s.id, s.name, s.description, s.image_url,
	(SELECT COUNT(*) FROM doctors d WHERE d.specialty_id = s.id), s.created_at, s.updated_at`

func scanSpecialty(row pgx.Row) (*Specialty, error) {
	var s Specialty
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.ImageURL, &s.DoctorCount, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *specialtyRepoPG) Create(ctx context.Context, s *Specialty) error {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO specialties (id, name, description, image_url)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		s.ID, s.Name, s.Description, s.ImageURL,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	return apperr.FromPG("create specialty", err)
}

func (r *specialtyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Specialty, error) {
	s, err := scanSpecialty(r.conn(ctx).QueryRow(ctx, `SELECT `+specCols+` FROM specialties s WHERE s.id = $1`, id))
	return s, apperr.FromPG("get specialty", err)
}

func (r *specialtyRepoPG) Update(ctx context.Context, s *Specialty) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE specialties SET name = $2, description = $3, image_url = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		s.ID, s.Name, s.Description, s.ImageURL,
	).Scan(&s.UpdatedAt)
	return apperr.FromPG("update specialty", err)
}

func (r *specialtyRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM specialties WHERE id = $1`, id)
	if err != nil {
		return apperr.FromPG("delete specialty", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("specialty not found")
	}
	return nil
}

func (r *specialtyRepoPG) collect(ctx context.Context, query string, args ...interface{}) ([]*Specialty, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.FromPG("list specialties", err)
	}
	defer rows.Close()
	var items []*Specialty
	for rows.Next() {
		s, err := scanSpecialty(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *specialtyRepoPG) List(ctx context.Context) ([]*Specialty, error) {
	return r.collect(ctx, `SELECT `+specCols+` FROM specialties s ORDER BY s.name`)
}

func (r *specialtyRepoPG) Search(ctx context.Context, q string, limit int) ([]*Specialty, error) {
	return r.collect(ctx, `SELECT `+specCols+` FROM specialties s WHERE s.name ILIKE $1 ORDER BY s.name LIMIT $2`,
		db.Contains(q), limit)
}

// -- Doctor --

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepo(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const doctorCols = `d.id, d.name, d.email, d.phone, d.experience_years, d.rating, d.status,
	d.specialty_id, s.name, s.description, d.user_id, d.photo_url, d.price_normal, d.price_member,
	d.sectors, d.modalities, d.addresses, d.schedule, d.created_at, d.updated_at`

const doctorFrom = ` FROM doctors d JOIN specialties s ON s.id = d.specialty_id`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Email, &d.Phone, &d.ExperienceYears, &d.Rating, &d.Status,
		&d.SpecialtyID, &d.Specialty.Name, &d.Specialty.Description, &d.UserID, &d.PhotoURL,
		&d.PriceNormal, &d.PriceMember, &d.Sectors, &d.Modalities, &d.Addresses, &d.Schedule,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Specialty.ID = d.SpecialtyID
	return &d, nil
}

func nonNil(d *Doctor) {
	if d.Sectors == nil {
		d.Sectors = []string{}
	}
	if d.Modalities == nil {
		d.Modalities = []string{}
	}
	if d.Addresses == nil {
		d.Addresses = map[string]string{}
	}
	if d.Schedule == nil {
		d.Schedule = []ScheduleEntry{}
	}
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	nonNil(d)
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (id, name, email, phone, experience_years, rating, status, specialty_id,
			user_id, photo_url, price_normal, price_member, sectors, modalities, addresses, schedule)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Email, d.Phone, d.ExperienceYears, d.Rating, d.Status, d.SpecialtyID,
		d.UserID, d.PhotoURL, d.PriceNormal, d.PriceMember, d.Sectors, d.Modalities, d.Addresses, d.Schedule,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return apperr.FromPG("create doctor", err)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+doctorFrom+` WHERE d.id = $1`, id))
	return d, apperr.FromPG("get doctor", err)
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	nonNil(d)
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctors SET name=$2, email=$3, phone=$4, experience_years=$5, rating=$6, status=$7,
			specialty_id=$8, user_id=$9, photo_url=$10, price_normal=$11, price_member=$12,
			sectors=$13, modalities=$14, addresses=$15, schedule=$16, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, d.Name, d.Email, d.Phone, d.ExperienceYears, d.Rating, d.Status, d.SpecialtyID,
		d.UserID, d.PhotoURL, d.PriceNormal, d.PriceMember, d.Sectors, d.Modalities, d.Addresses, d.Schedule,
	).Scan(&d.UpdatedAt)
	return apperr.FromPG("update doctor", err)
}

func (r *doctorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return apperr.FromPG("delete doctor", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("doctor not found")
	}
	return nil
}

func (r *doctorRepoPG) List(ctx context.Context, filter DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if filter.ActiveOnly {
		where += fmt.Sprintf(` AND d.status = $%d`, idx)
		args = append(args, DoctorActive)
		idx++
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		where += fmt.Sprintf(` AND (d.name ILIKE $%d OR s.name ILIKE $%d)`, idx, idx)
		args = append(args, db.Contains(q))
		idx++
	}
	if sp := strings.TrimSpace(filter.Specialty); sp != "" {
		where += fmt.Sprintf(` AND lower(s.name) = lower($%d)`, idx)
		args = append(args, sp)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+doctorFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.FromPG("count doctors", err)
	}

	query := `SELECT ` + doctorCols + doctorFrom + where +
		fmt.Sprintf(` ORDER BY d.name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	items, err := r.collect(ctx, query, args...)
	return items, total, err
}

func (r *doctorRepoPG) collect(ctx context.Context, query string, args ...interface{}) ([]*Doctor, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.FromPG("list doctors", err)
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *doctorRepoPG) CountBySpecialty(ctx context.Context, specialtyID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctors WHERE specialty_id = $1`, specialtyID).Scan(&n)
	return n, apperr.FromPG("count doctors", err)
}

func (r *doctorRepoPG) SetSchedule(ctx context.Context, id uuid.UUID, schedule []ScheduleEntry) error {
	if schedule == nil {
		schedule = []ScheduleEntry{}
	}
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE doctors SET schedule = $2, updated_at = NOW() WHERE id = $1`, id, schedule)
	if err != nil {
		return apperr.FromPG("set schedule", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("doctor not found")
	}
	return nil
}

func (r *doctorRepoPG) Search(ctx context.Context, q string, limit int) ([]*Doctor, error) {
	return r.collect(ctx, `SELECT `+doctorCols+doctorFrom+
		` WHERE d.name ILIKE $1 OR d.email ILIKE $1 ORDER BY d.name LIMIT $2`, db.Contains(q), limit)
}

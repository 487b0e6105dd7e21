package ally

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

type allyRepoPG struct{ pool *pgxpool.Pool }

func NewAllyRepo(pool *pgxpool.Pool) AllyRepository {
	return &allyRepoPG{pool: pool}
}

func (r *allyRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const allyCols = `id, name, type, sector, address, phone, discount, photo_url, created_at, updated_at`

func scanAlly(row pgx.Row) (*Ally, error) {
	var a Ally
	err := row.Scan(&a.ID, &a.Name, &a.Type, &a.Sector, &a.Address, &a.Phone, &a.Discount, &a.PhotoURL,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *allyRepoPG) Create(ctx context.Context, a *Ally) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO allies (id, name, type, sector, address, phone, discount, photo_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		a.ID, a.Name, a.Type, a.Sector, a.Address, a.Phone, a.Discount, a.PhotoURL,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return apperr.FromPG("create ally", err)
}

func (r *allyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Ally, error) {
	a, err := scanAlly(r.conn(ctx).QueryRow(ctx, `SELECT `+allyCols+` FROM allies WHERE id = $1`, id))
	return a, apperr.FromPG("get ally", err)
}

func (r *allyRepoPG) Update(ctx context.Context, a *Ally) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE allies SET name = $2, type = $3, sector = $4, address = $5, phone = $6, discount = $7,
			photo_url = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Name, a.Type, a.Sector, a.Address, a.Phone, a.Discount, a.PhotoURL,
	).Scan(&a.UpdatedAt)
	return apperr.FromPG("update ally", err)
}

func (r *allyRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM allies WHERE id = $1`, id)
	if err != nil {
		return apperr.FromPG("delete ally", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("ally not found")
	}
	return nil
}

func (r *allyRepoPG) List(ctx context.Context, filter Filter, limit, offset int) ([]*Ally, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	idx := 1

	if s := strings.TrimSpace(filter.Search); s != "" {
		where += fmt.Sprintf(" AND name ILIKE $%d", idx)
		args = append(args, db.Contains(s))
		idx++
	}
	if filter.Type != "" {
		where += fmt.Sprintf(" AND type = $%d", idx)
		args = append(args, filter.Type)
		idx++
	}
	if filter.Sector != "" {
		where += fmt.Sprintf(" AND sector = $%d", idx)
		args = append(args, filter.Sector)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM allies"+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.FromPG("count allies", err)
	}

	query := "SELECT " + allyCols + " FROM allies" + where + fmt.Sprintf(" ORDER BY name LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.FromPG("list allies", err)
	}
	defer rows.Close()

	var items []*Ally
	for rows.Next() {
		a, err := scanAlly(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

// -- Lab results --

type resultRepoPG struct{ pool *pgxpool.Pool }

func NewResultRepo(pool *pgxpool.Pool) ResultRepository {
	return &resultRepoPG{pool: pool}
}

func (r *resultRepoPG) Create(ctx context.Context, res *LabResult) error {
	res.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO lab_results (id, order_code, patient_id, ally_id, ally_name, type, file_name, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING uploaded_at`,
		res.ID, res.OrderCode, res.PatientID, res.AllyID, res.AllyName, res.Type, res.FileName, res.Description,
	).Scan(&res.UploadedAt)
	return apperr.FromPG("create lab result", err)
}

func (r *resultRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, search string) ([]*LabResult, error) {
	query := `SELECT id, order_code, patient_id, ally_id, ally_name, type, file_name, description, uploaded_at
		FROM lab_results WHERE patient_id = $1`
	args := []interface{}{patientID}
	if s := strings.TrimSpace(search); s != "" {
		query += ` AND (order_code ILIKE $2 OR ally_name ILIKE $2 OR description ILIKE $2)`
		args = append(args, db.Contains(s))
	}
	query += ` ORDER BY uploaded_at DESC`

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.FromPG("list lab results", err)
	}
	defer rows.Close()
	var out []*LabResult
	for rows.Next() {
		var res LabResult
		if err := rows.Scan(&res.ID, &res.OrderCode, &res.PatientID, &res.AllyID, &res.AllyName, &res.Type,
			&res.FileName, &res.Description, &res.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, &res)
	}
	return out, rows.Err()
}

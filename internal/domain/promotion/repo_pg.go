package promotion

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rch/portal/internal/platform/apperr"
	"github.com/rch/portal/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const promoCols = `id, title, description, price, includes, to_char(valid_until, 'YYYY-MM-DD'),
	image_url, created_at, updated_at`

func scanPromotion(row pgx.Row) (*Promotion, error) {
	var p Promotion
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Includes, &p.ValidUntil,
		&p.ImageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Promotion) error {
	p.ID = uuid.New()
	if p.Includes == nil {
		p.Includes = []string{}
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO promotions (id, title, description, price, includes, valid_until, image_url)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7)
		RETURNING created_at, updated_at`,
		p.ID, p.Title, p.Description, p.Price, p.Includes, p.ValidUntil, p.ImageURL,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return apperr.FromPG("create promotion", err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Promotion, error) {
	p, err := scanPromotion(r.conn(ctx).QueryRow(ctx, `SELECT `+promoCols+` FROM promotions WHERE id = $1`, id))
	return p, apperr.FromPG("get promotion", err)
}

func (r *repoPG) Update(ctx context.Context, p *Promotion) error {
	if p.Includes == nil {
		p.Includes = []string{}
	}
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE promotions SET title=$2, description=$3, price=$4, includes=$5, valid_until=$6::date,
			image_url=$7, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Title, p.Description, p.Price, p.Includes, p.ValidUntil, p.ImageURL,
	).Scan(&p.UpdatedAt)
	return apperr.FromPG("update promotion", err)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return apperr.FromPG("delete promotion", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("promotion not found")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, validFrom string) ([]*Promotion, error) {
	query := `SELECT ` + promoCols + ` FROM promotions`
	var args []interface{}
	if validFrom != "" {
		query += ` WHERE valid_until >= $1::date`
		args = append(args, validFrom)
	}
	query += ` ORDER BY valid_until, title`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.FromPG("list promotions", err)
	}
	defer rows.Close()

	var items []*Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

package membership

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rch/portal/internal/platform/apperr"
	"github.com/rch/portal/internal/platform/db"
)

type planRepoPG struct{ pool *pgxpool.Pool }

func NewPlanRepo(pool *pgxpool.Pool) PlanRepository { return &planRepoPG{pool: pool} }

func (r *planRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const planCols = `id, name, price, duration, benefits, discount, active, created_at, updated_at`

func scanPlan(row pgx.Row) (*Plan, error) {
	var p Plan
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Duration, &p.Benefits, &p.Discount, &p.Active,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *planRepoPG) Create(ctx context.Context, p *Plan) error {
	p.ID = uuid.New()
	if p.Benefits == nil {
		p.Benefits = []string{}
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO membership_plans (id, name, price, duration, benefits, discount, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Price, p.Duration, p.Benefits, p.Discount, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return apperr.FromPG("create plan", err)
}

func (r *planRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Plan, error) {
	p, err := scanPlan(r.conn(ctx).QueryRow(ctx, `SELECT `+planCols+` FROM membership_plans WHERE id = $1`, id))
	return p, apperr.FromPG("get plan", err)
}

func (r *planRepoPG) Update(ctx context.Context, p *Plan) error {
	if p.Benefits == nil {
		p.Benefits = []string{}
	}
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE membership_plans SET name=$2, price=$3, duration=$4, benefits=$5, discount=$6, active=$7,
			updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Name, p.Price, p.Duration, p.Benefits, p.Discount, p.Active,
	).Scan(&p.UpdatedAt)
	return apperr.FromPG("update plan", err)
}

func (r *planRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM membership_plans WHERE id = $1`, id)
	if err != nil {
		return apperr.FromPG("delete plan", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("plan not found")
	}
	return nil
}

func (r *planRepoPG) List(ctx context.Context, activeOnly bool) ([]*Plan, error) {
	query := `SELECT ` + planCols + ` FROM membership_plans`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY price`

	rows, err := r.conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, apperr.FromPG("list plans", err)
	}
	defer rows.Close()

	var items []*Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rch/portal/internal/platform/apperr"
	"github.com/rch/portal/internal/platform/db"
)

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userCols = `u.id, u.name, u.email, u.password_hash, u.status, u.cedula, u.phone, u.image,
	u.membership_plan_id, u.membership_active, u.membership_expires_at, u.ally_id,
	a.id, d.id, u.created_at, u.updated_at`

const userFrom = ` FROM users u
	LEFT JOIN admins a ON a.user_id = u.id
	LEFT JOIN doctors d ON d.user_id = u.id`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Status, &u.Cedula, &u.Phone, &u.Image,
		&u.MembershipPlanID, &u.MembershipActive, &u.MembershipExpiresAt, &u.AllyID,
		&u.AdminID, &u.DoctorID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, name, email, password_hash, status, cedula, phone, image)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Status, u.Cedula, u.Phone, u.Image,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return apperr.FromPG("create user", err)
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+userFrom+` WHERE u.id = $1`, id))
	return u, apperr.FromPG("get user", err)
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+userFrom+` WHERE u.email = $1`, email))
	return u, apperr.FromPG("get user", err)
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE users SET name=$2, email=$3, password_hash=$4, status=$5, cedula=$6, phone=$7, image=$8,
			updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Status, u.Cedula, u.Phone, u.Image,
	).Scan(&u.UpdatedAt)
	return apperr.FromPG("update user", err)
}

func (r *userRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return apperr.FromPG("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

func (r *userRepoPG) List(ctx context.Context, filter UserFilter, limit, offset int) ([]*User, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if s := strings.TrimSpace(filter.Search); s != "" {
		where += fmt.Sprintf(` AND (u.name ILIKE $%d OR u.email ILIKE $%d)`, idx, idx)
		args = append(args, db.Contains(s))
		idx++
	}
	switch filter.Role {
	case "admin":
		where += ` AND a.id IS NOT NULL`
	case "doctor":
		where += ` AND a.id IS NULL AND d.id IS NOT NULL`
	case "ally":
		where += ` AND a.id IS NULL AND d.id IS NULL AND u.ally_id IS NOT NULL`
	case "patient":
		where += ` AND a.id IS NULL AND d.id IS NULL AND u.ally_id IS NULL`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+userFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.FromPG("count users", err)
	}

	query := `SELECT ` + userCols + userFrom + where +
		fmt.Sprintf(` ORDER BY u.created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.FromPG("list users", err)
	}
	defer rows.Close()

	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

func (r *userRepoPG) SetAdmin(ctx context.Context, userID uuid.UUID, admin bool) error {
	var err error
	if admin {
		_, err = r.conn(ctx).Exec(ctx,
			`INSERT INTO admins (id, user_id) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
			uuid.New(), userID)
	} else {
		_, err = r.conn(ctx).Exec(ctx, `DELETE FROM admins WHERE user_id = $1`, userID)
	}
	return apperr.FromPG("set admin", err)
}

func (r *userRepoPG) SetAlly(ctx context.Context, userID uuid.UUID, allyID *uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE users SET ally_id = $2, updated_at = NOW() WHERE id = $1`, userID, allyID)
	if err != nil {
		return apperr.FromPG("link ally", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

func (r *userRepoPG) SetMembership(ctx context.Context, userID uuid.UUID, planID *uuid.UUID, expiresAt time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET membership_active = TRUE, membership_plan_id = COALESCE($2, membership_plan_id),
			membership_expires_at = $3, updated_at = NOW()
		WHERE id = $1`, userID, planID, expiresAt)
	if err != nil {
		return apperr.FromPG("activate membership", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

package reporting

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rch/portal/internal/platform/apperr"
	"github.com/rch/portal/internal/platform/db"
)

type storePG struct{ pool *pgxpool.Pool }

func NewStore(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

func (s *storePG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, s.pool)
}

func (s *storePG) Totals(ctx context.Context, monthStart string) (*Totals, error) {
	var t Totals
	err := s.conn(ctx).QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users u
				WHERE NOT EXISTS (SELECT 1 FROM admins a WHERE a.user_id = u.id)
				  AND NOT EXISTS (SELECT 1 FROM doctors d WHERE d.user_id = u.id)
				  AND u.ally_id IS NULL),
			(SELECT COUNT(*) FROM doctors),
			(SELECT COUNT(*) FROM appointments WHERE date >= $1::date AND status <> 'cancelled'),
			(SELECT COALESCE(SUM(price + membership_fee), 0)::float8 FROM appointments WHERE status IN ('paid','completed'))`,
		monthStart,
	).Scan(&t.Patients, &t.Doctors, &t.AppointmentsMonth, &t.Revenue)
	if err != nil {
		return nil, apperr.FromPG("dashboard totals", err)
	}
	return &t, nil
}

func (s *storePG) MonthlyAppointments(ctx context.Context, since string) ([]MonthCount, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT to_char(date_trunc('month', date), 'YYYY-MM'), COUNT(*), COUNT(*) FILTER (WHERE status = 'completed')
		FROM appointments
		WHERE date >= $1::date AND status <> 'cancelled'
		GROUP BY 1 ORDER BY 1`, since)
	if err != nil {
		return nil, apperr.FromPG("monthly appointments", err)
	}
	defer rows.Close()
	var out []MonthCount
	for rows.Next() {
		var m MonthCount
		if err := rows.Scan(&m.Month, &m.Total, &m.Completed); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *storePG) SpecialtyDistribution(ctx context.Context) ([]SpecialtyShare, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT specialty, COUNT(*) FROM appointments
		WHERE status <> 'cancelled'
		GROUP BY specialty ORDER BY COUNT(*) DESC, specialty`)
	if err != nil {
		return nil, apperr.FromPG("specialty distribution", err)
	}
	defer rows.Close()
	var out []SpecialtyShare
	for rows.Next() {
		var sh SpecialtyShare
		if err := rows.Scan(&sh.Specialty, &sh.Appointments); err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// Evaluate runs a measure query and returns each row keyed by column name.
func (s *storePG) Evaluate(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := s.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, apperr.FromPG("evaluate measure", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	results := []map[string]interface{}{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

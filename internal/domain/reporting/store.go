package reporting

import "context"

// Store runs the aggregate queries behind dashboards and measures.
type Store interface {
	Totals(ctx context.Context, monthStart string) (*Totals, error)
	// MonthlyAppointments returns counts for months from since onwards;
	// months without appointments are omitted.
	MonthlyAppointments(ctx context.Context, since string) ([]MonthCount, error)
	SpecialtyDistribution(ctx context.Context) ([]SpecialtyShare, error)
	Evaluate(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error)
}

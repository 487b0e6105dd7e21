package settings

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rch/portal/internal/platform/apperr"
	"github.com/rch/portal/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) GetPayment(ctx context.Context) (*PaymentSettings, error) {
	var p PaymentSettings
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT retention_percentage, transfer_enabled, card_enabled,
			bank_name, account_number, account_type, owner_name, owner_id, updated_at
		FROM payment_settings WHERE id = 1`).Scan(
		&p.RetentionPercentage, &p.Methods.Transfer, &p.Methods.Card,
		&p.Bank.BankName, &p.Bank.AccountNumber, &p.Bank.AccountType, &p.Bank.OwnerName, &p.Bank.OwnerID,
		&p.UpdatedAt)
	if err != nil {
		return nil, apperr.FromPG("get payment settings", err)
	}
	return &p, nil
}

func (r *repoPG) SavePayment(ctx context.Context, p *PaymentSettings) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO payment_settings (id, retention_percentage, transfer_enabled, card_enabled,
			bank_name, account_number, account_type, owner_name, owner_id)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			retention_percentage = EXCLUDED.retention_percentage,
			transfer_enabled = EXCLUDED.transfer_enabled,
			card_enabled = EXCLUDED.card_enabled,
			bank_name = EXCLUDED.bank_name,
			account_number = EXCLUDED.account_number,
			account_type = EXCLUDED.account_type,
			owner_name = EXCLUDED.owner_name,
			owner_id = EXCLUDED.owner_id,
			updated_at = NOW()
		RETURNING updated_at`,
		p.RetentionPercentage, p.Methods.Transfer, p.Methods.Card,
		p.Bank.BankName, p.Bank.AccountNumber, p.Bank.AccountType, p.Bank.OwnerName, p.Bank.OwnerID,
	).Scan(&p.UpdatedAt)
	return apperr.FromPG("save payment settings", err)
}

func (r *repoPG) GetPlatform(ctx context.Context) (*PlatformSettings, error) {
	var p PlatformSettings
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT site_name, site_email, consultation_fee, max_booking_days, maintenance_mode,
			notify_email, notify_sms, notify_reminders, notify_registrations, updated_at
		FROM platform_settings WHERE id = 1`).Scan(
		&p.SiteName, &p.SiteEmail, &p.ConsultationFee, &p.MaxBookingDays, &p.MaintenanceMode,
		&p.Notifications.Email, &p.Notifications.SMS, &p.Notifications.Reminders, &p.Notifications.Registrations,
		&p.UpdatedAt)
	if err != nil {
		return nil, apperr.FromPG("get platform settings", err)
	}
	return &p, nil
}

func (r *repoPG) SavePlatform(ctx context.Context, p *PlatformSettings) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO platform_settings (id, site_name, site_email, consultation_fee, max_booking_days,
			maintenance_mode, notify_email, notify_sms, notify_reminders, notify_registrations)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			site_name = EXCLUDED.site_name,
			site_email = EXCLUDED.site_email,
			consultation_fee = EXCLUDED.consultation_fee,
			max_booking_days = EXCLUDED.max_booking_days,
			maintenance_mode = EXCLUDED.maintenance_mode,
			notify_email = EXCLUDED.notify_email,
			notify_sms = EXCLUDED.notify_sms,
			notify_reminders = EXCLUDED.notify_reminders,
			notify_registrations = EXCLUDED.notify_registrations,
			updated_at = NOW()
		RETURNING updated_at`,
		p.SiteName, p.SiteEmail, p.ConsultationFee, p.MaxBookingDays, p.MaintenanceMode,
		p.Notifications.Email, p.Notifications.SMS, p.Notifications.Reminders, p.Notifications.Registrations,
	).Scan(&p.UpdatedAt)
	return apperr.FromPG("save platform settings", err)
}

package settings

import "context"

// Repository stores the single-row payment and platform settings.
type Repository interface {
	GetPayment(ctx context.Context) (*PaymentSettings, error)
	SavePayment(ctx context.Context, p *PaymentSettings) error
	GetPlatform(ctx context.Context) (*PlatformSettings, error)
	SavePlatform(ctx context.Context, p *PlatformSettings) error
}

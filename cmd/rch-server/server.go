package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/rch/portal/internal/config"
	"github.com/rch/portal/internal/domain/ally"
	"github.com/rch/portal/internal/domain/booking"
	"github.com/rch/portal/internal/domain/catalog"
	"github.com/rch/portal/internal/domain/consultation"
	"github.com/rch/portal/internal/domain/contact"
	"github.com/rch/portal/internal/domain/identity"
	"github.com/rch/portal/internal/domain/membership"
	"github.com/rch/portal/internal/domain/promotion"
	"github.com/rch/portal/internal/domain/reporting"
	"github.com/rch/portal/internal/domain/settings"
	"github.com/rch/portal/internal/platform/auth"
	"github.com/rch/portal/internal/platform/cache"
	"github.com/rch/portal/internal/platform/db"
	"github.com/rch/portal/internal/platform/httpx"
	"github.com/rch/portal/internal/platform/middleware"
	"github.com/rch/portal/internal/platform/notification"
)

const revocationSweep = time.Minute

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// newMailSender uses SMTP when SMTP_HOST is set and logs messages otherwise.
func newMailSender(cfg *config.Config, logger zerolog.Logger) notification.EmailSender {
	if !cfg.SMTPEnabled() {
		return notification.LogSender{Logger: logger.With().Str("component", "mail").Logger()}
	}
	return notification.NewSMTPSender(notification.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
}

func newMailManager(cfg *config.Config, logger zerolog.Logger) *notification.Manager {
	return notification.NewManager(newMailSender(cfg, logger), notification.NewTemplateEngine(), logger)
}

// newRevocationStore picks redis when REDIS_URL is set so logouts hold across
// instances, and an in-process store otherwise. The returned deps map seeds
// the /health/deps report.
func newRevocationStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (auth.RevocationStore, map[string]db.Pinger, func(), error) {
	deps := map[string]db.Pinger{}
	if cfg.RedisURL == "" {
		store := auth.NewMemoryRevocationStore(revocationSweep)
		logger.Warn().Msg("REDIS_URL not set, token revocation is per process")
		return store, deps, store.Close, nil
	}
	client, err := cache.NewRedis(ctx, cfg.RedisURL, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	deps["redis"] = cache.Pinger{Client: client}
	return auth.NewRedisRevocationStore(client), deps, func() { client.Close() }, nil
}

// userSearch exposes identity search as catalog search hits.
type userSearch struct {
	users interface {
		SearchUsers(ctx context.Context, q string, limit int) ([]identity.Summary, error)
	}
}

func (u userSearch) SearchUsers(ctx context.Context, q string, limit int) ([]catalog.SearchHit, error) {
	found, err := u.users.SearchUsers(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	hits := make([]catalog.SearchHit, 0, len(found))
	for _, s := range found {
		hits = append(hits, catalog.SearchHit{ID: s.ID, Title: s.Name, Subtitle: s.Email})
	}
	return hits, nil
}

func newServer(cfg *config.Config, pool *pgxpool.Pool, revocation auth.RevocationStore, deps map[string]db.Pinger, logger zerolog.Logger) (*echo.Echo, error) {
	ttl, err := cfg.TokenTTL()
	if err != nil {
		return nil, err
	}
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, ttl)
	mail := newMailManager(cfg, logger)
	tx := db.NewTxRunner(pool)

	// Services
	identitySvc := identity.NewService(identity.NewUserRepo(pool), issuer, revocation, mail,
		logger.With().Str("component", "identity").Logger())
	catalogSvc := catalog.NewService(catalog.NewSpecialtyRepo(pool), catalog.NewDoctorRepo(pool), userSearch{users: identitySvc})
	settingsSvc := settings.NewService(settings.NewRepo(pool))
	mail.SetPolicy(settingsSvc)
	membershipSvc := membership.NewService(membership.NewPlanRepo(pool), identitySvc, cfg.MembershipDays)
	promotionSvc := promotion.NewService(promotion.NewRepo(pool))
	bookingSvc := booking.NewService(booking.NewAppointmentRepo(pool), catalogSvc, settingsSvc, identitySvc, tx, mail,
		booking.Pricing{MembershipPrice: cfg.MembershipPrice, MembershipDays: cfg.MembershipDays}, logger)
	consultationSvc := consultation.NewService(consultation.NewRecordRepo(pool), consultation.NewCodeRepo(pool),
		consultation.NewCIE10Repo(pool), bookingSvc, tx, logger)
	allySvc := ally.NewService(ally.NewAllyRepo(pool), ally.NewResultRepo(pool), consultationSvc, identitySvc, tx, mail, logger)
	reportingSvc := reporting.NewService(reporting.NewStore(pool), bookingSvc, identitySvc, allySvc)
	contactSvc := contact.NewService(mail, cfg.ContactEmail, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = httpx.NewValidator()
	e.HTTPErrorHandler = httpx.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(auth.Middleware(auth.MiddlewareConfig{
		Issuer:     issuer,
		Revocation: revocation,
		Status:     identitySvc,
		Skipper:    auth.Skipper,
		Logger:     logger,
	}))

	// Health checks
	health := func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	}
	e.GET("/health", health)
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/health/deps", db.DependencyHandler(deps))

	// API group
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1 := e.Group("/api/v1", middleware.RateLimit(rateLimitCfg))
	apiV1.GET("/health", health)
	loginLimit := middleware.RateLimit(middleware.LoginRateLimitConfig())

	identity.NewHandler(identitySvc).RegisterRoutes(apiV1, loginLimit)
	catalog.NewHandler(catalogSvc).RegisterRoutes(apiV1)
	settings.NewHandler(settingsSvc).RegisterRoutes(apiV1)
	membership.NewHandler(membershipSvc).RegisterRoutes(apiV1)
	promotion.NewHandler(promotionSvc).RegisterRoutes(apiV1)
	booking.NewHandler(bookingSvc).RegisterRoutes(apiV1)
	consultation.NewHandler(consultationSvc).RegisterRoutes(apiV1)
	ally.NewHandler(allySvc).RegisterRoutes(apiV1)
	reporting.NewHandler(reportingSvc).RegisterRoutes(apiV1)
	contact.NewHandler(contactSvc).RegisterRoutes(apiV1, loginLimit)

	return e, nil
}

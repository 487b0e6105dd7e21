package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type contextKey string

const claimsKey contextKey = "auth_claims"

// AccountState is the current standing of an account as stored, read again
// on every authenticated request.
type AccountState struct {
	Active   bool
	Role     Role
	DoctorID string
	AllyID   string
}

// Matches reports whether the role and links in claims are still the
// account's. A token issued before a link changed no longer matches.
func (s *AccountState) Matches(claims *Claims) bool {
	return s.Role == claims.Role && s.DoctorID == claims.DoctorID && s.AllyID == claims.AllyID
}

// StatusChecker returns the stored state of an account. A nil state with a
// nil error means the account no longer exists.
type StatusChecker interface {
	AccountState(ctx context.Context, userID string) (*AccountState, error)
}

// MiddlewareConfig wires the dependencies of Middleware.
type MiddlewareConfig struct {
	Issuer     *TokenIssuer
	Revocation RevocationStore
	Status     StatusChecker
	Skipper    func(c echo.Context) bool
	Logger     zerolog.Logger
}

// Middleware authenticates bearer tokens. Requests without an Authorization
// header continue anonymously and are stopped later by RequireAuth or
// RequireRole. A header that is present must carry a token whose signature,
// expiry and revocation status verify, whose account is still active, and
// whose role and links still match the account.
func Middleware(cfg MiddlewareConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return next(c)
			}

			tokenStr, ok := bearerToken(authHeader)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims, err := cfg.Issuer.Parse(tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx := c.Request().Context()
			if cfg.Revocation != nil {
				revoked, err := cfg.Revocation.IsRevoked(ctx, claims.ID)
				if err != nil {
					cfg.Logger.Error().Err(err).Msg("revocation lookup failed")
					return echo.NewHTTPError(http.StatusServiceUnavailable, "authentication unavailable")
				}
				if revoked {
					return echo.NewHTTPError(http.StatusUnauthorized, "token revoked")
				}
			}

			if cfg.Status != nil {
				state, err := cfg.Status.AccountState(ctx, claims.UserID)
				if err != nil {
					cfg.Logger.Error().Err(err).Msg("account lookup failed")
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
				}
				if state == nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
				}
				if !state.Active {
					return echo.NewHTTPError(http.StatusForbidden, "Usuario inactivo o suspendido")
				}
				if !state.Matches(claims) {
					return echo.NewHTTPError(http.StatusUnauthorized, "session outdated, sign in again")
				}
			}

			c.SetRequest(c.Request().WithContext(WithClaims(ctx, claims)))
			c.Set("user_id", claims.UserID)
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithClaims attaches an authenticated identity to ctx.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

func UserIDFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.UserID
	}
	return ""
}

func RoleFromContext(ctx context.Context) Role {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.Role
	}
	return ""
}

// CurrentUser returns the authenticated user id or a 401.
func CurrentUser(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return id, nil
}

// CurrentDoctor returns the doctor linked to the session or a 403.
func CurrentDoctor(c echo.Context) (uuid.UUID, error) {
	return linkedID(c, func(cl *Claims) string { return cl.DoctorID }, "no doctor profile linked to this account")
}

// CurrentAlly returns the ally linked to the session or a 403.
func CurrentAlly(c echo.Context) (uuid.UUID, error) {
	return linkedID(c, func(cl *Claims) string { return cl.AllyID }, "no ally linked to this account")
}

func linkedID(c echo.Context, pick func(*Claims) string, msg string) (uuid.UUID, error) {
	claims := ClaimsFromContext(c.Request().Context())
	if claims == nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(pick(claims))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, msg)
	}
	return id, nil
}

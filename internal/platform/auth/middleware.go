package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type contextKey string

const userKey contextKey = "auth_user"

// CredentialHeader carries the JSON credential document.
const CredentialHeader = echo.HeaderAuthorization

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userKey).(*User)
	return u
}

// Middleware authenticates every request with the gate and stores the user
// in the request context. Credential failures are answered with 400.
func Middleware(gate *Gate, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			u, err := gate.Authenticate(req.Context(), req.Header.Get(CredentialHeader))
			switch {
			case errors.Is(err, ErrMalformedCredential), errors.Is(err, ErrInvalidCredentials):
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			case err != nil:
				logger.Error().Err(err).Msg("authentication lookup failed")
				return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}

			c.SetRequest(req.WithContext(WithUser(req.Context(), u)))
			c.Set("user_id", u.ID)
			return next(c)
		}
	}
}

package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rch/portal/internal/platform/apperr"
)

// Error codes carried in ErrorBody.Code.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "INSUFFICIENT_PERMISSIONS"
	CodeNotFound      = "RESOURCE_NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeRateLimited   = "RATE_LIMITED"
	CodeUnavailable   = "SERVICE_UNAVAILABLE"
	CodeInternalError = "INTERNAL_ERROR"
)

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	default:
		return CodeInternalError
	}
}

// Fail converts a service error into an echo.HTTPError.
func Fail(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.Message(err)).SetInternal(err)
}

// ErrorHandler renders errors in the portal envelope.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		body := ErrorBody{Timestamp: timestamp()}
		var he *echo.HTTPError
		var verrs validator.ValidationErrors
		switch {
		case errors.As(err, &he):
			body.StatusCode = he.Code
			body.Message = fmt.Sprint(he.Message)
			if errors.As(he.Internal, &verrs) {
				body.Details = FieldErrors(verrs)
			}
			if he.Internal != nil && he.Code >= http.StatusInternalServerError {
				logger.Error().Err(he.Internal).Str("path", c.Path()).Msg("request failed")
			}
		case errors.As(err, &verrs):
			body.StatusCode = http.StatusBadRequest
			body.Message = RequiredFieldsMessage
			body.Details = FieldErrors(verrs)
		default:
			body.StatusCode = apperr.HTTPStatus(err)
			body.Message = apperr.Message(err)
			if body.StatusCode >= http.StatusInternalServerError {
				logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
			}
		}
		body.Error = http.StatusText(body.StatusCode)
		body.Code = codeFor(body.StatusCode)

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(body.StatusCode)
		} else {
			werr = c.JSON(body.StatusCode, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

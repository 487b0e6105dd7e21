// Package httpx holds the JSON wire conventions of the API: every success
// body is {data, statusCode, timestamp} and every failure body is
// {statusCode, message, error, timestamp}.
package httpx

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rch/portal/pkg/pagination"
)

// Envelope wraps every successful response.
type Envelope struct {
	Data       interface{}      `json:"data"`
	StatusCode int              `json:"statusCode"`
	Timestamp  string           `json:"timestamp"`
	Meta       *pagination.Meta `json:"meta,omitempty"`
}

// ErrorBody is written for every failed request.
type ErrorBody struct {
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Error      string      `json:"error"`
	Code       string      `json:"code,omitempty"`
	Details    interface{} `json:"details,omitempty"`
	Timestamp  string      `json:"timestamp"`
}

var now = time.Now

func timestamp() string {
	return now().UTC().Format(time.RFC3339)
}

func Respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Envelope{Data: data, StatusCode: status, Timestamp: timestamp()})
}

func OK(c echo.Context, data interface{}) error {
	return Respond(c, http.StatusOK, data)
}

func Created(c echo.Context, data interface{}) error {
	return Respond(c, http.StatusCreated, data)
}

// Page writes a list with its pagination metadata.
func Page(c echo.Context, data interface{}, total int, p pagination.Params) error {
	return c.JSON(http.StatusOK, Envelope{
		Data:       data,
		StatusCode: http.StatusOK,
		Timestamp:  timestamp(),
		Meta:       pagination.NewMeta(total, p),
	})
}

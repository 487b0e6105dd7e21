package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{Unauthorized("who"), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{NotFound("missing"), http.StatusNotFound},
		{Conflict("dup"), http.StatusConflict},
		{Unavailable("down"), http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", NotFound("x")), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestFromPG(t *testing.T) {
	if err := FromPG("get user", pgx.ErrNoRows); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	dup := &pgconn.PgError{Code: "23505"}
	if err := FromPG("create user", dup); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	other := errors.New("connection reset")
	err := FromPG("list users", other)
	if !errors.Is(err, other) {
		t.Errorf("expected wrapped original error, got %v", err)
	}
	if HTTPStatus(err) != http.StatusInternalServerError {
		t.Errorf("expected 500 for driver error")
	}

	if FromPG("noop", nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestMessage_HidesInternal(t *testing.T) {
	if got := Message(errors.New("pq: password authentication failed")); got != "internal server error" {
		t.Errorf("expected hidden message, got %q", got)
	}
	if got := Message(Validation("Email y contraseña son requeridos")); got != "Email y contraseña son requeridos" {
		t.Errorf("unexpected message %q", got)
	}
}

package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter UserFilter, limit, offset int) ([]*User, int, error)
	SetAdmin(ctx context.Context, userID uuid.UUID, admin bool) error
	SetAlly(ctx context.Context, userID uuid.UUID, allyID *uuid.UUID) error
	SetMembership(ctx context.Context, userID uuid.UUID, planID *uuid.UUID, expiresAt time.Time) error
}

package membership

import (
	"time"

	"github.com/google/uuid"
)

// Plan is a membership tier offered to patients.
type Plan struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Price     float64   `db:"price" json:"price"`
	Duration  string    `db:"duration" json:"duration"`
	Benefits  []string  `db:"benefits" json:"benefits"`
	Discount  float64   `db:"discount" json:"discount"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Subscription is the result of subscribing to a plan.
type Subscription struct {
	PlanID    uuid.UUID `json:"planId"`
	PlanName  string    `json:"planName"`
	ExpiresAt time.Time `json:"expiresAt"`
}

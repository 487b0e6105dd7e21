package promotion

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire and storage format of ValidUntil.
const DateLayout = "2006-01-02"

// Promotion is a fixed-price health package.
type Promotion struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Price       float64   `db:"price" json:"price"`
	Includes    []string  `db:"includes" json:"includes"`
	ValidUntil  string    `db:"valid_until" json:"validUntil"`
	ImageURL    *string   `db:"image_url" json:"imageUrl,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// ValidOn reports whether the promotion can still be offered on day.
func (p *Promotion) ValidOn(day time.Time) bool {
	until, err := time.Parse(DateLayout, p.ValidUntil)
	if err != nil {
		return false
	}
	return !until.Before(truncateDay(day))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

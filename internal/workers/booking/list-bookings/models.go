package listbookings

import (
	"context"

	"booking-assistant/internal/models"
)

type Input struct {
	Limit int `json:"limit,omitempty"`
}

type Output struct {
	Bookings []models.BookingRecord `json:"bookings"`
	Count    int                    `json:"count"`
}

// Lister is satisfied by *persistence.PostgresStore
type Lister interface {
	List(ctx context.Context, limit int) ([]models.BookingRecord, error)
}

const inputSchema = `{
	"type": "object",
	"properties": {
		"limit": {"type": "integer", "minimum": 0}
	}
}`

package model

import "time"

// Customer is a delivery-business contact imported from CSV or the order
// stream. The segment label is derived, never hand-edited.
type Customer struct {
	ID             int64        `db:"id"`
	Name           string       `db:"name"`
	Phone          string       `db:"phone"` // unique, E.164
	Email          string       `db:"email"`
	Location       string       `db:"location"`
	AverageTicket  float64      `db:"average_ticket"`
	OrderFrequency int          `db:"order_frequency"` // orders per month
	PreferredItems string       `db:"preferred_items"`
	Segment        SegmentLabel `db:"segment"`
	LastOrderDate  *time.Time   `db:"last_order_date"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
}

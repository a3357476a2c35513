package model

import "time"

type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageFailed    MessageStatus = "failed"
)

func (s MessageStatus) String() string { return string(s) }

func (s MessageStatus) Valid() bool {
	return s == MessagePending || s == MessageSent || s == MessageDelivered || s == MessageFailed
}

// MessageLog is one send attempt for one (dispatch, customer) pair.
// Rows are append-only; delivery callbacks are out of scope, so a row's
// status never changes after insert.
type MessageLog struct {
	ID               string        `db:"id"` // ULID
	CampaignID       int64         `db:"campaign_id"`
	DispatchID       int64         `db:"dispatch_id"`
	CustomerID       int64         `db:"customer_id"`
	Phone            string        `db:"phone"`
	Content          string        `db:"content"` // rendered message, empty if rendering never ran
	ImageURL         string        `db:"image_url"`
	SentDate         *time.Time    `db:"sent_date"`
	Status           MessageStatus `db:"status"`
	GatewayMessageID string        `db:"gateway_message_id"`
	ErrorDetail      string        `db:"error_detail"`
	CreatedAt        time.Time     `db:"created_at"`
}

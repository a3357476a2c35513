package model

import "time"

type DispatchStatus string

const (
	DispatchScheduled DispatchStatus = "scheduled"
	DispatchSent      DispatchStatus = "sent"
	DispatchFailed    DispatchStatus = "failed"
)

func (s DispatchStatus) String() string { return string(s) }

func (s DispatchStatus) Valid() bool {
	return s == DispatchScheduled || s == DispatchSent || s == DispatchFailed
}

// Dispatch is one scheduled batch send: a (campaign, group, wave) triple.
// CustomerGroup and DispatchNumber are both 1-based. ClaimedAt is the
// execution claim marker; a dispatch with a non-nil ClaimedAt is owned by
// exactly one executor run and is never picked up again.
type Dispatch struct {
	ID             int64          `db:"id"`
	CampaignID     int64          `db:"campaign_id"`
	CustomerGroup  int            `db:"customer_group"`
	DispatchNumber int            `db:"dispatch_number"` // wave 1..3
	ScheduledDate  time.Time      `db:"scheduled_date"`
	SentDate       *time.Time     `db:"sent_date"`
	ClaimedAt      *time.Time     `db:"claimed_at"`
	Status         DispatchStatus `db:"status"`
	CustomersCount int            `db:"customers_count"` // group size at planning time
	SuccessCount   int            `db:"success_count"`
	FailedCount    int            `db:"failed_count"`
	CreatedAt      time.Time      `db:"created_at"`
}

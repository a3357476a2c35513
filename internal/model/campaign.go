package model

import "time"

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignCompleted CampaignStatus = "completed"
	CampaignPaused    CampaignStatus = "paused"
)

func (s CampaignStatus) String() string { return string(s) }

func (s CampaignStatus) Valid() bool {
	return s == CampaignDraft || s == CampaignActive || s == CampaignCompleted || s == CampaignPaused
}

// Campaign owns its dispatches (cascade delete in the schema).
type Campaign struct {
	ID              int64          `db:"id"`
	Name            string         `db:"name"`
	MessageTemplate string         `db:"message_template"`
	ImageURL        string         `db:"image_url"`
	CouponCode      string         `db:"coupon_code"`
	TargetSegment   string         `db:"target_segment"` // "" or "all" targets everyone
	Status          CampaignStatus `db:"status"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

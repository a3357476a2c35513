package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pvictorino/zapcampaign/internal/model"
)

type CampaignsRepository interface {
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
	List(ctx context.Context) ([]CampaignSummary, error)
	// UpdateStatus flips the lifecycle status inside the caller's
	// transaction when tx is non-nil.
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id int64, status model.CampaignStatus) error
}

// CampaignSummary is a campaign row plus its dispatch count, for listings.
type CampaignSummary struct {
	model.Campaign
	DispatchCount int `db:"dispatch_count"`
}

type CampaignsRepositoryImpl struct {
	db *sqlx.DB
}

func NewCampaignsRepository(db *sqlx.DB) *CampaignsRepositoryImpl {
	return &CampaignsRepositoryImpl{db: db}
}

var _ CampaignsRepository = (*CampaignsRepositoryImpl)(nil)

func (r *CampaignsRepositoryImpl) Create(ctx context.Context, c *model.Campaign) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns
		    (name, message_template, image_url, coupon_code, target_segment, status, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, 'draft', NOW(), NOW())
	`, c.Name, c.MessageTemplate, c.ImageURL, c.CouponCode, c.TargetSegment)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	c.Status = model.CampaignDraft
	return nil
}

func (r *CampaignsRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	var c model.Campaign
	err := r.db.GetContext(ctx, &c, `
		SELECT id, name, message_template, image_url, coupon_code, target_segment, status, created_at, updated_at
		  FROM campaigns
		 WHERE id = ? LIMIT 1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignsRepositoryImpl) List(ctx context.Context) ([]CampaignSummary, error) {
	var rows []CampaignSummary
	err := r.db.SelectContext(ctx, &rows, `
		SELECT c.id, c.name, c.message_template, c.image_url, c.coupon_code,
		       c.target_segment, c.status, c.created_at, c.updated_at,
		       COUNT(d.id) AS dispatch_count
		  FROM campaigns c
		  LEFT JOIN campaign_dispatches d ON d.campaign_id = c.id
		 GROUP BY c.id
		 ORDER BY c.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CampaignsRepositoryImpl) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id int64, status model.CampaignStatus) error {
	const q = `UPDATE campaigns SET status = ?, updated_at = NOW() WHERE id = ?`
	if tx != nil {
		_, err := tx.ExecContext(ctx, q, status.String(), id)
		return err
	}
	_, err := r.db.ExecContext(ctx, q, status.String(), id)
	return err
}

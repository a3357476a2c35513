package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pvictorino/zapcampaign/internal/model"
)

// CHMessageLogsRepository lists message logs from ClickHouse (reporting
// read model, replicated from MySQL out-of-band).
type CHMessageLogsRepository interface {
	List(ctx context.Context, campaignID int64, phone string, status model.MessageStatus, limit, offset int) ([]model.MessageLog, error)
}

type chMessageLogsRepository struct {
	ch *sqlx.DB
}

func NewCHMessageLogsRepository(ch *sqlx.DB) CHMessageLogsRepository {
	return &chMessageLogsRepository{ch: ch}
}

func (r *chMessageLogsRepository) List(ctx context.Context, campaignID int64, phone string, status model.MessageStatus, limit, offset int) ([]model.MessageLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, campaign_id, dispatch_id, customer_id, phone, content, image_url, sent_date, status, gateway_message_id, error_detail, created_at
		FROM zapcampaign.message_logs_latest
		WHERE 1 = 1
	`
	args := []any{}

	if campaignID > 0 {
		q += " AND campaign_id = ?"
		args = append(args, campaignID)
	}
	if status != "" {
		q += " AND status = ?"
		args = append(args, status.String())
	}
	if phone != "" {
		q += " AND phone = ?"
		args = append(args, phone)
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.MessageLog
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

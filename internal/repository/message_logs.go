package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pvictorino/zapcampaign/internal/model"
)

// MessageLogsRepository persists per-recipient send outcomes. Rows are
// append-only; there is no update path.
type MessageLogsRepository interface {
	BatchInsert(ctx context.Context, tx *sqlx.Tx, rows []model.MessageLog) error
	CustomerEngagement(ctx context.Context, customerID int64) (CustomerEngagement, error)
}

// CustomerEngagement aggregates one customer's full message history.
type CustomerEngagement struct {
	TotalMessages int        `db:"total_messages"`
	Delivered     int        `db:"delivered"`
	Failed        int        `db:"failed"`
	Campaigns     int        `db:"campaigns"`
	LastMessageAt *time.Time `db:"last_message_at"`
}

type MessageLogsRepositoryImpl struct {
	db *sqlx.DB
}

func NewMessageLogsRepository(db *sqlx.DB) *MessageLogsRepositoryImpl {
	return &MessageLogsRepositoryImpl{db: db}
}

var _ MessageLogsRepository = (*MessageLogsRepositoryImpl)(nil)

// BatchInsert writes all log rows of one dispatch execution in a single
// statement, inside the executor's commit transaction.
func (r *MessageLogsRepositoryImpl) BatchInsert(ctx context.Context, tx *sqlx.Tx, rows []model.MessageLog) error {
	if len(rows) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(rows)*11)

	sb.WriteString(`INSERT INTO message_logs
		(id, campaign_id, dispatch_id, customer_id, phone, content, image_url, sent_date, status, gateway_message_id, error_detail, created_at)
	VALUES `)
	for i, m := range rows {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())")
		args = append(args,
			m.ID, m.CampaignID, m.DispatchID, m.CustomerID,
			m.Phone, m.Content, m.ImageURL, m.SentDate,
			m.Status.String(), m.GatewayMessageID, m.ErrorDetail,
		)
	}

	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *MessageLogsRepositoryImpl) CustomerEngagement(ctx context.Context, customerID int64) (CustomerEngagement, error) {
	var e CustomerEngagement
	err := r.db.GetContext(ctx, &e, `
		SELECT COUNT(*)                                          AS total_messages,
		       CAST(COALESCE(SUM(status = 'sent'), 0) AS SIGNED)   AS delivered,
		       CAST(COALESCE(SUM(status = 'failed'), 0) AS SIGNED) AS failed,
		       COUNT(DISTINCT campaign_id)                       AS campaigns,
		       MAX(sent_date)                                    AS last_message_at
		  FROM message_logs
		 WHERE customer_id = ?
	`, customerID)
	if err != nil {
		return CustomerEngagement{}, err
	}
	return e, nil
}

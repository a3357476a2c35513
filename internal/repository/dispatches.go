package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pvictorino/zapcampaign/internal/model"
)

// ErrAlreadyClaimed is returned when a dispatch claim loses the race: the
// row was no longer (scheduled, unclaimed) at claim time. Callers treat it
// as "already handled", not as a failure.
var ErrAlreadyClaimed = errors.New("dispatch already claimed")

type DispatchesRepository interface {
	BatchInsert(ctx context.Context, tx *sqlx.Tx, rows []model.Dispatch) error
	GetByID(ctx context.Context, id int64) (*model.Dispatch, error)
	FindDue(ctx context.Context, now time.Time) ([]model.Dispatch, error)
	// Claim performs the compare-and-swap that serializes execution of one
	// dispatch between the scheduler loop and the manual endpoint.
	Claim(ctx context.Context, id int64, now time.Time) error
	MarkResult(ctx context.Context, tx *sqlx.Tx, id int64, success, failed int, sentDate time.Time) error
	MarkFailed(ctx context.Context, id int64) error
	ListByCampaign(ctx context.Context, campaignID int64) ([]model.Dispatch, error)
}

type DispatchesRepositoryImpl struct {
	db *sqlx.DB
}

func NewDispatchesRepository(db *sqlx.DB) *DispatchesRepositoryImpl {
	return &DispatchesRepositoryImpl{db: db}
}

var _ DispatchesRepository = (*DispatchesRepositoryImpl)(nil)

const dispatchColumns = `id, campaign_id, customer_group, dispatch_number, scheduled_date, sent_date, claimed_at, status, customers_count, success_count, failed_count, created_at`

// BatchInsert writes all dispatch rows of one planning run in a single
// statement, inside the planner's transaction.
func (r *DispatchesRepositoryImpl) BatchInsert(ctx context.Context, tx *sqlx.Tx, rows []model.Dispatch) error {
	if len(rows) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(rows)*5)

	sb.WriteString(`INSERT INTO campaign_dispatches
		(campaign_id, customer_group, dispatch_number, scheduled_date, status, customers_count, success_count, failed_count, created_at)
	VALUES `)
	for i, d := range rows {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, 'scheduled', ?, 0, 0, NOW())")
		args = append(args, d.CampaignID, d.CustomerGroup, d.DispatchNumber, d.ScheduledDate, d.CustomersCount)
	}

	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *DispatchesRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Dispatch, error) {
	var d model.Dispatch
	err := r.db.GetContext(ctx, &d,
		`SELECT `+dispatchColumns+` FROM campaign_dispatches WHERE id = ? LIMIT 1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// FindDue returns dispatches ready for execution: scheduled, due, and not
// claimed by a crashed or in-flight run.
func (r *DispatchesRepositoryImpl) FindDue(ctx context.Context, now time.Time) ([]model.Dispatch, error) {
	var rows []model.Dispatch
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+dispatchColumns+`
		  FROM campaign_dispatches
		 WHERE status = 'scheduled'
		   AND scheduled_date <= ?
		   AND claimed_at IS NULL
		 ORDER BY scheduled_date ASC, id ASC
	`, now)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Claim marks the dispatch as owned by the current execution. The UPDATE is
// conditional on the row still being (scheduled, unclaimed); zero affected
// rows means another run got there first.
func (r *DispatchesRepositoryImpl) Claim(ctx context.Context, id int64, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_dispatches
		   SET claimed_at = ?
		 WHERE id = ?
		   AND status = 'scheduled'
		   AND claimed_at IS NULL
	`, now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyClaimed
	}
	return nil
}

// MarkResult finalizes an executed dispatch. Runs in the executor's commit
// transaction together with the message log batch insert.
func (r *DispatchesRepositoryImpl) MarkResult(ctx context.Context, tx *sqlx.Tx, id int64, success, failed int, sentDate time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE campaign_dispatches
		   SET status = 'sent',
		       sent_date = ?,
		       success_count = ?,
		       failed_count = ?
		 WHERE id = ?
	`, sentDate, success, failed, id)
	return err
}

// MarkFailed force-fails a dispatch whose execution blew up. The scheduler
// loop uses it so one broken dispatch never aborts a tick.
func (r *DispatchesRepositoryImpl) MarkFailed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaign_dispatches SET status = 'failed' WHERE id = ?
	`, id)
	return err
}

func (r *DispatchesRepositoryImpl) ListByCampaign(ctx context.Context, campaignID int64) ([]model.Dispatch, error) {
	var rows []model.Dispatch
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+dispatchColumns+`
		  FROM campaign_dispatches
		 WHERE campaign_id = ?
		 ORDER BY customer_group ASC, dispatch_number ASC
	`, campaignID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

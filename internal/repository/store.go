package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pvictorino/zapcampaign/internal/model"
)

// SQLStore composes the per-table repositories and owns the transactions
// that span more than one of them. The planner, executor and scheduler all
// consume it through their own narrow interfaces.
type SQLStore struct {
	db         *sqlx.DB
	customers  CustomersRepository
	campaigns  CampaignsRepository
	dispatches DispatchesRepository
	logs       MessageLogsRepository
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{
		db:         db,
		customers:  NewCustomersRepository(db),
		campaigns:  NewCampaignsRepository(db),
		dispatches: NewDispatchesRepository(db),
		logs:       NewMessageLogsRepository(db),
	}
}

func (s *SQLStore) GetCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	return s.campaigns.GetByID(ctx, id)
}

func (s *SQLStore) ListCustomers(ctx context.Context, segment string) ([]model.Customer, error) {
	return s.customers.ListBySegment(ctx, segment)
}

func (s *SQLStore) GetDispatch(ctx context.Context, id int64) (*model.Dispatch, error) {
	return s.dispatches.GetByID(ctx, id)
}

func (s *SQLStore) ClaimDispatch(ctx context.Context, id int64, now time.Time) error {
	return s.dispatches.Claim(ctx, id, now)
}

func (s *SQLStore) FindDueDispatches(ctx context.Context, now time.Time) ([]model.Dispatch, error) {
	return s.dispatches.FindDue(ctx, now)
}

func (s *SQLStore) MarkDispatchFailed(ctx context.Context, id int64) error {
	return s.dispatches.MarkFailed(ctx, id)
}

// CreatePlan persists one planning run: every dispatch row plus the
// campaign's flip to active, all-or-nothing.
func (s *SQLStore) CreatePlan(ctx context.Context, campaignID int64, rows []model.Dispatch) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.dispatches.BatchInsert(ctx, tx, rows); err != nil {
		return fmt.Errorf("insert dispatches: %w", err)
	}
	if err := s.campaigns.UpdateStatus(ctx, tx, campaignID, model.CampaignActive); err != nil {
		return fmt.Errorf("activate campaign: %w", err)
	}
	return tx.Commit()
}

// CommitResult persists one dispatch execution: the full message log batch
// plus the dispatch's final counters and sent status, all-or-nothing.
func (s *SQLStore) CommitResult(ctx context.Context, dispatchID int64, logs []model.MessageLog, success, failed int, sentAt time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.logs.BatchInsert(ctx, tx, logs); err != nil {
		return fmt.Errorf("insert message logs: %w", err)
	}
	if err := s.dispatches.MarkResult(ctx, tx, dispatchID, success, failed, sentAt); err != nil {
		return fmt.Errorf("mark dispatch result: %w", err)
	}
	return tx.Commit()
}

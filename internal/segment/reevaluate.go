package segment

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pvictorino/zapcampaign/internal/repository"
)

// Reevaluator recomputes segment labels for the whole customer set. It is a
// batch operation run after every ingest (CSV import, order stream), not an
// incremental one.
type Reevaluator struct {
	db        *sqlx.DB
	customers repository.CustomersRepository
}

func NewReevaluator(db *sqlx.DB, customers repository.CustomersRepository) *Reevaluator {
	return &Reevaluator{db: db, customers: customers}
}

// Reevaluate assigns labels across all customers and persists only the rows
// whose label changed, in a single transaction. Returns the number of
// customers whose segment moved.
func (r *Reevaluator) Reevaluate(ctx context.Context) (int, error) {
	all, err := r.customers.ListBySegment(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list customers: %w", err)
	}

	var changes []repository.SegmentChange
	for _, c := range all {
		label := Assign(c)
		if label != c.Segment {
			changes = append(changes, repository.SegmentChange{CustomerID: c.ID, Segment: label})
		}
	}
	if len(changes) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := r.customers.UpdateSegments(ctx, tx, changes); err != nil {
		return 0, fmt.Errorf("update segments: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(changes), nil
}

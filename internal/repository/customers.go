package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pvictorino/zapcampaign/internal/model"
)

// CustomersRepository is the customer store consumed by the planner, the
// executor and the ingest side. ListBySegment is the ordering contract both
// planner and executor rely on: rows always come back ordered by id ASC.
type CustomersRepository interface {
	ListBySegment(ctx context.Context, segment string) ([]model.Customer, error)
	GetByID(ctx context.Context, id int64) (*model.Customer, error)
	GetByPhone(ctx context.Context, phone string) (*model.Customer, error)
	Upsert(ctx context.Context, tx *sqlx.Tx, c model.Customer) error
	Count(ctx context.Context) (int64, error)
	SegmentCounts(ctx context.Context) (map[string]int64, error)
	SegmentAnalysis(ctx context.Context) ([]SegmentStats, error)
	UpdateSegments(ctx context.Context, tx *sqlx.Tx, changes []SegmentChange) error
}

// SegmentStats is one segment's profile plus its cumulative delivery
// outcomes across all campaigns.
type SegmentStats struct {
	Segment       string  `db:"segment" json:"segment"`
	CustomerCount int64   `db:"customer_count" json:"customer_count"`
	AvgTicket     float64 `db:"avg_ticket" json:"avg_ticket"`
	AvgFrequency  float64 `db:"avg_frequency" json:"avg_frequency"`
	TotalMessages int64   `db:"total_messages" json:"total_messages"`
	Delivered     int64   `db:"delivered" json:"delivered"`
}

// SegmentChange is one relabel produced by a batch re-segmentation run.
type SegmentChange struct {
	CustomerID int64
	Segment    model.SegmentLabel
}

type CustomersRepositoryImpl struct {
	db *sqlx.DB
}

func NewCustomersRepository(db *sqlx.DB) *CustomersRepositoryImpl {
	return &CustomersRepositoryImpl{db: db}
}

var _ CustomersRepository = (*CustomersRepositoryImpl)(nil)

const customerColumns = `id, name, phone, email, location, average_ticket, order_frequency, preferred_items, segment, last_order_date, created_at, updated_at`

// ListBySegment returns customers ordered by id ASC. An empty segment (or
// "all") returns everyone; planners and executors both partition over this
// exact ordering.
func (r *CustomersRepositoryImpl) ListBySegment(ctx context.Context, segment string) ([]model.Customer, error) {
	q := `SELECT ` + customerColumns + ` FROM customers`
	args := []any{}
	if segment != "" && segment != "all" {
		q += ` WHERE segment = ?`
		args = append(args, segment)
	}
	q += ` ORDER BY id ASC`

	var rows []model.Customer
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CustomersRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	var c model.Customer
	err := r.db.GetContext(ctx, &c,
		`SELECT `+customerColumns+` FROM customers WHERE id = ? LIMIT 1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CustomersRepositoryImpl) GetByPhone(ctx context.Context, phone string) (*model.Customer, error) {
	var c model.Customer
	err := r.db.GetContext(ctx, &c,
		`SELECT `+customerColumns+` FROM customers WHERE phone = ? LIMIT 1`, phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CustomersRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

// Upsert inserts or updates a customer keyed on the unique phone column.
func (r *CustomersRepositoryImpl) Upsert(ctx context.Context, tx *sqlx.Tx, c model.Customer) error {
	const q = `
		INSERT INTO customers
		    (name, phone, email, location, average_ticket, order_frequency, preferred_items, segment, last_order_date, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE
		    name            = VALUES(name),
		    email           = VALUES(email),
		    location        = VALUES(location),
		    average_ticket  = VALUES(average_ticket),
		    order_frequency = VALUES(order_frequency),
		    preferred_items = VALUES(preferred_items),
		    segment         = VALUES(segment),
		    last_order_date = VALUES(last_order_date),
		    updated_at      = NOW()
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			c.Name, c.Phone, c.Email, c.Location,
			c.AverageTicket, c.OrderFrequency, c.PreferredItems,
			c.Segment.String(), c.LastOrderDate,
		)
		return err
	})
}

func (r *CustomersRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM customers`); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *CustomersRepositoryImpl) SegmentCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT segment, COUNT(*) FROM customers GROUP BY segment`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var seg string
		var n int64
		if err := rows.Scan(&seg, &n); err != nil {
			return nil, err
		}
		counts[seg] = n
	}
	return counts, rows.Err()
}

// SegmentAnalysis profiles every segment: size, spending averages and the
// delivery outcomes of all messages its customers ever received. Message
// counts come through a per-customer subquery so the join never inflates
// the customer aggregates.
func (r *CustomersRepositoryImpl) SegmentAnalysis(ctx context.Context) ([]SegmentStats, error) {
	var rows []SegmentStats
	err := r.db.SelectContext(ctx, &rows, `
		SELECT c.segment,
		       COUNT(*)                                           AS customer_count,
		       COALESCE(AVG(c.average_ticket), 0)                 AS avg_ticket,
		       COALESCE(AVG(c.order_frequency), 0)                AS avg_frequency,
		       CAST(COALESCE(SUM(m.total), 0) AS SIGNED)          AS total_messages,
		       CAST(COALESCE(SUM(m.delivered), 0) AS SIGNED)      AS delivered
		  FROM customers c
		  LEFT JOIN (
		        SELECT customer_id,
		               COUNT(*)            AS total,
		               SUM(status = 'sent') AS delivered
		          FROM message_logs
		         GROUP BY customer_id
		  ) m ON m.customer_id = c.id
		 GROUP BY c.segment
		 ORDER BY c.segment
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateSegments applies a batch of relabels in one statement.
func (r *CustomersRepositoryImpl) UpdateSegments(ctx context.Context, tx *sqlx.Tx, changes []SegmentChange) error {
	if len(changes) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(changes)*2)

	sb.WriteString("SELECT ? AS id, ? AS segment")
	for i, ch := range changes {
		if i == 0 {
			args = append(args, ch.CustomerID, ch.Segment.String())
			continue
		}
		sb.WriteString(" UNION ALL SELECT ?, ?")
		args = append(args, ch.CustomerID, ch.Segment.String())
	}

	query := fmt.Sprintf(`
		UPDATE customers c
		JOIN (
			%s
		) s ON s.id = c.id
		SET c.segment = s.segment,
		    c.updated_at = NOW()
	`, sb.String())

	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
}

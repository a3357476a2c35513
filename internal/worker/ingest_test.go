package worker

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pvictorino/zapcampaign/internal/model"
	"github.com/pvictorino/zapcampaign/internal/repository"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type mockCustomers struct {
	byPhone  map[string]*model.Customer
	upserted []model.Customer
}

func (m *mockCustomers) ListBySegment(ctx context.Context, segment string) ([]model.Customer, error) {
	return nil, nil
}
func (m *mockCustomers) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	return nil, nil
}
func (m *mockCustomers) GetByPhone(ctx context.Context, phone string) (*model.Customer, error) {
	if c, ok := m.byPhone[phone]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}
func (m *mockCustomers) Upsert(ctx context.Context, tx *sqlx.Tx, c model.Customer) error {
	m.upserted = append(m.upserted, c)
	return nil
}
func (m *mockCustomers) Count(ctx context.Context) (int64, error) { return 0, nil }
func (m *mockCustomers) SegmentCounts(ctx context.Context) (map[string]int64, error) {
	return nil, nil
}
func (m *mockCustomers) SegmentAnalysis(ctx context.Context) ([]repository.SegmentStats, error) {
	return nil, nil
}
func (m *mockCustomers) UpdateSegments(ctx context.Context, tx *sqlx.Tx, changes []repository.SegmentChange) error {
	return nil
}

func newTestIngest(customers *mockCustomers) *IngestKafka {
	w := NewIngestKafka(nil, customers, zap.NewNop())
	w.Clock = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return w
}

func TestApplyNewCustomer(t *testing.T) {
	customers := &mockCustomers{byPhone: map[string]*model.Customer{}}
	w := newTestIngest(customers)

	err := w.Apply(context.Background(), model.OrderEvent{
		Phone:    "11 98888-0001",
		Name:     "Ana",
		Location: "Pinheiros",
		Total:    120,
		Items:    []string{"sushi", "temaki"},
	})
	assert.NoError(t, err)
	assert.Len(t, customers.upserted, 1)

	c := customers.upserted[0]
	assert.Equal(t, "+5511988880001", c.Phone)
	assert.Equal(t, 1, c.OrderFrequency)
	assert.Equal(t, 120.0, c.AverageTicket)
	assert.Equal(t, "sushi,temaki", c.PreferredItems)
	assert.Equal(t, model.SegmentHighTicket, c.Segment)
	assert.NotNil(t, c.LastOrderDate)
}

func TestApplyRollingAverage(t *testing.T) {
	customers := &mockCustomers{byPhone: map[string]*model.Customer{
		"+5511988880002": {
			ID:             7,
			Name:           "Bruno",
			Phone:          "+5511988880002",
			AverageTicket:  50,
			OrderFrequency: 4,
			PreferredItems: "temaki",
			Segment:        model.SegmentStandard,
		},
	}}
	w := newTestIngest(customers)

	// (50*4 + 100) / 5 = 60
	err := w.Apply(context.Background(), model.OrderEvent{
		Phone: "+5511988880002",
		Total: 100,
		Items: []string{"sushi", "temaki"},
	})
	assert.NoError(t, err)

	c := customers.upserted[0]
	assert.Equal(t, 5, c.OrderFrequency)
	assert.InDelta(t, 60.0, c.AverageTicket, 0.001)
	assert.Equal(t, "temaki,sushi", c.PreferredItems)
	// name must survive an event without one
	assert.Equal(t, "Bruno", c.Name)
}

func TestApplyResegments(t *testing.T) {
	customers := &mockCustomers{byPhone: map[string]*model.Customer{
		"+5511988880003": {
			ID:             8,
			Phone:          "+5511988880003",
			AverageTicket:  40,
			OrderFrequency: 7,
			Segment:        model.SegmentStandard,
		},
	}}
	w := newTestIngest(customers)

	// eighth order crosses the frequent threshold
	err := w.Apply(context.Background(), model.OrderEvent{Phone: "+5511988880003", Total: 40})
	assert.NoError(t, err)
	assert.Equal(t, model.SegmentFrequent, customers.upserted[0].Segment)
}

func TestMergeItems(t *testing.T) {
	assert.Equal(t, "a,b,c", mergeItems("a,b", []string{"b", "c"}))
	assert.Equal(t, "a", mergeItems("", []string{"a", "a"}))
	assert.Equal(t, "a,b", mergeItems("a, b", nil))
	assert.Equal(t, "", mergeItems("", nil))
}

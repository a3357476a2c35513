package planner

import (
	"context"
	"testing"
	"time"

	"github.com/pvictorino/zapcampaign/internal/model"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type mockStore struct {
	campaign  *model.Campaign
	customers []model.Customer

	planCampaignID int64
	planRows       []model.Dispatch
	planCalls      int
}

func (m *mockStore) GetCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	if m.campaign != nil && m.campaign.ID == id {
		return m.campaign, nil
	}
	return nil, nil
}

func (m *mockStore) ListCustomers(ctx context.Context, segment string) ([]model.Customer, error) {
	if segment == "" {
		return m.customers, nil
	}
	var out []model.Customer
	for _, c := range m.customers {
		if c.Segment.String() == segment {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockStore) CreatePlan(ctx context.Context, campaignID int64, rows []model.Dispatch) error {
	m.planCalls++
	m.planCampaignID = campaignID
	m.planRows = rows
	return nil
}

func makeCustomers(n int, seg model.SegmentLabel) []model.Customer {
	out := make([]model.Customer, n)
	for i := range out {
		out[i] = model.Customer{ID: int64(i + 1), Segment: seg}
	}
	return out
}

func TestBuildDispatches(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("650 customers make 3 groups x 3 waves", func(t *testing.T) {
		rows := BuildDispatches(7, 650, start)
		assert.Len(t, rows, 9)

		// group sizes: 300, 300, 50
		sizes := map[int]int{}
		for _, d := range rows {
			sizes[d.CustomerGroup] = d.CustomersCount
			assert.Equal(t, int64(7), d.CampaignID)
			assert.Equal(t, model.DispatchScheduled, d.Status)
		}
		assert.Equal(t, map[int]int{1: 300, 2: 300, 3: 50}, sizes)
	})

	t.Run("wave dates are 48h apart", func(t *testing.T) {
		rows := BuildDispatches(1, 10, start)
		assert.Len(t, rows, 3)
		assert.Equal(t, start, rows[0].ScheduledDate)
		assert.Equal(t, start.Add(48*time.Hour), rows[1].ScheduledDate)
		assert.Equal(t, start.Add(96*time.Hour), rows[2].ScheduledDate)
	})

	t.Run("exact multiple has no remainder group", func(t *testing.T) {
		rows := BuildDispatches(1, 600, start)
		assert.Len(t, rows, 6)
		for _, d := range rows {
			assert.Equal(t, 300, d.CustomersCount)
		}
	})
}

func TestPlan(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("plans full customer base", func(t *testing.T) {
		store := &mockStore{
			campaign:  &model.Campaign{ID: 1, TargetSegment: "all"},
			customers: makeCustomers(650, model.SegmentStandard),
		}
		svc := New(store, zap.NewNop())

		res, err := svc.Plan(context.Background(), 1, start, "")
		assert.NoError(t, err)
		assert.Equal(t, Result{Groups: 3, Dispatches: 9, Customers: 650}, res)
		assert.Equal(t, 1, store.planCalls)
		assert.Equal(t, int64(1), store.planCampaignID)
		assert.Len(t, store.planRows, 9)
	})

	t.Run("explicit segment overrides campaign filter", func(t *testing.T) {
		customers := append(
			makeCustomers(5, model.SegmentHighTicket),
			makeCustomers(10, model.SegmentStandard)...,
		)
		store := &mockStore{
			campaign:  &model.Campaign{ID: 2, TargetSegment: "all"},
			customers: customers,
		}
		svc := New(store, zap.NewNop())

		res, err := svc.Plan(context.Background(), 2, start, "high_ticket")
		assert.NoError(t, err)
		assert.Equal(t, 5, res.Customers)
		assert.Equal(t, 1, res.Groups)
	})

	t.Run("unknown campaign", func(t *testing.T) {
		store := &mockStore{}
		svc := New(store, zap.NewNop())

		_, err := svc.Plan(context.Background(), 99, start, "")
		assert.ErrorIs(t, err, ErrCampaignNotFound)
		assert.Zero(t, store.planCalls)
	})

	t.Run("invalid segment", func(t *testing.T) {
		store := &mockStore{campaign: &model.Campaign{ID: 1}}
		svc := New(store, zap.NewNop())

		_, err := svc.Plan(context.Background(), 1, start, "vip")
		assert.ErrorIs(t, err, ErrInvalidSegment)
		assert.Zero(t, store.planCalls)
	})

	t.Run("empty target writes nothing", func(t *testing.T) {
		store := &mockStore{campaign: &model.Campaign{ID: 1, TargetSegment: "frequent"}}
		svc := New(store, zap.NewNop())

		_, err := svc.Plan(context.Background(), 1, start, "")
		assert.ErrorIs(t, err, ErrEmptyTarget)
		assert.Zero(t, store.planCalls)
	})
}

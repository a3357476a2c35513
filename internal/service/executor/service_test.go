package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pvictorino/zapcampaign/internal/model"
	"github.com/pvictorino/zapcampaign/internal/repository"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type mockExecStore struct {
	mu sync.Mutex

	dispatch  *model.Dispatch
	campaign  *model.Campaign
	customers []model.Customer

	claimed   bool
	commitErr error

	committedLogs    []model.MessageLog
	committedSuccess int
	committedFailed  int
	commitCalls      int
	markedFailed     []int64
}

func (m *mockExecStore) GetDispatch(ctx context.Context, id int64) (*model.Dispatch, error) {
	if m.dispatch != nil && m.dispatch.ID == id {
		d := *m.dispatch
		return &d, nil
	}
	return nil, nil
}

func (m *mockExecStore) ClaimDispatch(ctx context.Context, id int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimed {
		return repository.ErrAlreadyClaimed
	}
	m.claimed = true
	return nil
}

func (m *mockExecStore) GetCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	if m.campaign != nil && m.campaign.ID == id {
		c := *m.campaign
		return &c, nil
	}
	return nil, nil
}

func (m *mockExecStore) ListCustomers(ctx context.Context, segment string) ([]model.Customer, error) {
	return m.customers, nil
}

func (m *mockExecStore) CommitResult(ctx context.Context, dispatchID int64, logs []model.MessageLog, success, failed int, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	m.commitCalls++
	m.committedLogs = logs
	m.committedSuccess = success
	m.committedFailed = failed
	return nil
}

func (m *mockExecStore) MarkDispatchFailed(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markedFailed = append(m.markedFailed, id)
	return nil
}

// mockGateway fails the 1-based recipients listed in failAt.
type mockGateway struct {
	mu         sync.Mutex
	calls      int
	textCalls  int
	mediaCalls int
	failAt     map[int]bool
}

func (g *mockGateway) next(kind string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if kind == "media" {
		g.mediaCalls++
	} else {
		g.textCalls++
	}
	if g.failAt[g.calls] {
		return "", errors.New("send timeout")
	}
	return fmt.Sprintf("WAMID-%d", g.calls), nil
}

func (g *mockGateway) SendText(ctx context.Context, phone, text string) (string, error) {
	return g.next("text")
}

func (g *mockGateway) SendMedia(ctx context.Context, phone, caption, mediaRef string) (string, error) {
	return g.next("media")
}

func execCustomers(n int) []model.Customer {
	out := make([]model.Customer, n)
	for i := range out {
		out[i] = model.Customer{
			ID:    int64(i + 1),
			Name:  fmt.Sprintf("Cliente %d", i+1),
			Phone: fmt.Sprintf("+55119888800%02d", i+1),
		}
	}
	return out
}

func newDispatch() *model.Dispatch {
	return &model.Dispatch{
		ID:             10,
		CampaignID:     1,
		CustomerGroup:  1,
		DispatchNumber: 1,
		Status:         model.DispatchScheduled,
	}
}

func TestExecutePartialFailure(t *testing.T) {
	store := &mockExecStore{
		dispatch:  newDispatch(),
		campaign:  &model.Campaign{ID: 1, MessageTemplate: "Oi {nome_cliente}", TargetSegment: "all"},
		customers: execCustomers(10),
	}
	gw := &mockGateway{failAt: map[int]bool{3: true, 7: true}}
	svc := New(store, gw, zap.NewNop())

	res, err := svc.Execute(context.Background(), 10)
	assert.NoError(t, err)
	assert.Equal(t, Result{SuccessCount: 8, FailedCount: 2, TotalCustomers: 10}, res)

	assert.Equal(t, 1, store.commitCalls)
	assert.Equal(t, 8, store.committedSuccess)
	assert.Equal(t, 2, store.committedFailed)
	assert.Len(t, store.committedLogs, 10)

	var sent, failed int
	for _, l := range store.committedLogs {
		switch l.Status {
		case model.MessageSent:
			sent++
			assert.NotEmpty(t, l.GatewayMessageID)
			assert.NotNil(t, l.SentDate)
		case model.MessageFailed:
			failed++
			assert.Equal(t, "send timeout", l.ErrorDetail)
			assert.Nil(t, l.SentDate)
		}
		assert.NotEmpty(t, l.ID)
		assert.NotEmpty(t, l.Content)
	}
	assert.Equal(t, 8, sent)
	assert.Equal(t, 2, failed)
}

func TestExecuteMediaSelection(t *testing.T) {
	t.Run("campaign with image uses media send", func(t *testing.T) {
		store := &mockExecStore{
			dispatch:  newDispatch(),
			campaign:  &model.Campaign{ID: 1, MessageTemplate: "m", ImageURL: "https://cdn/x.jpg"},
			customers: execCustomers(3),
		}
		gw := &mockGateway{}
		_, err := New(store, gw, zap.NewNop()).Execute(context.Background(), 10)
		assert.NoError(t, err)
		assert.Equal(t, 3, gw.mediaCalls)
		assert.Zero(t, gw.textCalls)
	})

	t.Run("campaign without image uses text send", func(t *testing.T) {
		store := &mockExecStore{
			dispatch:  newDispatch(),
			campaign:  &model.Campaign{ID: 1, MessageTemplate: "m"},
			customers: execCustomers(3),
		}
		gw := &mockGateway{}
		_, err := New(store, gw, zap.NewNop()).Execute(context.Background(), 10)
		assert.NoError(t, err)
		assert.Equal(t, 3, gw.textCalls)
		assert.Zero(t, gw.mediaCalls)
	})
}

func TestExecuteGroupSlicing(t *testing.T) {
	// 650 candidates, group 3 holds the 50-customer remainder.
	d := newDispatch()
	d.CustomerGroup = 3
	store := &mockExecStore{
		dispatch:  d,
		campaign:  &model.Campaign{ID: 1, MessageTemplate: "m"},
		customers: execCustomers(650),
	}
	gw := &mockGateway{}
	res, err := New(store, gw, zap.NewNop()).Execute(context.Background(), 10)
	assert.NoError(t, err)
	assert.Equal(t, 50, res.TotalCustomers)
	assert.Equal(t, int64(601), store.committedLogs[0].CustomerID)
}

func TestExecuteGuards(t *testing.T) {
	t.Run("unknown dispatch", func(t *testing.T) {
		store := &mockExecStore{}
		_, err := New(store, &mockGateway{}, zap.NewNop()).Execute(context.Background(), 404)
		assert.ErrorIs(t, err, ErrDispatchNotFound)
	})

	t.Run("already sent", func(t *testing.T) {
		d := newDispatch()
		d.Status = model.DispatchSent
		store := &mockExecStore{dispatch: d}
		_, err := New(store, &mockGateway{}, zap.NewNop()).Execute(context.Background(), 10)
		assert.ErrorIs(t, err, ErrNotScheduled)
	})

	t.Run("commit error settles the dispatch as failed", func(t *testing.T) {
		store := &mockExecStore{
			dispatch:  newDispatch(),
			campaign:  &model.Campaign{ID: 1, MessageTemplate: "m"},
			customers: execCustomers(3),
			commitErr: errors.New("deadlock"),
		}
		_, err := New(store, &mockGateway{}, zap.NewNop()).Execute(context.Background(), 10)
		assert.Error(t, err)
		// the claimed row must not stay scheduled-but-unfindable
		assert.Equal(t, []int64{10}, store.markedFailed)
	})

	t.Run("invalid stored segment fails instead of widening to everyone", func(t *testing.T) {
		store := &mockExecStore{
			dispatch:  newDispatch(),
			campaign:  &model.Campaign{ID: 1, MessageTemplate: "m", TargetSegment: "vip"},
			customers: execCustomers(3),
		}
		gw := &mockGateway{}
		_, err := New(store, gw, zap.NewNop()).Execute(context.Background(), 10)
		assert.Error(t, err)
		assert.Zero(t, gw.calls)
		assert.Equal(t, []int64{10}, store.markedFailed)
	})

	t.Run("missing campaign fails the dispatch", func(t *testing.T) {
		store := &mockExecStore{
			dispatch:  newDispatch(),
			customers: execCustomers(3),
		}
		_, err := New(store, &mockGateway{}, zap.NewNop()).Execute(context.Background(), 10)
		assert.Error(t, err)
		assert.Equal(t, []int64{10}, store.markedFailed)
	})

	t.Run("claim loss marks nothing failed", func(t *testing.T) {
		store := &mockExecStore{
			dispatch: newDispatch(),
			claimed:  true,
		}
		_, err := New(store, &mockGateway{}, zap.NewNop()).Execute(context.Background(), 10)
		assert.ErrorIs(t, err, repository.ErrAlreadyClaimed)
		assert.Empty(t, store.markedFailed)
	})

	t.Run("concurrent claims have one winner", func(t *testing.T) {
		store := &mockExecStore{
			dispatch:  newDispatch(),
			campaign:  &model.Campaign{ID: 1, MessageTemplate: "m"},
			customers: execCustomers(5),
		}
		svc := New(store, &mockGateway{}, zap.NewNop())

		errs := make(chan error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Execute(context.Background(), 10)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		var wins, losses int
		for err := range errs {
			if err == nil {
				wins++
			} else if errors.Is(err, repository.ErrAlreadyClaimed) {
				losses++
			}
		}
		assert.Equal(t, 1, wins)
		assert.Equal(t, 1, losses)
		assert.Equal(t, 1, store.commitCalls)
	})
}

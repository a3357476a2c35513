package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pvictorino/zapcampaign/internal/model"
	"github.com/pvictorino/zapcampaign/internal/repository"
	"github.com/pvictorino/zapcampaign/internal/service/executor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type mockDispatchStore struct {
	mu       sync.Mutex
	due      []model.Dispatch
	findErr  error
	failedID []int64
}

func (m *mockDispatchStore) FindDueDispatches(ctx context.Context, now time.Time) ([]model.Dispatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.due, nil
}

func (m *mockDispatchStore) MarkDispatchFailed(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedID = append(m.failedID, id)
	return nil
}

type mockExecutor struct {
	mu       sync.Mutex
	executed []int64
	errByID  map[int64]error
}

func (m *mockExecutor) Execute(ctx context.Context, dispatchID int64) (executor.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executed = append(m.executed, dispatchID)
	if err := m.errByID[dispatchID]; err != nil {
		return executor.Result{}, err
	}
	return executor.Result{SuccessCount: 1}, nil
}

func newTestScheduler(store *mockDispatchStore, exec *mockExecutor) *Scheduler {
	s := New(store, exec, time.Hour, zap.NewNop())
	s.Clock = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return s
}

func TestTickExecutesDue(t *testing.T) {
	store := &mockDispatchStore{due: []model.Dispatch{{ID: 1}, {ID: 2}, {ID: 3}}}
	exec := &mockExecutor{}
	s := newTestScheduler(store, exec)

	s.Tick(context.Background())

	assert.Equal(t, []int64{1, 2, 3}, exec.executed)
	assert.Empty(t, store.failedID)
}

func TestTickZeroDueMakesNoCalls(t *testing.T) {
	store := &mockDispatchStore{}
	exec := &mockExecutor{}
	s := newTestScheduler(store, exec)

	s.Tick(context.Background())

	assert.Empty(t, exec.executed)
	assert.Empty(t, store.failedID)
}

func TestTickFailureIsolation(t *testing.T) {
	store := &mockDispatchStore{due: []model.Dispatch{{ID: 1}, {ID: 2}, {ID: 3}}}
	exec := &mockExecutor{errByID: map[int64]error{2: errors.New("gateway down")}}
	s := newTestScheduler(store, exec)

	s.Tick(context.Background())

	// all three attempted, only the broken one marked failed
	assert.Equal(t, []int64{1, 2, 3}, exec.executed)
	assert.Equal(t, []int64{2}, store.failedID)
}

func TestTickSkipsClaimLosers(t *testing.T) {
	store := &mockDispatchStore{due: []model.Dispatch{{ID: 1}, {ID: 2}}}
	exec := &mockExecutor{errByID: map[int64]error{
		1: repository.ErrAlreadyClaimed,
		2: executor.ErrNotScheduled,
	}}
	s := newTestScheduler(store, exec)

	s.Tick(context.Background())

	// lost races are skips, never failures
	assert.Empty(t, store.failedID)
}

func TestStartStopIdempotent(t *testing.T) {
	store := &mockDispatchStore{}
	exec := &mockExecutor{}
	s := newTestScheduler(store, exec)

	ctx := context.Background()
	assert.False(t, s.Running())

	s.Start(ctx)
	s.Start(ctx) // second start is a no-op
	assert.True(t, s.Running())

	s.Stop()
	assert.False(t, s.Running())
	s.Stop() // second stop is a no-op
	assert.False(t, s.Running())

	// restart works
	s.Start(ctx)
	assert.True(t, s.Running())
	s.Stop()
}

func TestContextCancelStopsLoop(t *testing.T) {
	store := &mockDispatchStore{}
	exec := &mockExecutor{}
	s := newTestScheduler(store, exec)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.True(t, s.Running())

	cancel()
	assert.Eventually(t, func() bool { return !s.Running() },
		time.Second, 10*time.Millisecond)

	// a fresh Start must spin up a new loop, not silently no-op
	s.Start(context.Background())
	assert.True(t, s.Running())
	s.Stop()
	assert.False(t, s.Running())
}

// Package planner turns a campaign plus a start date into the full set of
// scheduled dispatches: fixed-size customer groups, three waves per group,
// two days between waves.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pvictorino/zapcampaign/internal/model"
	"go.uber.org/zap"
)

const (
	// GroupSize is the fixed partition size; the executor slices the same
	// customer ordering with the same constant.
	GroupSize = 300
	// WaveCount sends per group.
	WaveCount = 3
	// WaveInterval between consecutive waves of one group.
	WaveInterval = 48 * time.Hour
)

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrEmptyTarget      = errors.New("no customers in target segment")
	ErrInvalidSegment   = errors.New("invalid target segment")
)

// Store is the persistence surface the planner needs.
type Store interface {
	GetCampaign(ctx context.Context, id int64) (*model.Campaign, error)
	ListCustomers(ctx context.Context, segment string) ([]model.Customer, error)
	CreatePlan(ctx context.Context, campaignID int64, rows []model.Dispatch) error
}

type Service struct {
	store Store
	log   *zap.Logger
}

func New(store Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log}
}

type Result struct {
	Groups     int
	Dispatches int
	Customers  int
}

// BuildDispatches lays out the wave schedule for n candidates: ceil(n/GroupSize)
// groups, WaveCount rows per group, wave k at startDate + (k-1)*WaveInterval.
// The last group carries the remainder.
func BuildDispatches(campaignID int64, n int, startDate time.Time) []model.Dispatch {
	groups := (n + GroupSize - 1) / GroupSize

	rows := make([]model.Dispatch, 0, groups*WaveCount)
	for g := 1; g <= groups; g++ {
		size := GroupSize
		if g == groups {
			size = n - (groups-1)*GroupSize
		}
		for wave := 1; wave <= WaveCount; wave++ {
			rows = append(rows, model.Dispatch{
				CampaignID:     campaignID,
				CustomerGroup:  g,
				DispatchNumber: wave,
				ScheduledDate:  startDate.Add(time.Duration(wave-1) * WaveInterval),
				Status:         model.DispatchScheduled,
				CustomersCount: size,
			})
		}
	}
	return rows
}

// Plan partitions the target customers and persists the schedule. When
// targetSegment is empty the campaign's own filter applies. Nothing is
// written on any error path, including ErrEmptyTarget.
func (s *Service) Plan(ctx context.Context, campaignID int64, startDate time.Time, targetSegment string) (Result, error) {
	camp, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return Result{}, fmt.Errorf("get campaign: %w", err)
	}
	if camp == nil {
		return Result{}, ErrCampaignNotFound
	}

	seg := targetSegment
	if seg == "" {
		seg = camp.TargetSegment
	}
	filter, ok := model.ParseSegmentFilter(seg)
	if !ok {
		return Result{}, ErrInvalidSegment
	}

	candidates, err := s.store.ListCustomers(ctx, filter)
	if err != nil {
		return Result{}, fmt.Errorf("list customers: %w", err)
	}
	if len(candidates) == 0 {
		return Result{}, ErrEmptyTarget
	}

	rows := BuildDispatches(campaignID, len(candidates), startDate)
	if err := s.store.CreatePlan(ctx, campaignID, rows); err != nil {
		return Result{}, fmt.Errorf("create plan: %w", err)
	}

	groups := len(rows) / WaveCount
	s.log.Info("campaign planned",
		zap.Int64("campaign_id", campaignID),
		zap.String("segment", seg),
		zap.Int("groups", groups),
		zap.Int("dispatches", len(rows)),
		zap.Int("customers", len(candidates)),
	)

	return Result{Groups: groups, Dispatches: len(rows), Customers: len(candidates)}, nil
}

// Package executor runs one claimed dispatch end to end: resolve the
// recipient group, render and send per recipient, then commit the message
// logs and aggregate counters in one transaction.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pvictorino/zapcampaign/internal/metrics"
	"github.com/pvictorino/zapcampaign/internal/model"
	"github.com/pvictorino/zapcampaign/internal/service/planner"
	"github.com/pvictorino/zapcampaign/internal/service/render"
	"github.com/pvictorino/zapcampaign/internal/util"
	"go.uber.org/zap"
)

var (
	ErrDispatchNotFound = errors.New("dispatch not found")
	// ErrNotScheduled guards re-execution: the dispatch was already sent,
	// failed, or is mid-flight.
	ErrNotScheduled = errors.New("dispatch is not scheduled")
)

// Gateway is the messaging transport capability. One call per recipient,
// no retries; a failure is recorded and the run moves on.
type Gateway interface {
	SendText(ctx context.Context, phone, text string) (string, error)
	SendMedia(ctx context.Context, phone, caption, mediaRef string) (string, error)
}

// Store is the persistence surface the executor needs. ClaimDispatch must
// be a conditional update that fails with repository.ErrAlreadyClaimed when
// another run owns the row.
type Store interface {
	GetDispatch(ctx context.Context, id int64) (*model.Dispatch, error)
	ClaimDispatch(ctx context.Context, id int64, now time.Time) error
	GetCampaign(ctx context.Context, id int64) (*model.Campaign, error)
	ListCustomers(ctx context.Context, segment string) ([]model.Customer, error)
	CommitResult(ctx context.Context, dispatchID int64, logs []model.MessageLog, success, failed int, sentAt time.Time) error
	MarkDispatchFailed(ctx context.Context, id int64) error
}

type Service struct {
	store Store
	gw    Gateway
	log   *zap.Logger

	// Clock is overridable for tests; defaults to time.Now.
	Clock func() time.Time
}

func New(store Store, gw Gateway, log *zap.Logger) *Service {
	return &Service{
		store: store,
		gw:    gw,
		log:   log,
		Clock: time.Now,
	}
}

type Result struct {
	SuccessCount   int
	FailedCount    int
	TotalCustomers int
}

// Execute claims and runs one dispatch. The recipient group is re-derived
// from the current segment state using the planner's ordering and slicing
// rules. Per-recipient gateway failures are recorded and never abort the
// run; the dispatch always finishes as sent once the loop completes.
func (s *Service) Execute(ctx context.Context, dispatchID int64) (Result, error) {
	d, err := s.store.GetDispatch(ctx, dispatchID)
	if err != nil {
		return Result{}, fmt.Errorf("get dispatch: %w", err)
	}
	if d == nil {
		return Result{}, ErrDispatchNotFound
	}
	if d.Status != model.DispatchScheduled {
		return Result{}, ErrNotScheduled
	}

	// Claim before any send. Concurrent callers (scheduler tick vs manual
	// endpoint) race on this row; exactly one proceeds.
	if err := s.store.ClaimDispatch(ctx, d.ID, s.Clock()); err != nil {
		return Result{}, err
	}

	// Once claimed, the row is invisible to FindDue and every retry loses
	// the claim CAS. Any error from here on must settle the dispatch as
	// failed or it would be stranded.
	fail := func(err error) (Result, error) {
		if merr := s.store.MarkDispatchFailed(ctx, d.ID); merr != nil {
			s.log.Error("mark dispatch failed", zap.Int64("dispatch_id", d.ID), zap.Error(merr))
		}
		metrics.DispatchesTotal.WithLabelValues("failed").Inc()
		return Result{}, err
	}

	camp, err := s.store.GetCampaign(ctx, d.CampaignID)
	if err != nil {
		return fail(fmt.Errorf("get campaign: %w", err))
	}
	if camp == nil {
		return fail(fmt.Errorf("campaign %d missing for dispatch %d", d.CampaignID, d.ID))
	}

	filter, ok := model.ParseSegmentFilter(camp.TargetSegment)
	if !ok {
		return fail(fmt.Errorf("campaign %d has invalid target segment %q", camp.ID, camp.TargetSegment))
	}
	candidates, err := s.store.ListCustomers(ctx, filter)
	if err != nil {
		return fail(fmt.Errorf("list customers: %w", err))
	}

	group := sliceGroup(candidates, d.CustomerGroup)
	wave := strconv.Itoa(d.DispatchNumber)

	logs := make([]model.MessageLog, 0, len(group))
	var success, failed int

	for _, c := range group {
		content := render.Message(camp.MessageTemplate, c, camp.CouponCode)

		var transportID string
		var sendErr error
		if camp.ImageURL != "" {
			transportID, sendErr = s.gw.SendMedia(ctx, c.Phone, content, camp.ImageURL)
		} else {
			transportID, sendErr = s.gw.SendText(ctx, c.Phone, content)
		}

		entry := model.MessageLog{
			ID:         util.NewULID(),
			CampaignID: camp.ID,
			DispatchID: d.ID,
			CustomerID: c.ID,
			Phone:      c.Phone,
			Content:    content,
			ImageURL:   camp.ImageURL,
		}

		if sendErr != nil {
			entry.Status = model.MessageFailed
			entry.ErrorDetail = sendErr.Error()
			failed++
			metrics.MessagesTotal.WithLabelValues("failed", wave).Inc()
			s.log.Warn("message send failed",
				zap.Int64("dispatch_id", d.ID),
				zap.String("phone", c.Phone),
				zap.Error(sendErr),
			)
		} else {
			now := s.Clock()
			entry.Status = model.MessageSent
			entry.GatewayMessageID = transportID
			entry.SentDate = &now
			success++
			metrics.MessagesTotal.WithLabelValues("sent", wave).Inc()
		}

		logs = append(logs, entry)
	}

	sentAt := s.Clock()
	if err := s.store.CommitResult(ctx, d.ID, logs, success, failed, sentAt); err != nil {
		return fail(fmt.Errorf("commit result: %w", err))
	}

	metrics.DispatchesTotal.WithLabelValues("executed").Inc()
	s.log.Info("dispatch executed",
		zap.Int64("dispatch_id", d.ID),
		zap.Int64("campaign_id", camp.ID),
		zap.Int("group", d.CustomerGroup),
		zap.Int("wave", d.DispatchNumber),
		zap.Int("success", success),
		zap.Int("failed", failed),
	)

	return Result{SuccessCount: success, FailedCount: failed, TotalCustomers: len(group)}, nil
}

// sliceGroup cuts the 1-based group out of the ordered candidate set.
// Membership can drift from planning time if customers or segments changed
// since; re-derivation is the accepted semantics.
func sliceGroup(candidates []model.Customer, group int) []model.Customer {
	start := (group - 1) * planner.GroupSize
	if start >= len(candidates) || start < 0 {
		return nil
	}
	end := start + planner.GroupSize
	if end > len(candidates) {
		end = len(candidates)
	}
	return candidates[start:end]
}

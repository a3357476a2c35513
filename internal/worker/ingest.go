// Package worker holds the background consumers. IngestKafka keeps customer
// profiles current from the order stream so segments stay accurate without
// manual re-imports.
package worker

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pvictorino/zapcampaign/internal/kafka"
	"github.com/pvictorino/zapcampaign/internal/model"
	"github.com/pvictorino/zapcampaign/internal/repository"
	"github.com/pvictorino/zapcampaign/internal/segment"
	"github.com/pvictorino/zapcampaign/internal/util"
	"go.uber.org/zap"
)

// IngestKafka:
// - fetches completed-order events from Kafka,
// - folds each order into the customer profile (rolling average ticket,
//   order frequency, preferred items, last order date),
// - re-derives the segment label and upserts the row.
type IngestKafka struct {
	Consumer  *kafka.Consumer
	Customers repository.CustomersRepository
	Log       *zap.Logger

	// Clock is overridable for tests; defaults to time.Now.
	Clock func() time.Time
}

func NewIngestKafka(consumer *kafka.Consumer, customers repository.CustomersRepository, log *zap.Logger) *IngestKafka {
	return &IngestKafka{
		Consumer:  consumer,
		Customers: customers,
		Log:       log,
		Clock:     time.Now,
	}
}

// Run consumes until ctx is cancelled. Poison messages are committed and
// skipped so one bad payload never wedges the partition.
func (w *IngestKafka) Run(ctx context.Context) error {
	for {
		m, err := w.Consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.Log.Warn("kafka fetch", zap.Error(err))
			time.Sleep(200 * time.Millisecond)
			continue
		}

		var ev model.OrderEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.Phone == "" {
			_ = w.Consumer.Commit(ctx, m)
			w.Log.Warn("dropping bad order event", zap.Error(err))
			continue
		}

		if err := w.Apply(ctx, ev); err != nil {
			// Leave uncommitted so the event is retried after restart.
			w.Log.Error("apply order event", zap.String("phone", ev.Phone), zap.Error(err))
			continue
		}

		if err := w.Consumer.Commit(ctx, m); err != nil {
			w.Log.Warn("kafka commit", zap.Error(err))
		}
	}
}

// Apply folds one completed order into the matching customer profile,
// creating the customer on first contact.
func (w *IngestKafka) Apply(ctx context.Context, ev model.OrderEvent) error {
	phone := util.NormalizePhone(ev.Phone)
	now := w.Clock()

	existing, err := w.Customers.GetByPhone(ctx, phone)
	if err != nil {
		return err
	}

	var c model.Customer
	if existing != nil {
		c = *existing
		// Rolling mean over the order count before this event.
		n := float64(c.OrderFrequency)
		c.AverageTicket = (c.AverageTicket*n + ev.Total) / (n + 1)
		c.OrderFrequency++
		c.PreferredItems = mergeItems(c.PreferredItems, ev.Items)
	} else {
		c = model.Customer{
			Phone:          phone,
			AverageTicket:  ev.Total,
			OrderFrequency: 1,
			PreferredItems: strings.Join(ev.Items, ","),
		}
	}

	if ev.Name != "" {
		c.Name = ev.Name
	}
	if ev.Email != "" {
		c.Email = ev.Email
	}
	if ev.Location != "" {
		c.Location = ev.Location
	}
	c.LastOrderDate = &now
	c.Segment = segment.Assign(c)

	return w.Customers.Upsert(ctx, nil, c)
}

// mergeItems appends new items to the comma-separated preference list,
// keeping first-seen order and dropping duplicates.
func mergeItems(current string, items []string) string {
	seen := make(map[string]bool)
	var out []string
	for _, it := range strings.Split(current, ",") {
		it = strings.TrimSpace(it)
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return strings.Join(out, ",")
}

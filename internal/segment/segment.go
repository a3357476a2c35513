package segment

import (
	"github.com/pvictorino/zapcampaign/internal/model"
)

const (
	// HighTicketMin is the average order value that promotes a customer
	// into the high_ticket segment.
	HighTicketMin = 100.0
	// FrequentMinOrders is the monthly order count for the frequent segment.
	FrequentMinOrders = 8
)

// Assign derives the segment label from the customer's current attributes.
// Rules are evaluated top-down, first match wins; there is always exactly
// one label.
func Assign(c model.Customer) model.SegmentLabel {
	switch {
	case c.AverageTicket >= HighTicketMin:
		return model.SegmentHighTicket
	case c.OrderFrequency >= FrequentMinOrders:
		return model.SegmentFrequent
	case c.Location != "":
		return model.SegmentLocationBased
	default:
		return model.SegmentStandard
	}
}

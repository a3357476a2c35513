package model

import "strings"

type SegmentLabel string

const (
	SegmentHighTicket    SegmentLabel = "high_ticket"
	SegmentFrequent      SegmentLabel = "frequent"
	SegmentLocationBased SegmentLabel = "location_based"
	SegmentStandard      SegmentLabel = "standard"
)

func (s SegmentLabel) String() string { return string(s) }

func (s SegmentLabel) Valid() bool {
	return s == SegmentHighTicket || s == SegmentFrequent || s == SegmentLocationBased || s == SegmentStandard
}

// ParseSegmentFilter normalizes a campaign target filter; empty and "all"
// both mean "no filter". Returns (value, true) if usable as a filter.
func ParseSegmentFilter(s string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" || v == "all" {
		return "", true
	}
	if SegmentLabel(v).Valid() {
		return v, true
	}
	return "", false
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/pvictorino/zapcampaign/internal/model"
	"github.com/pvictorino/zapcampaign/internal/repository"
	"github.com/stretchr/testify/assert"
)

type mockCustomersRepo struct {
	byID     map[int64]*model.Customer
	analysis []repository.SegmentStats
}

func (m *mockCustomersRepo) ListBySegment(ctx context.Context, segment string) ([]model.Customer, error) {
	return nil, nil
}
func (m *mockCustomersRepo) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	return m.byID[id], nil
}
func (m *mockCustomersRepo) GetByPhone(ctx context.Context, phone string) (*model.Customer, error) {
	return nil, nil
}
func (m *mockCustomersRepo) Upsert(ctx context.Context, tx *sqlx.Tx, c model.Customer) error {
	return nil
}
func (m *mockCustomersRepo) Count(ctx context.Context) (int64, error) { return 0, nil }
func (m *mockCustomersRepo) SegmentCounts(ctx context.Context) (map[string]int64, error) {
	return nil, nil
}
func (m *mockCustomersRepo) SegmentAnalysis(ctx context.Context) ([]repository.SegmentStats, error) {
	return m.analysis, nil
}
func (m *mockCustomersRepo) UpdateSegments(ctx context.Context, tx *sqlx.Tx, changes []repository.SegmentChange) error {
	return nil
}

type mockLogsRepo struct {
	engagement repository.CustomerEngagement
}

func (m *mockLogsRepo) BatchInsert(ctx context.Context, tx *sqlx.Tx, rows []model.MessageLog) error {
	return nil
}
func (m *mockLogsRepo) CustomerEngagement(ctx context.Context, customerID int64) (repository.CustomerEngagement, error) {
	return m.engagement, nil
}

func TestCustomerEngagementHandler(t *testing.T) {
	last := time.Date(2026, 2, 10, 18, 0, 0, 0, time.UTC)
	customers := &mockCustomersRepo{byID: map[int64]*model.Customer{
		7: {
			ID:             7,
			Name:           "Ana",
			Phone:          "+5511988880001",
			Segment:        model.SegmentHighTicket,
			AverageTicket:  150,
			OrderFrequency: 3,
		},
	}}
	logs := &mockLogsRepo{engagement: repository.CustomerEngagement{
		TotalMessages: 10,
		Delivered:     8,
		Failed:        2,
		Campaigns:     3,
		LastMessageAt: &last,
	}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("7")

	err := customerEngagementHandler(customers, logs)(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Ana", body["customer_name"])
	assert.Equal(t, float64(10), body["total_messages_received"])
	assert.Equal(t, float64(8), body["successful_deliveries"])
	assert.Equal(t, float64(2), body["failed_deliveries"])
	assert.Equal(t, 0.8, body["delivery_rate"])
	assert.Equal(t, float64(3), body["campaigns_participated"])
}

func TestCustomerEngagementHandlerNotFound(t *testing.T) {
	customers := &mockCustomersRepo{byID: map[int64]*model.Customer{}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("404")

	err := customerEngagementHandler(customers, &mockLogsRepo{})(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSegmentAnalysisHandler(t *testing.T) {
	customers := &mockCustomersRepo{analysis: []repository.SegmentStats{
		{Segment: "high_ticket", CustomerCount: 2, AvgTicket: 185, AvgFrequency: 6.5, TotalMessages: 20, Delivered: 18},
		{Segment: "standard", CustomerCount: 5, AvgTicket: 42, AvgFrequency: 2},
	}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := segmentAnalysisHandler(customers)(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		TotalSegments int `json:"total_segments"`
		Segments      []struct {
			Segment      string  `json:"segment"`
			DeliveryRate float64 `json:"delivery_rate"`
		} `json:"segments"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.TotalSegments)
	assert.Equal(t, "high_ticket", body.Segments[0].Segment)
	assert.Equal(t, 0.9, body.Segments[0].DeliveryRate)
	// segment with no messages reports a zero rate, not a division error
	assert.Equal(t, 0.0, body.Segments[1].DeliveryRate)
}

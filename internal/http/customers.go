package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/pvictorino/zapcampaign/internal/repository"
)

func segmentCountsHandler(customers repository.CustomersRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		counts, err := customers.SegmentCounts(c.Request().Context())
		if err != nil {
			log.Errorf("segment counts failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		var total int64
		for _, n := range counts {
			total += n
		}
		return c.JSON(http.StatusOK, map[string]any{
			"total":    total,
			"segments": counts,
		})
	}
}

func customerEngagementHandler(customers repository.CustomersRepository, logs repository.MessageLogsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid customer id"})
		}

		cust, err := customers.GetByID(c.Request().Context(), id)
		if err != nil {
			log.Errorf("get customer %d failed: %v", id, err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if cust == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "customer not found"})
		}

		eng, err := logs.CustomerEngagement(c.Request().Context(), id)
		if err != nil {
			log.Errorf("customer engagement %d failed: %v", id, err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		rate := 0.0
		if eng.TotalMessages > 0 {
			rate = float64(eng.Delivered) / float64(eng.TotalMessages)
		}

		return c.JSON(http.StatusOK, map[string]any{
			"customer_id":             cust.ID,
			"customer_name":           cust.Name,
			"phone":                   cust.Phone,
			"segment":                 cust.Segment.String(),
			"average_ticket":          cust.AverageTicket,
			"order_frequency":         cust.OrderFrequency,
			"total_messages_received": eng.TotalMessages,
			"successful_deliveries":   eng.Delivered,
			"failed_deliveries":       eng.Failed,
			"delivery_rate":           rate,
			"last_message_date":       eng.LastMessageAt,
			"campaigns_participated":  eng.Campaigns,
		})
	}
}

func segmentAnalysisHandler(customers repository.CustomersRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		stats, err := customers.SegmentAnalysis(c.Request().Context())
		if err != nil {
			log.Errorf("segment analysis failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		type segmentRow struct {
			repository.SegmentStats
			DeliveryRate float64 `json:"delivery_rate"`
		}
		rows := make([]segmentRow, 0, len(stats))
		for _, s := range stats {
			row := segmentRow{SegmentStats: s}
			if s.TotalMessages > 0 {
				row.DeliveryRate = float64(s.Delivered) / float64(s.TotalMessages)
			}
			rows = append(rows, row)
		}

		return c.JSON(http.StatusOK, map[string]any{
			"total_segments": len(rows),
			"segments":       rows,
		})
	}
}

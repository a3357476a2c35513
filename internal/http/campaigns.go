package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/pvictorino/zapcampaign/internal/model"
	"github.com/pvictorino/zapcampaign/internal/repository"
	"github.com/pvictorino/zapcampaign/internal/service/planner"
)

type createCampaignReq struct {
	Name            string `json:"name"`
	MessageTemplate string `json:"message_template"`
	ImageURL        string `json:"image_url"`
	CouponCode      string `json:"coupon_code"`
	TargetSegment   string `json:"target_segment"` // "", "all" or a segment label
}

func createCampaignHandler(campaigns repository.CampaignsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createCampaignReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		req.Name = strings.TrimSpace(req.Name)
		req.MessageTemplate = strings.TrimSpace(req.MessageTemplate)
		if req.Name == "" || req.MessageTemplate == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "name and message_template are required"})
		}
		if _, ok := model.ParseSegmentFilter(req.TargetSegment); !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid target_segment"})
		}

		camp := model.Campaign{
			Name:            req.Name,
			MessageTemplate: req.MessageTemplate,
			ImageURL:        strings.TrimSpace(req.ImageURL),
			CouponCode:      strings.TrimSpace(req.CouponCode),
			TargetSegment:   strings.ToLower(strings.TrimSpace(req.TargetSegment)),
		}
		if err := campaigns.Create(c.Request().Context(), &camp); err != nil {
			log.Errorf("create campaign failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusCreated, map[string]any{
			"id":     camp.ID,
			"status": camp.Status.String(),
		})
	}
}

func listCampaignsHandler(campaigns repository.CampaignsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		rows, err := campaigns.List(c.Request().Context())
		if err != nil {
			log.Errorf("list campaigns failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"count":   len(rows),
			"results": rows,
		})
	}
}

type scheduleReq struct {
	StartDate     string `json:"start_date"` // RFC3339 or YYYY-MM-DD; empty = now
	TargetSegment string `json:"target_segment"`
}

func scheduleCampaignHandler(plannerSvc *planner.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid campaign id"})
		}

		var req scheduleReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		start := time.Now()
		if raw := strings.TrimSpace(req.StartDate); raw != "" {
			start, err = parseDate(raw)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid start_date"})
			}
		}

		res, err := plannerSvc.Plan(c.Request().Context(), id, start, req.TargetSegment)
		if err != nil {
			switch {
			case errors.Is(err, planner.ErrCampaignNotFound):
				return c.JSON(http.StatusNotFound, map[string]string{"error": "campaign not found"})
			case errors.Is(err, planner.ErrInvalidSegment):
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid target_segment"})
			case errors.Is(err, planner.ErrEmptyTarget):
				return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "no customers in target segment"})
			}
			log.Errorf("plan campaign %d failed: %v", id, err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusCreated, map[string]any{
			"campaign_id": id,
			"groups":      res.Groups,
			"dispatches":  res.Dispatches,
			"customers":   res.Customers,
		})
	}
}

// wavePerformance aggregates dispatch outcomes for one wave number.
type wavePerformance struct {
	Wave       int `json:"wave"`
	Dispatches int `json:"dispatches"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Pending    int `json:"pending"`
	Messages   int `json:"messages_sent"`
	Errors     int `json:"messages_failed"`
}

func campaignPerformanceHandler(campaigns repository.CampaignsRepository, dispatches repository.DispatchesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid campaign id"})
		}

		camp, err := campaigns.GetByID(c.Request().Context(), id)
		if err != nil {
			log.Errorf("get campaign %d failed: %v", id, err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if camp == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "campaign not found"})
		}

		rows, err := dispatches.ListByCampaign(c.Request().Context(), id)
		if err != nil {
			log.Errorf("list dispatches for campaign %d failed: %v", id, err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		byWave := map[int]*wavePerformance{}
		var totalSent, totalFailed int
		for _, d := range rows {
			w := byWave[d.DispatchNumber]
			if w == nil {
				w = &wavePerformance{Wave: d.DispatchNumber}
				byWave[d.DispatchNumber] = w
			}
			w.Dispatches++
			switch d.Status {
			case model.DispatchSent:
				w.Sent++
			case model.DispatchFailed:
				w.Failed++
			default:
				w.Pending++
			}
			w.Messages += d.SuccessCount
			w.Errors += d.FailedCount
			totalSent += d.SuccessCount
			totalFailed += d.FailedCount
		}

		waves := make([]wavePerformance, 0, len(byWave))
		for i := 1; i <= planner.WaveCount; i++ {
			if w, ok := byWave[i]; ok {
				waves = append(waves, *w)
			}
		}

		rate := 0.0
		if totalSent+totalFailed > 0 {
			rate = float64(totalSent) / float64(totalSent+totalFailed)
		}

		return c.JSON(http.StatusOK, map[string]any{
			"campaign_id":     id,
			"name":            camp.Name,
			"status":          camp.Status.String(),
			"dispatches":      len(rows),
			"messages_sent":   totalSent,
			"messages_failed": totalFailed,
			"success_rate":    rate,
			"waves":           waves,
		})
	}
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

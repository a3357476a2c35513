package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/pvictorino/zapcampaign/internal/repository"
	"github.com/pvictorino/zapcampaign/internal/service/render"
)

type previewReq struct {
	Template   string `json:"template"`
	CustomerID int64  `json:"customer_id"`
	CouponCode string `json:"coupon_code"`
}

func previewTemplateHandler(customers repository.CustomersRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req previewReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		if strings.TrimSpace(req.Template) == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "template is required"})
		}
		if req.CustomerID <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "customer_id is required"})
		}

		cust, err := customers.GetByID(c.Request().Context(), req.CustomerID)
		if err != nil {
			log.Errorf("get customer %d failed: %v", req.CustomerID, err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if cust == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "customer not found"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"customer_id": cust.ID,
			"rendered":    render.Message(req.Template, *cust, req.CouponCode),
		})
	}
}

package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/pvictorino/zapcampaign/internal/repository"
	"github.com/pvictorino/zapcampaign/internal/service/executor"
)

func executeDispatchHandler(execSvc *executor.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid dispatch id"})
		}

		res, err := execSvc.Execute(c.Request().Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, executor.ErrDispatchNotFound):
				return c.JSON(http.StatusNotFound, map[string]string{"error": "dispatch not found"})
			case errors.Is(err, executor.ErrNotScheduled):
				return c.JSON(http.StatusConflict, map[string]string{"error": "dispatch is not scheduled"})
			case errors.Is(err, repository.ErrAlreadyClaimed):
				return c.JSON(http.StatusConflict, map[string]string{"error": "dispatch already claimed"})
			}
			log.Errorf("execute dispatch %d failed: %v", id, err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "execution failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"dispatch_id":     id,
			"total_customers": res.TotalCustomers,
			"success_count":   res.SuccessCount,
			"failed_count":    res.FailedCount,
		})
	}
}

package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pvictorino/zapcampaign/internal/scheduler"
)

func schedulerStatusHandler(sched *scheduler.Scheduler) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"running":  sched.Running(),
			"interval": sched.Interval.String(),
		})
	}
}

// baseCtx outlives the request: the loop must keep ticking after the
// start call returns. Shutdown is owned by Stop, not by this context.
func schedulerStartHandler(sched *scheduler.Scheduler, baseCtx context.Context) echo.HandlerFunc {
	return func(c echo.Context) error {
		sched.Start(baseCtx)
		return c.JSON(http.StatusOK, map[string]any{"running": true})
	}
}

func schedulerStopHandler(sched *scheduler.Scheduler) echo.HandlerFunc {
	return func(c echo.Context) error {
		sched.Stop()
		return c.JSON(http.StatusOK, map[string]any{"running": false})
	}
}

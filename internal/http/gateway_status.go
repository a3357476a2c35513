package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// gatewayStatus is the slice of the gateway client the handler needs.
type gatewayStatus interface {
	ConnectionState(ctx context.Context) (string, error)
}

func gatewayStatusHandler(gw gatewayStatus) echo.HandlerFunc {
	return func(c echo.Context) error {
		state, err := gw.ConnectionState(c.Request().Context())
		if err != nil {
			log.Errorf("gateway connection state failed: %v", err)
			return c.JSON(http.StatusBadGateway, map[string]any{
				"connected": false,
				"error":     "gateway unreachable",
			})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"connected": state == "open",
			"state":     state,
		})
	}
}

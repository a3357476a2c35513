package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/pvictorino/zapcampaign/internal/config"
	"github.com/pvictorino/zapcampaign/internal/gateway"
	"github.com/pvictorino/zapcampaign/internal/http/middleware"
	"github.com/pvictorino/zapcampaign/internal/metrics"
	"github.com/pvictorino/zapcampaign/internal/repository"
	"github.com/pvictorino/zapcampaign/internal/scheduler"
	"github.com/pvictorino/zapcampaign/internal/service/executor"
	"github.com/pvictorino/zapcampaign/internal/service/planner"
)

type Server struct{ e *echo.Echo }

// NewServer wires the campaign API. The scheduler and executor are shared
// with the serve command, which owns their lifecycle; baseCtx backs
// scheduler restarts through the API.
func NewServer(
	baseCtx context.Context,
	cfg config.Config,
	mysqlDB, clickhouseDB *sqlx.DB,
	rds *redis.Client,
	gw *gateway.Client,
	sched *scheduler.Scheduler,
	plannerSvc *planner.Service,
	execSvc *executor.Service,
) *Server {
	// repos (MySQL)
	customersRepo := repository.NewCustomersRepository(mysqlDB)
	campaignsRepo := repository.NewCampaignsRepository(mysqlDB)
	dispatchesRepo := repository.NewDispatchesRepository(mysqlDB)
	logsRepo := repository.NewMessageLogsRepository(mysqlDB)

	// repos (ClickHouse)
	chLogsRepo := repository.NewCHMessageLogsRepository(clickhouseDB)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.APIKeyMiddleware(cfg.API.Key)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:ip:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/campaigns", createCampaignHandler(campaignsRepo))
	v1.GET("/campaigns", listCampaignsHandler(campaignsRepo))
	v1.POST("/campaigns/:id/schedule", scheduleCampaignHandler(plannerSvc))
	v1.GET("/campaigns/:id/performance", campaignPerformanceHandler(campaignsRepo, dispatchesRepo))
	v1.POST("/dispatches/:id/execute", executeDispatchHandler(execSvc))
	v1.GET("/customers/segments", segmentCountsHandler(customersRepo))
	v1.GET("/customers/segments/analysis", segmentAnalysisHandler(customersRepo))
	v1.GET("/customers/:id/engagement", customerEngagementHandler(customersRepo, logsRepo))
	v1.POST("/templates/preview", previewTemplateHandler(customersRepo))
	v1.GET("/reports/messages", listMessagesHandler(chLogsRepo))
	v1.GET("/gateway/status", gatewayStatusHandler(gw))
	v1.GET("/scheduler/status", schedulerStatusHandler(sched))
	v1.POST("/scheduler/start", schedulerStartHandler(sched, baseCtx))
	v1.POST("/scheduler/stop", schedulerStopHandler(sched))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

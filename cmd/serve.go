package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pvictorino/zapcampaign/internal/config"
	"github.com/pvictorino/zapcampaign/internal/db"
	"github.com/pvictorino/zapcampaign/internal/gateway"
	httpSrv "github.com/pvictorino/zapcampaign/internal/http"
	"github.com/pvictorino/zapcampaign/internal/logger"
	"github.com/pvictorino/zapcampaign/internal/repository"
	"github.com/pvictorino/zapcampaign/internal/scheduler"
	"github.com/pvictorino/zapcampaign/internal/service/executor"
	"github.com/pvictorino/zapcampaign/internal/service/planner"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP API with the in-process dispatch scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		zl := logger.New(cfg.Log.Level)
		defer func() { _ = zl.Sync() }()

		mysqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		redisClient, err := db.NewRedisClient(db.RedisOpts{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

		chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
			DSN:             cfg.ClickHouse.DSN,
			MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
			MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
			ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
			PingTimeout:     cfg.ClickHouse.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer func() { _ = chDB.Close() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store := repository.NewSQLStore(mysqlDB)
		gw := gateway.NewClient(
			cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Gateway.Instance,
			cfg.Gateway.TimeoutMs, cfg.Gateway.Breaker.FailThreshold, cfg.Gateway.Breaker.OpenForMs,
		)
		plannerSvc := planner.New(store, zl)
		execSvc := executor.New(store, gw, zl)
		sched := scheduler.New(store, execSvc, cfg.Scheduler.TickInterval, zl)

		if cfg.Scheduler.Enabled {
			sched.Start(ctx)
		}

		server := httpSrv.NewServer(ctx, cfg, mysqlDB, chDB, redisClient, gw, sched, plannerSvc, execSvc)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		select {
		case <-ctx.Done():
			log.Println("signal received, shutting down...")
		case err := <-errCh:
			if err != nil {
				log.Printf("http server exited: %v", err)
			}
		}

		sched.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)

		return nil
	},
}

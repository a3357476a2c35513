package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pvictorino/zapcampaign/internal/config"
	"github.com/pvictorino/zapcampaign/internal/db"
	"github.com/pvictorino/zapcampaign/internal/kafka"
	"github.com/pvictorino/zapcampaign/internal/logger"
	"github.com/pvictorino/zapcampaign/internal/repository"
	"github.com/pvictorino/zapcampaign/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Consume order events and keep customer segments current",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		zl := logger.New(cfg.Log.Level)
		defer func() { _ = zl.Sync() }()

		dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer dbx.Close()

		groupID := cfg.Kafka.GroupID
		if groupID == "" {
			groupID = "zapcampaign-ingest"
		}

		consumer := kafka.NewConsumer(kafka.Config{
			Brokers:        cfg.Kafka.Brokers,
			Topic:          cfg.Kafka.OrdersTopic,
			GroupID:        groupID,
			MinBytes:       cfg.Kafka.MinBytes,
			MaxBytes:       cfg.Kafka.MaxBytes,
			CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
		})
		defer consumer.Close()

		w := worker.NewIngestKafka(consumer, repository.NewCustomersRepository(dbx), zl)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		zl.Info("ingest worker started",
			zap.String("topic", cfg.Kafka.OrdersTopic),
			zap.String("group", groupID),
		)

		return w.Run(ctx)
	},
}

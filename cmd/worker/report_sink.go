package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/church-sms/internal/db"
	"github.com/jmehdipour/church-sms/internal/kafka"
	"github.com/jmehdipour/church-sms/internal/repository"
	"github.com/jmehdipour/church-sms/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	sinkBatchSize int
	sinkBatchWait time.Duration
)

var reportSinkCmd = &cobra.Command{
	Use:   "report-sink",
	Short: "Copy delivery reports from Kafka into ClickHouse",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		chDB, err := db.OpenClickHouse(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer chDB.Close()

		topic := cfg.Kafka.ReportsTopic
		if topic == "" {
			topic = repository.DeliveryReportsTopic
		}
		groupID := cfg.Kafka.GroupID
		if groupID == "" {
			groupID = "churchsms-report-sink"
		}

		consumer := kafka.NewConsumer(kafka.Config{
			Brokers:        cfg.Kafka.Brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       cfg.Kafka.MinBytes,
			MaxBytes:       cfg.Kafka.MaxBytes,
			CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
		})
		defer consumer.Close()

		w := worker.NewReportSink(consumer, repository.NewCHReportsRepository(chDB), log.Named("report-sink"))
		if sinkBatchSize > 0 {
			w.BatchSize = sinkBatchSize
		}
		if sinkBatchWait > 0 {
			w.BatchWait = sinkBatchWait
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("report sink started",
			zap.String("topic", topic),
			zap.String("group", groupID),
			zap.Int("batch_size", w.BatchSize),
			zap.Duration("batch_wait", w.BatchWait),
		)

		return w.Run(ctx)
	},
}

func init() {
	reportSinkCmd.Flags().IntVar(&sinkBatchSize, "batch-size", 0, "max reports per ClickHouse insert")
	reportSinkCmd.Flags().DurationVar(&sinkBatchWait, "batch-wait", 0, "max wait before a partial batch is flushed")
}

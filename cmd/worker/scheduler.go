package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/church-sms/internal/app"
	"github.com/jmehdipour/church-sms/internal/db"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runOnce bool

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Dispatch due scheduled messages on a cron schedule",
	RunE:  runScheduler,
}

func init() {
	schedulerCmd.Flags().BoolVar(&runOnce, "once", false, "run a single pass and exit (for an external cron)")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	mysqlDB, err := db.OpenMySQL(cfg.MySQL)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer mysqlDB.Close()

	var rds *redis.Client
	if cfg.Redis.Addr != "" {
		rds, err = db.OpenRedis(cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = rds.Close() }()
	}

	svc := app.NewServices(cfg, mysqlDB, rds, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pass := func() {
		res, err := svc.Schedule.RunDue(ctx, time.Now())
		if err != nil {
			log.Error("scheduler pass failed", zap.Error(err))
			return
		}
		log.Info("scheduler pass", zap.Int("processed", res.Processed), zap.String("message", res.Message))
	}

	if runOnce {
		pass()
		return nil
	}

	c := cron.New(
		cron.WithLocation(cfg.Scheduler.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(cfg.Scheduler.Cron, pass); err != nil {
		return fmt.Errorf("invalid scheduler.cron %q: %w", cfg.Scheduler.Cron, err)
	}

	log.Info("scheduler started", zap.String("cron", cfg.Scheduler.Cron), zap.String("tz", cfg.Scheduler.Timezone))
	c.Start()

	<-ctx.Done()
	log.Info("scheduler stopping, waiting for the running pass")
	<-c.Stop().Done()

	return nil
}

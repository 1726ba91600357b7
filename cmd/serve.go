package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/church-sms/internal/app"
	"github.com/jmehdipour/church-sms/internal/config"
	"github.com/jmehdipour/church-sms/internal/db"
	httpSrv "github.com/jmehdipour/church-sms/internal/http"
	"github.com/jmehdipour/church-sms/internal/logger"
	"github.com/jmehdipour/church-sms/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		log, err := logger.Init(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
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

		var analytics repository.CHReportsRepository
		if cfg.ClickHouse.DSN != "" {
			chDB, err := db.OpenClickHouse(cfg.ClickHouse)
			if err != nil {
				return fmt.Errorf("clickhouse connect: %w", err)
			}
			defer func() { _ = chDB.Close() }()
			analytics = repository.NewCHReportsRepository(chDB)
		}

		svc := app.NewServices(cfg, mysqlDB, rds, log)
		if err := svc.Gateway.Configured(); err != nil {
			log.Warn("sms gateway credentials missing, sends will fail until configured")
		}

		server := httpSrv.NewServer(cfg, httpSrv.Deps{
			Dispatch:  svc.Dispatch,
			Scheduler: svc.Schedule,
			Campaigns: svc.Campaigns,
			Reports:   svc.Reports,
			Analytics: analytics,
			Redis:     rds,
			Log:       log.Named("http"),
		})

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil {
				log.Error("http server exited", zap.Error(err))
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}

package worker

import (
	"fmt"

	"github.com/jmehdipour/church-sms/internal/config"
	"github.com/jmehdipour/church-sms/internal/logger"
	"github.com/jmehdipour/church-sms/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewWorkerCmd returns the parent "worker" command.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run background workers",
	}
	cmd.AddCommand(schedulerCmd)
	cmd.AddCommand(reportSinkCmd)

	return cmd
}

// bootstrap loads config and the logger the way every worker needs them.
func bootstrap(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg.Log.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	return cfg, log, nil
}

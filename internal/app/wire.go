// Package app wires the services shared by the serve and worker commands.
package app

import (
	"github.com/jmehdipour/church-sms/internal/config"
	"github.com/jmehdipour/church-sms/internal/gateway"
	"github.com/jmehdipour/church-sms/internal/repository"
	"github.com/jmehdipour/church-sms/internal/service/dispatch"
	"github.com/jmehdipour/church-sms/internal/service/schedule"
	"github.com/jmehdipour/church-sms/internal/util"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Services struct {
	Campaigns repository.CampaignsRepository
	Reports   repository.DeliveryReportsRepository
	Scheduled repository.ScheduledMessagesRepository
	Groups    repository.GroupsRepository
	Gateway   *gateway.Client
	Dispatch  *dispatch.Service
	Schedule  *schedule.Service
}

func PhoneNormalizer(cfg config.Config) util.PhoneNormalizer {
	return util.PhoneNormalizer{CountryCode: cfg.Gateway.CountryCode, TrunkPrefix: cfg.Gateway.TrunkPrefix}
}

func GatewayClient(cfg config.GatewayConfig) *gateway.Client {
	return gateway.NewClient(gateway.Config{
		BaseURL:            cfg.BaseURL,
		SendPath:           cfg.SendPath,
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		Sender:             cfg.Sender,
		RegisteredDelivery: cfg.RegisteredDelivery,
		TimeoutMs:          cfg.TimeoutMs,
		FailThreshold:      cfg.Breaker.FailThreshold,
		OpenForMs:          cfg.Breaker.OpenForMs,
	})
}

// NewServices builds repositories and services on MySQL. A nil redis client
// disables the scheduler run lock.
func NewServices(cfg config.Config, mysqlDB *sqlx.DB, rds *redis.Client, log *zap.Logger) *Services {
	s := &Services{
		Campaigns: repository.NewCampaignsRepository(mysqlDB),
		Reports:   repository.NewDeliveryReportsRepository(mysqlDB, repository.NewOutboxRepository(mysqlDB)),
		Scheduled: repository.NewScheduledMessagesRepository(mysqlDB),
		Groups:    repository.NewGroupsRepository(mysqlDB),
		Gateway:   GatewayClient(cfg.Gateway),
	}

	phone := PhoneNormalizer(cfg)

	s.Dispatch = dispatch.New(
		dispatch.Config{Phone: phone, PerSegment: cfg.Pricing.PerSegment},
		s.Gateway,
		s.Campaigns,
		s.Reports,
		s.Groups,
		log.Named("dispatch"),
	)

	var locker schedule.Locker
	if rds != nil {
		locker = schedule.NewRedisLocker(rds, cfg.Scheduler.LockKey, cfg.Scheduler.LockTTL)
	}

	s.Schedule = schedule.New(s.Scheduled, s.Dispatch, locker, cfg.Scheduler.Location(), phone, log.Named("scheduler"))

	return s
}

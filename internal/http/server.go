package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmehdipour/church-sms/internal/config"
	"github.com/jmehdipour/church-sms/internal/http/middleware"
	"github.com/jmehdipour/church-sms/internal/metrics"
	"github.com/jmehdipour/church-sms/internal/model"
	"github.com/jmehdipour/church-sms/internal/repository"
	"github.com/jmehdipour/church-sms/internal/service/dispatch"
	"github.com/jmehdipour/church-sms/internal/service/schedule"
	"github.com/jmehdipour/church-sms/internal/util"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Submitter interface {
	Submit(ctx context.Context, req dispatch.Request) (dispatch.Result, error)
}

type Scheduler interface {
	RunDue(ctx context.Context, now time.Time) (schedule.TriggerResult, error)
	Create(ctx context.Context, req schedule.CreateRequest) (model.ScheduledMessage, error)
	Cancel(ctx context.Context, id string) error
	List(ctx context.Context, status model.ScheduleStatus, limit, offset int) ([]model.ScheduledMessage, error)
}

// Deps are the services and stores behind the routes. Analytics and Redis may be nil.
type Deps struct {
	Dispatch  Submitter
	Scheduler Scheduler
	Campaigns repository.CampaignsRepository
	Reports   repository.DeliveryReportsRepository
	Analytics repository.CHReportsRepository
	Redis     *redis.Client
	Log       *zap.Logger
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(cfg config.Config, d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.INFO)
	e.Use(echoMid.Recover(), echoMid.Logger(), middleware.CORS(cfg.HTTP.CORSOrigins))

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	if len(cfg.Auth.APIKeys) == 0 {
		d.Log.Warn("no api keys configured, /v1 routes are unauthenticated")
	}

	authMW := middleware.APIKeyMiddleware(cfg.Auth.APIKeys)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          d.Redis,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "churchsms:rl:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	phone := util.PhoneNormalizer{CountryCode: cfg.Gateway.CountryCode, TrunkPrefix: cfg.Gateway.TrunkPrefix}

	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/sms/send", sendSMSHandler(d.Dispatch))
	v1.POST("/scheduler/trigger", triggerHandler(d.Scheduler))

	v1.GET("/campaigns", listCampaignsHandler(d.Campaigns))
	v1.GET("/campaigns/:id", getCampaignHandler(d.Campaigns, d.Reports))
	v1.GET("/campaigns/:id/reports", listCampaignReportsHandler(d.Campaigns, d.Reports))

	v1.POST("/scheduled", createScheduledHandler(d.Scheduler))
	v1.GET("/scheduled", listScheduledHandler(d.Scheduler))
	v1.POST("/scheduled/:id/cancel", cancelScheduledHandler(d.Scheduler))

	if d.Analytics != nil {
		v1.GET("/reports/deliveries", listDeliveriesHandler(d.Analytics, phone))
	}

	return &Server{e: e, log: d.Log}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.e.ServeHTTP(w, r) }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

func errorJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]any{"success": false, "error": msg})
}

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "churchsms_messages_total",
			Help: "Per-recipient dispatch outcomes",
		},
		[]string{"outcome"}, // delivered|failed
	)

	CampaignsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "churchsms_campaigns_total",
			Help: "Campaigns by terminal status",
		},
		[]string{"status"}, // sent|failed
	)

	GatewayRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "churchsms_gateway_request_seconds",
			Help:    "SMS gateway call latency by outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"}, // ok|rejected|error|circuit_open
	)

	SchedulerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "churchsms_scheduler_runs_total",
			Help: "Scheduler trigger runs by result",
		},
		[]string{"result"}, // processed|empty|locked|error
	)

	ScheduledMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "churchsms_scheduled_messages_total",
			Help: "Scheduled messages handled by the trigger, by final status",
		},
		[]string{"status"}, // sent|failed
	)

	ReportSinkRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "churchsms_report_sink_rows_total",
			Help: "Delivery report envelopes written to ClickHouse",
		},
		[]string{"result"}, // written|dropped
	)
)

var registerOnce sync.Once

// MustRegister registers all collectors once per process.
func MustRegister(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			MessagesTotal,
			CampaignsTotal,
			GatewayRequestSeconds,
			SchedulerRunsTotal,
			ScheduledMessagesTotal,
			ReportSinkRowsTotal,
		)
	})
}

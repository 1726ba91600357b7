package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmehdipour/church-sms/internal/kafka"
	"github.com/jmehdipour/church-sms/internal/metrics"
	"github.com/jmehdipour/church-sms/internal/model"
	"github.com/jmehdipour/church-sms/internal/repository"
	"go.uber.org/zap"
)

// Source is the Kafka side of the sink.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// ReportSink:
// - fetches delivery report envelopes published through the outbox,
// - batches them by size/time into ClickHouse,
// - commits offsets only after a batch is written (at-least-once;
//   ClickHouse collapses duplicates by report id).
type ReportSink struct {
	Source  Source
	Reports repository.CHReportsRepository
	Log     *zap.Logger

	BatchSize int           // max envelopes per insert
	BatchWait time.Duration // max time before a partial batch is flushed
}

func NewReportSink(src Source, reports repository.CHReportsRepository, log *zap.Logger) *ReportSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReportSink{
		Source:    src,
		Reports:   reports,
		Log:       log,
		BatchSize: 500,
		BatchWait: time.Second,
	}
}

// Run blocks until ctx is cancelled, then flushes what it holds.
func (w *ReportSink) Run(ctx context.Context) error {
	if w.Source == nil || w.Reports == nil {
		return errors.New("report-sink: source and reports are required")
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 500
	}
	if w.BatchWait <= 0 {
		w.BatchWait = time.Second
	}

	in := make(chan kafka.Message, w.BatchSize)
	go w.fetch(ctx, in)

	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	var (
		envs []model.ReportEnvelope
		msgs []kafka.Message
	)

	flush := func(ctx context.Context) {
		if len(msgs) == 0 {
			return
		}
		if err := w.Reports.InsertBatch(ctx, envs); err != nil {
			// kept for the next tick; offsets stay uncommitted
			w.Log.Error("clickhouse batch insert failed", zap.Int("size", len(envs)), zap.Error(err))
			return
		}
		if err := w.Source.Commit(ctx, msgs...); err != nil {
			w.Log.Error("kafka commit failed", zap.Error(err))
		}
		metrics.ReportSinkRowsTotal.WithLabelValues("written").Add(float64(len(envs)))
		w.Log.Debug("report batch flushed", zap.Int("rows", len(envs)))
		envs = envs[:0]
		msgs = msgs[:0]
	}

	// the run ctx is already done on shutdown
	final := func() {
		fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		flush(fctx)
	}

	for {
		// a full batch that failed to flush stops intake until a tick writes it
		recv := in
		if len(msgs) >= w.BatchSize {
			recv = nil
		}

		select {
		case <-ctx.Done():
			final()
			return nil

		case m, ok := <-recv:
			if !ok {
				final()
				return nil
			}
			env, err := decodeEnvelope(m.Value)
			if err != nil {
				// poison: ride along with the batch commit, never written
				w.Log.Warn("bad report envelope", zap.Int64("offset", m.Offset), zap.Error(err))
				metrics.ReportSinkRowsTotal.WithLabelValues("dropped").Inc()
				msgs = append(msgs, m)
				continue
			}
			envs = append(envs, env)
			msgs = append(msgs, m)
			if len(envs) >= w.BatchSize {
				flush(ctx)
			}

		case <-tick.C:
			flush(ctx)
		}
	}
}

func (w *ReportSink) fetch(ctx context.Context, out chan<- kafka.Message) {
	defer close(out)
	for {
		m, err := w.Source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.Log.Warn("kafka fetch failed", zap.Error(err))
			time.Sleep(200 * time.Millisecond)
			continue
		}
		select {
		case out <- m:
		case <-ctx.Done():
			return
		}
	}
}

// decodeEnvelope accepts the raw JSON payload or, depending on the Debezium
// converter, the same payload encoded as a JSON string.
func decodeEnvelope(b []byte) (model.ReportEnvelope, error) {
	var env model.ReportEnvelope

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		b = []byte(s)
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return env, err
	}
	if env.ID == "" || env.CampaignID == "" {
		return env, errors.New("envelope missing id or campaign_id")
	}
	return env, nil
}

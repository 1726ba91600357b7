package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmehdipour/church-sms/internal/kafka"
	"github.com/jmehdipour/church-sms/internal/model"
	"github.com/jmehdipour/church-sms/internal/repository"
)

type sliceSource struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []kafka.Message
}

func (s *sliceSource) Fetch(ctx context.Context) (kafka.Message, error) {
	s.mu.Lock()
	if len(s.pending) > 0 {
		m := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (s *sliceSource) Commit(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, msgs...)
	return nil
}

func (s *sliceSource) committedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.committed)
}

type memCH struct {
	mu      sync.Mutex
	rows    []model.ReportEnvelope
	batches int
	failN   int // fail the first N inserts
	largest int // biggest batch ever offered
}

func (m *memCH) InsertBatch(_ context.Context, envs []model.ReportEnvelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(envs) > m.largest {
		m.largest = len(envs)
	}
	if m.failN > 0 {
		m.failN--
		return errors.New("clickhouse unavailable")
	}
	m.rows = append(m.rows, envs...)
	m.batches++
	return nil
}

func (m *memCH) List(context.Context, repository.CHReportFilter) ([]repository.CHReport, error) {
	return nil, nil
}

func (m *memCH) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func envMsg(t *testing.T, offset int64, id string) kafka.Message {
	t.Helper()
	b, err := json.Marshal(model.ReportEnvelope{
		ID:         id,
		CampaignID: "camp-1",
		Phone:      "+233244000000",
		Status:     model.ReportDelivered,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafka.Message{Offset: offset, Value: b}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestReportSink_BatchesAndCommits(t *testing.T) {
	src := &sliceSource{pending: []kafka.Message{
		envMsg(t, 1, "r1"),
		{Offset: 2, Value: []byte("not json")},
		envMsg(t, 3, "r2"),
		envMsg(t, 4, "r3"),
	}}
	ch := &memCH{}

	w := NewReportSink(src, ch, nil)
	w.BatchSize = 2
	w.BatchWait = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, func() bool { return ch.count() == 3 && src.committedCount() == 4 })
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestReportSink_RetriesFailedBatch(t *testing.T) {
	src := &sliceSource{pending: []kafka.Message{envMsg(t, 1, "r1")}}
	ch := &memCH{failN: 1}

	w := NewReportSink(src, ch, nil)
	w.BatchWait = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	waitFor(t, func() bool { return ch.count() == 1 })
	waitFor(t, func() bool { return src.committedCount() == 1 })
}

func TestReportSink_HoldsIntakeWhileBatchPending(t *testing.T) {
	src := &sliceSource{}
	for i := 0; i < 10; i++ {
		src.pending = append(src.pending, envMsg(t, int64(i), fmt.Sprintf("r%d", i)))
	}
	ch := &memCH{failN: 3}

	w := NewReportSink(src, ch, nil)
	w.BatchSize = 2
	w.BatchWait = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	waitFor(t, func() bool { return ch.count() == 10 && src.committedCount() == 10 })

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.largest > 2 {
		t.Fatalf("batch grew to %d while clickhouse was failing", ch.largest)
	}
}

func TestDecodeEnvelope_StringEncodedPayload(t *testing.T) {
	inner, _ := json.Marshal(model.ReportEnvelope{ID: "r1", CampaignID: "c1", Status: model.ReportFailed, Error: "rejected"})
	outer, _ := json.Marshal(string(inner))

	env, err := decodeEnvelope(outer)
	if err != nil {
		t.Fatalf("decodeEnvelope() error: %v", err)
	}
	if env.ID != "r1" || env.Error != "rejected" {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	if _, err := decodeEnvelope([]byte(`{"id":""}`)); err == nil {
		t.Fatalf("expected error for envelope without id")
	}
}

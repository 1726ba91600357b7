package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmehdipour/church-sms/internal/gateway"
	"github.com/jmehdipour/church-sms/internal/model"
	"github.com/jmehdipour/church-sms/internal/util"
)

// ---- fakes ----

type fakeGateway struct {
	configErr error
	send      func(phone string) (string, error)
	calls     []string
}

func (g *fakeGateway) Configured() error { return g.configErr }

func (g *fakeGateway) Send(ctx context.Context, phone, _ string) (string, error) {
	g.calls = append(g.calls, phone)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.send(phone)
}

type fakeCampaigns struct {
	mu        sync.Mutex
	created   []model.Campaign
	finalized map[string]model.Campaign
	createErr error
}

func (f *fakeCampaigns) Create(_ context.Context, c model.Campaign) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, c)
	return nil
}

func (f *fakeCampaigns) Finalize(ctx context.Context, id string, st model.CampaignStatus, delivered, failed int, sentAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finalized == nil {
		f.finalized = map[string]model.Campaign{}
	}
	f.finalized[id] = model.Campaign{ID: id, Status: st, DeliveredCount: delivered, FailedCount: failed, SentAt: &sentAt}
	return nil
}

func (f *fakeCampaigns) GetByID(context.Context, string) (*model.Campaign, error) { return nil, nil }

func (f *fakeCampaigns) List(context.Context, model.CampaignStatus, int, int) ([]model.Campaign, error) {
	return nil, nil
}

type fakeReports struct {
	rows    []model.DeliveryReport
	failAt  int // 1-based insert number that fails; 0 = never
	inserts int
}

func (f *fakeReports) Insert(ctx context.Context, r model.DeliveryReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.inserts++
	if f.failAt > 0 && f.inserts == f.failAt {
		return errors.New("disk full")
	}
	f.rows = append(f.rows, r)
	return nil
}

func (f *fakeReports) ListByCampaign(context.Context, string, model.ReportStatus, int, int) ([]model.DeliveryReport, error) {
	return f.rows, nil
}

func (f *fakeReports) CountByCampaign(context.Context, string) (map[model.ReportStatus]int, error) {
	return nil, nil
}

type fakeMembers map[int64][]model.GroupMember

func (f fakeMembers) ListMembers(_ context.Context, id int64) ([]model.GroupMember, error) {
	return f[id], nil
}

func okSend(string) (string, error)   { return "msg-1", nil }
func failSend(string) (string, error) { return "", errors.New("invalid destination") }

func newTestService(gw *fakeGateway, c *fakeCampaigns, r *fakeReports) *Service {
	return New(Config{
		Phone:      util.PhoneNormalizer{CountryCode: "233", TrunkPrefix: "0"},
		PerSegment: 3,
	}, gw, c, r, fakeMembers{7: {{Phone: "0201111111"}, {Phone: "0202222222"}}}, nil)
}

func baseRequest(recipients ...string) Request {
	return Request{
		CampaignName:  "Sunday reminder",
		Message:       "Hello from church",
		Recipients:    recipients,
		RecipientType: model.RecipientManual,
	}
}

// ---- tests ----

func TestSubmit_AllDelivered(t *testing.T) {
	gw := &fakeGateway{send: okSend}
	camps := &fakeCampaigns{}
	reps := &fakeReports{}

	res, err := newTestService(gw, camps, reps).Submit(context.Background(), baseRequest("0244000000", "0244000001", "0244000002"))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if res.Delivered != 3 || res.Failed != 0 || res.Status != model.CampaignSent {
		t.Fatalf("unexpected result: %+v", res)
	}

	fin := camps.finalized[res.CampaignID]
	if fin.Status != model.CampaignSent || fin.DeliveredCount != 3 || fin.FailedCount != 0 {
		t.Fatalf("unexpected finalized campaign: %+v", fin)
	}
	for _, r := range reps.rows {
		if r.Status != model.ReportDelivered || r.ProviderMessageID == nil || r.DeliveredAt == nil {
			t.Fatalf("unexpected delivered report: %+v", r)
		}
	}
}

func TestSubmit_AllFailedStillSent(t *testing.T) {
	gw := &fakeGateway{send: failSend}
	camps := &fakeCampaigns{}
	reps := &fakeReports{}

	res, err := newTestService(gw, camps, reps).Submit(context.Background(), baseRequest("0244000000", "0244000001"))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if res.Delivered != 0 || res.Failed != 2 || res.Status != model.CampaignSent {
		t.Fatalf("unexpected result: %+v", res)
	}
	for _, r := range reps.rows {
		if r.Status != model.ReportFailed || r.ErrorMessage == nil || *r.ErrorMessage != "invalid destination" {
			t.Fatalf("unexpected failed report: %+v", r)
		}
	}
}

func TestSubmit_DedupesAfterNormalizing(t *testing.T) {
	gw := &fakeGateway{send: okSend}
	camps := &fakeCampaigns{}
	reps := &fakeReports{}

	res, err := newTestService(gw, camps, reps).Submit(context.Background(),
		baseRequest("0244000000", "0244000000", "+233244000001"))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if res.Total != 2 || len(gw.calls) != 2 || len(reps.rows) != 2 {
		t.Fatalf("expected 2 dispatched, got total=%d calls=%d reports=%d", res.Total, len(gw.calls), len(reps.rows))
	}
	if gw.calls[0] != "+233244000000" || gw.calls[1] != "+233244000001" {
		t.Fatalf("unexpected send order: %v", gw.calls)
	}

	seen := map[string]bool{}
	for _, r := range reps.rows {
		if seen[r.Phone] {
			t.Fatalf("duplicate report for %s", r.Phone)
		}
		seen[r.Phone] = true
	}

	c := camps.created[0]
	if c.RecipientCount != 2 || c.Segments != 1 || c.Cost != 6 {
		t.Fatalf("unexpected campaign row: count=%d segments=%d cost=%d", c.RecipientCount, c.Segments, c.Cost)
	}
}

func TestSubmit_CountsAddUp(t *testing.T) {
	gw := &fakeGateway{send: func(phone string) (string, error) {
		if phone == "+233244000001" {
			return "", errors.New("rejected")
		}
		return "ok", nil
	}}
	camps := &fakeCampaigns{}
	reps := &fakeReports{}

	res, err := newTestService(gw, camps, reps).Submit(context.Background(),
		baseRequest("0244000000", "0244000001", "0244000002", "0244000003"))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if res.Delivered+res.Failed != res.Total || res.Failed != 1 {
		t.Fatalf("counts do not add up: %+v", res)
	}
	if len(reps.rows) != res.Total {
		t.Fatalf("expected one report per recipient, got %d", len(reps.rows))
	}
}

func TestSubmit_GatewayNotConfigured(t *testing.T) {
	gw := &fakeGateway{configErr: errors.New("missing credentials"), send: okSend}
	camps := &fakeCampaigns{}
	reps := &fakeReports{}

	_, err := newTestService(gw, camps, reps).Submit(context.Background(), baseRequest("0244000000"))
	if !errors.Is(err, ErrGatewayConfig) {
		t.Fatalf("expected ErrGatewayConfig, got %v", err)
	}
	if len(camps.created) != 0 || len(gw.calls) != 0 {
		t.Fatalf("expected no campaign and no sends on config error")
	}
}

func TestSubmit_InvalidRequests(t *testing.T) {
	cases := []struct {
		name string
		req  Request
	}{
		{"empty message", Request{CampaignName: "x", Recipients: []string{"0244000000"}}},
		{"empty name", Request{Message: "hi", Recipients: []string{"0244000000"}}},
		{"no recipients", Request{CampaignName: "x", Message: "hi", Recipients: []string{" ", ""}}},
		{"bad type", Request{CampaignName: "x", Message: "hi", Recipients: []string{"0244000000"}, RecipientType: "everyone"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := &fakeGateway{send: okSend}
			_, err := newTestService(gw, &fakeCampaigns{}, &fakeReports{}).Submit(context.Background(), tc.req)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestSubmit_ResolvesGroupMembers(t *testing.T) {
	gw := &fakeGateway{send: okSend}
	gid := int64(7)
	req := baseRequest()
	req.RecipientType = model.RecipientGroup
	req.GroupID = &gid

	res, err := newTestService(gw, &fakeCampaigns{}, &fakeReports{}).Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if res.Total != 2 || gw.calls[0] != "+233201111111" {
		t.Fatalf("unexpected group dispatch: %+v calls=%v", res, gw.calls)
	}
}

func TestSubmit_ReportWriteFailureAbortsCampaign(t *testing.T) {
	gw := &fakeGateway{send: okSend}
	camps := &fakeCampaigns{}
	reps := &fakeReports{failAt: 2}

	res, err := newTestService(gw, camps, reps).Submit(context.Background(), baseRequest("0244000000", "0244000001", "0244000002"))
	if err == nil {
		t.Fatalf("expected datastore error")
	}
	if res.Status != model.CampaignFailed {
		t.Fatalf("expected failed status, got %s", res.Status)
	}
	if len(gw.calls) != 2 {
		t.Fatalf("expected loop to stop after the failing write, calls=%d", len(gw.calls))
	}

	fin := camps.finalized[res.CampaignID]
	if fin.Status != model.CampaignFailed || fin.DeliveredCount != 1 {
		t.Fatalf("unexpected finalized campaign: %+v", fin)
	}
	if fin.DeliveredCount+fin.FailedCount != res.Total || res.Delivered+res.Failed != res.Total {
		t.Fatalf("counts must add up to %d, got delivered=%d failed=%d", res.Total, fin.DeliveredCount, fin.FailedCount)
	}
}

func TestSubmit_RecoversGatewayPanic(t *testing.T) {
	gw := &fakeGateway{send: func(phone string) (string, error) {
		if phone == "+233244000000" {
			panic("boom")
		}
		return "ok", nil
	}}
	reps := &fakeReports{}

	res, err := newTestService(gw, &fakeCampaigns{}, reps).Submit(context.Background(), baseRequest("0244000000", "0244000001"))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if res.Failed != 1 || res.Delivered != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if reps.rows[0].Status != model.ReportFailed {
		t.Fatalf("expected panic to produce a failed report")
	}
}

func TestSubmit_CallerCancelDoesNotStopCampaign(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := &fakeGateway{}
	gw.send = func(string) (string, error) {
		if len(gw.calls) == 2 {
			cancel()
		}
		return "msg", nil
	}
	camps := &fakeCampaigns{}
	reps := &fakeReports{}

	var phones []string
	for i := 0; i < 10; i++ {
		phones = append(phones, fmt.Sprintf("02440000%02d", i))
	}

	res, err := newTestService(gw, camps, reps).Submit(ctx, baseRequest(phones...))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if res.Delivered != 10 || res.Failed != 0 || len(reps.rows) != 10 {
		t.Fatalf("expected all 10 delivered after cancel, got %+v reports=%d", res, len(reps.rows))
	}
	if camps.finalized[res.CampaignID].Status != model.CampaignSent {
		t.Fatalf("campaign should be finalized as sent")
	}
}

func TestSubmit_CancelledBeforeStartCreatesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	camps := &fakeCampaigns{}
	_, err := newTestService(&fakeGateway{send: okSend}, camps, &fakeReports{}).Submit(ctx, baseRequest("0244000000"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(camps.created) != 0 {
		t.Fatalf("no campaign should be created")
	}
}

func TestSubmit_GatewayOutageRecovers(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 5 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"MessageId":"ok","Status":0}`))
	}))
	defer srv.Close()

	gw := gateway.NewClient(gateway.Config{
		BaseURL:       srv.URL,
		SendPath:      "/send",
		ClientID:      "client",
		ClientSecret:  "secret",
		FailThreshold: 5,
		OpenForMs:     20,
	})
	svc := New(Config{Phone: util.PhoneNormalizer{CountryCode: "233", TrunkPrefix: "0"}}, gw, &fakeCampaigns{}, &fakeReports{}, nil, nil)

	var phones []string
	for i := 0; i < 50; i++ {
		phones = append(phones, fmt.Sprintf("02440000%02d", i))
	}

	res, err := svc.Submit(context.Background(), baseRequest(phones...))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if res.Failed != 5 || res.Delivered != 45 || hits.Load() != 50 {
		t.Fatalf("every recipient must be attempted: %+v hits=%d", res, hits.Load())
	}
}

func TestSubmit_RecipientInput(t *testing.T) {
	gw := &fakeGateway{send: okSend}
	res, err := newTestService(gw, &fakeCampaigns{}, &fakeReports{}).Submit(context.Background(), baseRequest("n/a", "-", "0244000000"))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if res.Total != 1 || len(gw.calls) != 1 || gw.calls[0] != "+233244000000" {
		t.Fatalf("entries without digits should be dropped: %+v calls=%v", res, gw.calls)
	}

	gw = &fakeGateway{send: okSend}
	camps := &fakeCampaigns{}
	_, err = newTestService(gw, camps, &fakeReports{}).Submit(context.Background(), baseRequest("0244000000", "0244000000000000000000000"))
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for an over-long number, got %v", err)
	}
	if len(gw.calls) != 0 || len(camps.created) != 0 {
		t.Fatalf("nothing should be sent for a rejected request")
	}
}

func TestSubmit_SkipsOverlongGroupMember(t *testing.T) {
	gw := &fakeGateway{send: okSend}
	members := fakeMembers{9: {{Phone: "0244000000000000000000000"}, {Phone: "0201111111"}}}
	svc := New(Config{Phone: util.PhoneNormalizer{CountryCode: "233", TrunkPrefix: "0"}}, gw, &fakeCampaigns{}, &fakeReports{}, members, nil)

	group := int64(9)
	req := baseRequest()
	req.RecipientType = model.RecipientGroup
	req.GroupID = &group

	res, err := svc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if res.Total != 1 || gw.calls[0] != "+233201111111" {
		t.Fatalf("unexpected group dispatch: %+v calls=%v", res, gw.calls)
	}
}

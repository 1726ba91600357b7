package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jmehdipour/church-sms/internal/metrics"
)

var (
	ErrMissingCredentials = errors.New("sms gateway credentials not configured")
	ErrCircuitOpen        = errors.New("sms gateway unavailable (circuit open)")
)

type Config struct {
	BaseURL            string
	SendPath           string
	ClientID           string
	ClientSecret       string
	Sender             string
	RegisteredDelivery bool
	TimeoutMs          int
	FailThreshold      int
	OpenForMs          int
}

// probePoll is the re-check interval while another caller holds the probe.
const probePoll = 5 * time.Millisecond

// ProviderError is a failure reported by the gateway itself, as opposed to a
// transport error.
type ProviderError struct {
	HTTPStatus int
	Status     int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("gateway rejected message (http=%d status=%d)", e.HTTPStatus, e.Status)
}

// Client sends single SMS through the provider's HTTP API.
type Client struct {
	cfg    Config
	client *http.Client
	br     *breaker
}

func NewClient(cfg Config) *Client {
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = 10000
	}

	if cfg.FailThreshold <= 0 {
		cfg.FailThreshold = 5
	}

	if cfg.OpenForMs <= 0 {
		cfg.OpenForMs = 15000
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
		br:     newBreaker(cfg.FailThreshold, time.Duration(cfg.OpenForMs)*time.Millisecond),
	}
}

// Configured reports a configuration error when credentials are unset.
func (c *Client) Configured() error {
	if strings.TrimSpace(c.cfg.ClientID) == "" || strings.TrimSpace(c.cfg.ClientSecret) == "" {
		return ErrMissingCredentials
	}
	return nil
}

type sendRequest struct {
	From               string `json:"From"`
	To                 string `json:"To"`
	Content            string `json:"Content"`
	RegisteredDelivery bool   `json:"RegisteredDelivery"`
}

type sendResponse struct {
	MessageID string `json:"MessageId"`
	Status    *int   `json:"Status"`
	Message   string `json:"Message"`
}

// Send delivers content to a normalized (+<cc>...) phone and returns the
// provider message id.
func (c *Client) Send(ctx context.Context, phone, content string) (string, error) {
	if err := c.Configured(); err != nil {
		return "", err
	}

	if err := c.acquire(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	id, err := c.post(ctx, phone, content)

	var perr *ProviderError
	switch {
	case err == nil:
		c.br.OnSuccess()
		metrics.GatewayRequestSeconds.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	case errors.As(err, &perr) && perr.HTTPStatus < http.StatusInternalServerError:
		c.br.OnNeutral()
		metrics.GatewayRequestSeconds.WithLabelValues("rejected").Observe(time.Since(start).Seconds())
	default:
		c.br.OnFailure()
		metrics.GatewayRequestSeconds.WithLabelValues("error").Observe(time.Since(start).Seconds())
	}

	return id, err
}

// acquire blocks while the circuit is open until the half-open probe is
// admitted, so no recipient is failed without a real attempt.
func (c *Client) acquire(ctx context.Context) error {
	start := time.Now()
	for !c.br.TryAcquire() {
		wait := c.br.RetryIn()
		if wait <= 0 {
			wait = probePoll
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w: %w", ErrCircuitOpen, ctx.Err())
		case <-t.C:
		}
	}

	if waited := time.Since(start); waited > probePoll {
		metrics.GatewayRequestSeconds.WithLabelValues("circuit_wait").Observe(waited.Seconds())
	}
	return nil
}

func (c *Client) post(ctx context.Context, phone, content string) (string, error) {
	b, err := json.Marshal(sendRequest{
		From:               c.cfg.Sender,
		To:                 strings.TrimPrefix(phone, "+"),
		Content:            content,
		RegisteredDelivery: c.cfg.RegisteredDelivery,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+c.cfg.SendPath, bytes.NewReader(b))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	res, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway request: %w", err)
	}

	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))

	var sr sendResponse
	decodeErr := json.Unmarshal(body, &sr)

	if res.StatusCode/100 != 2 {
		perr := &ProviderError{HTTPStatus: res.StatusCode, Message: sr.Message}
		if sr.Status != nil {
			perr.Status = *sr.Status
		}
		return "", perr
	}

	if decodeErr != nil {
		return "", fmt.Errorf("decode gateway response: %w body=%q", decodeErr, string(body))
	}

	if sr.Status != nil && *sr.Status != 0 {
		return "", &ProviderError{HTTPStatus: res.StatusCode, Status: *sr.Status, Message: sr.Message}
	}

	if sr.MessageID == "" {
		return "", &ProviderError{HTTPStatus: res.StatusCode, Message: "gateway response missing message id"}
	}

	return sr.MessageID, nil
}

// Package payout submits transfers to an external payout provider over HTTP
// and verifies the signed outcome tokens the provider posts back.
package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/louisbranch/escrow/internal/services/escrow/transfer"
)

const (
	defaultMaxTries        = 4
	defaultInitialInterval = 200 * time.Millisecond
	transfersPath          = "/v1/transfers"
)

// StatusError reports a non-2xx provider response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("payout provider returned %d", e.StatusCode)
	}
	return fmt.Sprintf("payout provider returned %d: %s", e.StatusCode, e.Body)
}

// CanRetry reports whether the provider may accept the same request later.
func (e *StatusError) CanRetry() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type clientOption struct {
	apiKey          string
	httpClient      *http.Client
	maxTries        uint
	initialInterval time.Duration
	logger          *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*clientOption)

// WithAPIKey sets the bearer token sent with every submit.
func WithAPIKey(key string) ClientOption {
	return func(opt *clientOption) {
		opt.apiKey = strings.TrimSpace(key)
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(opt *clientOption) {
		opt.httpClient = client
	}
}

// WithMaxTries bounds attempts per submit, including the first.
func WithMaxTries(n uint) ClientOption {
	return func(opt *clientOption) {
		opt.maxTries = n
	}
}

// WithInitialInterval sets the first retry delay.
func WithInitialInterval(d time.Duration) ClientOption {
	return func(opt *clientOption) {
		opt.initialInterval = d
	}
}

// WithLogger sets the logger for retried submits.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(opt *clientOption) {
		opt.logger = logger
	}
}

// Client submits transfers to the payout provider. It implements
// transfer.Gateway; outcomes arrive separately through the webhook.
type Client struct {
	endpoint string
	opts     clientOption
}

// NewClient builds a Client for the provider at baseURL.
func NewClient(baseURL string, options ...ClientOption) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("payout base url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("payout base url %q is invalid", baseURL)
	}

	opts := clientOption{
		httpClient:      &http.Client{Timeout: 5 * time.Second},
		maxTries:        defaultMaxTries,
		initialInterval: defaultInitialInterval,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.httpClient == nil {
		opts.httpClient = http.DefaultClient
	}
	if opts.maxTries == 0 {
		opts.maxTries = 1
	}
	if opts.logger == nil {
		opts.logger = zap.NewNop()
	}
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + transfersPath,
		opts:     opts,
	}, nil
}

type submitBody struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	CampaignID  uint64 `json:"campaign_id"`
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
}

// Submit posts req to the provider, retrying throttled and server errors.
// The request id is sent as the idempotency key, so a retried submit that
// the provider already accepted answers 409 and counts as accepted.
//
// Only invalid requests and 4xx answers other than 409 and 429 are reported
// as transfer.Rejected. Timeouts, transport errors and exhausted 5xx retries
// leave the outcome unknown, since the provider may have executed the
// transfer before the response was lost.
func (c *Client) Submit(ctx context.Context, req transfer.Request) error {
	if err := req.Validate(); err != nil {
		return transfer.Rejected(err)
	}
	payload, err := json.Marshal(submitBody{
		ID:          req.ID,
		Kind:        string(req.Kind),
		CampaignID:  req.CampaignID,
		Destination: req.Destination.String(),
		Amount:      req.Amount.String(),
	})
	if err != nil {
		return transfer.Rejected(fmt.Errorf("encode transfer %s: %w", req.ID, err))
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.opts.initialInterval

	operation := func() (struct{}, error) {
		return struct{}{}, c.post(ctx, req.ID, payload)
	}
	_, err = backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(c.opts.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.opts.logger.Warn("retrying payout submit",
				zap.String("transfer_id", req.ID),
				zap.Duration("next", next),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("submit transfer %s: %w", req.ID, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, idempotencyKey string, payload []byte) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(transfer.Rejected(fmt.Errorf("build request: %w", err)))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	if c.opts.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.opts.apiKey)
	}

	resp, err := c.opts.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return nil
	}

	statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	if !statusErr.CanRetry() {
		return backoff.Permanent(transfer.Rejected(statusErr))
	}
	if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
		return backoff.RetryAfter(seconds)
	}
	return statusErr
}

var _ transfer.Gateway = (*Client)(nil)

package ledger

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/chainfile/internal/metrics"
	"github.com/roach88/chainfile/internal/model"
)

// RPC endpoint names.
const (
	EndpointChildRecords = "get_coin_records_by_parent_ids"
	EndpointRecordByName = "get_coin_record_by_name"
	EndpointSolution     = "get_puzzle_and_solution"
)

// Client defaults.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultBackoffMin = 500 * time.Millisecond
	DefaultBackoffMax = 8 * time.Second
	DefaultRateLimit  = 10
)

// maxResponseBytes bounds a single RPC answer.
const maxResponseBytes = 64 << 20

// ClientOptions configures a Client. Zero values take the defaults above.
type ClientOptions struct {
	BaseURL    string
	TLS        *tls.Config
	HTTPClient *http.Client
	Timeout    time.Duration
	MaxRetries int
	BackoffMin time.Duration
	BackoffMax time.Duration
	// RateLimit is requests per second; negative disables limiting.
	RateLimit float64
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Client is a Source backed by a full node's HTTPS RPC interface.
//
// Every call runs under its own timeout. Transport failures, timeouts and
// 5xx/429 answers are retried with exponential backoff; answers with
// success=false are not.
type Client struct {
	baseURL    string
	http       *http.Client
	timeout    time.Duration
	maxRetries int
	backoffMin time.Duration
	backoffMax time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *metrics.Metrics

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

var _ Source = (*Client)(nil)

// NewClient creates an RPC client.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("ledger client: base URL is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		http:       opts.HTTPClient,
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		backoffMin: opts.BackoffMin,
		backoffMax: opts.BackoffMax,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		sleep:      sleepContext,
	}
	if c.http == nil {
		c.http = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig:     opts.TLS,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	} else if c.maxRetries == 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.backoffMin <= 0 {
		c.backoffMin = DefaultBackoffMin
	}
	if c.backoffMax < c.backoffMin {
		c.backoffMax = DefaultBackoffMax
		if c.backoffMax < c.backoffMin {
			c.backoffMax = c.backoffMin
		}
	}
	switch {
	case opts.RateLimit > 0:
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	case opts.RateLimit == 0:
		c.limiter = rate.NewLimiter(rate.Limit(DefaultRateLimit), 1)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

type coinRecordsResponse struct {
	CoinRecords []model.ChainRecord `json:"coin_records"`
}

type coinRecordResponse struct {
	CoinRecord *model.ChainRecord `json:"coin_record"`
}

type solutionResponse struct {
	CoinSolution *struct {
		Solution string `json:"solution"`
	} `json:"coin_solution"`
}

// ChildRecords implements Source.
func (c *Client) ChildRecords(ctx context.Context, parent model.Identifier) ([]model.ChainRecord, error) {
	req := map[string]any{
		"parent_ids":          []string{parent.Hex()},
		"include_spent_coins": true,
	}
	var resp coinRecordsResponse
	if err := c.call(ctx, EndpointChildRecords, parent.String(), req, &resp); err != nil {
		return nil, err
	}
	return resp.CoinRecords, nil
}

// RecordByID implements Source.
func (c *Client) RecordByID(ctx context.Context, id model.Identifier) (model.ChainRecord, error) {
	var resp coinRecordResponse
	if err := c.call(ctx, EndpointRecordByName, id.String(), map[string]any{"name": id.Hex()}, &resp); err != nil {
		return model.ChainRecord{}, err
	}
	if resp.CoinRecord == nil {
		return model.ChainRecord{}, fmt.Errorf("record %s: %w", id, ErrRecordNotFound)
	}
	return *resp.CoinRecord, nil
}

// SpendSolution implements Source.
func (c *Client) SpendSolution(ctx context.Context, id model.Identifier, height uint32) ([]byte, error) {
	req := map[string]any{
		"coin_id": id.Hex(),
		"height":  height,
	}
	var resp solutionResponse
	if err := c.call(ctx, EndpointSolution, id.String(), req, &resp); err != nil {
		return nil, err
	}
	if resp.CoinSolution == nil {
		return nil, fmt.Errorf("solution %s: %w", id, ErrRecordNotFound)
	}
	raw, err := hex.DecodeString(model.SanitizeHex(resp.CoinSolution.Solution))
	if err != nil {
		return nil, &QueryError{Code: ErrCodeDecode, Endpoint: EndpointSolution, ID: id.String(), Attempts: 1, Err: err}
	}
	return raw, nil
}

// call posts body to endpoint and decodes the answer into out, retrying
// transient failures.
func (c *Client) call(ctx context.Context, endpoint, id string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", endpoint, err)
	}

	backoff := c.backoffMin
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		if attempt > 1 {
			c.metrics.LedgerRetry(endpoint)
			c.logger.Debug("retrying ledger query",
				"endpoint", endpoint, "id", id, "attempt", attempt, "backoff", backoff, "error", lastErr)
			if err := c.sleep(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
			if backoff > c.backoffMax {
				backoff = c.backoffMax
			}
		}

		err := c.once(ctx, endpoint, payload, out)
		if err == nil {
			c.metrics.LedgerRequest(endpoint, metrics.OutcomeOK)
			return nil
		}
		if IsNotFound(err) {
			c.metrics.LedgerRequest(endpoint, metrics.OutcomeNotFound)
			return fmt.Errorf("%s %s: %w", endpoint, id, err)
		}

		var qe *QueryError
		if !errors.As(err, &qe) {
			c.metrics.LedgerRequest(endpoint, metrics.OutcomeError)
			return err
		}
		qe.ID = id
		qe.Attempts = attempt
		lastErr = qe
		if !qe.Transient() || ctx.Err() != nil {
			c.metrics.LedgerRequest(endpoint, metrics.OutcomeError)
			return qe
		}
	}
	c.metrics.LedgerRequest(endpoint, metrics.OutcomeError)
	return lastErr
}

// once performs a single request under the per-call timeout.
func (c *Client) once(ctx context.Context, endpoint string, payload []byte, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &QueryError{Code: ErrCodeTransport, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &QueryError{Code: ErrCodeTransport, Endpoint: endpoint, Err: err}
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return &QueryError{Code: ErrCodeTransport, Endpoint: endpoint, Err: fmt.Errorf("http status %d", resp.StatusCode)}
	}

	var envelope struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return &QueryError{Code: ErrCodeDecode, Endpoint: endpoint, Err: fmt.Errorf("http status %d: %w", resp.StatusCode, err)}
	}
	if envelope.Success != nil && !*envelope.Success {
		if strings.Contains(strings.ToLower(envelope.Error), "not found") {
			return fmt.Errorf("%s: %w", envelope.Error, ErrRecordNotFound)
		}
		return &QueryError{Code: ErrCodeRejected, Endpoint: endpoint, Err: errors.New(envelope.Error)}
	}
	if resp.StatusCode != http.StatusOK {
		return &QueryError{Code: ErrCodeRejected, Endpoint: endpoint, Err: fmt.Errorf("http status %d", resp.StatusCode)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &QueryError{Code: ErrCodeDecode, Endpoint: endpoint, Err: err}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package openalgo is the client for the external strategy platform: REST
// for strategy snapshots, batch quotes and human actions, websocket for the
// push price feed. The tracker owns no wire format of its own; everything
// here mirrors the platform's API.
package openalgo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"legtracker/internal/live"
	"legtracker/internal/risk"
	"legtracker/internal/strategy"
)

// TransientError marks a connectivity-class failure. Refresh and poll
// activities retry on their normal schedule; write requests surface it and
// are never auto-retried.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ErrRejected wraps a request the platform refused (4xx with a message).
var ErrRejected = errors.New("request rejected by platform")

// Client wraps the platform REST API.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a REST client from configuration.
func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.normalized()
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("api url cannot be empty")
	}
	parsed, err := url.Parse(cfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("parsing api url failed: %w", err)
	}
	return &Client{
		baseURL:    parsed,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.timeout()},
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetStrategyStates loads the full strategy snapshot.
func (c *Client) GetStrategyStates(ctx context.Context) ([]*strategy.Instance, error) {
	var resp strategyStatesResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/strategy/states", apiRequest{}, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// FetchQuotes implements live.QuoteFetcher through the platform's batch
// quote endpoint.
func (c *Client) FetchQuotes(ctx context.Context, keys []live.Key) (map[live.Key]float64, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	req := quotesRequest{Symbols: make([]symbolRef, 0, len(keys))}
	for _, k := range keys {
		req.Symbols = append(req.Symbols, symbolRef{Symbol: k.Symbol, Exchange: k.Exchange})
	}
	var resp quotesResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/quotes", req, &resp); err != nil {
		return nil, err
	}
	out := make(map[live.Key]float64, len(resp.Data))
	for _, q := range resp.Data {
		out[live.KeyOf(q.Symbol, q.Exchange)] = q.LTP
	}
	return out, nil
}

// SubmitOverride sends an accepted SL/target edit to the platform.
func (c *Client) SubmitOverride(ctx context.Context, instanceID, legKey string, typ risk.OverrideType, value float64) error {
	payload := overrideRequest{
		InstanceID:   instanceID,
		LegKey:       legKey,
		OverrideType: string(typ),
		Value:        value,
	}
	return c.doRequest(ctx, http.MethodPost, "/api/v1/strategy/override", payload, nil)
}

// SubmitManualExit asks the engine to close one leg at the given price.
func (c *Client) SubmitManualExit(ctx context.Context, instanceID, legKey string, exitPrice float64, exitType strategy.ExitType) error {
	payload := manualExitRequest{
		InstanceID: instanceID,
		LegKey:     legKey,
		ExitPrice:  exitPrice,
		ExitType:   string(exitType),
	}
	return c.doRequest(ctx, http.MethodPost, "/api/v1/strategy/exit", payload, nil)
}

// CreateManualLeg registers a manually tracked leg on an instance.
func (c *Client) CreateManualLeg(ctx context.Context, instanceID string, leg strategy.Leg) error {
	payload := manualLegRequest{InstanceID: instanceID, Leg: leg}
	return c.doRequest(ctx, http.MethodPost, "/api/v1/strategy/legs", payload, nil)
}

// DeleteInstance removes an instance and its trade history.
func (c *Client) DeleteInstance(ctx context.Context, instanceID string) error {
	payload := deleteRequest{InstanceID: instanceID}
	return c.doRequest(ctx, http.MethodPost, "/api/v1/strategy/delete", payload, nil)
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		wrapped, err := c.wrapPayload(payload)
		if err != nil {
			return fmt.Errorf("encoding %s payload failed: %w", path, err)
		}
		body = bytes.NewReader(wrapped)
	}
	u := *c.baseURL
	u.Path = u.Path + path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransientError{Op: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &TransientError{Op: path, Err: err}
	}
	if resp.StatusCode >= 500 {
		return &TransientError{Op: path, Err: fmt.Errorf("status %d: %s", resp.StatusCode, firstLine(raw))}
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %s status %d: %s", ErrRejected, path, resp.StatusCode, firstLine(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s response failed: %w", path, err)
	}
	return nil
}

// wrapPayload injects the API key the way the platform expects it: inside
// the JSON body, not a header.
func (c *Client) wrapPayload(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if c.apiKey == "" {
		return raw, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]json.RawMessage{}
	}
	key, _ := json.Marshal(c.apiKey)
	m["apikey"] = key
	return json.Marshal(m)
}

func firstLine(raw []byte) string {
	for i, b := range raw {
		if b == '\n' {
			raw = raw[:i]
			break
		}
	}
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return string(raw)
}

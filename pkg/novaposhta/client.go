// Package novaposhta is a thin client over the Nova Poshta JSON API. Every
// operation is the same POST with a different modelName/calledMethod pair.
package novaposhta

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

	pkgerrors "github.com/kittykibble/kibble-backend/pkg/errors"
)

const (
	DefaultBaseURL              = "https://api.novaposhta.ua/v2.0/json/"
	responseBodyReadLimit int64 = 1024
	defaultTimeout              = 15 * time.Second
)

var errAPIKeyRequired = errors.New("nova poshta api key is required")

// CallObserver is notified after every carrier call, e.g. to record latency.
type CallObserver func(operation string, elapsed time.Duration, err error)

// Client wraps the carrier endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	observe    CallObserver
	now        func() time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithCallObserver registers a hook invoked after each call.
func WithCallObserver(fn CallObserver) Option {
	return func(c *Client) {
		c.observe = fn
	}
}

// NewClient builds the carrier client for the given API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type request struct {
	APIKey           string `json:"apiKey"`
	ModelName        string `json:"modelName"`
	CalledMethod     string `json:"calledMethod"`
	MethodProperties any    `json:"methodProperties"`
}

type envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Errors   []string        `json:"errors"`
	Warnings []string        `json:"warnings"`
	Info     struct {
		TotalCount int `json:"totalCount"`
	} `json:"info"`
}

// APIError is returned when the carrier answers with success=false.
type APIError struct {
	Operation string
	Messages  []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("%s: carrier reported failure", e.Operation)
	}
	return fmt.Sprintf("%s: %s", e.Operation, strings.Join(e.Messages, "; "))
}

// call posts one operation and decodes data[] into out. A success=false
// envelope or a non-2xx status becomes a CARRIER_ERROR.
func (c *Client) call(ctx context.Context, model, method string, props any, out any) (err error) {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "carrier client not configured")
	}
	operation := model + "." + method
	start := c.now()
	defer func() {
		if c.observe != nil {
			c.observe(operation, time.Since(start), err)
		}
	}()

	if props == nil {
		props = struct{}{}
	}
	payload, err := json.Marshal(request{
		APIKey:           c.apiKey,
		ModelName:        model,
		CalledMethod:     method,
		MethodProperties: props,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal "+operation)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build "+operation)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeCarrier, err, operation+" request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeCarrier, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), operation+" request failed")
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeCarrier, err, "decode "+operation)
	}
	if !env.Success {
		return pkgerrors.Wrap(pkgerrors.CodeCarrier, &APIError{Operation: operation, Messages: env.Errors}, operation+" rejected")
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeCarrier, err, "decode "+operation+" data")
	}
	return nil
}

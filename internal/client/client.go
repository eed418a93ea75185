// Package client talks to the remote order, delivery and payment services,
// mapping their responses onto the error taxonomy in errors.go.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[response]
	group      singleflight.Group
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
		Name:        baseURL,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return c
}

type response struct {
	status int
	body   []byte
}

type errorBody struct {
	Error   string          `json:"error"`
	Current json.RawMessage `json:"current,omitempty"`
}

// roundTrip only reports transport failures and 5xx as errors, so the breaker
// trips on an unhealthy service and not on conflicts or bad requests.
func (c *Client) roundTrip(ctx context.Context, op, method, path string, in any) (response, error) {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return response{}, fmt.Errorf("%s: marshal request: %w", op, err)
		}
	}

	resp, err := c.breaker.Execute(func() (response, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return response{}, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			return response{}, &TransientError{Op: op, Err: err}
		}
		defer func() { _ = httpResp.Body.Close() }()

		body, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return response{}, &TransientError{Op: op, Err: err}
		}

		if httpResp.StatusCode >= http.StatusInternalServerError {
			return response{}, &TransientError{Op: op, Status: httpResp.StatusCode, Err: errors.New(decodeMessage(body))}
		}
		return response{status: httpResp.StatusCode, body: body}, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return response{}, &TransientError{Op: op, Err: err}
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	resp, err := c.roundTrip(ctx, op, method, path, in)
	if err != nil {
		return err
	}

	switch {
	case resp.status >= 200 && resp.status < 300:
		if out == nil || len(resp.body) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.body, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
		return nil
	case resp.status == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case resp.status == http.StatusConflict:
		return conflictFrom(op, resp.body)
	default:
		return &RequestError{Op: op, Status: resp.status, Message: decodeMessage(resp.body)}
	}
}

func conflictFrom(op string, body []byte) *ConflictError {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	ce := &ConflictError{Op: op, Message: eb.Error}
	if len(eb.Current) > 0 {
		ce.raw = eb.Current
	}
	return ce
}

func decodeMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error != "" {
		return eb.Error
	}
	return string(bytes.TrimSpace(body))
}

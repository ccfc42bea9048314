package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"booking-assistant/internal/common/logger"
)

var (
	ErrTimeout     = errors.New("HTTP_TIMEOUT")
	ErrUnavailable = errors.New("HTTP_SERVICE_UNAVAILABLE")
	ErrBadResponse = errors.New("HTTP_BAD_RESPONSE")
)

// StatusError reports a non-2xx answer from the remote service
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

type Options struct {
	Name       string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	Logger     logger.Logger

	// Circuit opens after this many consecutive failed calls; 0 disables the breaker
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

type Client struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	baseDelay  time.Duration
	logger     logger.Logger
}

func NewClient(timeout time.Duration) *Client {
	return New(Options{Name: "http", Timeout: timeout})
}

func New(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.BaseDelay == 0 {
		opts.BaseDelay = 200 * time.Millisecond
	}

	c := &Client{
		name:       opts.Name,
		httpClient: &http.Client{Timeout: opts.Timeout},
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		logger:     opts.Logger.WithFields(map[string]interface{}{"service": opts.Name}),
	}

	if opts.BreakerFailures > 0 {
		cooldown := opts.BreakerCooldown
		if cooldown == 0 {
			cooldown = 30 * time.Second
		}
		threshold := opts.BreakerFailures
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        opts.Name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				c.logger.Warn("circuit breaker state changed", map[string]interface{}{
					"from": from.String(),
					"to":   to.String(),
				})
			},
		})
	}

	return c
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req.WithContext(ctx))
}

// PostJSON sends body as JSON and decodes a 2xx answer into out. Transport
// errors, 429 and 5xx are retried with exponential backoff.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	call := func() (interface{}, error) {
		return c.postWithRetry(ctx, url, headers, payload)
	}

	var result interface{}
	if c.breaker != nil {
		result, err = c.breaker.Execute(call)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %s circuit open", ErrUnavailable, c.name)
		}
	} else {
		result, err = call()
	}
	if err != nil {
		return err
	}

	res := result.(*rawResponse)
	if res.statusErr != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, res.statusErr)
	}
	if out == nil || len(res.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.body, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrBadResponse, err)
	}
	return nil
}

type rawResponse struct {
	body      []byte
	statusErr *StatusError
}

func (c *Client) postWithRetry(ctx context.Context, url string, headers map[string]string, payload []byte) (*rawResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			}
		}

		res, err := c.post(ctx, url, headers, payload)
		if err == nil {
			if res.statusErr != nil && retryableStatus(res.statusErr.StatusCode) {
				lastErr = res.statusErr
				c.logger.Warn("retryable status from service", map[string]interface{}{
					"status":  res.statusErr.StatusCode,
					"attempt": attempt + 1,
				})
				continue
			}
			return res, nil
		}

		if ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}

		lastErr = err
		c.logger.Warn("request failed", map[string]interface{}{
			"error":   err.Error(),
			"attempt": attempt + 1,
		})
	}

	return nil, fmt.Errorf("%w: after %d attempts: %v", ErrUnavailable, c.maxRetries+1, lastErr)
}

func (c *Client) post(ctx context.Context, url string, headers map[string]string, payload []byte) (*rawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &rawResponse{statusErr: &StatusError{StatusCode: resp.StatusCode, Body: string(body)}}, nil
	}
	return &rawResponse{body: body}, nil
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wonny/vertex/pkg/config"
	"github.com/wonny/vertex/pkg/logger"
)

// Client wraps every remote call with concurrency limiting, pacing and
// retry-with-backoff.
// ⭐ SSOT: 모든 원격 호출은 이 게이트웨이를 통해서만 수행
type Client struct {
	httpClient *http.Client
	limiter    *Limiter
	retry      RetryConfig
	logger     *logger.Logger
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// New creates a gateway client from config with an injected limiter
func New(cfg *config.Config, limiter *Limiter, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: limiter,
		retry: RetryConfig{
			MaxRetries:   cfg.Gateway.MaxRetries,
			InitialDelay: cfg.Gateway.InitialDelay,
			MaxDelay:     cfg.Gateway.MaxDelay,
		},
		logger: log,
	}
}

// NewWithRetry creates a gateway client with explicit retry settings (tests)
func NewWithRetry(limiter *Limiter, retry RetryConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
		retry:      retry,
		logger:     log,
	}
}

// Do runs an arbitrary call under the limiter with the retry budget.
// 재시도 소진은 일반 에러로 반환된다 — 호출자가 심볼 단위 에러로 기록한다.
func (c *Client) Do(ctx context.Context, name string, call func(ctx context.Context) error) error {
	if err := c.limiter.Acquire(ctx); err != nil {
		return fmt.Errorf("limiter acquire: %w", err)
	}
	defer c.limiter.Release()

	start := time.Now()
	err := c.callWithRetry(ctx, name, call)
	duration := time.Since(start)

	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"call":     name,
			"duration": duration,
			"error":    err.Error(),
		}).Error("Remote call failed")
		return err
	}

	c.logger.WithFields(map[string]interface{}{
		"call":     name,
		"duration": duration,
	}).Debug("Remote call completed")

	return nil
}

// callWithRetry executes the call with exponential backoff
func (c *Client) callWithRetry(ctx context.Context, name string, call func(ctx context.Context) error) error {
	var err error
	delay := c.retry.InitialDelay

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		err = call(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt == c.retry.MaxRetries {
			break
		}

		c.logger.WithFields(map[string]interface{}{
			"call":    name,
			"attempt": attempt + 1,
			"delay":   delay,
		}).Warn("Retrying remote call")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.retry.MaxDelay {
			delay = c.retry.MaxDelay
		}
	}

	return fmt.Errorf("%s: retries exhausted: %w", name, err)
}

// GetJSON performs a GET request under the limiter and decodes JSON
func (c *Client) GetJSON(ctx context.Context, name, url string, dest interface{}) error {
	return c.Do(ctx, name, func(ctx context.Context) error {
		body, err := c.get(ctx, url)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("decode %s response: %w", name, err)
		}
		return nil
	})
}

// Get performs a GET request under the limiter and returns the raw body
func (c *Client) Get(ctx context.Context, name, url string) ([]byte, error) {
	var body []byte
	err := c.Do(ctx, name, func(ctx context.Context) error {
		var err error
		body, err = c.get(ctx, url)
		return err
	})
	return body, err
}

// get executes one HTTP GET attempt
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transientError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		if IsRetryableStatus(resp.StatusCode) {
			return nil, &transientError{err: err}
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transientError{err: fmt.Errorf("read response body: %w", err)}
	}

	return body, nil
}

// transientError marks an error as retryable
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps an error so the gateway will retry it. 외부 협력자
// 구현이 일시적 실패를 표시할 때 사용한다.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// IsRetryableStatus checks if an HTTP status should be retried.
// 5xx와 429 Too Many Requests만 재시도 대상.
func IsRetryableStatus(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
